package app

import (
	"context"
	"crypto/subtle"

	"github.com/rs/zerolog/log"
	"trivia-room-service/internal/domain"
)

type graceTimer struct {
	seq   uint64
	timer Timer
}

func (e *Engine) disconnect(ctx context.Context, c Disconnect) {
	s, ok := e.sessions[c.Conn]
	if !ok {
		return
	}
	delete(e.sessions, c.Conn)

	room, ok, err := e.getRoom(ctx, s.Code)
	if err != nil || !ok {
		return
	}

	if s.Role == RoleManager {
		if room.ManagerConnID != c.Conn {
			return
		}
		next := room.Clone()
		next.ManagerConnID = ""
		if err := e.commit(ctx, next); err != nil {
			return
		}
		e.startGrace(room.Code)
		log.Info().Str("room", room.Code).Dur("grace", e.opts.GracePeriod).Msg("manager disconnected")
		return
	}

	if _, ok := room.Player(s.PlayerID); !ok {
		return
	}
	var next domain.Room
	if room.Started() {
		// Kept for the leaderboard; scores zero from now on.
		next = room.Clone()
		p, _ := next.Player(s.PlayerID)
		p.Connected = false
		p.ConnID = ""
	} else {
		next = removePlayer(room, s.PlayerID)
	}
	if err := e.commit(ctx, next); err != nil {
		return
	}

	log.Info().Str("room", room.Code).Str("player", s.PlayerID).Bool("started", room.Started()).Msg("player disconnected")
	e.emit(ctx,
		Subscription{Conn: c.Conn, To: ToRoom(room.Code), Leave: true},
		Message{To: ToManager(room.Code), Event: EventRemovePlayer, Payload: s.PlayerID},
	)
	if next.Status == domain.StatusAnswerCollection {
		e.apply(ctx, next, Recount{})
	}
}

func (e *Engine) reconnectManager(ctx context.Context, c ReconnectManager) {
	if _, bound := e.sessions[c.Conn]; bound {
		e.reject(ctx, c.Conn, domain.Invalid(domain.CodeAlreadyJoined, domain.ErrAlreadyJoined, "Already in a room"))
		return
	}
	code := NormalizeCode(c.Code)
	if err := e.opts.Validator.RoomCode(code); err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	room, ok, err := e.getRoom(ctx, code)
	if err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	if !ok {
		e.reject(ctx, c.Conn, domain.Invalid(domain.CodeRoomNotFound, domain.ErrRoomNotFound, "Room not found"))
		return
	}
	if c.Token == "" || subtle.ConstantTimeCompare([]byte(c.Token), []byte(room.ManagerToken)) != 1 {
		e.reject(ctx, c.Conn, domain.Invalid(domain.CodeNotManager, domain.ErrNotManager, "Invalid manager token"))
		return
	}

	previous := room.ManagerConnID
	next := room.Clone()
	next.ManagerConnID = c.Conn
	if err := e.commit(ctx, next); err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	e.stopGrace(code)
	if previous != "" {
		// The old connection is still open; the token holder takes over.
		delete(e.sessions, previous)
		e.emit(ctx, Subscription{Conn: previous, To: ToManager(code), Leave: true})
	}
	e.sessions[c.Conn] = session{Code: code, Role: RoleManager}

	log.Info().Str("room", code).Str("conn", c.Conn).Msg("manager reconnected")
	e.emit(ctx,
		Subscription{Conn: c.Conn, To: ToManager(code)},
		Message{To: ToClient(c.Conn), Event: EventInviteCode, Payload: InvitePayload{Code: code, Token: room.ManagerToken}},
		Message{To: ToManager(code), Event: EventStatus, Payload: StatusOf(next)},
	)
}

func (e *Engine) startGrace(code string) {
	e.stopGrace(code)
	e.graceSeq++
	seq := e.graceSeq
	e.grace[code] = graceTimer{
		seq: seq,
		timer: e.opts.Scheduler.AfterFunc(e.opts.GracePeriod, func() {
			e.post(graceExpired{Code: code, Seq: seq})
		}),
	}
}

func (e *Engine) stopGrace(code string) {
	if g, ok := e.grace[code]; ok {
		g.timer.Stop()
		delete(e.grace, code)
	}
}

// graceExpired resets the room unless the manager came back in time.
func (e *Engine) graceExpired(ctx context.Context, c graceExpired) {
	g, ok := e.grace[c.Code]
	if !ok || g.seq != c.Seq {
		return
	}
	delete(e.grace, c.Code)

	room, ok, err := e.getRoom(ctx, c.Code)
	if err != nil || !ok || room.ManagerConnID != "" {
		return
	}
	log.Info().Str("room", c.Code).Msg("manager did not return, resetting room")
	e.emit(ctx, Message{To: ToRoom(c.Code), Event: EventReset})
	e.closeRoom(ctx, c.Code)
}
