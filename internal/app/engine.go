package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/idgen"
)

const (
	inboxSize        = 256
	outboxSize       = 1024
	defaultOpTimeout = 2 * time.Second
	codeAttempts     = 16
)

// ErrEngineStopped is returned by Dispatch once Run has returned.
var ErrEngineStopped = errors.New("engine stopped")

// Role is what a connection is bound to within a room.
type Role int

const (
	RolePlayer Role = iota + 1
	RoleManager
)

type session struct {
	Code     string
	Role     Role
	PlayerID string
}

// Options configures an Engine. Zero values fall back to production defaults.
type Options struct {
	Rules       Rules
	QuestionSet string
	GracePeriod time.Duration
	OpTimeout   time.Duration
	Validator   *Validator
	IDs         idgen.Generator
	Clock       Clock
	Scheduler   Scheduler
}

type envelope struct {
	cmd  Command
	done chan struct{}
}

type flush struct {
	done chan struct{}
}

func (flush) effect() {}

// Engine is the single authority over room state. Every command and timer
// expiry is handled to completion on the Run goroutine, so handlers read,
// mutate and commit a room without locking. Effects are delivered on a
// separate goroutine after the state they describe is stored.
type Engine struct {
	store     RoomStore
	questions QuestionRepository
	transport Transport
	opts      Options

	inbox  chan envelope
	outbox chan Effect
	done   chan struct{}

	// Owned by the Run goroutine.
	sessions map[string]session
	timers   map[string]Timer
	grace    map[string]graceTimer
	graceSeq uint64
}

func NewEngine(store RoomStore, questions QuestionRepository, transport Transport, opts Options) *Engine {
	if opts.Validator == nil {
		opts.Validator = NewValidator(0, "", "")
	}
	if opts.IDs == nil {
		opts.IDs = idgen.NewRandom(0)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if opts.Rules.QuestionCooldown <= 0 {
		opts.Rules.QuestionCooldown = 3 * time.Second
	}
	return &Engine{
		store:     store,
		questions: questions,
		transport: transport,
		opts:      opts,
		inbox:     make(chan envelope, inboxSize),
		outbox:    make(chan Effect, outboxSize),
		done:      make(chan struct{}),
		sessions:  make(map[string]session),
		timers:    make(map[string]Timer),
		grace:     make(map[string]graceTimer),
	}
}

// Run processes commands until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		e.deliverLoop(ctx)
	}()

	defer func() {
		close(e.done)
		for code, t := range e.timers {
			t.Stop()
			delete(e.timers, code)
		}
		for code, g := range e.grace {
			g.timer.Stop()
			delete(e.grace, code)
		}
		<-delivered
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-e.inbox:
			e.handle(ctx, env.cmd)
			if env.done != nil {
				close(env.done)
			}
		}
	}
}

// Dispatch queues cmd and waits until it has been handled.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) error {
	env := envelope{cmd: cmd, done: make(chan struct{})}
	select {
	case e.inbox <- env:
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-env.done:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync returns once every command queued before it has been handled and the
// resulting effects have been handed to the transport.
func (e *Engine) Sync(ctx context.Context) error {
	b := barrier{done: make(chan struct{})}
	if err := e.Dispatch(ctx, b); err != nil {
		return err
	}
	select {
	case <-b.done:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

type barrier struct {
	done chan struct{}
}

func (barrier) command() {}

// post queues an internal command from a timer goroutine without waiting.
func (e *Engine) post(cmd Command) {
	select {
	case e.inbox <- envelope{cmd: cmd}:
	case <-e.done:
	}
}

// Rooms summarizes every live room.
func (e *Engine) Rooms(ctx context.Context) ([]domain.RoomSummary, error) {
	codes, err := e.store.Codes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RoomSummary, 0, len(codes))
	for _, code := range codes {
		room, ok, err := e.store.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, summarize(room))
		}
	}
	return out, nil
}

// Room summarizes one live room.
func (e *Engine) Room(ctx context.Context, code string) (domain.RoomSummary, error) {
	room, ok, err := e.store.Get(ctx, NormalizeCode(code))
	if err != nil {
		return domain.RoomSummary{}, err
	}
	if !ok {
		return domain.RoomSummary{}, domain.ErrRoomNotFound
	}
	return summarize(room), nil
}

func summarize(room domain.Room) domain.RoomSummary {
	return domain.RoomSummary{
		Code:      room.Code,
		Status:    room.Status,
		Players:   len(room.Players),
		Question:  StatusOf(room).Question,
		Total:     len(room.Questions),
		Manager:   room.ManagerConnID != "",
		CreatedAt: room.CreatedAt,
	}
}

func (e *Engine) handle(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case CheckRoom:
		e.checkRoom(ctx, c)
	case Join:
		e.join(ctx, c)
	case CreateRoom:
		e.createRoom(ctx, c)
	case ReconnectManager:
		e.reconnectManager(ctx, c)
	case StartGame:
		e.managerInput(ctx, c.Conn, c.Code, Start{})
	case AbortQuestion:
		e.managerInput(ctx, c.Conn, c.Code, Skip{})
	case ShowLeaderboardCmd:
		e.managerInput(ctx, c.Conn, c.Code, ShowLeaderboard{})
	case NextQuestion:
		e.managerInput(ctx, c.Conn, c.Code, Next{})
	case KickPlayer:
		e.kick(ctx, c)
	case SubmitAnswer:
		e.submitAnswer(ctx, c)
	case Disconnect:
		e.disconnect(ctx, c)
	case timerFired:
		e.timerFired(ctx, c)
	case graceExpired:
		e.graceExpired(ctx, c)
	case barrier:
		e.emit(ctx, flush{done: c.done})
	}
}

func (e *Engine) now() time.Time {
	return e.opts.Clock()
}

func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.OpTimeout)
}

func (e *Engine) getRoom(ctx context.Context, code string) (domain.Room, bool, error) {
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.store.Get(ctx, code)
}

func (e *Engine) commit(ctx context.Context, room domain.Room) error {
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	if err := e.store.Set(ctx, room); err != nil {
		log.Error().Err(err).Str("room", room.Code).Msg("commit room")
		return err
	}
	return nil
}

// reject reports err to the originating connection only.
func (e *Engine) reject(ctx context.Context, conn string, err error) {
	payload := ErrorPayload{Code: domain.ErrorCode(err), Message: "Service unavailable"}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		payload.Message = verr.Message
	}
	log.Debug().Str("conn", conn).Str("code", payload.Code).Msg(payload.Message)
	e.emit(ctx, Message{To: ToClient(conn), Event: EventErrorMessage, Payload: payload})
}

func (e *Engine) checkRoom(ctx context.Context, c CheckRoom) {
	code := NormalizeCode(c.Code)
	if err := e.opts.Validator.RoomCode(code); err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	_, ok, err := e.getRoom(ctx, code)
	if err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	if !ok {
		e.reject(ctx, c.Conn, domain.Invalid(domain.CodeRoomNotFound, domain.ErrRoomNotFound, "Room not found"))
		return
	}
	e.emit(ctx, Message{To: ToClient(c.Conn), Event: EventSuccessRoom, Payload: code})
}

func (e *Engine) join(ctx context.Context, c Join) {
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
	if err := e.opts.Validator.Username(c.Username); err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	if _, taken := room.PlayerByUsername(c.Username); taken {
		e.reject(ctx, c.Conn, domain.Invalid(domain.CodeUsernameTaken, domain.ErrUsernameTaken, "Username already exists"))
		return
	}
	if room.Started() {
		e.reject(ctx, c.Conn, domain.Invalid(domain.CodeGameStarted, domain.ErrGameStarted, "Game already started"))
		return
	}

	player := domain.Player{
		ID:        e.opts.IDs.PlayerID(),
		ConnID:    c.Conn,
		Username:  c.Username,
		Connected: true,
		JoinedAt:  e.now(),
	}
	next := room.Clone()
	next.Players = append(next.Players, player)
	if err := e.commit(ctx, next); err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	e.sessions[c.Conn] = session{Code: code, Role: RolePlayer, PlayerID: player.ID}

	log.Info().Str("room", code).Str("conn", c.Conn).Str("player", player.ID).Msg("player joined")
	e.emit(ctx,
		Subscription{Conn: c.Conn, To: ToRoom(code)},
		Message{To: ToManager(code), Event: EventNewPlayer, Payload: player.Public()},
		Message{To: ToClient(c.Conn), Event: EventSuccessJoin, Payload: JoinPayload{PlayerID: player.ID, Room: code, Username: player.Username}},
		Message{To: ToClient(c.Conn), Event: EventStatus, Payload: domain.Status{
			Name: domain.StatusWait,
			Data: WaitData{Text: "Waiting for the manager to start the game"},
		}},
	)
}

func (e *Engine) createRoom(ctx context.Context, c CreateRoom) {
	if _, bound := e.sessions[c.Conn]; bound {
		e.reject(ctx, c.Conn, domain.Invalid(domain.CodeAlreadyJoined, domain.ErrAlreadyJoined, "Already in a room"))
		return
	}
	if err := e.opts.Validator.Password(c.Password); err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}

	loadCtx, cancel := e.opContext(ctx)
	set, err := e.questions.GetQuestionSet(loadCtx, e.opts.QuestionSet)
	cancel()
	if err == nil && len(set.Questions) == 0 {
		err = domain.ErrNoQuestions
	}
	if err != nil {
		log.Error().Err(err).Str("set", e.opts.QuestionSet).Msg("load question set")
		e.reject(ctx, c.Conn, err)
		return
	}

	code, err := e.freeCode(ctx)
	if err != nil {
		log.Error().Err(err).Msg("allocate room code")
		e.reject(ctx, c.Conn, err)
		return
	}

	room := domain.Room{
		Code:          code,
		ManagerConnID: c.Conn,
		ManagerToken:  e.opts.IDs.Token(),
		Subject:       set.Subject,
		Questions:     set.Questions,
		Status:        domain.StatusRoomOpen,
		CreatedAt:     e.now(),
	}
	if err := e.commit(ctx, room); err != nil {
		e.reject(ctx, c.Conn, err)
		return
	}
	e.sessions[c.Conn] = session{Code: code, Role: RoleManager}

	log.Info().Str("room", code).Str("conn", c.Conn).Int("questions", len(room.Questions)).Msg("room created")
	e.emit(ctx,
		Subscription{Conn: c.Conn, To: ToManager(code)},
		Message{To: ToClient(c.Conn), Event: EventInviteCode, Payload: InvitePayload{Code: code, Token: room.ManagerToken}},
		Message{To: ToManager(code), Event: EventStatus, Payload: StatusOf(room)},
	)
}

// freeCode draws codes until one is not held by a live room.
func (e *Engine) freeCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := e.opts.IDs.RoomCode()
		if err != nil {
			return "", err
		}
		_, taken, err := e.getRoom(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.New("no free room code")
}

// managerRoom resolves the room driven by conn. Commands from anyone else are
// protocol violations and are dropped.
func (e *Engine) managerRoom(ctx context.Context, conn, code string) (domain.Room, bool) {
	s, ok := e.sessions[conn]
	if !ok || s.Role != RoleManager {
		log.Debug().Str("conn", conn).Msg("manager command from non-manager ignored")
		return domain.Room{}, false
	}
	if code != "" && NormalizeCode(code) != s.Code {
		log.Debug().Str("conn", conn).Str("room", code).Msg("manager command for foreign room ignored")
		return domain.Room{}, false
	}
	room, ok, err := e.getRoom(ctx, s.Code)
	if err != nil || !ok || room.ManagerConnID != conn {
		return domain.Room{}, false
	}
	return room, true
}

func (e *Engine) managerInput(ctx context.Context, conn, code string, in Input) {
	room, ok := e.managerRoom(ctx, conn, code)
	if !ok {
		return
	}
	e.apply(ctx, room, in)
}

func (e *Engine) submitAnswer(ctx context.Context, c SubmitAnswer) {
	s, ok := e.sessions[c.Conn]
	if !ok || s.Role != RolePlayer {
		return
	}
	room, ok, err := e.getRoom(ctx, s.Code)
	if err != nil || !ok {
		return
	}
	e.apply(ctx, room, Answer{PlayerID: s.PlayerID, Index: c.AnswerIndex})
}

func (e *Engine) kick(ctx context.Context, c KickPlayer) {
	room, ok := e.managerRoom(ctx, c.Conn, "")
	if !ok {
		return
	}
	player, ok := room.Player(c.PlayerID)
	if !ok {
		return
	}
	kicked := *player
	next := removePlayer(room, kicked.ID)
	if err := e.commit(ctx, next); err != nil {
		return
	}

	log.Info().Str("room", room.Code).Str("player", kicked.ID).Msg("player kicked")
	if kicked.ConnID != "" {
		delete(e.sessions, kicked.ConnID)
		e.emit(ctx,
			Message{To: ToClient(kicked.ConnID), Event: EventKick},
			Subscription{Conn: kicked.ConnID, To: ToRoom(room.Code), Leave: true},
		)
	}
	e.emit(ctx, Message{To: ToManager(room.Code), Event: EventRemovePlayer, Payload: kicked.ID})
	if next.Status == domain.StatusAnswerCollection {
		e.apply(ctx, next, Recount{})
	}
}

// removePlayer drops a player and any answer it submitted for the current question.
func removePlayer(room domain.Room, id string) domain.Room {
	next := room.Clone()
	players := next.Players[:0]
	for _, p := range next.Players {
		if p.ID != id {
			players = append(players, p)
		}
	}
	next.Players = players
	answers := next.Answers[:0]
	for _, a := range next.Answers {
		if a.PlayerID != id {
			answers = append(answers, a)
		}
	}
	next.Answers = answers
	return next
}

func (e *Engine) timerFired(ctx context.Context, c timerFired) {
	room, ok, err := e.getRoom(ctx, c.Code)
	if err != nil || !ok {
		return
	}
	if room.Round != c.Round {
		log.Debug().Str("room", c.Code).Stringer("timer", c.Kind).Msg("stale timer ignored")
		return
	}
	e.apply(ctx, room, Tick{Kind: c.Kind, Round: c.Round})
}

// apply runs the reducer and commits its outcome. Nothing is emitted or
// scheduled unless the new state was stored.
func (e *Engine) apply(ctx context.Context, room domain.Room, in Input) {
	out := Transition(room, in, e.now(), e.opts.Rules)
	if out.Closed {
		e.closeRoom(ctx, room.Code)
		log.Info().Str("room", room.Code).Msg("finished room removed")
		return
	}
	if !out.Changed {
		if len(out.Messages) == 0 {
			log.Debug().Str("room", room.Code).Str("status", string(room.Status)).Msgf("%T ignored", in)
		}
		e.emitMessages(ctx, out.Messages)
		return
	}
	if err := e.commit(ctx, out.Room); err != nil {
		return
	}
	if out.Room.Status != room.Status {
		log.Info().
			Str("room", room.Code).
			Str("from", string(room.Status)).
			Str("to", string(out.Room.Status)).
			Msg("phase transition")
	}
	e.emitMessages(ctx, out.Messages)
	if out.Room.Round != room.Round {
		e.stopTimer(room.Code)
		if out.Timer != nil {
			e.schedule(room.Code, *out.Timer)
		}
	}
}

func (e *Engine) schedule(code string, req TimerRequest) {
	e.timers[code] = e.opts.Scheduler.AfterFunc(req.After, func() {
		e.post(timerFired{Code: code, Kind: req.Kind, Round: req.Round})
	})
}

func (e *Engine) stopTimer(code string) {
	if t, ok := e.timers[code]; ok {
		t.Stop()
		delete(e.timers, code)
	}
}

// closeRoom deletes a room and unbinds every connection still attached to it.
func (e *Engine) closeRoom(ctx context.Context, code string) {
	e.stopTimer(code)
	e.stopGrace(code)

	opCtx, cancel := e.opContext(ctx)
	if err := e.store.Delete(opCtx, code); err != nil {
		log.Error().Err(err).Str("room", code).Msg("delete room")
	}
	cancel()

	for conn, s := range e.sessions {
		if s.Code != code {
			continue
		}
		delete(e.sessions, conn)
		to := ToRoom(code)
		if s.Role == RoleManager {
			to = ToManager(code)
		}
		e.emit(ctx, Subscription{Conn: conn, To: to, Leave: true})
	}
}

func (e *Engine) emitMessages(ctx context.Context, msgs []Message) {
	for _, m := range msgs {
		e.emit(ctx, m)
	}
}

func (e *Engine) emit(ctx context.Context, effects ...Effect) {
	for _, eff := range effects {
		select {
		case e.outbox <- eff:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case eff := <-e.outbox:
			e.deliver(ctx, eff)
		}
	}
}

func (e *Engine) deliver(ctx context.Context, eff Effect) {
	switch eff := eff.(type) {
	case Message:
		if err := e.transport.Deliver(ctx, eff); err != nil {
			log.Warn().Err(err).Stringer("to", eff.To.Kind).Str("room", eff.To.Room).Str("event", string(eff.Event)).Msg("delivery failed")
		}
	case Subscription:
		var err error
		if eff.Leave {
			err = e.transport.Unsubscribe(eff.Conn, eff.To)
		} else {
			err = e.transport.Subscribe(eff.Conn, eff.To)
		}
		if err != nil {
			log.Warn().Err(err).Str("conn", eff.Conn).Str("room", eff.To.Room).Msg("subscription failed")
		}
	case flush:
		close(eff.done)
	}
}
