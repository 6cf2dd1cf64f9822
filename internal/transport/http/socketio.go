package http

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

const namespace = "/"

type sioClient struct {
	conn    socketio.Conn
	limiter *rate.Limiter
}

// SocketIO serves the event-per-message Socket.IO protocol used by the
// browser clients. It implements app.Transport for its own connections.
type SocketIO struct {
	server     *socketio.Server
	dispatcher Dispatcher
	limits     Limits

	mu    sync.RWMutex
	conns map[string]sioClient
}

func NewSocketIO(dispatcher Dispatcher, limits Limits) *SocketIO {
	s := &SocketIO{
		server:     socketio.NewServer(nil),
		dispatcher: dispatcher,
		limits:     limits,
		conns:      make(map[string]sioClient),
	}

	s.server.OnConnect(namespace, func(c socketio.Conn) error {
		s.mu.Lock()
		s.conns[connID(c)] = sioClient{conn: c, limiter: limits.limiter()}
		s.mu.Unlock()
		log.Debug().Str("conn", connID(c)).Msg("socket connected")
		return nil
	})

	for _, name := range InboundEvents {
		event := name
		handler := func(c socketio.Conn, payload interface{}) {
			s.handle(c, event, payload)
		}
		s.server.OnEvent(namespace, event, handler)
		s.server.OnEvent(namespace, strings.Replace(event, ":", ".", 1), handler)
	}

	s.server.OnError(namespace, func(c socketio.Conn, err error) {
		ev := log.Warn().Err(err)
		if c != nil {
			ev = ev.Str("conn", connID(c))
		}
		ev.Msg("socket error")
	})

	s.server.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		id := connID(c)
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), disconnectWait)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, app.Disconnect{Conn: id}); err != nil {
			log.Warn().Err(err).Str("conn", id).Msg("dispatch disconnect")
		}
		log.Debug().Str("conn", id).Str("reason", reason).Msg("socket disconnected")
	})
	return s
}

func connID(c socketio.Conn) string {
	return "sio-" + c.ID()
}

func (s *SocketIO) handle(c socketio.Conn, event string, payload interface{}) {
	id := connID(c)
	s.mu.RLock()
	client, ok := s.conns[id]
	s.mu.RUnlock()
	if ok && !client.limiter.Allow() {
		c.Emit(string(app.EventErrorMessage), app.ErrorPayload{Code: domain.CodeRateLimited, Message: "Too many messages"})
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		c.Emit(string(app.EventErrorMessage), app.ErrorPayload{Code: domain.CodeBadRequest, Message: err.Error()})
		return
	}
	cmd, err := Decode(id, event, raw)
	if err != nil {
		c.Emit(string(app.EventErrorMessage), app.ErrorPayload{Code: domain.CodeBadRequest, Message: err.Error()})
		return
	}
	if err := s.dispatcher.Dispatch(context.Background(), cmd); err != nil {
		log.Warn().Err(err).Str("conn", id).Str("event", event).Msg("dispatch")
	}
}

// Serve runs the Socket.IO engine loop.
func (s *SocketIO) Serve() error { return s.server.Serve() }

func (s *SocketIO) Close() error { return s.server.Close() }

// Server exposes the underlying server for mounting on a router.
func (s *SocketIO) Server() *socketio.Server { return s.server }

func (s *SocketIO) Deliver(_ context.Context, msg app.Message) error {
	args := []interface{}{}
	if msg.Payload != nil {
		args = append(args, msg.Payload)
	}
	if msg.To.Kind != app.AudienceClient {
		s.server.BroadcastToRoom(namespace, ChannelName(msg.To), string(msg.Event), args...)
		return nil
	}
	s.mu.RLock()
	client, ok := s.conns[msg.To.Conn]
	s.mu.RUnlock()
	if ok {
		client.conn.Emit(string(msg.Event), args...)
	}
	return nil
}

func (s *SocketIO) Subscribe(conn string, to app.Audience) error {
	s.mu.RLock()
	client, ok := s.conns[conn]
	s.mu.RUnlock()
	if ok && to.Kind != app.AudienceClient {
		client.conn.Join(ChannelName(to))
	}
	return nil
}

func (s *SocketIO) Unsubscribe(conn string, to app.Audience) error {
	s.mu.RLock()
	client, ok := s.conns[conn]
	s.mu.RUnlock()
	if ok && to.Kind != app.AudienceClient {
		client.conn.Leave(ChannelName(to))
	}
	return nil
}
