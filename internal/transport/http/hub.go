package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
)

const (
	sendBuffer      = 64
	maxMessageBytes = 4096
	writeWait       = 10 * time.Second
	disconnectWait  = 2 * time.Second
)

// Dispatcher accepts commands decoded from client messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd app.Command) error
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, cmd app.Command) error

func (f DispatchFunc) Dispatch(ctx context.Context, cmd app.Command) error { return f(ctx, cmd) }

// Limits bounds how fast one connection may send commands.
type Limits struct {
	Rate  float64
	Burst int
}

func (l Limits) limiter() *rate.Limiter {
	if l.Rate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := l.Burst
	if burst <= 0 {
		burst = int(l.Rate) + 1
	}
	return rate.NewLimiter(rate.Limit(l.Rate), burst)
}

// ChannelName maps an audience to the room-{code} / room-{code}-manager
// channels shared by every socket transport. Client audiences have no channel.
func ChannelName(to app.Audience) string {
	switch to.Kind {
	case app.AudienceRoom:
		return "room-" + to.Room
	case app.AudienceManager:
		return "room-" + to.Room + "-manager"
	}
	return ""
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type wsClient struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	done    chan struct{}
}

// enqueue never blocks the delivery goroutine: when the buffer is full the
// oldest frame is dropped.
func (c *wsClient) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Hub owns every WebSocket connection and implements app.Transport for them.
type Hub struct {
	dispatcher Dispatcher
	limits     Limits
	upgrader   websocket.Upgrader

	mu       sync.RWMutex
	clients  map[string]*wsClient
	channels map[string]map[string]*wsClient
}

func NewHub(dispatcher Dispatcher, limits Limits, checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		dispatcher: dispatcher,
		limits:     limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients:  make(map[string]*wsClient),
		channels: make(map[string]map[string]*wsClient),
	}
}

// ServeWS upgrades the request and pumps messages between the socket and the
// dispatcher until the client goes away. ?pin=CODE&name=NAME joins right away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	client := &wsClient{
		id:      "ws-" + uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: h.limits.limiter(),
		done:    make(chan struct{}),
	}
	h.register(client)
	log.Debug().Str("conn", client.id).Msg("ws connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(client)
	}()

	ctx := r.Context()
	q := r.URL.Query()
	if pin, name := q.Get("pin"), q.Get("name"); pin != "" && name != "" {
		h.dispatch(ctx, client, app.Join{Conn: client.id, Username: name, Code: pin})
	}

	h.readPump(ctx, client)

	dctx, cancel := context.WithTimeout(context.Background(), disconnectWait)
	if err := h.dispatcher.Dispatch(dctx, app.Disconnect{Conn: client.id}); err != nil {
		log.Warn().Err(err).Str("conn", client.id).Msg("dispatch disconnect")
	}
	cancel()

	h.unregister(client)
	close(client.done)
	<-writerDone
	conn.Close()
	log.Debug().Str("conn", client.id).Msg("ws disconnected")
}

func (h *Hub) readPump(ctx context.Context, c *wsClient) {
	c.conn.SetReadLimit(maxMessageBytes)
	for {
		var inbound inboundMessage
		if err := c.conn.ReadJSON(&inbound); err != nil {
			return
		}
		if !c.limiter.Allow() {
			h.sendError(c, domain.CodeRateLimited, "Too many messages")
			continue
		}
		cmd, err := Decode(c.id, inbound.Type, inbound.Payload)
		if err != nil {
			h.sendError(c, domain.CodeBadRequest, err.Error())
			continue
		}
		if !h.dispatch(ctx, c, cmd) {
			return
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, c *wsClient, cmd app.Command) bool {
	if err := h.dispatcher.Dispatch(ctx, cmd); err != nil {
		log.Warn().Err(err).Str("conn", c.id).Msg("dispatch")
		return false
	}
	return true
}

func (h *Hub) writePump(c *wsClient) {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("ws write")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) sendError(c *wsClient, code, message string) {
	data, err := json.Marshal(outboundMessage{
		Type:    string(app.EventErrorMessage),
		Payload: app.ErrorPayload{Code: code, Message: message},
	})
	if err == nil {
		c.enqueue(data)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
	for name, members := range h.channels {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
}

// Deliver encodes msg once and queues it for every matching connection.
// Connections this hub does not own are ignored.
func (h *Hub) Deliver(_ context.Context, msg app.Message) error {
	h.mu.RLock()
	var targets []*wsClient
	if msg.To.Kind == app.AudienceClient {
		if c, ok := h.clients[msg.To.Conn]; ok {
			targets = append(targets, c)
		}
	} else {
		for _, c := range h.channels[ChannelName(msg.To)] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	data, err := json.Marshal(outboundMessage{Type: string(msg.Event), Payload: msg.Payload})
	if err != nil {
		return err
	}
	for _, c := range targets {
		if !c.enqueue(data) {
			log.Warn().Str("conn", c.id).Str("event", string(msg.Event)).Msg("ws send buffer full")
		}
	}
	return nil
}

func (h *Hub) Subscribe(conn string, to app.Audience) error {
	name := ChannelName(to)
	if name == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[conn]
	if !ok {
		return nil
	}
	members := h.channels[name]
	if members == nil {
		members = make(map[string]*wsClient)
		h.channels[name] = members
	}
	members[conn] = c
	return nil
}

func (h *Hub) Unsubscribe(conn string, to app.Audience) error {
	name := ChannelName(to)
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[name]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}
	return nil
}

// Connections reports how many sockets are open.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
