package app

import (
	"context"
	"errors"
)

// AudienceKind selects who receives a message.
type AudienceKind int

const (
	// AudienceRoom reaches every player subscribed to a room.
	AudienceRoom AudienceKind = iota
	// AudienceManager reaches the manager of a room.
	AudienceManager
	// AudienceClient reaches exactly one connection.
	AudienceClient
)

func (k AudienceKind) String() string {
	switch k {
	case AudienceRoom:
		return "room"
	case AudienceManager:
		return "manager"
	case AudienceClient:
		return "client"
	}
	return "unknown"
}

// Audience addresses a message. Transports map it to their own channel names.
type Audience struct {
	Kind AudienceKind
	Room string
	Conn string
}

func ToRoom(code string) Audience    { return Audience{Kind: AudienceRoom, Room: code} }
func ToManager(code string) Audience { return Audience{Kind: AudienceManager, Room: code} }
func ToClient(conn string) Audience  { return Audience{Kind: AudienceClient, Conn: conn} }

// Event is the name of an outbound notification.
type Event string

const (
	EventStatus       Event = "game:status"
	EventErrorMessage Event = "game:errorMessage"
	EventSuccessRoom  Event = "game:successRoom"
	EventSuccessJoin  Event = "game:successJoin"
	EventReset        Event = "game:reset"
	EventKick         Event = "game:kick"
	EventPlayerAnswer Event = "game:playerAnswer"
	EventNewPlayer    Event = "manager:newPlayer"
	EventRemovePlayer Event = "manager:removePlayer"
	EventInviteCode   Event = "manager:inviteCode"
)

// Effect is an instruction for the transports, produced after state is committed.
type Effect interface {
	effect()
}

// Message is a notification addressed to an audience.
type Message struct {
	To      Audience
	Event   Event
	Payload any
}

// Subscription adds (or removes) a connection to an audience channel.
type Subscription struct {
	Conn  string
	To    Audience
	Leave bool
}

func (Message) effect()      {}
func (Subscription) effect() {}

// Transport delivers effects to clients. Delivery is best effort.
type Transport interface {
	Deliver(ctx context.Context, msg Message) error
	Subscribe(conn string, to Audience) error
	Unsubscribe(conn string, to Audience) error
}

// Fanout delivers every effect to each transport in order.
type Fanout []Transport

func (f Fanout) Deliver(ctx context.Context, msg Message) error {
	var errs []error
	for _, t := range f {
		if err := t.Deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Subscribe(conn string, to Audience) error {
	var errs []error
	for _, t := range f {
		if err := t.Subscribe(conn, to); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Unsubscribe(conn string, to Audience) error {
	var errs []error
	for _, t := range f {
		if err := t.Unsubscribe(conn, to); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ErrorPayload is the body of EventErrorMessage.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InvitePayload is sent to the manager that created or reclaimed a room.
type InvitePayload struct {
	Code  string `json:"code"`
	Token string `json:"token"`
}

// JoinPayload confirms a join to the joining client.
type JoinPayload struct {
	PlayerID string `json:"playerId"`
	Room     string `json:"room"`
	Username string `json:"username"`
}

// AnswerCountPayload reports answer progress to the manager.
type AnswerCountPayload struct {
	Count int `json:"count"`
	Total int `json:"total"`
}
