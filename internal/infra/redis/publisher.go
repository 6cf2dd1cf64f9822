package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"trivia-room-service/internal/app"
)

// Publisher mirrors every outbound message onto Redis pub/sub channels so
// clients of a trigger-and-channel service (or other processes) can follow a
// room without holding a socket to this server.
//
//	{prefix}:room:{code}          players of a room
//	{prefix}:room:{code}:manager  the room's manager
//	{prefix}:client:{conn}        one connection
type Publisher struct {
	client *redis.Client
	prefix string
}

// Envelope is the JSON body published on a channel.
type Envelope struct {
	Event   app.Event `json:"event"`
	Payload any       `json:"payload,omitempty"`
}

func NewPublisher(client *redis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "trivia"
	}
	return &Publisher{client: client, prefix: prefix}
}

// Channel resolves an audience to its channel name.
func (p *Publisher) Channel(to app.Audience) string {
	switch to.Kind {
	case app.AudienceManager:
		return p.prefix + ":room:" + to.Room + ":manager"
	case app.AudienceClient:
		return p.prefix + ":client:" + to.Conn
	default:
		return p.prefix + ":room:" + to.Room
	}
}

func (p *Publisher) Deliver(ctx context.Context, msg app.Message) error {
	data, err := json.Marshal(Envelope{Event: msg.Event, Payload: msg.Payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Event, err)
	}
	if err := p.client.Publish(ctx, p.Channel(msg.To), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Event, err)
	}
	return nil
}

// Subscribe is a no-op: channel subscribers choose their own channels.
func (p *Publisher) Subscribe(string, app.Audience) error { return nil }

// Unsubscribe is a no-op, see Subscribe.
func (p *Publisher) Unsubscribe(string, app.Audience) error { return nil }
