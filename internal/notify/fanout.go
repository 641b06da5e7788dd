package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "matchqueue:notify"

// Publisher is the subset of *redis.Client used for fan-out.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type envelope struct {
	Origin  string          `json:"origin"`
	UserID  int             `json:"user_id"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Fanout publishes every notification on a Redis channel. Each instance,
// including the publishing one, delivers it to its own local connections, so
// a user connected to another instance is still reached. While the instance
// is not subscribed, notifications are delivered locally only.
type Fanout struct {
	client     Publisher
	local      *Local
	channel    string
	origin     string
	subscribed atomic.Bool
	log        *slog.Logger
}

func NewFanout(client Publisher, local *Local, channel string, log *slog.Logger) *Fanout {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Fanout{
		client:  client,
		local:   local,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

// Notify falls back to local delivery when Redis is unavailable or the
// subscription is not running.
func (f *Fanout) Notify(ctx context.Context, userID int, event string, payload interface{}) {
	if !f.subscribed.Load() {
		f.local.Deliver(userID, event, payload)
		return
	}
	data, err := f.encode(userID, event, payload)
	if err != nil {
		f.log.Error("Failed to encode notification", "user_id", userID, "event", event, "error", err)
		return
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		f.log.Warn("Publish failed, delivering locally", "user_id", userID, "event", event, "error", err)
		f.local.Deliver(userID, event, payload)
	}
}

// Subscribed reports whether Run is consuming the channel.
func (f *Fanout) Subscribed() bool { return f.subscribed.Load() }

// Run consumes the channel until ctx is done.
func (f *Fanout) Run(ctx context.Context) error {
	ps := f.client.Subscribe(ctx, f.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.subscribed.Store(true)
	defer f.subscribed.Store(false)
	f.log.Info("Notification fan-out subscribed", "channel", f.channel, "origin", f.origin)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("notification channel closed")
			}
			f.dispatch(msg.Payload)
		}
	}
}

func (f *Fanout) encode(userID int, event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Origin: f.origin, UserID: userID, Event: event, Payload: raw})
}

func (f *Fanout) dispatch(data string) {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		f.log.Warn("Dropping malformed notification", "error", err)
		return
	}
	if env.UserID == 0 || env.Event == "" {
		f.log.Warn("Dropping incomplete notification", "origin", env.Origin)
		return
	}
	f.local.Deliver(env.UserID, env.Event, env.Payload)
}
