// Package notify delivers match lifecycle events to whichever connections
// currently represent a user. Delivery is fire-and-forget: an offline user
// simply misses the push and recovers state on reconnect.
package notify

import (
	"context"
	"log/slog"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
)

type Notifier interface {
	Notify(ctx context.Context, userID int, event string, payload interface{})
}

// Local pushes straight to the connections held by this process.
type Local struct {
	registry *presence.Registry
	log      *slog.Logger
}

func NewLocal(registry *presence.Registry, log *slog.Logger) *Local {
	return &Local{registry: registry, log: log}
}

func (l *Local) Notify(_ context.Context, userID int, event string, payload interface{}) {
	l.Deliver(userID, event, payload)
}

// Deliver returns how many connections received the event.
func (l *Local) Deliver(userID int, event string, payload interface{}) int {
	conns := l.registry.Connections(userID)
	if len(conns) == 0 {
		l.log.Debug("Recipient offline, event dropped", "user_id", userID, "event", event)
		return 0
	}
	for _, c := range conns {
		c.Emit(event, payload)
	}
	return len(conns)
}

// MatchUpdate sends a match_update event with the given status.
func MatchUpdate(ctx context.Context, n Notifier, userID int, status domain.MatchStatus, matchID string) {
	n.Notify(ctx, userID, domain.EventMatchUpdate, domain.MatchUpdate{Status: status, MatchID: matchID})
}
