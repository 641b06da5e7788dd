package matching

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
)

// ExpiredFunc is called once an entry has actually been removed by expiry.
type ExpiredFunc func(ctx context.Context, entry domain.WaitlistEntry)

type pendingExpiry struct {
	entryID int64
	timer   *time.Timer
}

// Expiry removes counterpart waitlist entries that were not matched within
// the queue timeout. Timers are keyed by user and carry the entry id they
// were created for, so cancelling or re-queueing always disarms the old one.
type Expiry struct {
	mu        sync.Mutex
	pending   map[int]pendingExpiry
	waitlist  repository.WaitlistRepository
	gender    domain.Gender
	timeout   time.Duration
	onExpired ExpiredFunc
	now       func() time.Time
	log       *slog.Logger
}

func NewExpiry(
	waitlist repository.WaitlistRepository,
	gender domain.Gender,
	timeout time.Duration,
	onExpired ExpiredFunc,
	log *slog.Logger,
) *Expiry {
	return &Expiry{
		pending:   make(map[int]pendingExpiry),
		waitlist:  waitlist,
		gender:    gender,
		timeout:   timeout,
		onExpired: onExpired,
		now:       time.Now,
		log:       log,
	}
}

// Schedule arms the timer for entry, replacing any timer the user had.
func (e *Expiry) Schedule(entry domain.WaitlistEntry) {
	delay := entry.EnqueuedAt.Add(e.timeout).Sub(e.now())
	if delay < 0 {
		delay = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.pending[entry.UserID]; ok {
		p.timer.Stop()
	}
	e.pending[entry.UserID] = pendingExpiry{
		entryID: entry.ID,
		timer:   time.AfterFunc(delay, func() { e.fire(entry) }),
	}
}

// Cancel disarms the user's timer. It reports whether one was pending.
func (e *Expiry) Cancel(userID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pending[userID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(e.pending, userID)
	return true
}

func (e *Expiry) Pending(userID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pending[userID]
	return ok
}

// Stop disarms every timer.
func (e *Expiry) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for userID, p := range e.pending {
		p.timer.Stop()
		delete(e.pending, userID)
	}
}

func (e *Expiry) fire(entry domain.WaitlistEntry) {
	e.mu.Lock()
	p, ok := e.pending[entry.UserID]
	if !ok || p.entryID != entry.ID {
		e.mu.Unlock()
		return
	}
	delete(e.pending, entry.UserID)
	e.mu.Unlock()

	e.expire(context.Background(), entry)
}

// Sweep removes entries older than the timeout that no timer covers, e.g.
// after a restart. It returns the number of removed entries.
func (e *Expiry) Sweep(ctx context.Context) (int, error) {
	entries, err := e.waitlist.ListEnqueuedBefore(ctx, e.gender, e.now().Add(-e.timeout))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		e.mu.Lock()
		if p, ok := e.pending[entry.UserID]; ok && p.entryID == entry.ID {
			p.timer.Stop()
			delete(e.pending, entry.UserID)
		}
		e.mu.Unlock()

		if e.expire(ctx, *entry) {
			removed++
		}
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (e *Expiry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.Sweep(ctx)
			if err != nil {
				e.log.Error("Waitlist sweep failed", "error", err)
				continue
			}
			if n > 0 {
				e.log.Info("Swept stale waitlist entries", "count", n)
			}
		}
	}
}

func (e *Expiry) expire(ctx context.Context, entry domain.WaitlistEntry) bool {
	n, err := e.waitlist.DequeueEntry(ctx, entry.ID)
	if err != nil {
		e.log.Error("Failed to expire waitlist entry", "user_id", entry.UserID, "error", err)
		return false
	}
	if n == 0 {
		return false
	}
	e.log.Info("Waitlist entry expired", "user_id", entry.UserID)
	if e.onExpired != nil {
		e.onExpired(ctx, entry)
	}
	return true
}
