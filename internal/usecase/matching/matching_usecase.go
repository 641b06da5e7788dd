// Package matching is the only place a Match is created. Seekers search
// actively, counterparts only wait in the queue.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
)

// MatchedHook runs after a new match has been committed and announced.
type MatchedHook func(ctx context.Context, match domain.Match)

type Config struct {
	Roles        domain.Roles
	QueueTimeout time.Duration
}

// Result is the outcome of a matching request. MatchID is set only when
// Status is domain.StatusMatched.
type Result struct {
	Status           domain.MatchStatus `json:"status"`
	MatchID          string             `json:"matchId,omitempty"`
	CreditsRemaining int                `json:"creditsRemaining"`
}

// QueueStatus answers GET /matches/status.
type QueueStatus struct {
	IsWaiting   bool
	Entry       *domain.WaitlistEntry
	ActiveMatch *domain.Match
}

type MatchingUseCase struct {
	txManager repository.TxManager
	waitlist  repository.WaitlistRepository
	matches   repository.MatchRepository
	registry  *presence.Registry
	notifier  notify.Notifier
	expiry    *Expiry
	roles     domain.Roles
	now       func() time.Time
	log       *slog.Logger
	onMatched []MatchedHook
}

func NewMatchingUseCase(
	txManager repository.TxManager,
	waitlist repository.WaitlistRepository,
	matches repository.MatchRepository,
	registry *presence.Registry,
	notifier notify.Notifier,
	cfg Config,
	log *slog.Logger,
) *MatchingUseCase {
	uc := &MatchingUseCase{
		txManager: txManager,
		waitlist:  waitlist,
		matches:   matches,
		registry:  registry,
		notifier:  notifier,
		roles:     cfg.Roles,
		now:       time.Now,
		log:       log,
	}
	uc.expiry = NewExpiry(waitlist, cfg.Roles.Counterpart, cfg.QueueTimeout, uc.expired, log)
	return uc
}

func (uc *MatchingUseCase) Roles() domain.Roles { return uc.roles }

func (uc *MatchingUseCase) Expiry() *Expiry { return uc.expiry }

// OnMatched registers a hook. It must be called before serving requests.
func (uc *MatchingUseCase) OnMatched(hook MatchedHook) {
	uc.onMatched = append(uc.onMatched, hook)
}

// RequestMatch is the seeker entry point. One credit is taken per attempt
// and only when the seeker is not already waiting; a repeated request by a
// waiting seeker behaves like PollForMatch.
func (uc *MatchingUseCase) RequestMatch(ctx context.Context, userID int) (*Result, error) {
	var (
		res    Result
		match  *domain.Match
		queued *domain.WaitlistEntry
	)

	err := uc.txManager.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if !uc.roles.IsSeeker(user.Gender) {
			return &domain.RoleError{Required: uc.roles.Seeker, Action: "initiate matching"}
		}
		if err := ensureNoActiveMatch(ctx, tx, userID); err != nil {
			return err
		}

		res.CreditsRemaining = user.Credit
		alreadyQueued := true
		if _, err := tx.GetWaitlistEntry(ctx, userID); err != nil {
			if !errors.Is(err, domain.ErrNotQueued) {
				return err
			}
			alreadyQueued = false
		}
		if !alreadyQueued {
			if res.CreditsRemaining, err = tx.DecrementCredit(ctx, userID); err != nil {
				return err
			}
		}

		match, err = uc.pair(ctx, tx, user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrNotQueued) {
			return err
		}
		if alreadyQueued {
			return nil
		}
		queued = &domain.WaitlistEntry{UserID: userID, Gender: user.Gender}
		return tx.Enqueue(ctx, queued)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request match: %w", err)
	}

	if match != nil {
		uc.announce(ctx, match)
		res.Status = domain.StatusMatched
		res.MatchID = match.ID
		return &res, nil
	}

	res.Status = domain.StatusFinding
	uc.registry.MarkWaiting(userID, uc.roles.Seeker)
	if queued != nil {
		uc.log.Info("Seeker queued", "user_id", userID)
	}
	notify.MatchUpdate(ctx, uc.notifier, userID, domain.StatusFinding, "")
	return &res, nil
}

// PollForMatch retries pairing for a user who is already waiting. It never
// takes credit. A user with an active match gets that match back.
func (uc *MatchingUseCase) PollForMatch(ctx context.Context, userID int) (*Result, error) {
	var (
		res   Result
		match *domain.Match
	)

	err := uc.txManager.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		res.CreditsRemaining = user.Credit

		active, err := tx.GetActiveMatchByUser(ctx, userID)
		if err == nil {
			res.Status = domain.StatusMatched
			res.MatchID = active.ID
			return nil
		}
		if !errors.Is(err, domain.ErrMatchNotFound) {
			return err
		}

		entry, err := tx.GetWaitlistEntry(ctx, userID)
		if err != nil {
			return err
		}
		if !uc.roles.IsSeeker(entry.Gender) {
			res.Status = uc.roles.WaitingStatus(entry.Gender)
			return nil
		}

		match, err = uc.pair(ctx, tx, user)
		if errors.Is(err, domain.ErrNotQueued) {
			res.Status = domain.StatusFinding
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to poll for match: %w", err)
	}

	if match != nil {
		uc.announce(ctx, match)
		res.Status = domain.StatusMatched
		res.MatchID = match.ID
	}
	return &res, nil
}

// JoinQueueAsCounterpart enqueues a counterpart and arms its expiry. It does
// not attempt pairing; only seekers trigger that.
func (uc *MatchingUseCase) JoinQueueAsCounterpart(ctx context.Context, userID int) (*Result, error) {
	var (
		res   Result
		entry domain.WaitlistEntry
	)

	err := uc.txManager.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if !uc.roles.IsCounterpart(user.Gender) {
			return &domain.RoleError{Required: uc.roles.Counterpart, Action: "join the queue"}
		}
		if err := ensureNoActiveMatch(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.GetWaitlistEntry(ctx, userID); err == nil {
			return domain.ErrAlreadyQueued
		} else if !errors.Is(err, domain.ErrNotQueued) {
			return err
		}

		if res.CreditsRemaining, err = tx.DecrementCredit(ctx, userID); err != nil {
			return err
		}
		entry = domain.WaitlistEntry{UserID: userID, Gender: user.Gender}
		return tx.Enqueue(ctx, &entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join queue: %w", err)
	}

	uc.expiry.Schedule(entry)
	uc.registry.MarkWaiting(userID, entry.Gender)
	uc.log.Info("Counterpart queued", "user_id", userID, "credits", res.CreditsRemaining)
	notify.MatchUpdate(ctx, uc.notifier, userID, domain.StatusWaiting, "")

	res.Status = domain.StatusWaiting
	return &res, nil
}

// Cancel removes the user's waitlist entry if any. Calling it for a user who
// is not queued is not an error.
func (uc *MatchingUseCase) Cancel(ctx context.Context, userID int) error {
	removed, err := uc.waitlist.Dequeue(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to leave queue: %w", err)
	}
	uc.expiry.Cancel(userID)
	uc.registry.ClearWaiting(userID)
	if removed > 0 {
		uc.log.Info("User left queue", "user_id", userID)
		notify.MatchUpdate(ctx, uc.notifier, userID, domain.StatusIdle, "")
	}
	return nil
}

func (uc *MatchingUseCase) Status(ctx context.Context, userID int) (*QueueStatus, error) {
	var st QueueStatus

	entry, err := uc.waitlist.GetByUser(ctx, userID)
	switch {
	case err == nil:
		st.IsWaiting = true
		st.Entry = entry
	case !errors.Is(err, domain.ErrNotQueued):
		return nil, fmt.Errorf("failed to get queue status: %w", err)
	}

	active, err := uc.matches.GetActiveByUser(ctx, userID)
	switch {
	case err == nil:
		st.ActiveMatch = active
	case !errors.Is(err, domain.ErrMatchNotFound):
		return nil, fmt.Errorf("failed to get queue status: %w", err)
	}
	return &st, nil
}

// CurrentState derives the user's match_update status from storage.
func (uc *MatchingUseCase) CurrentState(ctx context.Context, userID int) (domain.MatchUpdate, error) {
	st, err := uc.Status(ctx, userID)
	if err != nil {
		return domain.MatchUpdate{}, err
	}
	switch {
	case st.ActiveMatch != nil:
		return domain.MatchUpdate{Status: domain.StatusMatched, MatchID: st.ActiveMatch.ID}, nil
	case st.IsWaiting:
		return domain.MatchUpdate{Status: uc.roles.WaitingStatus(st.Entry.Gender)}, nil
	}
	return domain.MatchUpdate{Status: domain.StatusIdle}, nil
}

// pair claims the oldest available counterpart and creates the match within
// tx. It returns domain.ErrNotQueued when nobody is available.
func (uc *MatchingUseCase) pair(ctx context.Context, tx repository.Tx, user *domain.User) (*domain.Match, error) {
	target, ok := uc.roles.Target(user.Gender)
	if !ok {
		return nil, &domain.RoleError{Required: uc.roles.Seeker, Action: "initiate matching"}
	}

	for {
		other, err := tx.ClaimOldestOpposite(ctx, target, user.ID)
		if err != nil {
			return nil, err
		}

		// An entry whose owner got matched elsewhere is stale.
		if _, err := tx.GetActiveMatchByUser(ctx, other.UserID); err == nil {
			if _, err := tx.DeleteWaitlistEntries(ctx, other.UserID); err != nil {
				return nil, err
			}
			continue
		} else if !errors.Is(err, domain.ErrMatchNotFound) {
			return nil, err
		}

		match := &domain.Match{
			ID:       domain.NewMatchID(user.ID, other.UserID, uc.now()),
			User1ID:  user.ID,
			User2ID:  other.UserID,
			IsActive: true,
		}
		if err := tx.CreateMatch(ctx, match); err != nil {
			return nil, err
		}
		if _, err := tx.DeleteWaitlistEntries(ctx, user.ID, other.UserID); err != nil {
			return nil, err
		}
		if err := tx.SetOccupation(ctx, true, user.ID, other.UserID); err != nil {
			return nil, err
		}
		return match, nil
	}
}

// announce mirrors a committed match into presence and pushes it.
func (uc *MatchingUseCase) announce(ctx context.Context, match *domain.Match) {
	participants := match.Participants()
	for _, id := range participants {
		uc.expiry.Cancel(id)
		uc.registry.SetOccupiedForUser(id, true)
	}
	uc.registry.ClearWaiting(participants...)

	uc.log.Info("Match created", "match_id", match.ID, "user1_id", match.User1ID, "user2_id", match.User2ID)
	for _, id := range participants {
		notify.MatchUpdate(ctx, uc.notifier, id, domain.StatusMatched, match.ID)
	}
	for _, hook := range uc.onMatched {
		hook(ctx, *match)
	}
}

func (uc *MatchingUseCase) expired(ctx context.Context, entry domain.WaitlistEntry) {
	uc.registry.ClearWaiting(entry.UserID)
	notify.MatchUpdate(ctx, uc.notifier, entry.UserID, domain.StatusIdle, "")
}

func ensureNoActiveMatch(ctx context.Context, tx repository.Tx, userID int) error {
	_, err := tx.GetActiveMatchByUser(ctx, userID)
	if err == nil {
		return domain.ErrAlreadyMatched
	}
	if errors.Is(err, domain.ErrMatchNotFound) {
		return nil
	}
	return err
}
