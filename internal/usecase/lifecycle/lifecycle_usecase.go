// Package lifecycle owns the active to inactive transition of a match, keeps
// the in-memory occupation flags in step with storage and rebuilds a
// connection's state from storage when it (re)connects.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/presence"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/samber/lo"
)

// StateReader reports a user's matching status as stored.
type StateReader interface {
	CurrentState(ctx context.Context, userID int) (domain.MatchUpdate, error)
}

// MatchDetail is a match together with both participants' public profiles.
type MatchDetail struct {
	Match        *domain.Match          `json:"match"`
	Participants []domain.PublicProfile `json:"participants"`
}

// Reconciliation is the state a new connection starts from. MatchErr is set
// when the connection asked for a match it may not subscribe to.
type Reconciliation struct {
	User       *domain.User
	IsOccupied bool
	State      domain.MatchUpdate
	Match      *domain.Match
	MatchErr   error
}

type LifecycleUseCase struct {
	txManager repository.TxManager
	matches   repository.MatchRepository
	users     repository.UserRepository
	state     StateReader
	registry  *presence.Registry
	notifier  notify.Notifier
	log       *slog.Logger
}

func NewLifecycleUseCase(
	txManager repository.TxManager,
	matches repository.MatchRepository,
	users repository.UserRepository,
	state StateReader,
	registry *presence.Registry,
	notifier notify.Notifier,
	log *slog.Logger,
) *LifecycleUseCase {
	return &LifecycleUseCase{
		txManager: txManager,
		matches:   matches,
		users:     users,
		state:     state,
		registry:  registry,
		notifier:  notifier,
		log:       log,
	}
}

// LeaveMatch deactivates the match and frees both participants. Leaving a
// match that is already inactive succeeds without changes; the returned flag
// reports whether this call ended the match.
func (uc *LifecycleUseCase) LeaveMatch(ctx context.Context, userID int, matchID string) (bool, error) {
	var (
		match   *domain.Match
		changed bool
	)

	err := uc.txManager.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		match, err = tx.GetMatchForUpdate(ctx, matchID)
		if err != nil {
			return err
		}
		if !match.HasUser(userID) {
			return domain.ErrNotParticipant
		}
		if !match.IsActive {
			return nil
		}
		if changed, err = tx.DeactivateMatch(ctx, matchID); err != nil {
			return err
		}
		return tx.SetOccupation(ctx, false, match.Participants()...)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotParticipant) && !errors.Is(err, domain.ErrMatchNotFound) {
			uc.log.Error("Failed to leave match", "user_id", userID, "match_id", matchID, "error", err)
			uc.registry.SetOccupiedForUser(userID, false)
		}
		return false, fmt.Errorf("failed to leave match: %w", err)
	}
	if !changed {
		return false, nil
	}

	otherID, _ := match.GetOtherUserID(userID)
	for _, id := range match.Participants() {
		uc.registry.SetOccupiedForUser(id, false)
	}
	uc.log.Info("Match ended", "match_id", matchID, "user_id", userID)

	for _, id := range match.Participants() {
		notify.MatchUpdate(ctx, uc.notifier, id, domain.StatusIdle, "")
	}
	uc.notifier.Notify(ctx, otherID, domain.EventOpponentLeft, domain.OpponentLeftPayload{UserID: userID})
	return true, nil
}

// Disconnect drops the connection from presence only. The match and the
// persisted occupation stay as they are until someone leaves explicitly.
func (uc *LifecycleUseCase) Disconnect(connectionID string) (domain.SessionEntry, bool) {
	entry, ok := uc.registry.Unregister(connectionID)
	if ok {
		uc.log.Debug("Connection closed", "conn_id", connectionID, "user_id", entry.UserID)
	}
	return entry, ok
}

// Reconcile rebuilds what a new connection should believe from storage. A
// requested match that does not check out is reported in MatchErr and does
// not fail the call.
func (uc *LifecycleUseCase) Reconcile(ctx context.Context, userID int, expectedMatchID string) (*Reconciliation, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	state, err := uc.state.CurrentState(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{
		User:       user,
		IsOccupied: user.Occupation,
		State:      state,
	}
	if expectedMatchID != "" {
		rec.Match, rec.MatchErr = uc.AuthorizeParticipant(ctx, userID, expectedMatchID, true)
	}
	return rec, nil
}

// AuthorizeParticipant loads the match and checks that userID takes part in
// it, and that it is active when requireActive is set.
func (uc *LifecycleUseCase) AuthorizeParticipant(ctx context.Context, userID int, matchID string, requireActive bool) (*domain.Match, error) {
	match, err := uc.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(userID) {
		return nil, domain.ErrNotParticipant
	}
	if requireActive && !match.IsActive {
		return nil, domain.ErrMatchInactive
	}
	return match, nil
}

func (uc *LifecycleUseCase) ActiveMatch(ctx context.Context, userID int) (*domain.Match, error) {
	return uc.matches.GetActiveByUser(ctx, userID)
}

func (uc *LifecycleUseCase) MatchDetail(ctx context.Context, userID int, matchID string) (*MatchDetail, error) {
	match, err := uc.AuthorizeParticipant(ctx, userID, matchID, false)
	if err != nil {
		return nil, err
	}

	users, err := uc.users.GetByIDs(ctx, match.Participants())
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	return &MatchDetail{
		Match: match,
		Participants: lo.Map(users, func(u *domain.User, _ int) domain.PublicProfile {
			return u.Public()
		}),
	}, nil
}

func (uc *LifecycleUseCase) History(ctx context.Context, userID, limit, offset int) ([]*domain.Match, error) {
	return uc.matches.GetUserMatches(ctx, userID, limit, offset)
}
