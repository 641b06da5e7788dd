// Package wingman suggests opening lines to a freshly matched pair.
package wingman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/domain"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/notify"
	"github.com/gdugdh24/mpit2026-matchqueue/internal/repository"
	"github.com/samber/lo"
)

const defaultTimeout = 20 * time.Second

type Generator interface {
	GenerateIcebreakers(ctx context.Context, interests1, interests2 []string) ([]string, error)
}

type WingmanUseCase struct {
	users     repository.UserRepository
	generator Generator
	notifier  notify.Notifier
	timeout   time.Duration
	log       *slog.Logger
	wg        sync.WaitGroup
}

func NewWingmanUseCase(users repository.UserRepository, generator Generator, notifier notify.Notifier, log *slog.Logger) *WingmanUseCase {
	return &WingmanUseCase{
		users:     users,
		generator: generator,
		notifier:  notifier,
		timeout:   defaultTimeout,
		log:       log,
	}
}

// OnMatched generates in the background. Failures are only logged.
func (uc *WingmanUseCase) OnMatched(_ context.Context, match domain.Match) {
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), uc.timeout)
		defer cancel()

		if err := uc.Suggest(ctx, match); err != nil {
			uc.log.Warn("Icebreakers unavailable", "match_id", match.ID, "error", err)
		}
	}()
}

// Suggest generates icebreakers and pushes them to both participants.
func (uc *WingmanUseCase) Suggest(ctx context.Context, match domain.Match) error {
	users, err := uc.users.GetByIDs(ctx, match.Participants())
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	byID := lo.KeyBy(users, func(u *domain.User) int { return u.ID })
	u1, ok1 := byID[match.User1ID]
	u2, ok2 := byID[match.User2ID]
	if !ok1 || !ok2 {
		return domain.ErrUserNotFound
	}

	suggestions, err := uc.generator.GenerateIcebreakers(ctx, u1.Interests, u2.Interests)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		return errors.New("no icebreakers generated")
	}

	payload := domain.IcebreakersPayload{MatchID: match.ID, Suggestions: suggestions}
	for _, id := range match.Participants() {
		uc.notifier.Notify(ctx, id, domain.EventIcebreakers, payload)
	}
	return nil
}

// Wait blocks until background generations have finished.
func (uc *WingmanUseCase) Wait() {
	uc.wg.Wait()
}
