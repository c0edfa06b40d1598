package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"points-bot/internal/pkg/lock"
)

// BroadcastResult is the tally of one broadcast run.
type BroadcastResult struct {
	RunID   string
	Total   int
	Success int
	Failed  int
}

// BroadcastService fans a text message out to every registered user.
type BroadcastService struct {
	recipients RecipientLister
	notifier   Notifier
	limiter    *rate.Limiter
	running    *lock.KeyedLock
}

// NewBroadcastService creates a new BroadcastService. Sends are spaced by
// interval across all runs; zero or less disables pacing.
func NewBroadcastService(recipients RecipientLister, notifier Notifier, interval time.Duration) *BroadcastService {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &BroadcastService{
		recipients: recipients,
		notifier:   notifier,
		limiter:    rate.NewLimiter(limit, 1),
		running:    lock.New(),
	}
}

// Broadcast sends text to every user. A failed delivery is logged and
// counted and the loop moves on. started, when not nil, is called with the
// recipient count before the first send. Cancelling ctx stops the run and
// returns the partial tally together with the context error.
func (s *BroadcastService) Broadcast(ctx context.Context, adminID int64, text string, started func(total int)) (BroadcastResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return BroadcastResult{}, ErrEmptyMessage
	}

	if !s.running.TryLock(adminID) {
		return BroadcastResult{}, ErrBroadcastInProgress
	}
	defer s.running.Unlock(adminID)

	ids, err := s.recipients.ListIDs(ctx)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("failed to list recipients: %w", err)
	}

	result := BroadcastResult{RunID: uuid.NewString(), Total: len(ids)}
	logger := log.With().Str("run_id", result.RunID).Int64("admin_id", adminID).Logger()
	logger.Info().Int("total", result.Total).Msg("Broadcast started")

	if started != nil {
		started(result.Total)
	}

	for _, id := range ids {
		if err := s.limiter.Wait(ctx); err != nil {
			logger.Warn().Err(err).
				Int("success", result.Success).
				Int("failed", result.Failed).
				Msg("Broadcast interrupted")
			return result, fmt.Errorf("broadcast interrupted: %w", err)
		}

		if err := s.notifier.Notify(ctx, id, text); err != nil {
			result.Failed++
			logger.Warn().Err(err).Int64("user_id", id).Msg("Broadcast delivery failed")
			continue
		}
		result.Success++
	}

	logger.Info().
		Int("success", result.Success).
		Int("failed", result.Failed).
		Msg("Broadcast finished")

	return result, nil
}

// InProgress reports whether adminID has a broadcast running.
func (s *BroadcastService) InProgress(adminID int64) bool {
	return s.running.IsLocked(adminID)
}
