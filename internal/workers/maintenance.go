package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"anon-relay-bot/internal/common/logger"
	emojimodels "anon-relay-bot/internal/features/emoji/models"
)

const defaultSweepInterval = time.Minute

type PremiumSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
	IsPremiumActive(ctx context.Context, id int64) (bool, error)
}

type Reservations interface {
	List(ctx context.Context) ([]emojimodels.Reservation, error)
	ReleaseEmojiOf(ctx context.Context, emoji string, ownerID int64) (bool, error)
}

type LimiterPruner interface {
	Prune(now time.Time) int
}

type SessionPruner interface {
	PruneSessions() int
}

// Report summarizes one maintenance pass.
type Report struct {
	ExpiredPremium  int
	ReclaimedEmojis int
	PrunedLimiter   int
	PrunedSessions  int
}

// MaintenanceWorker periodically expires premium windows, reclaims
// reservations whose owner is no longer premium and drops idle in-memory state.
type MaintenanceWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	interval time.Duration

	users        PremiumSweeper
	reservations Reservations
	limiter      LimiterPruner
	sessions     SessionPruner
	now          func() time.Time
	log          zerolog.Logger
}

func NewMaintenanceWorker(users PremiumSweeper, reservations Reservations, limiter LimiterPruner, sessions SessionPruner, interval time.Duration) *MaintenanceWorker {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MaintenanceWorker{
		ctx:          ctx,
		cancel:       cancel,
		interval:     interval,
		users:        users,
		reservations: reservations,
		limiter:      limiter,
		sessions:     sessions,
		now:          time.Now,
		log:          logger.Component("maintenance"),
	}
}

func (w *MaintenanceWorker) Start() {
	w.log.Info().Dur("interval", w.interval).Msg("Starting maintenance worker")
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := w.RunOnce(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.log.Error().Err(err).Msg("Maintenance pass failed")
				}
			case <-w.ctx.Done():
				return
			}
		}
	}()
}

func (w *MaintenanceWorker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.log.Info().Msg("Maintenance worker stopped")
}

// RunOnce performs a single pass. The in-memory pruning runs even when a
// store step fails.
func (w *MaintenanceWorker) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	swept, sweepErr := w.users.SweepExpired(ctx)
	report.ExpiredPremium = swept

	reclaimed, reclaimErr := w.reclaimOrphans(ctx)
	report.ReclaimedEmojis = reclaimed

	report.PrunedLimiter = w.limiter.Prune(w.now())
	report.PrunedSessions = w.sessions.PruneSessions()

	if report != (Report{}) {
		w.log.Debug().
			Int("expired_premium", report.ExpiredPremium).
			Int("reclaimed_emojis", report.ReclaimedEmojis).
			Int("pruned_limiter", report.PrunedLimiter).
			Int("pruned_sessions", report.PrunedSessions).
			Msg("Maintenance pass done")
	}
	return report, errors.Join(sweepErr, reclaimErr)
}

// reclaimOrphans frees reservations held by users who are not premium, for
// example when a release failed after the premium window was cleared.
func (w *MaintenanceWorker) reclaimOrphans(ctx context.Context) (int, error) {
	reservations, err := w.reservations.List(ctx)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, r := range reservations {
		if err := ctx.Err(); err != nil {
			return reclaimed, err
		}
		premium, err := w.users.IsPremiumActive(ctx, r.OwnerID)
		if err != nil {
			w.log.Warn().Err(err).Int64("user_id", r.OwnerID).Msg("Premium check failed")
			continue
		}
		if premium {
			continue
		}
		// the emoji may have changed hands since List
		freed, err := w.reservations.ReleaseEmojiOf(ctx, r.Emoji, r.OwnerID)
		if err != nil {
			w.log.Warn().Err(err).Str("emoji", r.Emoji).Msg("Cannot reclaim reservation")
			continue
		}
		if freed {
			w.log.Info().Str("emoji", r.Emoji).Int64("user_id", r.OwnerID).Msg("Reclaimed orphan reservation")
			reclaimed++
		}
	}
	return reclaimed, nil
}
