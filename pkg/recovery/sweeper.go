package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
)

// DefaultSweepSchedule runs the retention sweep daily, shortly after midnight.
const DefaultSweepSchedule = "15 0 * * *"

// Sweeper periodically scans for soft-deleted models whose recovery window
// has closed and announces each expiry exactly once.
type Sweeper struct {
	manager  *Manager
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSweeper builds a sweeper over the manager's store and recovery window.
func NewSweeper(manager *Manager, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	_, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule '%s': %w", schedule, err)
	}

	return &Sweeper{
		manager:  manager,
		schedule: schedule,
		logger:   manager.logger.With("module", "retention_sweeper"),
	}, nil
}

// Start schedules periodic sweeps until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		expired, err := s.RunOnce(s.ctx)
		if err != nil {
			s.logger.Error("Retention sweep failed", "error", err)

			return
		}

		if expired > 0 {
			s.logger.Info("Retention sweep finished", "expired", expired)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Retention sweeper started", "schedule", s.schedule, "window_days", s.windowDays())

	return nil
}

// Stop halts scheduling. A sweep already running finishes on its own.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	if s.cron != nil {
		s.cron.Stop()
	}

	s.logger.Info("Retention sweeper stopped")
}

// RunOnce performs a single sweep and returns how many models newly crossed
// the recovery window. Models announced by an earlier sweep are skipped, so
// repeated runs never duplicate expiry events.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.manager.window)

	expired, err := s.manager.persistence.ModelRepository().ListDeletedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired models: %w", err)
	}

	if len(expired) == 0 {
		return 0, nil
	}

	announced, err := s.announcedExpiries(ctx)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, model := range expired {
		if announced[model.ID] {
			continue
		}

		var deletedAt time.Time
		if model.DeletedAt != nil {
			deletedAt = *model.DeletedAt
		}

		s.manager.publish(ctx, model.ID, events.RecoveryWindowExpired{
			BaseEvent:  events.NewBaseEvent(events.RecoveryWindowExpiredEvent, model.ID),
			ModelID:    model.ID,
			DeletedAt:  deletedAt,
			WindowDays: s.windowDays(),
		})

		s.manager.audit(ctx, models.AuditRetentionExpired, model.ID, "system", map[string]any{
			"deleted_at":  deletedAt,
			"window_days": s.windowDays(),
		})

		s.logger.InfoContext(ctx, "Recovery window expired",
			"model_id", model.ID,
			"deleted_at", deletedAt,
			"window_days", s.windowDays())

		count++
	}

	return count, nil
}

// announcedExpiries collects model IDs whose expiry was already recorded.
func (s *Sweeper) announcedExpiries(ctx context.Context) (map[string]bool, error) {
	entries, err := s.manager.persistence.AuditLogRepository().ListByAction(ctx, models.AuditRetentionExpired)
	if err != nil {
		return nil, fmt.Errorf("failed to read expiry history: %w", err)
	}

	announced := make(map[string]bool, len(entries))
	for _, entry := range entries {
		announced[entry.EntityID] = true
	}

	return announced, nil
}

func (s *Sweeper) windowDays() int {
	return int(s.manager.window.Hours() / 24)
}
