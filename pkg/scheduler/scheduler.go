// Package scheduler runs the cron-like main loop: one periodic tick
// driving the Coordinator and, at a coarser interval, the Stop Detector →
// Escalation Engine chain (§4.7). Grounded on the teacher's
// pkg/cleanup/service.go Start/Stop/ticker/context-cancel shape.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetops/tracker/pkg/config"
	"github.com/fleetops/tracker/pkg/coordinator"
	"github.com/fleetops/tracker/pkg/escalation"
	"github.com/fleetops/tracker/pkg/models"
	"github.com/fleetops/tracker/pkg/stopdetect"
	"github.com/fleetops/tracker/pkg/storage"
)

// tickInterval is the scheduler's fixed cooperative-tick period. The cron
// expression in configuration describes the intended cadence for
// operators; the scheduler itself ticks at this fine grain and decides
// per-tick whether work is due.
const tickInterval = 1 * time.Minute

// Scheduler owns the single long-lived background loop described in §4.7
// and §5: one tick, two orthogonal toggles, idle-tick throttled logging.
type Scheduler struct {
	cfg         *config.SchedulerConfig
	coordinator *coordinator.Coordinator
	stopDet     *stopdetect.Detector
	escalation  *escalation.Engine
	store       *storage.Store
	logger      *slog.Logger

	lastDetection time.Time
	lastIdleLog   time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg *config.SchedulerConfig, coord *coordinator.Coordinator, stopDet *stopdetect.Detector, esc *escalation.Engine, store *storage.Store) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		coordinator: coord,
		stopDet:     stopDet,
		escalation:  esc,
		store:       store,
		logger:      slog.Default().With("component", "scheduler"),
	}
}

// Start launches the background tick loop. It is a no-op if already
// started, or if the scheduler is disabled in configuration.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled, not starting tick loop")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("scheduler started", "tick_interval", tickInterval, "ai_detection_enabled", s.cfg.AIDetectionEnabled)
}

// Stop signals the tick loop to exit, allowing any in-flight cycle to
// finish, then waits for the loop goroutine to return (§4.7 graceful
// shutdown, §5 cancellation: "no operation is killed mid-request").
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The cycle runs detached from ctx's cancellation so that a
			// shutdown lets its requests finish or hit their own timeouts.
			s.tick(context.WithoutCancel(ctx))
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	result := s.coordinator.Run(ctx, coordinator.ModeDue)

	if !result.Skipped && result.ProvidersRun == 0 {
		s.logIdle()
	}

	if !s.cfg.AIDetectionEnabled {
		return
	}
	if time.Since(s.lastDetection) < s.cfg.AIDetectionInterval {
		return
	}
	s.runDetection(ctx)
	s.lastDetection = time.Now()
}

func (s *Scheduler) runDetection(ctx context.Context) {
	trips, err := s.store.AIEnabledTrips(ctx, models.TripStateEnRuta)
	if err != nil {
		s.logger.Error("load AI-enabled trips failed", "error", err)
		return
	}
	if len(trips) == 0 {
		return
	}

	events, err := s.stopDet.Run(ctx, trips)
	if err != nil {
		s.logger.Error("stop detection failed", "error", err)
		return
	}
	if len(events) == 0 {
		return
	}

	if _, err := s.escalation.Process(ctx, events); err != nil {
		s.logger.Error("escalation processing failed", "error", err)
	}
}

// logIdle throttles "no providers due" logging to at most once per
// IdleLogInterval (§4.7: "reduce noise").
func (s *Scheduler) logIdle() {
	if time.Since(s.lastIdleLog) < s.cfg.IdleLogInterval {
		return
	}
	s.logger.Debug("tick: no providers due")
	s.lastIdleLog = time.Now()
}
