package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

type Engine interface {
	ReconcileAllDue(ctx context.Context) (int, int64)
	ReconcileLocalHourDue(ctx context.Context)
}

// Scheduler drives the accrual engine with two independent timers: a fast
// global catch-up sweep and a slower sweep that polls for owners whose local
// clock has reached the profit hour. Both invoke the same idempotent
// reconcile, so overlapping ticks are harmless.
type Scheduler struct {
	engine       Engine
	catchupEvery time.Duration
	localEvery   time.Duration
}

func New(engine Engine, catchupEvery, localEvery time.Duration) *Scheduler {
	return &Scheduler{
		engine:       engine,
		catchupEvery: catchupEvery,
		localEvery:   localEvery,
	}
}

// Start launches both workers and returns a cleanup function that stops them.
func (s *Scheduler) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.catchupEvery)
		defer ticker.Stop()
		log.WithField("interval", s.catchupEvery).Info("catch-up sweep worker started")

		// Run immediately so downtime is healed at startup, not a tick later.
		s.engine.ReconcileAllDue(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("catch-up sweep worker shutting down (context cancelled)")
				return
			case <-stopChan:
				log.Info("catch-up sweep worker shutting down (stop requested)")
				return
			case <-ticker.C:
				s.engine.ReconcileAllDue(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(s.localEvery)
		defer ticker.Stop()
		log.WithField("interval", s.localEvery).Info("local-hour sweep worker started")

		for {
			select {
			case <-ctx.Done():
				log.Info("local-hour sweep worker shutting down (context cancelled)")
				return
			case <-stopChan:
				log.Info("local-hour sweep worker shutting down (stop requested)")
				return
			case <-ticker.C:
				s.engine.ReconcileLocalHourDue(ctx)
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}
