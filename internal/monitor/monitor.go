// Package monitor runs the idle-activity heuristic: a background cadence
// that probabilistically pings the operator when the bot has been quiet for
// too long relative to host CPU load.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/parley-bot/parley/internal/activity"
	"github.com/parley-bot/parley/internal/logging"
	"github.com/parley-bot/parley/internal/sysinfo"
	"github.com/robfig/cron/v3"
)

const (
	secondsPerDay = 86400.0
	cpuBaseline   = 2.0

	// NotificationText is the fixed operator ping.
	NotificationText = "Yo!"
)

// Notifier delivers the operator notification. A nil Notifier on the service
// keeps the evaluation running for observability without sending anything.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Service evaluates the idle trigger on a fixed cadence for the process
// lifetime, until its context is cancelled.
type Service struct {
	clock    *activity.Clock
	notifier Notifier
	interval time.Duration

	cpuPercent func(ctx context.Context) (float64, error)
	sample     func() float64

	cron    *cron.Cron
	started bool
}

// NewService creates an idle monitor over the shared activity clock.
// notifier may be nil when no operator identity is configured.
func NewService(clock *activity.Clock, notifier Notifier, interval time.Duration) *Service {
	return &Service{
		clock:      clock,
		notifier:   notifier,
		interval:   interval,
		cpuPercent: sysinfo.CPUPercent,
		sample:     func() float64 { return rand.NormFloat64()*0.1 + 1.0 },
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start begins ticking every interval. The first tick fires one interval
// after Start, never immediately.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return errors.New("monitor already started")
	}
	if s.interval <= 0 {
		return errors.New("monitor interval must be positive")
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.tick(ctx)
	}); err != nil {
		return fmt.Errorf("register monitor cadence: %w", err)
	}

	s.cron.Start()
	s.started = true
	logging.Logger().Info("idle monitor started", "interval", s.interval, "operator_set", s.notifier != nil)
	return nil
}

// Stop halts the cadence and waits for an in-flight tick to finish or ctx to
// expire. No final notification is sent.
func (s *Service) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}

	doneCtx := s.cron.Stop()
	s.started = false
	select {
	case <-doneCtx.Done():
		logging.Logger().Info("idle monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick runs one evaluation. A send failure is logged and treated as not
// triggered; the loop never dies with it.
func (s *Service) tick(ctx context.Context) {
	elapsed, ok := s.clock.Elapsed()
	if !ok {
		// First observation: the clock starts counting now, no trigger.
		logging.Logger().Debug("idle monitor initialized activity clock")
		return
	}
	if elapsed <= 0 {
		return
	}

	percent, err := s.cpuPercent(ctx)
	if err != nil {
		logging.Logger().Warn("cpu sample failed", "err", err)
		return
	}

	threshold := pseudoThreshold(elapsed.Seconds(), percent)
	draw := s.sample()
	logging.Logger().Debug("idle evaluation",
		"cpu", percent,
		"elapsed", elapsed,
		"threshold", threshold,
		"draw", draw,
	)
	if draw <= threshold {
		return
	}

	if s.notifier == nil {
		logging.Logger().Info("idle trigger fired, operator is not set", "elapsed", elapsed)
		return
	}
	if err := s.notifier.Notify(ctx, NotificationText); err != nil {
		logging.Logger().Warn("operator notification failed", "err", err)
		return
	}
	logging.Logger().Info("operator notified", "elapsed", elapsed)
	s.clock.Touch()
}

// pseudoThreshold shrinks as silence grows and rises with CPU load, so a busy
// host suppresses the ping. The formula is a long-standing heuristic and is
// kept exactly as-is.
func pseudoThreshold(elapsedSeconds, cpuPercent float64) float64 {
	return secondsPerDay / elapsedSeconds * cpuPercent / cpuBaseline
}
