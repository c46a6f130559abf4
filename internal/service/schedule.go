package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tg-scriptguard/internal/crash"
	"tg-scriptguard/internal/logger"
)

const sweepTimeout = 10 * time.Minute

// StartReconcileSchedule runs ReconcileAll on a standard cron expression. An
// empty expression disables the sweep.
func (s *Service) StartReconcileSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	c.Start()
	s.cron = c
	logger.Infof("Reconcile sweep scheduled: %s", spec)
	return nil
}

func (s *Service) sweep() {
	defer crash.RecoverWithStack("reconcile-sweep")

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	reports := s.ReconcileAll(ctx)
	stillIn := 0
	for _, r := range reports {
		stillIn += len(r.StillIn)
	}
	logger.Infof("Reconcile sweep: %d groups, %d removed users found in their group, took %s",
		len(reports), stillIn, time.Since(start).Round(time.Millisecond))
}

// Close stops the schedule and waits for a running sweep.
func (s *Service) Close() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
