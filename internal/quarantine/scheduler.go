// Package quarantine arms short per-group windows during which every message is deleted.
package quarantine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tg-scriptguard/internal/logger"
)

var (
	armedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scriptguard_quarantine_armed_total",
		Help: "Quarantine windows armed",
	})
	reapedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptguard_quarantine_reaped_total",
		Help: "Deferred reapers by outcome",
	}, []string{"outcome"})
)

type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithAfterFunc replaces time.AfterFunc for scheduling reapers.
func WithAfterFunc(after func(time.Duration, func())) Option {
	return func(s *Scheduler) { s.afterFunc = after }
}

// Scheduler owns the flag store for the lifetime of the process.
type Scheduler struct {
	store     Store
	now       func() time.Time
	afterFunc func(time.Duration, func())
	closed    atomic.Bool
}

func NewScheduler(store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store: store,
		now:   time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm opens a window of length d for the group, replacing any current one, and
// schedules a reaper that clears it only if nobody re-armed in the meantime.
func (s *Scheduler) Arm(ctx context.Context, groupID int64, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, fmt.Errorf("quarantine duration must be positive, got %s", d)
	}
	if s.closed.Load() {
		return time.Time{}, fmt.Errorf("quarantine scheduler closed")
	}

	expiresAt := s.now().Add(d)
	if err := s.store.Arm(ctx, groupID, expiresAt, d); err != nil {
		return time.Time{}, err
	}
	armedTotal.Inc()
	logger.Infof("Quarantine armed for group %d until %s", groupID, expiresAt.Format(time.RFC3339))

	s.afterFunc(d, func() { s.reap(groupID, expiresAt) })
	return expiresAt, nil
}

func (s *Scheduler) reap(groupID int64, expiresAt time.Time) {
	if s.closed.Load() {
		reapedTotal.WithLabelValues("closed").Inc()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cleared, err := s.store.ClearIf(ctx, groupID, expiresAt)
	switch {
	case err != nil:
		reapedTotal.WithLabelValues("error").Inc()
		logger.Warningf("Quarantine reaper for group %d failed: %v", groupID, err)
	case cleared:
		reapedTotal.WithLabelValues("cleared").Inc()
		logger.Debugf("Quarantine of group %d expired", groupID)
	default:
		reapedTotal.WithLabelValues("stale").Inc()
	}
}

// IsActive does not depend on the reaper having run.
func (s *Scheduler) IsActive(ctx context.Context, groupID int64) (bool, error) {
	exp, ok, err := s.store.Get(ctx, groupID)
	if err != nil || !ok {
		return false, err
	}
	return s.now().Before(exp), nil
}

// ExpiresAt returns the current window end, if one is active.
func (s *Scheduler) ExpiresAt(ctx context.Context, groupID int64) (time.Time, bool, error) {
	exp, ok, err := s.store.Get(ctx, groupID)
	if err != nil || !ok || !s.now().Before(exp) {
		return time.Time{}, false, err
	}
	return exp, true, nil
}

// Close turns pending reapers into no-ops and rejects new arms.
func (s *Scheduler) Close() {
	s.closed.Store(true)
}
