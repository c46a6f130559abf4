// Package ledger keeps per-user cumulative warning counts.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
)

var ErrNegativeCount = errors.New("warning count must not be negative")

var warningsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "scriptguard_warnings_recorded_total",
	Help: "Violations recorded in the warning ledger",
})

// Store is implemented by storage.WarningRepository. Record must increment and
// append history atomically.
type Store interface {
	Count(ctx context.Context, userID int64) (int, error)
	Record(ctx context.Context, userID, groupID int64) (int, error)
	Override(ctx context.Context, userID int64, newCount int, operatorID int64) (int, error)
	History(ctx context.Context, userID int64) ([]models.WarningHistory, error)
}

type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Count is 0 for users never warned.
func (l *Ledger) Count(ctx context.Context, userID int64) (int, error) {
	n, err := l.store.Count(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count warnings of %d: %w", userID, err)
	}
	return n, nil
}

// Record adds one violation by userID in groupID and returns the new count.
func (l *Ledger) Record(ctx context.Context, userID, groupID int64) (int, error) {
	n, err := l.store.Record(ctx, userID, groupID)
	if err != nil {
		return 0, fmt.Errorf("record warning of %d in %d: %w", userID, groupID, err)
	}
	warningsRecorded.Inc()
	logger.Infof("User %d now has %d warnings (group %d)", userID, n, groupID)
	return n, nil
}

// Override replaces the count without touching history and returns the previous value.
func (l *Ledger) Override(ctx context.Context, userID int64, newCount int, operatorID int64) (int, error) {
	if newCount < 0 {
		return 0, ErrNegativeCount
	}
	prev, err := l.store.Override(ctx, userID, newCount, operatorID)
	if err != nil {
		return 0, fmt.Errorf("override warnings of %d: %w", userID, err)
	}
	logger.With("audit", "warning_override", "user", userID, "operator", operatorID).
		Infof("Warning count of %d changed from %d to %d", userID, prev, newCount)
	return prev, nil
}

func (l *Ledger) History(ctx context.Context, userID int64) ([]models.WarningHistory, error) {
	h, err := l.store.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("warning history of %d: %w", userID, err)
	}
	return h, nil
}
