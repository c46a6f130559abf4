// Package registry records users removed from groups and audits that record
// against live membership.
package registry

import (
	"context"
	"fmt"
	"time"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
)

// Store is implemented by storage.RemovalRepository.
type Store interface {
	Upsert(ctx context.Context, groupID, userID int64, reason string, at time.Time) error
	Delete(ctx context.Context, groupID, userID int64) (bool, error)
	Get(ctx context.Context, groupID, userID int64) (*models.RemovedUser, error)
	ListByGroup(ctx context.Context, groupID int64) ([]models.RemovedUser, error)
	ListAll(ctx context.Context) ([]models.RemovedUser, error)
}

type Registry struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// Add records (group, user) as removed. Adding an existing pair refreshes it.
func (r *Registry) Add(ctx context.Context, groupID, userID int64, reason string) error {
	if err := r.store.Upsert(ctx, groupID, userID, reason, r.now()); err != nil {
		return fmt.Errorf("registry add %d/%d: %w", groupID, userID, err)
	}
	logger.Infof("Registry: user %d removed from group %d (%s)", userID, groupID, reason)
	return nil
}

// Remove deletes the pair and reports whether it was present.
func (r *Registry) Remove(ctx context.Context, groupID, userID int64) (bool, error) {
	deleted, err := r.store.Delete(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("registry remove %d/%d: %w", groupID, userID, err)
	}
	if deleted {
		logger.Infof("Registry: user %d no longer removed from group %d", userID, groupID)
	}
	return deleted, nil
}

// Contains reports whether the user is recorded as removed from the group.
func (r *Registry) Contains(ctx context.Context, groupID, userID int64) (bool, error) {
	row, err := r.store.Get(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("registry get %d/%d: %w", groupID, userID, err)
	}
	return row != nil, nil
}

func (r *Registry) List(ctx context.Context, groupID int64) ([]models.RemovedUser, error) {
	rows, err := r.store.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("registry list %d: %w", groupID, err)
	}
	return rows, nil
}

func (r *Registry) ListAll(ctx context.Context) ([]models.RemovedUser, error) {
	rows, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry list: %w", err)
	}
	return rows, nil
}
