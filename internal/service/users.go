package service

import (
	"context"
	"errors"
	"fmt"

	"tg-scriptguard/internal/ledger"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
)

// RefreshProfile stores the sender's current identity. Unchanged profiles seen
// recently skip the database.
func (s *Service) RefreshProfile(ctx context.Context, p models.UserProfile) error {
	if p.UserID <= 0 {
		return nil
	}
	if cached, ok := s.profiles.Get(p.UserID); ok && sameIdentity(cached, p) {
		return nil
	}
	if err := s.Users.UpsertProfile(ctx, &p); err != nil {
		return fmt.Errorf("refresh profile of %d: %w", p.UserID, err)
	}
	s.profiles.Add(p.UserID, p)
	return nil
}

func sameIdentity(a, b models.UserProfile) bool {
	return a.FirstName == b.FirstName && a.LastName == b.LastName && a.Username == b.Username
}

// Profile returns the last seen identity; users never seen get a bare profile.
func (s *Service) Profile(ctx context.Context, userID int64) models.UserProfile {
	if p, ok := s.profiles.Get(userID); ok {
		return p
	}
	p, err := s.Users.GetProfile(ctx, userID)
	if err != nil {
		logger.Warningf("Failed to load profile of %d: %v", userID, err)
	}
	if p == nil {
		return models.UserProfile{UserID: userID}
	}
	s.profiles.Add(userID, *p)
	return *p
}

func (s *Service) AddBypass(ctx context.Context, userID, operatorID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.Users.AddBypass(ctx, userID, operatorID); err != nil {
		return fmt.Errorf("add bypass for %d: %w", userID, err)
	}
	logger.Infof("User %d bypassed by %d", userID, operatorID)
	return nil
}

func (s *Service) RemoveBypass(ctx context.Context, userID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	removed, err := s.Users.RemoveBypass(ctx, userID)
	if err != nil {
		return fmt.Errorf("remove bypass for %d: %w", userID, err)
	}
	if !removed {
		return notFoundf("user %d is not bypassed", userID)
	}
	logger.Infof("User %d no longer bypassed", userID)
	return nil
}

// IsBypassed reports whether userID is exempt from scanning.
func (s *Service) IsBypassed(ctx context.Context, userID int64) (bool, error) {
	ok, err := s.Users.IsBypassed(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("bypass lookup for %d: %w", userID, err)
	}
	return ok, nil
}

func (s *Service) ListBypass(ctx context.Context) ([]models.BypassEntry, error) {
	return s.Users.ListBypass(ctx)
}

// OverrideWarningCount replaces a user's count and returns the previous one.
func (s *Service) OverrideWarningCount(ctx context.Context, userID int64, count int, operatorID int64) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	prev, err := s.Ledger.Override(ctx, userID, count, operatorID)
	if errors.Is(err, ledger.ErrNegativeCount) {
		return 0, validationf("%v", err)
	}
	return prev, err
}

// Warnings is a user's current count and violation history.
type Warnings struct {
	Count   int
	History []models.WarningHistory
}

func (s *Service) WarningsOf(ctx context.Context, userID int64) (Warnings, error) {
	if err := requireUser(userID); err != nil {
		return Warnings{}, err
	}
	var w Warnings
	var err error
	if w.Count, err = s.Ledger.Count(ctx, userID); err != nil {
		return w, err
	}
	w.History, err = s.Ledger.History(ctx, userID)
	return w, err
}
