package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tg-scriptguard/internal/config"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/registry"
)

const manualRemovalReason = "removed by operator"

// RemoveUser records the user as removed from the group, then bans them. A
// failed ban keeps the registry row and comes back as *PlatformError.
func (s *Service) RemoveUser(ctx context.Context, groupID, userID int64, reason string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = manualRemovalReason
	}

	if err := s.Registry.Add(ctx, groupID, userID, reason); err != nil {
		return err
	}
	if err := s.Client.Ban(ctx, groupID, userID); err != nil {
		logger.Warningf("User %d recorded as removed from %d but ban failed: %v", userID, groupID, err)
		return &PlatformError{Op: "ban", Err: err}
	}
	return nil
}

// UnremoveUser deletes the registry row and lifts the platform ban so the user
// may join again. A missing row is ErrNotFound and nothing is sent.
func (s *Service) UnremoveUser(ctx context.Context, groupID, userID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if groupID >= 0 {
		return validationf("group id %d is not a group", groupID)
	}

	deleted, err := s.Registry.Remove(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return notFoundf("user %d is not recorded as removed from %d", userID, groupID)
	}
	if err := s.Client.Unban(ctx, groupID, userID); err != nil {
		logger.Warningf("User %d unremoved from %d but unban failed: %v", userID, groupID, err)
		return &PlatformError{Op: "unban", Err: err}
	}
	return nil
}

// ListRemoved lists one group's registry, or every group's when groupID is 0.
func (s *Service) ListRemoved(ctx context.Context, groupID int64) ([]models.RemovedUser, error) {
	if groupID == 0 {
		return s.Registry.ListAll(ctx)
	}
	if groupID > 0 {
		return nil, validationf("group id %d is not a group", groupID)
	}
	return s.Registry.List(ctx, groupID)
}

// Reconcile compares the group's registry with live membership, re-bans
// whoever is still in and sends the report to operators.
func (s *Service) Reconcile(ctx context.Context, groupID int64) (registry.Report, error) {
	info, err := s.requireGroup(ctx, groupID)
	if err != nil {
		return registry.Report{GroupID: groupID}, err
	}
	rep, err := s.Reconciler.Reconcile(ctx, groupID)
	if err != nil {
		return rep, fmt.Errorf("reconcile %d: %w", groupID, err)
	}
	if err := s.Reporter.Reconcile(ctx, info.DisplayName(), rep); err != nil {
		logger.Warningf("Reconcile report for %d not fully delivered: %v", groupID, err)
	}
	return rep, nil
}

// ReconcileAll runs Reconcile for every registered group; a failing group does
// not stop the others.
func (s *Service) ReconcileAll(ctx context.Context) []registry.Report {
	groups, err := s.Groups.GetAllGroupInfo(ctx)
	if err != nil {
		logger.Errorf("Reconcile sweep: cannot list groups: %v", err)
		return nil
	}
	reports := make([]registry.Report, 0, len(groups))
	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}
		rep, err := s.Reconcile(ctx, g.GroupID)
		if err != nil {
			logger.Errorf("Reconcile sweep: group %d: %v", g.GroupID, err)
			continue
		}
		reports = append(reports, rep)
	}
	return reports
}

// Mute restricts the user in the group for d.
func (s *Service) Mute(ctx context.Context, groupID, userID int64, d time.Duration) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if d < config.MinRestriction || d > config.MaxRestriction {
		return validationf("mute duration must be between %s and %s, got %s", config.MinRestriction, config.MaxRestriction, d)
	}
	if _, err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.Enforcer.Mute(ctx, groupID, userID, d); err != nil {
		return &PlatformError{Op: "mute", Err: err}
	}
	logger.Infof("User %d muted in %d for %s", userID, groupID, d)
	return nil
}

// Unmute lifts the restriction immediately, whatever time it had left.
func (s *Service) Unmute(ctx context.Context, groupID, userID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.Enforcer.Unmute(ctx, groupID, userID); err != nil {
		return &PlatformError{Op: "unmute", Err: err}
	}
	logger.Infof("User %d unmuted in %d", userID, groupID)
	return nil
}

// BanIfRemoved bans a user who shows up in a group they are recorded as
// removed from. It reports whether a ban was issued.
func (s *Service) BanIfRemoved(ctx context.Context, groupID, userID int64) (bool, error) {
	if _, ok, err := s.GetGroupInfo(ctx, groupID); err != nil || !ok {
		return false, err
	}
	removed, err := s.Registry.Contains(ctx, groupID, userID)
	if err != nil || !removed {
		return false, err
	}
	logger.Infof("Removed user %d rejoined %d, banning again", userID, groupID)
	if err := s.Client.Ban(ctx, groupID, userID); err != nil {
		return false, &PlatformError{Op: "ban", Err: err}
	}
	return true, nil
}
