package service

import (
	"context"
	"fmt"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
)

// IsOperator is the single permission lookup: configured admins first, then
// the operator table.
func (s *Service) IsOperator(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, nil
	}
	if s.admins[userID] {
		return true, nil
	}
	ok, err := s.Operators.IsOperator(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("operator lookup for %d: %w", userID, err)
	}
	return ok, nil
}

func (s *Service) AddOperator(ctx context.Context, userID, addedBy int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.Operators.Add(ctx, userID, addedBy); err != nil {
		return fmt.Errorf("add operator %d: %w", userID, err)
	}
	logger.Infof("Operator %d added by %d", userID, addedBy)
	return nil
}

// RemoveOperator cannot demote configured admins.
func (s *Service) RemoveOperator(ctx context.Context, userID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if s.admins[userID] {
		return validationf("user %d is a configured admin", userID)
	}
	removed, err := s.Operators.Remove(ctx, userID)
	if err != nil {
		return fmt.Errorf("remove operator %d: %w", userID, err)
	}
	if !removed {
		return notFoundf("user %d is not an operator", userID)
	}
	logger.Infof("Operator %d removed", userID)
	return nil
}

// ListOperators lists configured admins followed by the stored operators.
func (s *Service) ListOperators(ctx context.Context) ([]models.Operator, error) {
	stored, err := s.Operators.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Operator, 0, len(s.AdminIDs)+len(stored))
	for _, id := range s.AdminIDs {
		out = append(out, models.Operator{UserID: id})
	}
	for _, op := range stored {
		if !s.admins[op.UserID] {
			out = append(out, op)
		}
	}
	return out, nil
}

// LinkOperator subscribes an operator to one group's reports.
func (s *Service) LinkOperator(ctx context.Context, groupID, userID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if _, err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	isOp, err := s.IsOperator(ctx, userID)
	if err != nil {
		return err
	}
	if !isOp {
		return notFoundf("user %d is not an operator", userID)
	}
	if err := s.Operators.Link(ctx, groupID, userID); err != nil {
		return fmt.Errorf("link operator %d to %d: %w", userID, groupID, err)
	}
	logger.Infof("Operator %d linked to group %d", userID, groupID)
	return nil
}

func (s *Service) UnlinkOperator(ctx context.Context, groupID, userID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if groupID >= 0 {
		return validationf("group id %d is not a group", groupID)
	}
	removed, err := s.Operators.Unlink(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("unlink operator %d from %d: %w", userID, groupID, err)
	}
	if !removed {
		return notFoundf("operator %d is not linked to %d", userID, groupID)
	}
	return nil
}
