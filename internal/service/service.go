// Package service is the operator intent surface. Every mutating intent returns
// nil, an ErrValidation / ErrNotFound wrapped error, or a *PlatformError.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/robfig/cron/v3"

	"tg-scriptguard/internal/enforcer"
	"tg-scriptguard/internal/ledger"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/platform"
	"tg-scriptguard/internal/registry"
	"tg-scriptguard/internal/report"
	"tg-scriptguard/internal/storage"
)

const (
	profileCacheSize = 4096
	profileCacheTTL  = 10 * time.Minute
)

type Deps struct {
	Groups     *storage.GroupRepository
	Users      *storage.UserRepository
	Operators  *storage.OperatorRepository
	Ledger     *ledger.Ledger
	Registry   *registry.Registry
	Reconciler *registry.Reconciler
	Enforcer   *enforcer.Enforcer
	Reporter   *report.Reporter
	Client     platform.Client
	GroupCache *models.GroupInfoManager

	// AdminIDs are operators from configuration, in addition to the table.
	AdminIDs []int64
}

type Service struct {
	Deps
	admins   map[int64]bool
	profiles *expirable.LRU[int64, models.UserProfile]
	cron     *cron.Cron
}

func New(deps Deps) *Service {
	if deps.GroupCache == nil {
		deps.GroupCache = models.NewGroupInfoManager()
	}
	s := &Service{
		Deps:     deps,
		admins:   make(map[int64]bool, len(deps.AdminIDs)),
		profiles: expirable.NewLRU[int64, models.UserProfile](profileCacheSize, nil, profileCacheTTL),
	}
	for _, id := range deps.AdminIDs {
		s.admins[id] = true
	}
	return s
}

// LoadGroups fills the group cache from the database.
func (s *Service) LoadGroups(ctx context.Context) error {
	return storage.InitializeGroups(ctx, s.Groups, s.GroupCache)
}

// GetGroupInfo reads the cache first, then the database.
func (s *Service) GetGroupInfo(ctx context.Context, groupID int64) (models.GroupInfo, bool, error) {
	if info, ok := s.GroupCache.GetGroupInfo(groupID); ok {
		return info, true, nil
	}
	info, err := s.Groups.GetGroupInfo(ctx, groupID)
	if err != nil {
		return models.GroupInfo{}, false, fmt.Errorf("load group %d: %w", groupID, err)
	}
	if info == nil {
		return models.GroupInfo{}, false, nil
	}
	logger.Debugf("Found group info in database for groupID: %d", groupID)
	s.GroupCache.AddGroupInfo(info)
	return *info, true, nil
}

func (s *Service) requireGroup(ctx context.Context, groupID int64) (models.GroupInfo, error) {
	if groupID >= 0 {
		return models.GroupInfo{}, validationf("group id %d is not a group", groupID)
	}
	info, ok, err := s.GetGroupInfo(ctx, groupID)
	if err != nil {
		return info, err
	}
	if !ok {
		return info, notFoundf("group %d is not registered", groupID)
	}
	return info, nil
}

func requireUser(userID int64) error {
	if userID <= 0 {
		return validationf("user id %d is not a user", userID)
	}
	return nil
}

// RegisterGroup starts enforcing in groupID. Registering again renames the
// group and keeps its toggles.
func (s *Service) RegisterGroup(ctx context.Context, groupID int64, name string) (models.GroupInfo, error) {
	if groupID >= 0 {
		return models.GroupInfo{}, validationf("group id %d is not a group", groupID)
	}
	info := &models.GroupInfo{GroupID: groupID, GroupName: name}
	if err := s.Groups.CreateOrUpdateGroupInfo(ctx, info); err != nil {
		return models.GroupInfo{}, fmt.Errorf("register group %d: %w", groupID, err)
	}
	s.GroupCache.AddGroupInfo(info)
	logger.Infof("Group %d (%s) registered", groupID, info.DisplayName())
	return *info, nil
}

func (s *Service) UnregisterGroup(ctx context.Context, groupID int64) error {
	if groupID >= 0 {
		return validationf("group id %d is not a group", groupID)
	}
	deleted, err := s.Groups.DeleteGroupInfo(ctx, groupID)
	if err != nil {
		return fmt.Errorf("unregister group %d: %w", groupID, err)
	}
	s.GroupCache.RemoveGroupInfo(groupID)
	if !deleted {
		return notFoundf("group %d is not registered", groupID)
	}
	logger.Infof("Group %d unregistered", groupID)
	return nil
}

func (s *Service) setToggle(ctx context.Context, groupID int64, column string, value bool) (models.GroupInfo, error) {
	if groupID >= 0 {
		return models.GroupInfo{}, validationf("group id %d is not a group", groupID)
	}
	info, err := s.Groups.SetToggle(ctx, groupID, column, value)
	if err != nil {
		return models.GroupInfo{}, fmt.Errorf("set %s of %d: %w", column, groupID, err)
	}
	if info == nil {
		return models.GroupInfo{}, notFoundf("group %d is not registered", groupID)
	}
	s.GroupCache.AddGroupInfo(info)
	logger.Infof("Group %d: %s=%t", groupID, column, value)
	return *info, nil
}

func (s *Service) EnableContentFilter(ctx context.Context, groupID int64) (models.GroupInfo, error) {
	return s.setToggle(ctx, groupID, storage.ToggleContentFilter, true)
}

func (s *Service) DisableContentFilter(ctx context.Context, groupID int64) (models.GroupInfo, error) {
	return s.setToggle(ctx, groupID, storage.ToggleContentFilter, false)
}

func (s *Service) SetCommandDeletion(ctx context.Context, groupID int64, enabled bool) (models.GroupInfo, error) {
	return s.setToggle(ctx, groupID, storage.ToggleCommandDeletion, enabled)
}

func (s *Service) SetUnauthorizedMute(ctx context.Context, groupID int64, enabled bool) (models.GroupInfo, error) {
	return s.setToggle(ctx, groupID, storage.ToggleUnauthorizedMute, enabled)
}
