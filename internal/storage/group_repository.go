package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"

	"gorm.io/gorm"
)

// Toggle columns of GroupInfo that operators may flip.
const (
	ToggleContentFilter    = "content_filter_enabled"
	ToggleCommandDeletion  = "command_deletion_enabled"
	ToggleUnauthorizedMute = "unauthorized_mute_enabled"
)

// GroupRepository handles database operations for GroupInfo
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new GroupRepository
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) MigrateTable() error {
	return r.db.AutoMigrate(&models.GroupInfo{})
}

// GetGroupInfo returns nil, nil when the group is not registered
func (r *GroupRepository) GetGroupInfo(ctx context.Context, groupID int64) (*models.GroupInfo, error) {
	var groupInfo models.GroupInfo
	result := r.db.WithContext(ctx).Where("group_id = ?", groupID).First(&groupInfo)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &groupInfo, nil
}

// CreateOrUpdateGroupInfo creates a new group info record or renames an existing one.
// Toggles of an existing group are preserved.
func (r *GroupRepository) CreateOrUpdateGroupInfo(ctx context.Context, groupInfo *models.GroupInfo) error {
	db := r.db.WithContext(ctx)
	var existing models.GroupInfo
	result := db.Where("group_id = ?", groupInfo.GroupID).First(&existing)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return db.Create(groupInfo).Error
		}
		return result.Error
	}

	if groupInfo.GroupName != "" {
		existing.GroupName = groupInfo.GroupName
	}
	existing.UpdatedAt = time.Now()
	if err := db.Save(&existing).Error; err != nil {
		return err
	}
	*groupInfo = existing
	return nil
}

func (r *GroupRepository) GetAllGroupInfo(ctx context.Context) ([]*models.GroupInfo, error) {
	var groups []*models.GroupInfo
	if err := r.db.WithContext(ctx).Order("group_id").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// DeleteGroupInfo reports whether a row was removed
func (r *GroupRepository) DeleteGroupInfo(ctx context.Context, groupID int64) (bool, error) {
	result := r.db.WithContext(ctx).Where("group_id = ?", groupID).Delete(&models.GroupInfo{})
	return result.RowsAffected > 0, result.Error
}

// SetToggle flips one of the Toggle* columns and returns the updated row,
// or nil when the group is not registered.
func (r *GroupRepository) SetToggle(ctx context.Context, groupID int64, column string, value bool) (*models.GroupInfo, error) {
	switch column {
	case ToggleContentFilter, ToggleCommandDeletion, ToggleUnauthorizedMute:
	default:
		return nil, fmt.Errorf("unknown toggle %q", column)
	}

	result := r.db.WithContext(ctx).Model(&models.GroupInfo{}).
		Where("group_id = ?", groupID).
		Updates(map[string]interface{}{column: value, "updated_at": time.Now()})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetGroupInfo(ctx, groupID)
}

// InitializeGroups loads all groups from the database into the cache
func InitializeGroups(ctx context.Context, repo *GroupRepository, groupInfoManager *models.GroupInfoManager) error {
	groups, err := repo.GetAllGroupInfo(ctx)
	if err != nil {
		return err
	}

	for _, group := range groups {
		groupInfoManager.AddGroupInfo(group)
	}

	logger.Infof("Loaded %d groups from database into cache", len(groups))
	return nil
}
