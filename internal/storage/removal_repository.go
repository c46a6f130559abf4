package storage

import (
	"context"
	"errors"
	"time"

	"tg-scriptguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemovalRepository handles RemovedUser rows and the PermissionRole marker.
type RemovalRepository struct {
	db *gorm.DB
}

func NewRemovalRepository(db *gorm.DB) *RemovalRepository {
	return &RemovalRepository{db: db}
}

// Upsert inserts (group, user) or refreshes reason and time of the existing row,
// and marks the user's role as removed, in one transaction.
func (r *RemovalRepository) Upsert(ctx context.Context, groupID, userID int64, reason string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"reason", "removed_at"}),
		}).Create(&models.RemovedUser{GroupID: groupID, UserID: userID, Reason: reason, RemovedAt: at}).Error
		if err != nil {
			return err
		}
		return setRole(tx, userID, models.RoleRemoved)
	})
}

// Delete removes the row and reports whether one existed. The role goes back to
// normal once the user has no removal rows left in any group.
func (r *RemovalRepository) Delete(ctx context.Context, groupID, userID int64) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.RemovedUser{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		if !deleted {
			return nil
		}

		var remaining int64
		if err := tx.Model(&models.RemovedUser{}).Where("user_id = ?", userID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			return setRole(tx, userID, models.RoleNormal)
		}
		return nil
	})
	return deleted, err
}

func (r *RemovalRepository) Get(ctx context.Context, groupID, userID int64) (*models.RemovedUser, error) {
	var row models.RemovedUser
	err := r.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *RemovalRepository) ListByGroup(ctx context.Context, groupID int64) ([]models.RemovedUser, error) {
	var out []models.RemovedUser
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Order("removed_at, id").Find(&out).Error
	return out, err
}

func (r *RemovalRepository) ListAll(ctx context.Context) ([]models.RemovedUser, error) {
	var out []models.RemovedUser
	err := r.db.WithContext(ctx).Order("group_id, removed_at, id").Find(&out).Error
	return out, err
}

// Role returns RoleNormal for users without a marker.
func (r *RemovalRepository) Role(ctx context.Context, userID int64) (models.Role, error) {
	var pr models.PermissionRole
	err := r.db.WithContext(ctx).First(&pr, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RoleNormal, nil
	}
	if err != nil {
		return "", err
	}
	return pr.Role, nil
}

func setRole(tx *gorm.DB, userID int64, role models.Role) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&models.PermissionRole{UserID: userID, Role: role, UpdatedAt: time.Now()}).Error
}
