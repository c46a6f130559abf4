package storage

import (
	"context"
	"errors"
	"time"

	"tg-scriptguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository stores user profiles and the bypass list.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) UpsertProfile(ctx context.Context, p *models.UserProfile) error {
	p.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "username", "updated_at"}),
	}).Create(p).Error
}

// GetProfile returns nil, nil for users never seen.
func (r *UserRepository) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	var p models.UserProfile
	err := r.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddBypass is idempotent.
func (r *UserRepository) AddBypass(ctx context.Context, userID, addedBy int64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BypassEntry{UserID: userID, AddedBy: addedBy}).Error
}

// RemoveBypass reports whether the user was exempt.
func (r *UserRepository) RemoveBypass(ctx context.Context, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.BypassEntry{}, "user_id = ?", userID)
	return result.RowsAffected > 0, result.Error
}

func (r *UserRepository) IsBypassed(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.BypassEntry{}).Where("user_id = ?", userID).Count(&n).Error
	return n > 0, err
}

func (r *UserRepository) ListBypass(ctx context.Context) ([]models.BypassEntry, error) {
	var out []models.BypassEntry
	err := r.db.WithContext(ctx).Order("user_id").Find(&out).Error
	return out, err
}
