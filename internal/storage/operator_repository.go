package storage

import (
	"context"

	"tg-scriptguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OperatorRepository stores operators and their per-group report links.
type OperatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Add(ctx context.Context, userID, addedBy int64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Operator{UserID: userID, AddedBy: addedBy}).Error
}

func (r *OperatorRepository) Remove(ctx context.Context, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Operator{}, "user_id = ?", userID)
	return result.RowsAffected > 0, result.Error
}

func (r *OperatorRepository) IsOperator(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Operator{}).Where("user_id = ?", userID).Count(&n).Error
	return n > 0, err
}

func (r *OperatorRepository) List(ctx context.Context) ([]models.Operator, error) {
	var out []models.Operator
	err := r.db.WithContext(ctx).Order("user_id").Find(&out).Error
	return out, err
}

func (r *OperatorRepository) Link(ctx context.Context, groupID, userID int64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.OperatorLink{GroupID: groupID, UserID: userID}).Error
}

func (r *OperatorRepository) Unlink(ctx context.Context, groupID, userID int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.OperatorLink{}, "group_id = ? AND user_id = ?", groupID, userID)
	return result.RowsAffected > 0, result.Error
}

// LinkedOperators returns the user ids subscribed to a group's reports.
func (r *OperatorRepository) LinkedOperators(ctx context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.OperatorLink{}).
		Where("group_id = ?", groupID).Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
