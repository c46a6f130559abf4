package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tg-scriptguard/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WarningRepository persists warning counts, their history and overrides.
type WarningRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewWarningRepository(db *gorm.DB) *WarningRepository {
	return &WarningRepository{db: db, now: time.Now}
}

func (r *WarningRepository) Count(ctx context.Context, userID int64) (int, error) {
	var rec models.WarningRecord
	err := r.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// Record increments the user's count and appends a history row in one transaction.
func (r *WarningRepository) Record(ctx context.Context, userID, groupID int64) (int, error) {
	var newCount int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"warnings":   gorm.Expr("warning_records.warnings + 1"),
				"updated_at": now,
			}),
		}).Create(&models.WarningRecord{UserID: userID, Count: 1, UpdatedAt: now}).Error
		if err != nil {
			return fmt.Errorf("increment: %w", err)
		}

		var rec models.WarningRecord
		if err := tx.First(&rec, "user_id = ?", userID).Error; err != nil {
			return fmt.Errorf("read back: %w", err)
		}
		newCount = rec.Count

		return tx.Create(&models.WarningHistory{
			UserID:        userID,
			WarningNumber: newCount,
			GroupID:       groupID,
			CreatedAt:     now,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

// Override replaces the count and writes an audit row; it returns the previous count.
func (r *WarningRepository) Override(ctx context.Context, userID int64, newCount int, operatorID int64) (int, error) {
	var previous int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.WarningRecord
		err := tx.First(&rec, "user_id = ?", userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			previous = 0
		case err != nil:
			return err
		default:
			previous = rec.Count
		}

		now := r.now()
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"warnings":   newCount,
				"updated_at": now,
			}),
		}).Create(&models.WarningRecord{UserID: userID, Count: newCount, UpdatedAt: now}).Error
		if err != nil {
			return err
		}

		return tx.Create(&models.WarningOverride{
			UserID:        userID,
			PreviousCount: previous,
			NewCount:      newCount,
			OperatorID:    operatorID,
			CreatedAt:     now,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return previous, nil
}

// History returns the user's violation history, oldest first.
func (r *WarningRepository) History(ctx context.Context, userID int64) ([]models.WarningHistory, error) {
	var out []models.WarningHistory
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&out).Error
	return out, err
}

func (r *WarningRepository) Overrides(ctx context.Context, userID int64) ([]models.WarningOverride, error) {
	var out []models.WarningOverride
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&out).Error
	return out, err
}
