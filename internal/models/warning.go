package models

import "time"

// WarningRecord holds the cumulative violation count of a user across groups.
type WarningRecord struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	Count     int   `gorm:"column:warnings;not null;default:0"`
	UpdatedAt time.Time
}

// WarningHistory is append-only; one row per recorded violation.
type WarningHistory struct {
	ID            uint  `gorm:"primaryKey;autoIncrement"`
	UserID        int64 `gorm:"index;not null"`
	WarningNumber int   `gorm:"not null"`
	GroupID       int64 `gorm:"index"`
	CreatedAt     time.Time
}

// WarningOverride audits administrative count replacements.
type WarningOverride struct {
	ID            uint  `gorm:"primaryKey;autoIncrement"`
	UserID        int64 `gorm:"index;not null"`
	PreviousCount int
	NewCount      int
	OperatorID    int64
	CreatedAt     time.Time
}
