package models

import "time"

// RemovedUser records that a user must not be a member of a group.
// One row per (group, user); a repeat ban updates the existing row.
type RemovedUser struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	GroupID   int64  `gorm:"uniqueIndex:idx_removed_group_user;not null"`
	UserID    int64  `gorm:"uniqueIndex:idx_removed_group_user;index;not null"`
	Reason    string `gorm:"type:text"`
	RemovedAt time.Time
}

type Role string

const (
	RoleNormal  Role = "normal"
	RoleRemoved Role = "removed"
)

// PermissionRole is a per-user marker kept next to RemovedUser for reporting.
type PermissionRole struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	Role      Role  `gorm:"size:16;not null;default:normal"`
	UpdatedAt time.Time
}
