package models

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// UserProfile is the last seen platform identity of a user.
type UserProfile struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	FirstName string `gorm:"size:255"`
	LastName  string `gorm:"size:255"`
	Username  string `gorm:"size:255"`
	UpdatedAt time.Time
}

func (u UserProfile) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return "N/A"
	}
	return name
}

// GetLinkedUserName renders an HTML mention, escaped for Telegram's HTML parse mode.
func (u UserProfile) GetLinkedUserName() string {
	return fmt.Sprintf("<a href=\"tg://user?id=%d\">%s</a>", u.UserID, html.EscapeString(u.FullName()))
}

func (u UserProfile) Handle() string {
	if u.Username == "" {
		return "NoUsername"
	}
	return "@" + u.Username
}

// BypassEntry exempts a user from scanning and warnings.
type BypassEntry struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	AddedBy   int64
	CreatedAt time.Time
}

// Operator may issue operator commands in any group.
type Operator struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	AddedBy   int64
	CreatedAt time.Time
}

// OperatorLink subscribes an operator to one group's reports.
type OperatorLink struct {
	GroupID   int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}
