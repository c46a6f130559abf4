// Package platform is the set of chat platform calls the enforcement code needs.
package platform

import (
	"context"
	"time"
)

type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
	StatusUnknown       MemberStatus = "unknown"
)

// InGroup reports whether the status means the user can currently see the group.
// A restricted user is only reported as StatusRestricted while still a member.
func (s MemberStatus) InGroup() bool {
	switch s {
	case StatusCreator, StatusAdministrator, StatusMember, StatusRestricted:
		return true
	}
	return false
}

// Privileged is true for chat administrators and the creator.
func (s MemberStatus) Privileged() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// Permissions is the subset of chat permissions a restriction sets.
type Permissions struct {
	SendMessages       bool
	SendMedia          bool
	SendPolls          bool
	SendOther          bool
	AddWebPagePreviews bool
}

// Muted denies everything.
var Muted = Permissions{}

// Client is implemented by TelegoClient and by platformtest.Fake.
type Client interface {
	// SendDirect sends an HTML message to a user's private chat.
	SendDirect(ctx context.Context, userID int64, text string) error
	// Send sends an HTML message to any chat.
	Send(ctx context.Context, chatID int64, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	Ban(ctx context.Context, groupID, userID int64) error
	// Unban lets a banned user join again; it does nothing for members.
	Unban(ctx context.Context, groupID, userID int64) error
	// Restrict applies perms until the given time; a zero until is permanent.
	Restrict(ctx context.Context, groupID, userID int64, perms Permissions, until time.Time) error
	// Unrestrict restores the group's default permissions for the user.
	Unrestrict(ctx context.Context, groupID, userID int64) error
	MemberStatus(ctx context.Context, groupID, userID int64) (MemberStatus, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}
