package enforcer

import (
	"context"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/report"
)

// CommandEvent is a command sent in a group by someone without privileges.
type CommandEvent struct {
	GroupID   int64
	GroupName string
	User      models.UserProfile
	MessageID int
	Command   string

	DeleteEnabled bool
	MuteEnabled   bool
}

type GuardOutcome struct {
	Deleted   bool
	DeleteErr error
	Muted     bool
	MuteErr   error
	ReportErr error
}

// OnUnauthorizedCommand applies the group's command toggles. It never touches
// the warning ledger. Nothing is reported when both toggles are off.
func (e *Enforcer) OnUnauthorizedCommand(ctx context.Context, ev CommandEvent) GuardOutcome {
	var out GuardOutcome
	if !ev.DeleteEnabled && !ev.MuteEnabled {
		return out
	}

	if ev.DeleteEnabled {
		out.DeleteErr = e.Client.DeleteMessage(ctx, ev.GroupID, ev.MessageID)
		out.Deleted = out.DeleteErr == nil
		observe("command_delete", out.DeleteErr)
		if out.DeleteErr != nil {
			logger.Warningf("Failed to delete command %d from %d in %d: %v", ev.MessageID, ev.User.UserID, ev.GroupID, out.DeleteErr)
		}
	}

	if ev.MuteEnabled {
		out.MuteErr = e.Mute(ctx, ev.GroupID, ev.User.UserID, e.cfg.UnauthorizedMuteDuration)
		out.Muted = out.MuteErr == nil
		if out.MuteErr != nil {
			logger.Warningf("Failed to mute %d in %d after command %q: %v", ev.User.UserID, ev.GroupID, ev.Command, out.MuteErr)
		}
	}

	out.ReportErr = e.Reporter.Unauthorized(ctx, report.Unauthorized{
		GroupID:   ev.GroupID,
		GroupName: ev.GroupName,
		User:      ev.User,
		Command:   ev.Command,
		Deleted:   out.Deleted,
		DeleteErr: out.DeleteErr,
		Muted:     out.Muted,
		MuteFor:   e.cfg.UnauthorizedMuteDuration,
		MuteErr:   out.MuteErr,
	})
	return out
}
