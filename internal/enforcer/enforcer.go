// Package enforcer turns violations into warnings, restrictions and bans.
package enforcer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tg-scriptguard/internal/ledger"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/platform"
	"tg-scriptguard/internal/policy"
	"tg-scriptguard/internal/quarantine"
	"tg-scriptguard/internal/registry"
	"tg-scriptguard/internal/report"
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_enforcement_actions_total",
	Help: "Actions taken on violations and unauthorized commands",
}, []string{"action", "result"})

type BypassList interface {
	IsBypassed(ctx context.Context, userID int64) (bool, error)
}

// Config holds the enforcement settings read from enforcement.*.
type Config struct {
	QuarantineDuration       time.Duration
	UnauthorizedMuteDuration time.Duration
	// Regulations heads every private notice; empty uses the catalog text.
	Regulations string
	Language    string
}

// Deps are the collaborators an Enforcer acts through.
type Deps struct {
	Bypass     BypassList
	Ledger     *ledger.Ledger
	Policy     *policy.Policy
	Client     platform.Client
	Registry   *registry.Registry
	Quarantine *quarantine.Scheduler
	Reporter   *report.Reporter
}

// Enforcer applies the policy ladder to violations and the guard to
// unauthorized commands.
type Enforcer struct {
	Deps
	cfg Config
	now func() time.Time
}

func New(deps Deps, cfg Config) *Enforcer {
	if cfg.Regulations == "" {
		cfg.Regulations = models.GetTranslation(cfg.Language, "regulations_default")
	}
	return &Enforcer{Deps: deps, cfg: cfg, now: time.Now}
}

// Violation is a message found to contain forbidden text.
type Violation struct {
	GroupID   int64
	GroupName string
	User      models.UserProfile
	MessageID int
	Source    string
	Excerpt   string
}

// Outcome reports every side effect separately; only Err stops the pipeline.
type Outcome struct {
	Bypassed bool
	Count    int
	Action   policy.Action

	NotifyErr     error
	PlatformErr   error
	RegistryErr   error
	QuarantineErr error
	ReportErr     error
}

// OnViolation records the violation and applies the action the ladder gives for
// the new count. The returned error is set only when nothing was recorded.
func (e *Enforcer) OnViolation(ctx context.Context, v Violation) (Outcome, error) {
	var out Outcome

	bypassed, err := e.Bypass.IsBypassed(ctx, v.User.UserID)
	if err != nil {
		return out, fmt.Errorf("bypass check for %d: %w", v.User.UserID, err)
	}
	if bypassed {
		out.Bypassed = true
		logger.Debugf("User %d is bypassed, ignoring violation in %d", v.User.UserID, v.GroupID)
		return out, nil
	}

	count, err := e.Ledger.Record(ctx, v.User.UserID, v.GroupID)
	if err != nil {
		return out, err
	}
	out.Count = count
	out.Action = e.Policy.Lookup(count)

	out.NotifyErr = e.Client.SendDirect(ctx, v.User.UserID, e.noticeText(v, count, out.Action))
	if out.NotifyErr != nil {
		logger.Warningf("Cannot send notice to user %d: %v", v.User.UserID, out.NotifyErr)
	}

	var quarantineFor time.Duration
	switch out.Action.Kind {
	case policy.Restrict:
		out.PlatformErr = e.Client.Restrict(ctx, v.GroupID, v.User.UserID, platform.Muted, e.now().Add(out.Action.Duration))
		observe("restrict", out.PlatformErr)

	case policy.Ban:
		out.PlatformErr = e.Client.Ban(ctx, v.GroupID, v.User.UserID)
		observe("ban", out.PlatformErr)

		reason := fmt.Sprintf("warning %d (%s)", count, v.Source)
		out.RegistryErr = e.Registry.Add(ctx, v.GroupID, v.User.UserID, reason)
		if out.RegistryErr != nil {
			logger.Errorf("Ban of %d in %d not recorded: %v", v.User.UserID, v.GroupID, out.RegistryErr)
		}

		if _, err := e.Quarantine.Arm(ctx, v.GroupID, e.cfg.QuarantineDuration); err != nil {
			out.QuarantineErr = err
			logger.Errorf("Quarantine of %d not armed: %v", v.GroupID, err)
		} else {
			quarantineFor = e.cfg.QuarantineDuration
		}

	default:
		observe("notice", nil)
	}

	registryErr := out.RegistryErr
	if registryErr == nil {
		registryErr = out.QuarantineErr
	}
	out.ReportErr = e.Reporter.Violation(ctx, report.Violation{
		GroupID:       v.GroupID,
		GroupName:     v.GroupName,
		User:          v.User,
		MessageID:     v.MessageID,
		Count:         count,
		Action:        out.Action,
		Source:        v.Source,
		Excerpt:       v.Excerpt,
		NotifyErr:     out.NotifyErr,
		PlatformErr:   out.PlatformErr,
		RegistryErr:   registryErr,
		QuarantineFor: quarantineFor,
	})

	logger.Infof("Violation by %d in %d: count=%d action=%s", v.User.UserID, v.GroupID, count, out.Action)
	return out, nil
}

func (e *Enforcer) noticeText(v Violation, count int, action policy.Action) string {
	t := func(key string) string { return models.GetTranslation(e.cfg.Language, key) }

	var b strings.Builder
	b.WriteString(e.cfg.Regulations)
	b.WriteString("\n\n")
	b.WriteString(e.Reporter.ReasonLine(count))

	group := html.EscapeString(v.GroupName)
	switch action.Kind {
	case policy.Restrict:
		b.WriteString("\n")
		fmt.Fprintf(&b, t("notice_restricted"), group, e.now().Add(action.Duration).UTC().Format("2006-01-02 15:04 MST"))
	case policy.Ban:
		b.WriteString("\n")
		fmt.Fprintf(&b, t("notice_banned"), group)
	}
	return b.String()
}

// Mute restricts the user for d. Telegram treats restrictions shorter than
// 30 seconds or longer than 366 days as permanent.
func (e *Enforcer) Mute(ctx context.Context, groupID, userID int64, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("mute duration must be positive, got %s", d)
	}
	err := e.Client.Restrict(ctx, groupID, userID, platform.Muted, e.now().Add(d))
	observe("mute", err)
	return err
}

// Unmute lifts any restriction right away.
func (e *Enforcer) Unmute(ctx context.Context, groupID, userID int64) error {
	err := e.Client.Unrestrict(ctx, groupID, userID)
	observe("unmute", err)
	return err
}

func observe(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	actionsTotal.WithLabelValues(action, result).Inc()
}
