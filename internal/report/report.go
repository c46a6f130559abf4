// Package report formats enforcement events and delivers them to operators.
package report

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/policy"
	"tg-scriptguard/internal/registry"
)

var reportsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scriptguard_reports_sent_total",
	Help: "Operator reports by kind and delivery result",
}, []string{"kind", "result"})

type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error
}

// LinkSource returns operators subscribed to one group.
type LinkSource interface {
	LinkedOperators(ctx context.Context, groupID int64) ([]int64, error)
}

type Options struct {
	Sender          Sender
	Links           LinkSource
	ChatIDs         []int64
	Slack           *SlackNotifier
	Language        string
	ForwardEvidence bool
	Now             func() time.Time
}

type Reporter struct {
	sender  Sender
	links   LinkSource
	chatIDs []int64
	slack   *SlackNotifier
	lang    string
	forward bool
	now     func() time.Time
}

func New(opts Options) *Reporter {
	r := &Reporter{
		sender:  opts.Sender,
		links:   opts.Links,
		chatIDs: opts.ChatIDs,
		slack:   opts.Slack,
		lang:    opts.Language,
		forward: opts.ForwardEvidence,
		now:     opts.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Violation is the outcome of one content violation.
type Violation struct {
	GroupID   int64
	GroupName string
	User      models.UserProfile
	MessageID int
	Count     int
	Action    policy.Action
	Source    string
	Excerpt   string

	NotifyErr     error
	PlatformErr   error
	RegistryErr   error
	QuarantineFor time.Duration
}

type Unauthorized struct {
	GroupID   int64
	GroupName string
	User      models.UserProfile
	Command   string

	Deleted   bool
	DeleteErr error
	Muted     bool
	MuteFor   time.Duration
	MuteErr   error
}

func (r *Reporter) t(key string) string {
	return models.GetTranslation(r.lang, key)
}

// ActionText renders an action in the configured language.
func (r *Reporter) ActionText(a policy.Action) string {
	switch a.Kind {
	case policy.Restrict:
		return fmt.Sprintf(r.t("action_restrict"), a.Duration)
	case policy.Ban:
		return r.t("action_ban")
	default:
		return r.t("action_notice")
	}
}

// ReasonLine is the per-count line of the private notice.
func (r *Reporter) ReasonLine(count int) string {
	switch count {
	case 1:
		return r.t("notice_reason_1")
	case 2:
		return r.t("notice_reason_2")
	default:
		return fmt.Sprintf(r.t("notice_reason_n"), count, count)
	}
}

func esc(err error) string {
	return html.EscapeString(err.Error())
}

func (r *Reporter) FormatViolation(v Violation) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("%s", r.t("report_violation_title"))
	line(r.t("report_group"), html.EscapeString(v.GroupName), v.GroupID)
	line(r.t("report_user"), v.User.GetLinkedUserName(), v.User.UserID, html.EscapeString(v.User.Handle()))
	line(r.t("report_count"), v.Count)
	line(r.t("report_action"), r.ActionText(v.Action))
	if v.Source != "" {
		line(r.t("report_source"), v.Source)
	}
	if v.Excerpt != "" {
		line(r.t("report_excerpt"), html.EscapeString(v.Excerpt))
	}

	if v.NotifyErr != nil {
		line(r.t("report_notice_failed"), esc(v.NotifyErr))
	} else {
		line("%s", r.t("report_notice_ok"))
	}
	if v.Action.Kind != policy.Notice {
		if v.PlatformErr != nil {
			line(r.t("report_platform_failed"), esc(v.PlatformErr))
		} else {
			line("%s", r.t("report_platform_ok"))
		}
	}
	if v.RegistryErr != nil {
		line(r.t("report_registry_failed"), esc(v.RegistryErr))
	}
	if v.QuarantineFor > 0 {
		line(r.t("report_quarantine_armed"), v.QuarantineFor)
	}
	line(r.t("report_date"), r.now().UTC().Format("2006-01-02 15:04:05"))
	return strings.TrimRight(b.String(), "\n")
}

func (r *Reporter) FormatReconcile(groupName string, rep registry.Report) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("%s", r.t("report_reconcile_title"))
	line(r.t("report_group"), html.EscapeString(groupName), rep.GroupID)
	if rep.Total() == 0 {
		line("%s", r.t("report_reconcile_empty"))
		return strings.TrimRight(b.String(), "\n")
	}

	line(r.t("report_reconcile_still_in"), len(rep.StillIn))
	for _, e := range rep.StillIn {
		line(r.t("report_reconcile_line"), e.Row.UserID, string(e.Status))
	}
	line(r.t("report_reconcile_not_in"), len(rep.NotIn))
	for _, e := range rep.NotIn {
		status := string(e.Status)
		if e.LookupErr != nil {
			status = fmt.Sprintf(r.t("report_reconcile_lookup"), esc(e.LookupErr))
		}
		line(r.t("report_reconcile_line"), e.Row.UserID, status)
	}
	for _, f := range rep.BanFailures {
		line(r.t("report_reconcile_ban_error"), f.UserID, esc(f.Err))
	}
	line(r.t("report_date"), r.now().UTC().Format("2006-01-02 15:04:05"))
	return strings.TrimRight(b.String(), "\n")
}

func (r *Reporter) FormatUnauthorized(u Unauthorized) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("%s", r.t("report_unauthorized_title"))
	line(r.t("report_group"), html.EscapeString(u.GroupName), u.GroupID)
	line(r.t("report_user"), u.User.GetLinkedUserName(), u.User.UserID, html.EscapeString(u.User.Handle()))
	line(r.t("report_command"), html.EscapeString(u.Command))
	switch {
	case u.DeleteErr != nil:
		line(r.t("report_deleted_failed"), esc(u.DeleteErr))
	case u.Deleted:
		line("%s", r.t("report_deleted_ok"))
	}
	switch {
	case u.MuteErr != nil:
		line(r.t("report_muted_failed"), esc(u.MuteErr))
	case u.Muted:
		line(r.t("report_muted_ok"), u.MuteFor)
	}
	line(r.t("report_date"), r.now().UTC().Format("2006-01-02 15:04:05"))
	return strings.TrimRight(b.String(), "\n")
}

// Violation sends the report and, when enabled, forwards the offending message
// so operators see the evidence. A forward fails once the message is deleted,
// so callers should report before deleting.
func (r *Reporter) Violation(ctx context.Context, v Violation) error {
	return r.deliver(ctx, "violation", v.GroupID, r.FormatViolation(v), v.MessageID)
}

func (r *Reporter) Reconcile(ctx context.Context, groupName string, rep registry.Report) error {
	return r.deliver(ctx, "reconcile", rep.GroupID, r.FormatReconcile(groupName, rep), 0)
}

func (r *Reporter) Unauthorized(ctx context.Context, u Unauthorized) error {
	return r.deliver(ctx, "unauthorized", u.GroupID, r.FormatUnauthorized(u), 0)
}

// Recipients are the configured report chats plus operators linked to the group.
func (r *Reporter) Recipients(ctx context.Context, groupID int64) []int64 {
	seen := make(map[int64]bool)
	var out []int64
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range r.chatIDs {
		add(id)
	}
	if r.links != nil {
		linked, err := r.links.LinkedOperators(ctx, groupID)
		if err != nil {
			logger.Warningf("Failed to load operator links of group %d: %v", groupID, err)
		}
		for _, id := range linked {
			add(id)
		}
	}
	return out
}

func (r *Reporter) deliver(ctx context.Context, kind string, groupID int64, text string, evidenceID int) error {
	var errs []error
	for _, chatID := range r.Recipients(ctx, groupID) {
		if err := r.sender.Send(ctx, chatID, text); err != nil {
			logger.Warningf("Failed to send %s report to %d: %v", kind, chatID, err)
			errs = append(errs, err)
			continue
		}
		if r.forward && evidenceID != 0 {
			if err := r.sender.ForwardMessage(ctx, chatID, groupID, evidenceID); err != nil {
				logger.Debugf("Failed to forward evidence %d to %d: %v", evidenceID, chatID, err)
			}
		}
	}
	if r.slack != nil {
		if err := r.slack.Send(ctx, text); err != nil {
			logger.Warningf("Failed to send %s report to slack: %v", kind, err)
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	reportsSent.WithLabelValues(kind, result).Inc()
	return err
}
