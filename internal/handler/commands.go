package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/service"
)

type section int

const (
	sectionGroups section = iota
	sectionUsers
	sectionRegistry
	sectionOperators
	sectionOther
)

var sectionKeys = map[section]string{
	sectionGroups:    "help_groups",
	sectionUsers:     "help_users",
	sectionRegistry:  "help_registry",
	sectionOperators: "help_operators",
}

type command struct {
	name    string
	usage   string
	section section
	run     func(h *Handler, ctx context.Context, in Inbound) (string, error)
}

// CommandInfo describes one operator command for the Telegram command menu.
type CommandInfo struct {
	Name    string
	DescKey string
}

var (
	commandTable   []command
	commandsByName map[string]*command
)

// filled in init: the help command reads the table it lives in
func init() {
	commandTable = []command{
		{"register", "/register [name] | /register <gid> [name]", sectionGroups, (*Handler).cmdRegister},
		{"unregister", "/unregister [gid]", sectionGroups, (*Handler).cmdUnregister},
		{"filter_on", "/filter_on [gid]", sectionGroups, (*Handler).cmdFilterOn},
		{"filter_off", "/filter_off [gid]", sectionGroups, (*Handler).cmdFilterOff},
		{"cmd_delete", "/cmd_delete <gid> on|off", sectionGroups, (*Handler).cmdCommandDeletion},
		{"cmd_mute", "/cmd_mute <gid> on|off", sectionGroups, (*Handler).cmdUnauthorizedMute},
		{"reconcile", "/reconcile [gid]", sectionGroups, (*Handler).cmdReconcile},

		{"bypass", "/bypass <uid>", sectionUsers, (*Handler).cmdBypass},
		{"unbypass", "/unbypass <uid>", sectionUsers, (*Handler).cmdUnbypass},
		{"bypassed", "/bypassed", sectionUsers, (*Handler).cmdBypassed},
		{"warnings", "/warnings <uid>", sectionUsers, (*Handler).cmdWarnings},
		{"set_warnings", "/set_warnings <uid> <n>", sectionUsers, (*Handler).cmdSetWarnings},
		{"mute", "/mute <gid> <uid> <duration>", sectionUsers, (*Handler).cmdMute},
		{"unmute", "/unmute <gid> <uid>", sectionUsers, (*Handler).cmdUnmute},

		{"remove", "/remove <gid> <uid> [reason]", sectionRegistry, (*Handler).cmdRemove},
		{"unremove", "/unremove <gid> <uid>", sectionRegistry, (*Handler).cmdUnremove},
		{"removed", "/removed [gid]", sectionRegistry, (*Handler).cmdRemoved},

		{"op_add", "/op_add <uid>", sectionOperators, (*Handler).cmdOpAdd},
		{"op_remove", "/op_remove <uid>", sectionOperators, (*Handler).cmdOpRemove},
		{"op_link", "/op_link <gid> <uid>", sectionOperators, (*Handler).cmdOpLink},
		{"op_unlink", "/op_unlink <gid> <uid>", sectionOperators, (*Handler).cmdOpUnlink},
		{"ops", "/ops", sectionOperators, (*Handler).cmdOps},

		{"status", "/status", sectionOther, (*Handler).cmdStatus},
		{"help", "/help", sectionOther, (*Handler).cmdHelp},
	}

	commandsByName = make(map[string]*command, len(commandTable)+1)
	for i := range commandTable {
		commandsByName[commandTable[i].name] = &commandTable[i]
	}
	commandsByName["start"] = commandsByName["help"]
}

// Commands lists the operator commands in menu order.
func Commands() []CommandInfo {
	out := make([]CommandInfo, 0, len(commandTable))
	for _, c := range commandTable {
		out = append(out, CommandInfo{Name: c.name, DescKey: "cmd_desc_" + c.name})
	}
	return out
}

// handleCommand checks the sender before running anything.
func (h *Handler) handleCommand(ctx context.Context, in Inbound) error {
	isOp, err := h.Service.IsOperator(ctx, in.From.UserID)
	if err != nil {
		return err
	}
	if !isOp {
		if in.Private {
			return h.reply(ctx, in, h.t("cmd_not_operator"))
		}
		return nil
	}
	return h.runCommand(ctx, in)
}

func (h *Handler) runCommand(ctx context.Context, in Inbound) error {
	if in.Addressee != "" && h.botUsername != "" && !strings.EqualFold(in.Addressee, h.botUsername) {
		return nil
	}
	cmd, ok := commandsByName[in.Command]
	if !ok {
		if in.Private {
			return h.reply(ctx, in, h.helpText())
		}
		return nil
	}

	logger.Infof("Operator %d ran /%s %v in %d", in.From.UserID, in.Command, in.Args, in.ChatID)
	text, err := cmd.run(h, ctx, in)
	if err != nil {
		text = h.errorText(cmd, err)
		if !errors.Is(err, errUsage) {
			logger.Warningf("/%s from %d: %v", in.Command, in.From.UserID, err)
		}
	}
	return h.reply(ctx, in, text)
}

func (h *Handler) reply(ctx context.Context, in Inbound, text string) error {
	if text == "" {
		return nil
	}
	return h.Client.Send(ctx, in.ChatID, text)
}

func (h *Handler) errorText(cmd *command, err error) string {
	var perr *service.PlatformError
	switch {
	case errors.Is(err, errUsage):
		return fmt.Sprintf(h.t("cmd_usage"), html.EscapeString(cmd.usage))
	case errors.As(err, &perr):
		return fmt.Sprintf(h.t("cmd_platform_partial"), html.EscapeString(perr.Err.Error()))
	case errors.Is(err, service.ErrValidation):
		return fmt.Sprintf(h.t("cmd_validation"), html.EscapeString(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		return fmt.Sprintf(h.t("cmd_not_found"), html.EscapeString(err.Error()))
	default:
		return fmt.Sprintf(h.t("cmd_error"), html.EscapeString(err.Error()))
	}
}

func (h *Handler) helpText() string {
	var b strings.Builder
	b.WriteString(h.t("help_title"))
	b.WriteString("\n")
	b.WriteString(h.t("help_description"))

	current := section(-1)
	for _, c := range commandTable {
		if c.section != current {
			current = c.section
			b.WriteString("\n\n")
			if key, ok := sectionKeys[c.section]; ok {
				b.WriteString("<b>" + h.t(key) + "</b>\n")
			}
		} else {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "<code>%s</code> %s", html.EscapeString(c.usage), h.t("cmd_desc_"+c.name))
	}
	b.WriteString("\n\n<i>")
	b.WriteString(h.t("help_note"))
	b.WriteString("</i>")
	return b.String()
}

func (h *Handler) onOff(v bool) string {
	if v {
		return h.t("on")
	}
	return h.t("off")
}

func (h *Handler) cmdHelp(_ context.Context, _ Inbound) (string, error) {
	return h.helpText(), nil
}

func (h *Handler) cmdStatus(_ context.Context, _ Inbound) (string, error) {
	return h.stats.Render(h.lang), nil
}

func (h *Handler) cmdRegister(ctx context.Context, in Inbound) (string, error) {
	groupID := in.ChatID
	args := in.Args
	if in.Private {
		if len(args) == 0 {
			return "", errUsage
		}
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		groupID, args = id, args[1:]
	}
	name := strings.Join(args, " ")
	if name == "" && !in.Private {
		name = in.ChatTitle
	}

	info, err := h.Service.RegisterGroup(ctx, groupID, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("group_registered"), info.GetEscapedGroupName()), nil
}

func (h *Handler) cmdUnregister(ctx context.Context, in Inbound) (string, error) {
	groupID, err := groupArg(in, in.Args, 0)
	if err != nil {
		return "", err
	}
	if err := h.Service.UnregisterGroup(ctx, groupID); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("group_unregistered"), groupID), nil
}

func (h *Handler) cmdFilterOn(ctx context.Context, in Inbound) (string, error) {
	groupID, err := groupArg(in, in.Args, 0)
	if err != nil {
		return "", err
	}
	if _, err := h.Service.EnableContentFilter(ctx, groupID); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("filter_on"), groupID), nil
}

func (h *Handler) cmdFilterOff(ctx context.Context, in Inbound) (string, error) {
	groupID, err := groupArg(in, in.Args, 0)
	if err != nil {
		return "", err
	}
	if _, err := h.Service.DisableContentFilter(ctx, groupID); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("filter_off"), groupID), nil
}

func (h *Handler) switchArgs(in Inbound) (int64, bool, error) {
	if len(in.Args) != 2 {
		return 0, false, errUsage
	}
	groupID, err := parseID(in.Args[0])
	if err != nil {
		return 0, false, err
	}
	on, err := parseSwitch(in.Args[1])
	return groupID, on, err
}

func (h *Handler) cmdCommandDeletion(ctx context.Context, in Inbound) (string, error) {
	groupID, on, err := h.switchArgs(in)
	if err != nil {
		return "", err
	}
	if _, err := h.Service.SetCommandDeletion(ctx, groupID, on); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("cmd_delete_set"), groupID, h.onOff(on)), nil
}

func (h *Handler) cmdUnauthorizedMute(ctx context.Context, in Inbound) (string, error) {
	groupID, on, err := h.switchArgs(in)
	if err != nil {
		return "", err
	}
	if _, err := h.Service.SetUnauthorizedMute(ctx, groupID, on); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("cmd_mute_set"), groupID, h.onOff(on)), nil
}

func (h *Handler) cmdReconcile(ctx context.Context, in Inbound) (string, error) {
	groupID, err := groupArg(in, in.Args, 0)
	if err != nil {
		return "", err
	}
	rep, err := h.Service.Reconcile(ctx, groupID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("reconcile_done"), groupID, len(rep.StillIn), len(rep.NotIn), len(rep.BanFailures)), nil
}

func (h *Handler) cmdBypass(ctx context.Context, in Inbound) (string, error) {
	userID, err := userArg(in.Args, 0)
	if err != nil {
		return "", err
	}
	if err := h.Service.AddBypass(ctx, userID, in.From.UserID); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("bypass_added"), userID), nil
}

func (h *Handler) cmdUnbypass(ctx context.Context, in Inbound) (string, error) {
	userID, err := userArg(in.Args, 0)
	if err != nil {
		return "", err
	}
	err = h.Service.RemoveBypass(ctx, userID)
	if errors.Is(err, service.ErrNotFound) {
		return fmt.Sprintf(h.t("bypass_missing"), userID), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("bypass_removed"), userID), nil
}

func (h *Handler) cmdBypassed(ctx context.Context, _ Inbound) (string, error) {
	entries, err := h.Service.ListBypass(ctx)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return h.t("bypass_empty"), nil
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	return h.userList(ctx, "bypass_list", ids), nil
}

// userList renders one line per user with whatever profile is known.
func (h *Handler) userList(ctx context.Context, titleKey string, ids []int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, h.t(titleKey), len(ids))
	for _, id := range ids {
		p := h.Service.Profile(ctx, id)
		b.WriteString("\n")
		fmt.Fprintf(&b, h.t("user_line"), id, html.EscapeString(p.FullName()+" "+p.Handle()))
	}
	return b.String()
}

const warningHistoryLines = 10

func (h *Handler) cmdWarnings(ctx context.Context, in Inbound) (string, error) {
	userID, err := userArg(in.Args, 0)
	if err != nil {
		return "", err
	}
	w, err := h.Service.WarningsOf(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, h.t("warnings_show"), userID, w.Count)
	if p := h.Service.Profile(ctx, userID); p.Username != "" || p.FirstName != "" {
		b.WriteString(" ")
		b.WriteString(html.EscapeString(p.Handle()))
	}
	history := w.History
	if len(history) > warningHistoryLines {
		history = history[len(history)-warningHistoryLines:]
	}
	for _, e := range history {
		b.WriteString("\n")
		fmt.Fprintf(&b, h.t("warnings_line"), e.WarningNumber, e.GroupID, e.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

func (h *Handler) cmdSetWarnings(ctx context.Context, in Inbound) (string, error) {
	userID, err := userArg(in.Args, 0)
	if err != nil {
		return "", err
	}
	if len(in.Args) < 2 {
		return "", errUsage
	}
	n, err := strconv.Atoi(in.Args[1])
	if err != nil {
		return "", errUsage
	}
	prev, err := h.Service.OverrideWarningCount(ctx, userID, n, in.From.UserID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("warnings_set"), userID, n, prev), nil
}

func (h *Handler) groupUserArgs(in Inbound) (int64, int64, error) {
	if len(in.Args) < 2 {
		return 0, 0, errUsage
	}
	groupID, err := parseID(in.Args[0])
	if err != nil {
		return 0, 0, err
	}
	userID, err := parseID(in.Args[1])
	return groupID, userID, err
}

func (h *Handler) cmdMute(ctx context.Context, in Inbound) (string, error) {
	groupID, userID, err := h.groupUserArgs(in)
	if err != nil {
		return "", err
	}
	if len(in.Args) < 3 {
		return "", errUsage
	}
	d, err := parseDuration(in.Args[2])
	if err != nil {
		return "", err
	}
	if err := h.Service.Mute(ctx, groupID, userID, d); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("mute_done"), userID, groupID, d), nil
}

func (h *Handler) cmdUnmute(ctx context.Context, in Inbound) (string, error) {
	groupID, userID, err := h.groupUserArgs(in)
	if err != nil {
		return "", err
	}
	if err := h.Service.Unmute(ctx, groupID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("unmute_done"), userID, groupID), nil
}

func (h *Handler) cmdRemove(ctx context.Context, in Inbound) (string, error) {
	groupID, userID, err := h.groupUserArgs(in)
	if err != nil {
		return "", err
	}
	reason := strings.Join(in.Args[2:], " ")
	if err := h.Service.RemoveUser(ctx, groupID, userID, reason); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("removed_added"), userID, groupID), nil
}

func (h *Handler) cmdUnremove(ctx context.Context, in Inbound) (string, error) {
	groupID, userID, err := h.groupUserArgs(in)
	if err != nil {
		return "", err
	}
	err = h.Service.UnremoveUser(ctx, groupID, userID)
	if errors.Is(err, service.ErrNotFound) {
		return fmt.Sprintf(h.t("removed_missing"), userID, groupID), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("removed_deleted"), userID, groupID), nil
}

const removedListLines = 50

func (h *Handler) cmdRemoved(ctx context.Context, in Inbound) (string, error) {
	var groupID int64
	if len(in.Args) > 0 || !in.Private {
		var err error
		if groupID, err = groupArg(in, in.Args, 0); err != nil {
			return "", err
		}
	}
	rows, err := h.Service.ListRemoved(ctx, groupID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return h.t("removed_empty"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, h.t("removed_title"), len(rows))
	for i, r := range rows {
		if i == removedListLines {
			b.WriteString("\n…")
			break
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, h.t("removed_line"), r.UserID, r.GroupID, r.RemovedAt.UTC().Format("2006-01-02"), html.EscapeString(r.Reason))
	}
	return b.String(), nil
}

func (h *Handler) cmdOpAdd(ctx context.Context, in Inbound) (string, error) {
	userID, err := userArg(in.Args, 0)
	if err != nil {
		return "", err
	}
	if err := h.Service.AddOperator(ctx, userID, in.From.UserID); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("op_added"), userID), nil
}

func (h *Handler) cmdOpRemove(ctx context.Context, in Inbound) (string, error) {
	userID, err := userArg(in.Args, 0)
	if err != nil {
		return "", err
	}
	err = h.Service.RemoveOperator(ctx, userID)
	if errors.Is(err, service.ErrNotFound) {
		return fmt.Sprintf(h.t("op_missing"), userID), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("op_removed"), userID), nil
}

func (h *Handler) cmdOpLink(ctx context.Context, in Inbound) (string, error) {
	groupID, userID, err := h.groupUserArgs(in)
	if err != nil {
		return "", err
	}
	if err := h.Service.LinkOperator(ctx, groupID, userID); err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("op_linked"), groupID, userID), nil
}

func (h *Handler) cmdOpUnlink(ctx context.Context, in Inbound) (string, error) {
	groupID, userID, err := h.groupUserArgs(in)
	if err != nil {
		return "", err
	}
	err = h.Service.UnlinkOperator(ctx, groupID, userID)
	if errors.Is(err, service.ErrNotFound) {
		return h.t("op_link_missing"), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(h.t("op_unlinked"), groupID, userID), nil
}

func (h *Handler) cmdOps(ctx context.Context, _ Inbound) (string, error) {
	ops, err := h.Service.ListOperators(ctx)
	if err != nil {
		return "", err
	}
	ids := make([]int64, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.UserID)
	}
	return h.userList(ctx, "ops_list", ids), nil
}
