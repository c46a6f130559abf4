package models

// Language constants
const (
	LangSimplifiedChinese = "zh_CN"
	LangEnglish           = "en"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations. Texts are sent with HTML parse mode.
var Translations = map[string]Translation{
	LangEnglish: {
		"help_title":       "<b>ScriptGuard</b>",
		"help_description": "Keeps registered groups in the agreed language and removes repeat offenders.",
		"help_groups":      "Groups:",
		"help_users":       "Users:",
		"help_registry":    "Removal registry:",
		"help_operators":   "Operators:",
		"help_note":        "Only operators can use these commands. Group arguments default to the current group.",

		"cmd_desc_register":     "Register this group",
		"cmd_desc_unregister":   "Unregister a group",
		"cmd_desc_bypass":       "Exempt a user from scanning",
		"cmd_desc_unbypass":     "Remove a scanning exemption",
		"cmd_desc_filter_on":    "Enable message deletion on violations",
		"cmd_desc_filter_off":   "Disable message deletion on violations",
		"cmd_desc_remove":       "Record a user as removed and ban",
		"cmd_desc_unremove":     "Delete a removal record",
		"cmd_desc_set_warnings": "Override a user's warning count",
		"cmd_desc_warnings":     "Show a user's warnings",
		"cmd_desc_reconcile":    "Audit removed users against membership",
		"cmd_desc_mute":         "Mute a user for a duration",
		"cmd_desc_unmute":       "Lift a mute",
		"cmd_desc_cmd_delete":   "Delete commands from non-operators",
		"cmd_desc_cmd_mute":     "Mute non-operators who send commands",
		"cmd_desc_removed":      "List removed users",
		"cmd_desc_op_add":       "Add an operator",
		"cmd_desc_op_remove":    "Remove an operator",
		"cmd_desc_op_link":      "Send a group's reports to an operator",
		"cmd_desc_op_unlink":    "Stop sending a group's reports to an operator",
		"cmd_desc_bypassed":     "List exempt users",
		"cmd_desc_ops":          "List operators",
		"cmd_desc_status":       "Show processing statistics",
		"cmd_desc_help":         "Show this help",

		"regulations_default": "<b>Communication Channels Regulation</b>\n\n" +
			"• The official language of the group is <b>ENGLISH ONLY</b>.\n" +
			"• Avoid side discussions.\n" +
			"• Send general requests to the group and tag the official.\n\n" +
			"Not complying with this regulation results in warnings and, eventually, removal from the group.",
		"notice_reason_1":   "1- Primary warning sent to you.",
		"notice_reason_2":   "2- Second warning sent to you.",
		"notice_reason_n":   "%d- Warning number %d. You may be removed from the group.",
		"notice_restricted": "You cannot send messages in %s until %s.",
		"notice_banned":     "You have been removed from %s.",

		"action_notice":   "notice",
		"action_restrict": "restricted for %s",
		"action_ban":      "ban",

		"report_violation_title":  "⚠️ <b>Violation Report</b>",
		"report_group":            "Group: %s (<code>%d</code>)",
		"report_user":             "User: %s (<code>%d</code>) %s",
		"report_count":            "Warnings: <code>%d</code>",
		"report_action":           "Action: %s",
		"report_source":           "Detected in: %s",
		"report_excerpt":          "Excerpt: <code>%s</code>",
		"report_notice_ok":        "✅ Notice delivered to user.",
		"report_notice_failed":    "⚠️ Notice not delivered: %s",
		"report_platform_ok":      "✅ Platform action succeeded.",
		"report_platform_failed":  "⚠️ Recorded, platform action may not have occurred: %s",
		"report_registry_failed":  "⚠️ Removal registry not updated: %s",
		"report_quarantine_armed": "🧹 Messages in this group are deleted for %s.",
		"report_date":             "Date: %s UTC",

		"report_reconcile_title":     "🔍 <b>Reconciliation Report</b>",
		"report_reconcile_still_in":  "Still in the group, ban re-issued (%d):",
		"report_reconcile_not_in":    "Not in the group (%d):",
		"report_reconcile_line":      "• <code>%d</code> %s",
		"report_reconcile_lookup":    "(lookup failed: %s)",
		"report_reconcile_ban_error": "⚠️ Ban failed for <code>%d</code>: %s",
		"report_reconcile_empty":     "No removed users recorded.",

		"report_unauthorized_title": "🚫 <b>Unauthorized Command</b>",
		"report_command":            "Command: <code>%s</code>",
		"report_deleted_ok":         "Message deleted.",
		"report_deleted_failed":     "⚠️ Delete failed: %s",
		"report_muted_ok":           "Muted for %s.",
		"report_muted_failed":       "⚠️ Mute failed: %s",

		"cmd_usage":            "Usage: %s",
		"cmd_not_operator":     "You are not allowed to use this command.",
		"cmd_validation":       "❌ Invalid arguments: %s",
		"cmd_not_found":        "❌ Not found: %s",
		"cmd_platform_partial": "⚠️ Recorded, but the Telegram action failed: %s",
		"cmd_error":            "❌ Failed: %s",
		"on":                   "on",
		"off":                  "off",

		"group_registered":   "✅ Group %s registered.",
		"group_unregistered": "✅ Group <code>%d</code> unregistered.",
		"bypass_added":       "✅ User <code>%d</code> is now exempt from scanning.",
		"bypass_removed":     "✅ User <code>%d</code> is scanned again.",
		"bypass_missing":     "ℹ️ User <code>%d</code> was not exempt.",
		"filter_on":          "✅ Violating messages in <code>%d</code> are deleted.",
		"filter_off":         "✅ Violating messages in <code>%d</code> are kept; warnings still apply.",
		"removed_added":      "✅ User <code>%d</code> recorded as removed from <code>%d</code>.",
		"removed_deleted":    "✅ Removal record of <code>%d</code> in <code>%d</code> deleted.",
		"removed_missing":    "ℹ️ No removal record for <code>%d</code> in <code>%d</code>.",
		"warnings_set":       "✅ Warnings of <code>%d</code> set to %d (was %d).",
		"warnings_show":      "User <code>%d</code> has %d warnings.",
		"warnings_line":      "#%d in <code>%d</code> at %s",
		"reconcile_done":     "Reconciled <code>%d</code>: %d still in, %d not in, %d ban failures.",
		"mute_done":          "✅ User <code>%d</code> muted in <code>%d</code> for %s.",
		"unmute_done":        "✅ User <code>%d</code> unmuted in <code>%d</code>.",
		"cmd_delete_set":     "✅ Command deletion in <code>%d</code>: %s.",
		"cmd_mute_set":       "✅ Unauthorized command mute in <code>%d</code>: %s.",
		"removed_title":      "Removed users (%d):",
		"removed_empty":      "No removed users recorded.",
		"removed_line":       "<code>%d</code> in <code>%d</code> since %s %s",
		"op_added":           "✅ User <code>%d</code> is an operator.",
		"op_removed":         "✅ User <code>%d</code> is no longer an operator.",
		"op_missing":         "ℹ️ User <code>%d</code> was not an operator.",
		"op_linked":          "✅ Reports of <code>%d</code> go to <code>%d</code>.",
		"op_unlinked":        "✅ Reports of <code>%d</code> no longer go to <code>%d</code>.",
		"op_link_missing":    "ℹ️ No such link.",
		"bypass_list":        "Exempt users (%d):",
		"bypass_empty":       "No exempt users.",
		"ops_list":           "Operators (%d):",
		"user_line":          "<code>%d</code> %s",

		"status_title":      "<b>Status</b>",
		"status_uptime":     "Uptime: %s",
		"status_messages":   "Messages: %d processed, %d violations, %d deleted",
		"status_scans":      "Attachment scans: %d running, %d done, %d failed",
		"status_avg":        "Average processing time: %s",
		"status_goroutines": "Goroutines: %d",
		"status_host":       "Host: CPU %.1f%%, memory %.1f%%",
	},
	LangSimplifiedChinese: {
		"help_title":       "<b>ScriptGuard</b>",
		"help_description": "保持已登记群组使用约定语言，并移除屡次违规的用户。",
		"help_groups":      "群组:",
		"help_users":       "用户:",
		"help_registry":    "移除记录:",
		"help_operators":   "管理员:",
		"help_note":        "只有管理员可以使用这些命令。群组参数默认为当前群组。",

		"cmd_desc_register":     "登记当前群组",
		"cmd_desc_unregister":   "取消登记群组",
		"cmd_desc_bypass":       "豁免用户扫描",
		"cmd_desc_unbypass":     "取消用户豁免",
		"cmd_desc_filter_on":    "违规时删除消息",
		"cmd_desc_filter_off":   "违规时保留消息",
		"cmd_desc_remove":       "记录移除并封禁用户",
		"cmd_desc_unremove":     "删除移除记录",
		"cmd_desc_set_warnings": "修改用户警告次数",
		"cmd_desc_warnings":     "查看用户警告",
		"cmd_desc_reconcile":    "核对移除记录与群成员",
		"cmd_desc_mute":         "禁言用户一段时间",
		"cmd_desc_unmute":       "解除禁言",
		"cmd_desc_cmd_delete":   "删除非管理员发送的命令",
		"cmd_desc_cmd_mute":     "禁言发送命令的非管理员",
		"cmd_desc_removed":      "列出已移除用户",
		"cmd_desc_op_add":       "添加管理员",
		"cmd_desc_op_remove":    "移除管理员",
		"cmd_desc_op_link":      "将群组报告发送给管理员",
		"cmd_desc_op_unlink":    "停止向管理员发送群组报告",
		"cmd_desc_bypassed":     "查看豁免用户",
		"cmd_desc_ops":          "查看管理员",
		"cmd_desc_status":       "查看处理统计",
		"cmd_desc_help":         "显示帮助信息",

		"regulations_default": "<b>群组沟通规定</b>\n\n" +
			"• 本群官方语言为<b>英语</b>。\n" +
			"• 请勿进行无关讨论。\n" +
			"• 一般问题请发到群内并提及负责人。\n\n" +
			"违反规定将收到警告，多次违规将被移出群组。",
		"notice_reason_1":   "1- 第一次警告。",
		"notice_reason_2":   "2- 第二次警告。",
		"notice_reason_n":   "%d- 第 %d 次警告，您可能会被移出群组。",
		"notice_restricted": "您在 %s 的发言权限已被限制至 %s。",
		"notice_banned":     "您已被移出 %s。",

		"action_notice":   "提醒",
		"action_restrict": "禁言 %s",
		"action_ban":      "封禁",

		"report_violation_title":  "⚠️ <b>违规报告</b>",
		"report_group":            "群组: %s (<code>%d</code>)",
		"report_user":             "用户: %s (<code>%d</code>) %s",
		"report_count":            "警告次数: <code>%d</code>",
		"report_action":           "处理: %s",
		"report_source":           "检测来源: %s",
		"report_excerpt":          "摘录: <code>%s</code>",
		"report_notice_ok":        "✅ 已私信通知用户。",
		"report_notice_failed":    "⚠️ 私信通知失败: %s",
		"report_platform_ok":      "✅ 平台操作成功。",
		"report_platform_failed":  "⚠️ 已记录，但平台操作可能未生效: %s",
		"report_registry_failed":  "⚠️ 移除记录未更新: %s",
		"report_quarantine_armed": "🧹 接下来 %s 内本群消息将被删除。",
		"report_date":             "时间: %s UTC",

		"report_reconcile_title":     "🔍 <b>核对报告</b>",
		"report_reconcile_still_in":  "仍在群内，已重新封禁 (%d):",
		"report_reconcile_not_in":    "不在群内 (%d):",
		"report_reconcile_line":      "• <code>%d</code> %s",
		"report_reconcile_lookup":    "(查询失败: %s)",
		"report_reconcile_ban_error": "⚠️ 封禁 <code>%d</code> 失败: %s",
		"report_reconcile_empty":     "没有移除记录。",

		"report_unauthorized_title": "🚫 <b>未授权命令</b>",
		"report_command":            "命令: <code>%s</code>",
		"report_deleted_ok":         "消息已删除。",
		"report_deleted_failed":     "⚠️ 删除失败: %s",
		"report_muted_ok":           "已禁言 %s。",
		"report_muted_failed":       "⚠️ 禁言失败: %s",

		"cmd_usage":            "用法: %s",
		"cmd_not_operator":     "您无权使用该命令。",
		"cmd_validation":       "❌ 参数错误: %s",
		"cmd_not_found":        "❌ 未找到: %s",
		"cmd_platform_partial": "⚠️ 已记录，但 Telegram 操作失败: %s",
		"cmd_error":            "❌ 失败: %s",
		"on":                   "开启",
		"off":                  "关闭",

		"group_registered":   "✅ 群组 %s 已登记。",
		"group_unregistered": "✅ 群组 <code>%d</code> 已取消登记。",
		"bypass_added":       "✅ 用户 <code>%d</code> 已豁免扫描。",
		"bypass_removed":     "✅ 用户 <code>%d</code> 已取消豁免。",
		"bypass_missing":     "ℹ️ 用户 <code>%d</code> 未被豁免。",
		"filter_on":          "✅ <code>%d</code> 的违规消息将被删除。",
		"filter_off":         "✅ <code>%d</code> 的违规消息将被保留，警告照常。",
		"removed_added":      "✅ 已记录用户 <code>%d</code> 被移出 <code>%d</code>。",
		"removed_deleted":    "✅ 已删除 <code>%d</code> 在 <code>%d</code> 的移除记录。",
		"removed_missing":    "ℹ️ <code>%d</code> 在 <code>%d</code> 没有移除记录。",
		"warnings_set":       "✅ <code>%d</code> 的警告次数已设为 %d（原为 %d）。",
		"warnings_show":      "用户 <code>%d</code> 有 %d 次警告。",
		"warnings_line":      "#%d 于 <code>%d</code> %s",
		"reconcile_done":     "已核对 <code>%d</code>: %d 仍在群内, %d 不在群内, %d 封禁失败。",
		"mute_done":          "✅ 用户 <code>%d</code> 在 <code>%d</code> 被禁言 %s。",
		"unmute_done":        "✅ 用户 <code>%d</code> 在 <code>%d</code> 已解除禁言。",
		"cmd_delete_set":     "✅ <code>%d</code> 删除命令: %s。",
		"cmd_mute_set":       "✅ <code>%d</code> 禁言命令发送者: %s。",
		"removed_title":      "已移除用户 (%d):",
		"removed_empty":      "没有移除记录。",
		"removed_line":       "<code>%d</code> 于 <code>%d</code> 自 %s %s",
		"op_added":           "✅ 用户 <code>%d</code> 已成为管理员。",
		"op_removed":         "✅ 用户 <code>%d</code> 不再是管理员。",
		"op_missing":         "ℹ️ 用户 <code>%d</code> 不是管理员。",
		"op_linked":          "✅ <code>%d</code> 的报告将发送给 <code>%d</code>。",
		"op_unlinked":        "✅ <code>%d</code> 的报告不再发送给 <code>%d</code>。",
		"op_link_missing":    "ℹ️ 没有该关联。",
		"bypass_list":        "豁免用户 (%d):",
		"bypass_empty":       "没有豁免用户。",
		"ops_list":           "管理员 (%d):",
		"user_line":          "<code>%d</code> %s",

		"status_title":      "<b>状态</b>",
		"status_uptime":     "运行时间: %s",
		"status_messages":   "消息: 已处理 %d, 违规 %d, 删除 %d",
		"status_scans":      "附件扫描: 进行中 %d, 完成 %d, 失败 %d",
		"status_avg":        "平均处理时间: %s",
		"status_goroutines": "协程数: %d",
		"status_host":       "主机: CPU %.1f%%, 内存 %.1f%%",
	},
}

// GetTranslation returns the correct translation for a given language code and key
func GetTranslation(lang, key string) string {
	if _, ok := Translations[lang]; !ok {
		lang = LangEnglish
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	// Fall back to English if key not found in specified language
	if translation, ok := Translations[LangEnglish][key]; ok {
		return translation
	}

	return key
}

// GetLanguageName returns the localized name of a language code
func GetLanguageName(langCode string) string {
	switch langCode {
	case LangSimplifiedChinese:
		return "简体中文"
	case LangEnglish:
		return "English"
	default:
		return langCode
	}
}
