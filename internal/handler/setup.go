package handler

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/platform"
)

// Register wires the handler into the bot's update loop.
func (h *Handler) Register(bh *th.BotHandler) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		return h.HandleMessage(ctx.Context(), FromTelego(message))
	})

	// an edit can smuggle forbidden text into a message that was clean
	bh.HandleEditedMessage(func(ctx *th.Context, message telego.Message) error {
		in := FromTelego(message)
		in.Edited = true
		return h.HandleMessage(ctx.Context(), in)
	})

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		return h.handleChatMember(ctx, update.ChatMember)
	}, th.AnyChatMember())
}

// handleChatMember bans registry members the moment they get back in.
func (h *Handler) handleChatMember(ctx *th.Context, upd *telego.ChatMemberUpdated) error {
	if upd == nil {
		return nil
	}
	if !platform.StatusFromTelego(upd.NewChatMember).InGroup() {
		return nil
	}
	user := upd.NewChatMember.MemberUser()
	if _, err := h.Service.BanIfRemoved(ctx.Context(), upd.Chat.ID, user.ID); err != nil {
		logger.Warningf("Rejoin check for %d in %d failed: %v", user.ID, upd.Chat.ID, err)
	}
	return nil
}
