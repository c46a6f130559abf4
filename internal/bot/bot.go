// Package bot connects to Telegram and feeds updates to the handler, by long
// polling or through a webhook.
package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-scriptguard/internal/config"
	"tg-scriptguard/internal/handler"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
)

// allowedUpdates are the update kinds the bot subscribes to. chat_member has
// to be requested explicitly.
var allowedUpdates = []string{"message", "edited_message", "chat_member"}

type BotService struct {
	Bot      *telego.Bot
	Username string
	Handler  *th.BotHandler
}

func (b *BotService) Start() error {
	return b.Handler.Start()
}

func (b *BotService) Stop(ctx context.Context) error {
	return b.Handler.StopWithContext(ctx)
}

// NewBot creates the client and checks the token against getMe.
func NewBot(ctx context.Context, cfg *config.Config) (*telego.Bot, *telego.User, error) {
	if cfg.Bot.Token == "" {
		return nil, nil, fmt.Errorf("bot token is required")
	}
	var opts []telego.BotOption
	if logger.DebugEnabled() {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	bot, err := telego.NewBot(cfg.Bot.Token, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	me, err := bot.GetMe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", me.Username)
	return bot, me, nil
}

// Initialize registers the command menu and opens the update source the
// configuration asks for. server is nil in polling mode without metrics.
func Initialize(ctx context.Context, cfg *config.Config, bot *telego.Bot, me *telego.User) (*BotService, *Server, error) {
	setLocalizedCommands(ctx, bot)

	var (
		updates <-chan telego.Update
		server  *Server
		err     error
	)
	switch cfg.Bot.Mode {
	case "webhook":
		updates, server, err = SetupWebhook(ctx, bot, cfg)
	default:
		if err = bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
			return nil, nil, fmt.Errorf("failed to delete existing webhook: %w", err)
		}
		updates, err = bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
			Timeout:        30,
			AllowedUpdates: allowedUpdates,
		})
		if err == nil && cfg.Metrics.Enabled {
			server = NewServer(cfg.Metrics.Listen, "", "")
			server.HandleMetrics(cfg.Metrics.Path)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bot handler: %w", err)
	}
	return &BotService{Bot: bot, Username: me.Username, Handler: bh}, server, nil
}

// setLocalizedCommands publishes the operator command menu per language.
func setLocalizedCommands(ctx context.Context, bot *telego.Bot) {
	langCodes := map[string]string{
		models.LangEnglish:           "en",
		models.LangSimplifiedChinese: "zh",
	}

	menu := func(lang string) []telego.BotCommand {
		var commands []telego.BotCommand
		for _, cmd := range handler.Commands() {
			commands = append(commands, telego.BotCommand{
				Command:     cmd.Name,
				Description: models.GetTranslation(lang, cmd.DescKey),
			})
		}
		return commands
	}

	for lang, telegramLang := range langCodes {
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     menu(lang),
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %s: %v", lang, err)
		}
	}

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: menu(models.LangEnglish)}); err != nil {
		logger.Warningf("Failed to set default bot commands: %v", err)
	}
}
