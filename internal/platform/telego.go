package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-scriptguard/internal/logger"
)

// ErrFileTooLarge is returned by Download for files over the configured limit.
var ErrFileTooLarge = errors.New("file too large")

// TelegoClient implements Client on top of a telego bot.
type TelegoClient struct {
	bot         *telego.Bot
	http        *retryablehttp.Client
	maxFileSize int64
}

func NewTelegoClient(bot *telego.Bot, maxFileSize int64) *TelegoClient {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = 5 * time.Second
	hc.HTTPClient.Timeout = 60 * time.Second
	hc.Logger = nil

	return &TelegoClient{bot: bot, http: hc, maxFileSize: maxFileSize}
}

func (c *TelegoClient) Bot() *telego.Bot { return c.bot }

func (c *TelegoClient) SendDirect(ctx context.Context, userID int64, text string) error {
	return observe("send_direct", c.send(ctx, userID, text))
}

func (c *TelegoClient) Send(ctx context.Context, chatID int64, text string) error {
	return observe("send", c.send(ctx, chatID, text))
}

func (c *TelegoClient) send(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:             tu.ID(chatID),
		Text:               text,
		ParseMode:          telego.ModeHTML,
		LinkPreviewOptions: &telego.LinkPreviewOptions{IsDisabled: true},
	})
	if err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func (c *TelegoClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	err := c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	if err != nil {
		err = fmt.Errorf("delete message %d in %d: %w", messageID, chatID, err)
	}
	return observe("delete", err)
}

func (c *TelegoClient) Ban(ctx context.Context, groupID, userID int64) error {
	err := c.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: tu.ID(groupID),
		UserID: userID,
	})
	if err != nil {
		err = fmt.Errorf("ban %d in %d: %w", userID, groupID, err)
	} else {
		logger.Infof("Banned user %d in chat %d", userID, groupID)
	}
	return observe("ban", err)
}

func (c *TelegoClient) Unban(ctx context.Context, groupID, userID int64) error {
	err := c.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       tu.ID(groupID),
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		err = fmt.Errorf("unban %d in %d: %w", userID, groupID, err)
	}
	return observe("unban", err)
}

func (c *TelegoClient) Restrict(ctx context.Context, groupID, userID int64, perms Permissions, until time.Time) error {
	params := &telego.RestrictChatMemberParams{
		ChatID:                        tu.ID(groupID),
		UserID:                        userID,
		Permissions:                   toChatPermissions(perms),
		UseIndependentChatPermissions: true,
	}
	if !until.IsZero() {
		params.UntilDate = until.Unix()
	}

	err := c.bot.RestrictChatMember(ctx, params)
	if err != nil {
		err = fmt.Errorf("restrict %d in %d: %w", userID, groupID, err)
	} else {
		logger.Infof("Restricted user %d in chat %d until %s", userID, groupID, until.Format(time.RFC3339))
	}
	return observe("restrict", err)
}

func (c *TelegoClient) Unrestrict(ctx context.Context, groupID, userID int64) error {
	// lift to the group's defaults, not to "everything allowed"
	permissions := telego.ChatPermissions{}
	chatInfo, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(groupID)})
	if err == nil && chatInfo.Permissions != nil {
		permissions = *chatInfo.Permissions
	} else {
		permissions = toChatPermissions(Permissions{
			SendMessages: true, SendMedia: true, SendPolls: true, SendOther: true, AddWebPagePreviews: true,
		})
	}

	err = c.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
		ChatID:      tu.ID(groupID),
		UserID:      userID,
		Permissions: permissions,
	})
	if err != nil {
		err = fmt.Errorf("unrestrict %d in %d: %w", userID, groupID, err)
	} else {
		logger.Infof("Unrestricted user %d in chat %d", userID, groupID)
	}
	return observe("unrestrict", err)
}

func (c *TelegoClient) MemberStatus(ctx context.Context, groupID, userID int64) (MemberStatus, error) {
	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(groupID),
		UserID: userID,
	})
	if err != nil {
		return StatusUnknown, observe("member_status", fmt.Errorf("get member %d in %d: %w", userID, groupID, err))
	}
	observe("member_status", nil)

	return StatusFromTelego(member), nil
}

// StatusFromTelego maps a chat member onto MemberStatus.
func StatusFromTelego(member telego.ChatMember) MemberStatus {
	switch member.MemberStatus() {
	case telego.MemberStatusCreator:
		return StatusCreator
	case telego.MemberStatusAdministrator:
		return StatusAdministrator
	case telego.MemberStatusMember:
		return StatusMember
	case telego.MemberStatusRestricted:
		if r, ok := member.(*telego.ChatMemberRestricted); ok && !r.IsMember {
			return StatusLeft
		}
		return StatusRestricted
	case telego.MemberStatusLeft:
		return StatusLeft
	case telego.MemberStatusBanned:
		return StatusKicked
	default:
		return StatusUnknown
	}
}

func (c *TelegoClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, observe("download", fmt.Errorf("get file %s: %w", fileID, err))
	}
	if c.maxFileSize > 0 && file.FileSize > 0 && int64(file.FileSize) > c.maxFileSize {
		return nil, observe("download", fmt.Errorf("%s: %w", fileID, ErrFileTooLarge))
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return nil, observe("download", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, observe("download", fmt.Errorf("download %s: %w", fileID, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, observe("download", fmt.Errorf("download %s: unexpected status %s", fileID, resp.Status))
	}

	reader := io.Reader(resp.Body)
	if c.maxFileSize > 0 {
		reader = io.LimitReader(resp.Body, c.maxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, observe("download", fmt.Errorf("read %s: %w", fileID, err))
	}
	if c.maxFileSize > 0 && int64(len(data)) > c.maxFileSize {
		return nil, observe("download", fmt.Errorf("%s: %w", fileID, ErrFileTooLarge))
	}

	downloadBytes.Observe(float64(len(data)))
	return data, observe("download", nil)
}

func (c *TelegoClient) ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) error {
	_, err := c.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:     tu.ID(toChatID),
		FromChatID: tu.ID(fromChatID),
		MessageID:  messageID,
	})
	if err != nil {
		err = fmt.Errorf("forward %d from %d to %d: %w", messageID, fromChatID, toChatID, err)
	}
	return observe("forward", err)
}

func toChatPermissions(p Permissions) telego.ChatPermissions {
	return telego.ChatPermissions{
		CanSendMessages:       ptr(p.SendMessages),
		CanSendAudios:         ptr(p.SendMedia),
		CanSendDocuments:      ptr(p.SendMedia),
		CanSendPhotos:         ptr(p.SendMedia),
		CanSendVideos:         ptr(p.SendMedia),
		CanSendVideoNotes:     ptr(p.SendMedia),
		CanSendVoiceNotes:     ptr(p.SendMedia),
		CanSendPolls:          ptr(p.SendPolls),
		CanSendOtherMessages:  ptr(p.SendOther),
		CanAddWebPagePreviews: ptr(p.AddWebPagePreviews),
	}
}

func ptr(v bool) *bool { return &v }
