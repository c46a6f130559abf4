package handler

import (
	"strings"

	"github.com/mymmrac/telego"

	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/scanner"
)

// Inbound is the part of a Telegram message the pipeline looks at.
type Inbound struct {
	ChatID    int64
	ChatTitle string
	Private   bool
	MessageID int
	From      models.UserProfile
	FromBot   bool
	// Edited marks an edited_message update.
	Edited bool

	// Command is the lowercase command name without slash or @mention.
	Command string
	// Addressee is the @bot part of "/cmd@bot", if any.
	Addressee string
	Args      []string

	Envelope scanner.Envelope

	// deleted is set once the guard removed the message.
	deleted bool
}

func (in Inbound) IsCommand() bool { return in.Command != "" }

// FromTelego normalizes a message. Messages without a sender come back with a zero From.
func FromTelego(msg telego.Message) Inbound {
	in := Inbound{
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		Private:   msg.Chat.Type == telego.ChatTypePrivate,
		MessageID: msg.MessageID,
		Envelope: scanner.Envelope{
			Text:    msg.Text,
			Caption: msg.Caption,
		},
	}
	if msg.From != nil {
		in.From = models.UserProfile{
			UserID:    msg.From.ID,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
			Username:  msg.From.Username,
		}
		in.FromBot = msg.From.IsBot
	}
	if msg.Document != nil {
		in.Envelope.Document = &scanner.Attachment{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			FileSize: int64(msg.Document.FileSize),
		}
	}
	for _, p := range msg.Photo {
		in.Envelope.Photos = append(in.Envelope.Photos, scanner.Attachment{
			FileID:   p.FileID,
			FileSize: int64(p.FileSize),
			Width:    p.Width,
			Height:   p.Height,
		})
	}
	// "/" alone is not enough: Telegram marks real commands with an entity
	if startsWithCommand(msg.Entities) {
		in.Command, in.Addressee, in.Args = parseCommand(msg.Text)
	}
	return in
}

func startsWithCommand(entities []telego.MessageEntity) bool {
	for _, e := range entities {
		if e.Type == telego.EntityTypeBotCommand && e.Offset == 0 {
			return true
		}
	}
	return false
}

func validCommandName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// parseCommand splits "/Cmd@bot a b" into ("cmd", "bot", [a b]).
func parseCommand(text string) (string, string, []string) {
	if !strings.HasPrefix(text, "/") {
		return "", "", nil
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	addressee := ""
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name, addressee = name[:i], name[i+1:]
	}
	if !validCommandName(name) {
		return "", "", nil
	}
	return strings.ToLower(name), addressee, fields[1:]
}
