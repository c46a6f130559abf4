// Package handler routes Telegram updates into the enforcement pipeline and
// the operator commands.
package handler

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"tg-scriptguard/internal/crash"
	"tg-scriptguard/internal/enforcer"
	"tg-scriptguard/internal/logger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/platform"
	"tg-scriptguard/internal/quarantine"
	"tg-scriptguard/internal/scanner"
	"tg-scriptguard/internal/service"
)

const (
	defaultMaxScans = 8
	scanTimeout     = 2 * time.Minute
	excerptRunes    = 64

	enforcedCacheSize = 4096
	enforcedCacheTTL  = 48 * time.Hour
)

type messageKey struct {
	chatID    int64
	messageID int
}

type Deps struct {
	Service    *service.Service
	Enforcer   *enforcer.Enforcer
	Scanner    *scanner.Scanner
	Quarantine *quarantine.Scheduler
	Client     platform.Client
}

type Options struct {
	Language string
	// BotUsername filters "/cmd@otherbot" out of operator commands.
	BotUsername string
	MaxScans    int
}

type Handler struct {
	Deps
	lang        string
	botUsername string

	scanSlots chan struct{}
	wg        sync.WaitGroup
	stats     *Stats

	// enforced keeps edits of an already punished message from counting again
	enforced *expirable.LRU[messageKey, struct{}]
}

func New(deps Deps, opts Options) *Handler {
	if opts.MaxScans <= 0 {
		opts.MaxScans = defaultMaxScans
	}
	return &Handler{
		Deps:        deps,
		lang:        opts.Language,
		botUsername: opts.BotUsername,
		scanSlots:   make(chan struct{}, opts.MaxScans),
		stats:       NewStats(),
		enforced:    expirable.NewLRU[messageKey, struct{}](enforcedCacheSize, nil, enforcedCacheTTL),
	}
}

func (h *Handler) Stats() *Stats { return h.stats }

// WaitForHandlers blocks until running attachment scans finish or timeout passes.
func (h *Handler) WaitForHandlers(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// HandleMessage is the entry point for every message the bot receives.
func (h *Handler) HandleMessage(ctx context.Context, in Inbound) error {
	if in.From.UserID == 0 || in.FromBot {
		return nil
	}
	if err := h.Service.RefreshProfile(ctx, in.From); err != nil {
		logger.Warningf("%v", err)
	}

	if in.Private {
		if in.IsCommand() && !in.Edited {
			return h.handleCommand(ctx, in)
		}
		return nil
	}
	return h.handleGroupMessage(ctx, in)
}

func (h *Handler) handleGroupMessage(ctx context.Context, in Inbound) error {
	h.stats.messages.Add(1)

	// quarantine wins over everything, commands from operators included
	active, err := h.Quarantine.IsActive(ctx, in.ChatID)
	if err != nil {
		logger.Warningf("Quarantine check for %d failed: %v", in.ChatID, err)
	} else if active {
		h.deleteMessage(ctx, in, "quarantine")
		return nil
	}

	// edited commands are only scanned, never run or guarded twice
	if in.IsCommand() && !in.Edited {
		consumed, err := h.handleGroupCommand(ctx, &in)
		if consumed || err != nil {
			return err
		}
	}

	if _, ok, err := h.Service.GetGroupInfo(ctx, in.ChatID); err != nil || !ok {
		if err != nil {
			logger.Warningf("Group lookup for %d failed: %v", in.ChatID, err)
		}
		messagesTotal.WithLabelValues("unregistered").Inc()
		return nil
	}

	if in.Edited && h.enforced.Contains(messageKey{in.ChatID, in.MessageID}) {
		messagesTotal.WithLabelValues("edit_skipped").Inc()
		return nil
	}

	bypassed, err := h.Service.IsBypassed(ctx, in.From.UserID)
	if err != nil {
		// the enforcer checks again before anything is recorded
		logger.Warningf("%v", err)
	} else if bypassed {
		messagesTotal.WithLabelValues("bypassed").Inc()
		return nil
	}

	if !in.Envelope.HasAttachment() {
		start := time.Now()
		res := h.Scanner.Scan(ctx, in.Envelope)
		err := h.enforce(ctx, in, res)
		h.stats.observe(time.Since(start))
		return err
	}

	h.scanAsync(in)
	return nil
}

// scanAsync runs an attachment scan off the update goroutine, bounded by scanSlots.
func (h *Handler) scanAsync(in Inbound) {
	received := time.Now()
	crash.TrackedGoroutine(&h.wg, "attachment-scan", func() {
		h.scanSlots <- struct{}{}
		defer func() { <-h.scanSlots }()

		h.stats.scanStarted()
		failed := true
		defer func() { h.stats.scanFinished(failed) }()

		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()

		res := h.Scanner.Scan(ctx, in.Envelope)
		if err := h.enforce(ctx, in, res); err != nil {
			logger.Errorf("Enforcement after scan of message %d in %d failed: %v", in.MessageID, in.ChatID, err)
			return
		}
		failed = false
		h.stats.observe(time.Since(received))
	})
}

// enforce acts on a scan result. Group flags are read again here because an
// attachment scan may finish long after the message arrived.
func (h *Handler) enforce(ctx context.Context, in Inbound, res scanner.Result) error {
	if !res.Violating {
		messagesTotal.WithLabelValues("clean").Inc()
		return nil
	}

	info, ok, err := h.Service.GetGroupInfo(ctx, in.ChatID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Infof("Group %d unregistered while scanning message %d, skipping", in.ChatID, in.MessageID)
		return nil
	}

	out, err := h.Enforcer.OnViolation(ctx, enforcer.Violation{
		GroupID:   in.ChatID,
		GroupName: info.DisplayName(),
		User:      in.From,
		MessageID: in.MessageID,
		Source:    string(res.Source),
		Excerpt:   h.Scanner.Detector().Excerpt(res.Text, excerptRunes),
	})
	if err != nil {
		return err
	}
	if out.Bypassed {
		messagesTotal.WithLabelValues("bypassed").Inc()
		return nil
	}

	h.enforced.Add(messageKey{in.ChatID, in.MessageID}, struct{}{})
	h.stats.violations.Add(1)
	messagesTotal.WithLabelValues("violation").Inc()
	if info.ContentFilterEnabled && !in.deleted {
		h.deleteMessage(ctx, in, "content_filter")
	}
	return nil
}

func (h *Handler) deleteMessage(ctx context.Context, in Inbound, why string) {
	if err := h.Client.DeleteMessage(ctx, in.ChatID, in.MessageID); err != nil {
		logger.Warningf("Failed to delete message %d in %d (%s): %v", in.MessageID, in.ChatID, why, err)
		return
	}
	h.stats.deleted.Add(1)
	messagesTotal.WithLabelValues(why).Inc()
}

// handleGroupCommand runs operator commands and sends everyone else's
// commands through the guard. consumed is false when the message still has
// to go through the content scan.
func (h *Handler) handleGroupCommand(ctx context.Context, in *Inbound) (consumed bool, err error) {
	isOp, err := h.Service.IsOperator(ctx, in.From.UserID)
	if err != nil {
		logger.Warningf("%v", err)
	}
	if isOp {
		return true, h.runCommand(ctx, *in)
	}

	info, ok, err := h.Service.GetGroupInfo(ctx, in.ChatID)
	if err != nil || !ok {
		return false, err
	}

	status, err := h.Client.MemberStatus(ctx, in.ChatID, in.From.UserID)
	if err != nil {
		// an admin must never be muted on a failed lookup
		logger.Warningf("Cannot check privileges of %d in %d, leaving command alone: %v", in.From.UserID, in.ChatID, err)
		return false, nil
	}
	if status.Privileged() {
		return false, nil
	}

	out := h.Enforcer.OnUnauthorizedCommand(ctx, enforcer.CommandEvent{
		GroupID:       in.ChatID,
		GroupName:     info.DisplayName(),
		User:          in.From,
		MessageID:     in.MessageID,
		Command:       "/" + in.Command,
		DeleteEnabled: info.CommandDeletionEnabled,
		MuteEnabled:   info.UnauthorizedMuteEnabled,
	})
	if out.Deleted {
		h.stats.deleted.Add(1)
		in.deleted = true
	}
	return false, nil
}

func (h *Handler) t(key string) string {
	return models.GetTranslation(h.lang, key)
}
