package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-scriptguard/internal/enforcer"
	"tg-scriptguard/internal/ledger"
	"tg-scriptguard/internal/models"
	"tg-scriptguard/internal/platform"
	"tg-scriptguard/internal/platform/platformtest"
	"tg-scriptguard/internal/policy"
	"tg-scriptguard/internal/quarantine"
	"tg-scriptguard/internal/registry"
	"tg-scriptguard/internal/report"
	"tg-scriptguard/internal/scanner"
	"tg-scriptguard/internal/service"
	"tg-scriptguard/internal/storage"
)

const (
	group    = int64(-100500)
	admin    = int64(7)
	member   = int64(55)
	outsider = int64(66)
	arabic   = "مرحبا بالجميع"
)

// echoExtractor returns the downloaded file as its text.
type echoExtractor struct {
	mu    sync.Mutex
	calls int
}

func (e *echoExtractor) Name() string { return "pdf" }

func (e *echoExtractor) Extract(_ context.Context, fs afero.Fs, path string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	data, err := afero.ReadFile(fs, path)
	return string(data), err
}

type fixture struct {
	h     *Handler
	svc   *service.Service
	fake  *platformtest.Fake
	sched *quarantine.Scheduler
	pdf   *echoExtractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	fake := platformtest.New()
	users := storage.NewUserRepository(db)
	operators := storage.NewOperatorRepository(db)
	led := ledger.New(storage.NewWarningRepository(db))
	reg := registry.New(storage.NewRemovalRepository(db))
	rep := report.New(report.Options{Sender: fake, Links: operators, ChatIDs: []int64{900}, Language: models.LangEnglish})
	sched := quarantine.NewScheduler(quarantine.NewMemStore(0))
	t.Cleanup(sched.Close)

	enf := enforcer.New(enforcer.Deps{
		Bypass:     users,
		Ledger:     led,
		Policy:     policy.Default(),
		Client:     fake,
		Registry:   reg,
		Quarantine: sched,
		Reporter:   rep,
	}, enforcer.Config{QuarantineDuration: 15 * time.Second, UnauthorizedMuteDuration: time.Hour})

	svc := service.New(service.Deps{
		Groups:     storage.NewGroupRepository(db),
		Users:      users,
		Operators:  operators,
		Ledger:     led,
		Registry:   reg,
		Reconciler: registry.NewReconciler(reg, fake, fake),
		Enforcer:   enf,
		Reporter:   rep,
		Client:     fake,
		AdminIDs:   []int64{admin},
	})
	t.Cleanup(svc.Close)

	det, err := scanner.NewDetector([]string{"0600-06FF"})
	require.NoError(t, err)
	pdf := &echoExtractor{}
	sc := scanner.New(scanner.Options{
		Detector:    det,
		Downloader:  fake,
		PDF:         pdf,
		Fs:          afero.NewMemMapFs(),
		TempDir:     "/scan",
		MaxFileSize: 1 << 20,
	})

	h := New(Deps{
		Service:    svc,
		Enforcer:   enf,
		Scanner:    sc,
		Quarantine: sched,
		Client:     fake,
	}, Options{Language: models.LangEnglish, BotUsername: "guardbot", MaxScans: 2})

	return &fixture{h: h, svc: svc, fake: fake, sched: sched, pdf: pdf}
}

func (f *fixture) register(t *testing.T, filter bool) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.RegisterGroup(ctx, group, "Physics")
	require.NoError(t, err)
	if filter {
		_, err = f.svc.EnableContentFilter(ctx, group)
		require.NoError(t, err)
	}
	f.fake.Reset()
}

func groupMsg(from int64, id int, text string) Inbound {
	in := Inbound{
		ChatID:    group,
		ChatTitle: "Physics",
		MessageID: id,
		From:      models.UserProfile{UserID: from, FirstName: "U"},
		Envelope:  scanner.Envelope{Text: text},
	}
	in.Command, in.Addressee, in.Args = parseCommand(text)
	return in
}

func privateMsg(from int64, text string) Inbound {
	in := groupMsg(from, 1, text)
	in.ChatID = from
	in.Private = true
	return in
}

func deleted(f *platformtest.Fake) []int {
	var ids []int
	for _, c := range f.Calls("delete") {
		ids = append(ids, c.Message)
	}
	return ids
}

func TestViolationDeletesOnlyWithFilter(t *testing.T) {
	ctx := context.Background()

	t.Run("filter on", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, true)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 10, arabic)))
		assert.Equal(t, []int{10}, deleted(f.fake))

		w, err := f.svc.WarningsOf(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
	})

	t.Run("filter off still warns", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, false)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 11, arabic)))
		assert.Empty(t, deleted(f.fake))

		w, err := f.svc.WarningsOf(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
	})

	t.Run("clean text", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, true)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 12, "hello everyone")))
		assert.Empty(t, f.fake.Calls(""))
	})
}

func TestUnregisteredGroupIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.h.HandleMessage(context.Background(), groupMsg(member, 10, arabic)))
	assert.Empty(t, f.fake.Calls("delete"))
	assert.Empty(t, f.fake.Calls("send_direct"))
}

func TestBypassedUserUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, true)
	require.NoError(t, f.svc.AddBypass(ctx, member, admin))

	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 10, arabic)))
	assert.Empty(t, deleted(f.fake))
	w, err := f.svc.WarningsOf(ctx, member)
	require.NoError(t, err)
	assert.Zero(t, w.Count)

	f.fake.PutFile("doc-b", []byte(arabic))
	in := groupMsg(member, 11, "")
	in.Envelope.Document = &scanner.Attachment{FileID: "doc-b", FileName: "a.pdf", MimeType: "application/pdf", FileSize: 64}
	require.NoError(t, f.h.HandleMessage(ctx, in))
	require.True(t, f.h.WaitForHandlers(5*time.Second))
	assert.Empty(t, f.fake.Calls("download"))
	assert.Zero(t, f.pdf.calls)
	assert.Empty(t, deleted(f.fake))
}

func TestBotsAndAnonymousSkipped(t *testing.T) {
	f := newFixture(t)
	f.register(t, true)

	bot := groupMsg(member, 10, arabic)
	bot.FromBot = true
	require.NoError(t, f.h.HandleMessage(context.Background(), bot))
	require.NoError(t, f.h.HandleMessage(context.Background(), groupMsg(0, 11, arabic)))
	assert.Empty(t, f.fake.Calls(""))
}

func TestQuarantineDeletesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, false)
	_, err := f.sched.Arm(ctx, group, time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 20, "perfectly fine")))
	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(admin, 21, "/status")))
	assert.Equal(t, []int{20, 21}, deleted(f.fake))
	assert.Empty(t, f.fake.Calls("send"))
}

func TestThirdViolationBansAndQuarantines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 30+i, arabic)))
	}
	bans := f.fake.Calls("ban")
	require.Len(t, bans, 1)
	assert.Equal(t, member, bans[0].UserID)

	active, err := f.sched.IsActive(ctx, group)
	require.NoError(t, err)
	assert.True(t, active)

	f.fake.Reset()
	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(outsider, 40, "hi")))
	assert.Equal(t, []int{40}, deleted(f.fake))
}

func TestCommandGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, false)
	_, err := f.svc.SetCommandDeletion(ctx, group, true)
	require.NoError(t, err)
	_, err = f.svc.SetUnauthorizedMute(ctx, group, true)
	require.NoError(t, err)
	f.fake.Reset()

	t.Run("plain member", func(t *testing.T) {
		f.fake.SetStatus(group, member, platform.StatusMember)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 50, "/start@somebot")))
		assert.Equal(t, []int{50}, deleted(f.fake))
		restricts := f.fake.Calls("restrict")
		require.Len(t, restricts, 1)
		assert.Equal(t, member, restricts[0].UserID)
		f.fake.Reset()
	})

	t.Run("group admin", func(t *testing.T) {
		f.fake.SetStatus(group, outsider, platform.StatusAdministrator)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(outsider, 51, "/ban")))
		assert.Empty(t, f.fake.Calls("delete"))
		assert.Empty(t, f.fake.Calls("restrict"))
		f.fake.Reset()
	})

	t.Run("failed lookup", func(t *testing.T) {
		f.fake.FailLookup(group, 77, errors.New("timeout"))
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(77, 52, "/help")))
		assert.Empty(t, f.fake.Calls("delete"))
		assert.Empty(t, f.fake.Calls("restrict"))
		f.fake.Reset()
	})

	t.Run("toggles off", func(t *testing.T) {
		_, err := f.svc.SetCommandDeletion(ctx, group, false)
		require.NoError(t, err)
		_, err = f.svc.SetUnauthorizedMute(ctx, group, false)
		require.NoError(t, err)
		f.fake.Reset()

		f.fake.SetStatus(group, member, platform.StatusMember)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 53, "/start")))
		assert.Empty(t, f.fake.Calls("delete"))
		assert.Empty(t, f.fake.Calls("restrict"))
		assert.Empty(t, f.fake.Calls("send"))
	})
}

func TestSlashPrefixedTextIsScanned(t *testing.T) {
	ctx := context.Background()

	t.Run("guard off", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, true)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 60, "/"+arabic)))
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 61, "/x "+arabic)))

		w, err := f.svc.WarningsOf(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, 2, w.Count)
		assert.Equal(t, []int{60, 61}, deleted(f.fake))
	})

	t.Run("guard deletes once", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, true)
		_, err := f.svc.SetCommandDeletion(ctx, group, true)
		require.NoError(t, err)
		f.fake.Reset()

		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 62, "/x "+arabic)))
		w, err := f.svc.WarningsOf(ctx, member)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
		assert.Equal(t, []int{62}, deleted(f.fake))
	})

	t.Run("operator command", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, true)
		require.NoError(t, f.h.HandleMessage(ctx, groupMsg(admin, 63, "/warnings 55 "+arabic)))
		w, err := f.svc.WarningsOf(ctx, admin)
		require.NoError(t, err)
		assert.Zero(t, w.Count)
		assert.Empty(t, deleted(f.fake))
	})
}

func TestEditsOfEnforcedMessageCountOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, false)

	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 80, arabic)))
	for i := 0; i < 3; i++ {
		edit := groupMsg(member, 80, arabic+strings.Repeat("!", i+1))
		edit.Edited = true
		require.NoError(t, f.h.HandleMessage(ctx, edit))
	}
	w, err := f.svc.WarningsOf(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count)

	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(member, 81, "fine")))
	edit := groupMsg(member, 81, arabic)
	edit.Edited = true
	require.NoError(t, f.h.HandleMessage(ctx, edit))
	w, err = f.svc.WarningsOf(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Count)
}

func TestFromTelegoNeedsCommandEntity(t *testing.T) {
	msg := telego.Message{
		MessageID: 5,
		Chat:      telego.Chat{ID: group, Type: telego.ChatTypeSupergroup, Title: "Physics"},
		From:      &telego.User{ID: member, FirstName: "U"},
		Text:      "/x " + arabic,
	}
	in := FromTelego(msg)
	assert.False(t, in.IsCommand())
	assert.Equal(t, msg.Text, in.Envelope.Text)

	msg.Entities = []telego.MessageEntity{{Type: telego.EntityTypeBotCommand, Offset: 0, Length: 2}}
	in = FromTelego(msg)
	assert.Equal(t, "x", in.Command)
	assert.Equal(t, []string{"مرحبا", "بالجميع"}, in.Args)

	msg.Entities = []telego.MessageEntity{{Type: telego.EntityTypeBotCommand, Offset: 3, Length: 2}}
	assert.False(t, FromTelego(msg).IsCommand())
}

func TestOperatorCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/register -100500 Physics")))
	info, ok, err := f.svc.GetGroupInfo(ctx, group)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Physics", info.GroupName)

	sends := f.fake.Calls("send")
	require.NotEmpty(t, sends)
	assert.Contains(t, sends[len(sends)-1].Text, "Physics")
	f.fake.Reset()

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/mute -100500")))
	sends = f.fake.Calls("send")
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].Text, "/mute &lt;gid&gt; &lt;uid&gt; &lt;duration&gt;")
	f.fake.Reset()

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/mute -100500 55 2d")))
	restricts := f.fake.Calls("restrict")
	require.Len(t, restricts, 1)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), restricts[0].Until, time.Minute)
	f.fake.Reset()

	// operator commands in the group go to the group chat
	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(admin, 60, "/filter_on")))
	info, _, err = f.svc.GetGroupInfo(ctx, group)
	require.NoError(t, err)
	assert.True(t, info.ContentFilterEnabled)
	sends = f.fake.Calls("send")
	require.Len(t, sends, 1)
	assert.Equal(t, group, sends[0].ChatID)
	assert.Empty(t, f.fake.Calls("delete"))
	f.fake.Reset()

	// addressed to another bot
	require.NoError(t, f.h.HandleMessage(ctx, groupMsg(admin, 61, "/filter_off@otherbot")))
	info, _, err = f.svc.GetGroupInfo(ctx, group)
	require.NoError(t, err)
	assert.True(t, info.ContentFilterEnabled)
	assert.Empty(t, f.fake.Calls(""))
}

func TestRemoveAndUnremoveCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, false)

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/remove -100500 55 spam links")))
	require.Len(t, f.fake.Calls("ban"), 1)
	rows, err := f.svc.ListRemoved(ctx, group)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "spam links", rows[0].Reason)
	f.fake.Reset()

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/unremove -100500 55")))
	assert.Len(t, f.fake.Calls("unban"), 1)
	f.fake.Reset()

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/unremove -100500 55")))
	assert.Empty(t, f.fake.Calls("unban"))
	sends := f.fake.Calls("send")
	require.Len(t, sends, 1)
	assert.Equal(t, fmt.Sprintf(models.GetTranslation(models.LangEnglish, "removed_missing"), member, group), sends[0].Text)
}

func TestNonOperatorInPrivate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.h.HandleMessage(context.Background(), privateMsg(member, "/register -100500")))
	sends := f.fake.Calls("send")
	require.Len(t, sends, 1)
	assert.Equal(t, models.GetTranslation(models.LangEnglish, "cmd_not_operator"), sends[0].Text)

	_, ok, err := f.svc.GetGroupInfo(context.Background(), group)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrivateChatterIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.h.HandleMessage(context.Background(), privateMsg(member, arabic)))
	assert.Empty(t, f.fake.Calls(""))
}

func TestAttachmentScannedAsync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, true)
	f.fake.PutFile("doc-1", []byte(arabic))

	in := groupMsg(member, 70, "")
	in.Envelope.Caption = "see attached"
	in.Envelope.Document = &scanner.Attachment{FileID: "doc-1", FileName: "notes.pdf", MimeType: "application/pdf", FileSize: 64}
	require.NoError(t, f.h.HandleMessage(ctx, in))

	require.True(t, f.h.WaitForHandlers(5*time.Second))
	assert.Equal(t, 1, f.pdf.calls)
	assert.Equal(t, []int{70}, deleted(f.fake))
	assert.EqualValues(t, 1, f.h.Stats().scansDone.Load())
	assert.Zero(t, f.h.Stats().scansRunning.Load())
}

func TestAttachmentScanAfterUnregister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, true)
	f.fake.PutFile("doc-2", []byte(arabic))

	in := groupMsg(member, 71, "")
	in.Envelope.Document = &scanner.Attachment{FileID: "doc-2", FileName: "a.pdf", FileSize: 64}

	// hold every scan slot so the scan cannot start before the group is gone
	f.h.scanSlots <- struct{}{}
	f.h.scanSlots <- struct{}{}
	require.NoError(t, f.h.HandleMessage(ctx, in))
	require.NoError(t, f.svc.UnregisterGroup(ctx, group))
	<-f.h.scanSlots
	<-f.h.scanSlots

	require.True(t, f.h.WaitForHandlers(5*time.Second))
	assert.Empty(t, deleted(f.fake))
	w, err := f.svc.WarningsOf(ctx, member)
	require.NoError(t, err)
	assert.Zero(t, w.Count)
}

func TestParseCommand(t *testing.T) {
	name, to, args := parseCommand("/Mute@GuardBot -100 55  1h")
	assert.Equal(t, "mute", name)
	assert.Equal(t, "GuardBot", to)
	assert.Equal(t, []string{"-100", "55", "1h"}, args)

	name, _, _ = parseCommand("hello /mute")
	assert.Empty(t, name)
	name, _, _ = parseCommand("/ alone")
	assert.Empty(t, name)
	name, _, _ = parseCommand("/" + arabic)
	assert.Empty(t, name)
	name, _, _ = parseCommand("/ban-all")
	assert.Empty(t, name)
	name, _, _ = parseCommand("/set_lang_2")
	assert.Equal(t, "set_lang_2", name)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = parseDuration("3D")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = parseDuration("xd")
	assert.ErrorIs(t, err, errUsage)
	_, err = parseDuration("soon")
	assert.ErrorIs(t, err, errUsage)
}

func TestCommandsHaveDescriptions(t *testing.T) {
	for _, c := range Commands() {
		for _, lang := range []string{models.LangEnglish, models.LangSimplifiedChinese} {
			text := models.GetTranslation(lang, c.DescKey)
			assert.NotEqual(t, c.DescKey, text, "%s missing in %s", c.DescKey, lang)
			assert.False(t, strings.HasPrefix(text, "cmd_desc_"))
		}
	}
}

func TestListingCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/bypassed")))
	sends := f.fake.Calls("send")
	require.Len(t, sends, 1)
	assert.Equal(t, models.GetTranslation(models.LangEnglish, "bypass_empty"), sends[0].Text)
	f.fake.Reset()

	// the member's profile is known once they have written anything
	require.NoError(t, f.h.HandleMessage(ctx, Inbound{
		ChatID: member, Private: true, MessageID: 1,
		From: models.UserProfile{UserID: member, FirstName: "Rana", Username: "rana"},
	}))
	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/bypass 55")))
	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/bypassed")))
	sends = f.fake.Calls("send")
	require.Len(t, sends, 2)
	assert.Contains(t, sends[1].Text, "<code>55</code> Rana @rana")
	f.fake.Reset()

	require.NoError(t, f.h.HandleMessage(ctx, privateMsg(admin, "/ops")))
	sends = f.fake.Calls("send")
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].Text, "<code>7</code>")
}
