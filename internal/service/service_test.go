package service

import (
	"context"
	"errors"
	"testing"
	"time"

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
	"tg-scriptguard/internal/storage"
)

const (
	group      = int64(-100300)
	admin      = int64(7)
	reportChat = int64(900)
)

func newService(t *testing.T) (*Service, *platformtest.Fake) {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	fake := platformtest.New()
	users := storage.NewUserRepository(db)
	operators := storage.NewOperatorRepository(db)
	led := ledger.New(storage.NewWarningRepository(db))
	reg := registry.New(storage.NewRemovalRepository(db))
	rep := report.New(report.Options{Sender: fake, Links: operators, ChatIDs: []int64{reportChat}, Language: models.LangEnglish})
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

	s := New(Deps{
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
	t.Cleanup(s.Close)
	return s, fake
}

func registered(t *testing.T, s *Service) {
	t.Helper()
	_, err := s.RegisterGroup(context.Background(), group, "Chemistry")
	require.NoError(t, err)
}

func TestRegisterGroup(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.RegisterGroup(ctx, 42, "private chat")
	assert.ErrorIs(t, err, ErrValidation)

	registered(t, s)
	_, err = s.EnableContentFilter(ctx, group)
	require.NoError(t, err)

	info, err := s.RegisterGroup(ctx, group, "Chemistry 2")
	require.NoError(t, err)
	assert.Equal(t, "Chemistry 2", info.GroupName)
	assert.True(t, info.ContentFilterEnabled, "re-registering keeps toggles")

	cached, ok, err := s.GetGroupInfo(ctx, group)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Chemistry 2", cached.GroupName)
}

func TestUnregisterGroup(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	registered(t, s)

	require.NoError(t, s.UnregisterGroup(ctx, group))
	_, ok, err := s.GetGroupInfo(ctx, group)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.UnregisterGroup(ctx, group), ErrNotFound)
}

func TestGetGroupInfoFallsBackToDatabase(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	registered(t, s)

	s.GroupCache.RemoveGroupInfo(group)
	info, ok, err := s.GetGroupInfo(ctx, group)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Chemistry", info.GroupName)

	_, ok = s.GroupCache.GetGroupInfo(group)
	assert.True(t, ok, "database hit is cached")
}

func TestToggles(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.EnableContentFilter(ctx, group)
	assert.ErrorIs(t, err, ErrNotFound)

	registered(t, s)
	_, err = s.SetCommandDeletion(ctx, group, true)
	require.NoError(t, err)
	_, err = s.SetUnauthorizedMute(ctx, group, true)
	require.NoError(t, err)
	_, err = s.EnableContentFilter(ctx, group)
	require.NoError(t, err)
	info, err := s.DisableContentFilter(ctx, group)
	require.NoError(t, err)

	assert.False(t, info.ContentFilterEnabled)
	cached, ok := s.GroupCache.GetGroupInfo(group)
	require.True(t, ok)
	assert.True(t, cached.CommandDeletionEnabled)
	assert.True(t, cached.UnauthorizedMuteEnabled)
	assert.False(t, cached.ContentFilterEnabled)
}

func TestBypass(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	assert.ErrorIs(t, s.AddBypass(ctx, 0, admin), ErrValidation)
	require.NoError(t, s.AddBypass(ctx, 5, admin))
	require.NoError(t, s.AddBypass(ctx, 5, admin))

	list, err := s.ListBypass(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	ok, err := s.IsBypassed(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RemoveBypass(ctx, 5))
	assert.ErrorIs(t, s.RemoveBypass(ctx, 5), ErrNotFound)

	ok, err = s.IsBypassed(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveUserKeepsRowWhenBanFails(t *testing.T) {
	ctx := context.Background()
	s, fake := newService(t)
	registered(t, s)

	fake.Fail("ban", errors.New("not enough rights"))
	err := s.RemoveUser(ctx, group, 5, "")

	var perr *PlatformError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "ban", perr.Op)

	rows, err := s.ListRemoved(ctx, group)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, manualRemovalReason, rows[0].Reason)
}

func TestRemoveUserValidation(t *testing.T) {
	ctx := context.Background()
	s, fake := newService(t)

	assert.ErrorIs(t, s.RemoveUser(ctx, group, -3, "spam"), ErrValidation)
	assert.ErrorIs(t, s.RemoveUser(ctx, group, 5, "spam"), ErrNotFound)
	assert.Empty(t, fake.Calls("ban"))

	rows, err := s.ListRemoved(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUnremoveTwice(t *testing.T) {
	ctx := context.Background()
	s, fake := newService(t)
	registered(t, s)

	require.NoError(t, s.RemoveUser(ctx, group, 5, "spam"))
	st, err := fake.MemberStatus(ctx, group, 5)
	require.NoError(t, err)
	assert.Equal(t, platform.StatusKicked, st)

	require.NoError(t, s.UnremoveUser(ctx, group, 5))
	assert.ErrorIs(t, s.UnremoveUser(ctx, group, 5), ErrNotFound)
	assert.Len(t, fake.Calls("unban"), 1, "no platform call for a missing row")

	rows, err := s.ListRemoved(ctx, group)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestOverrideWarningCount(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	_, err := s.OverrideWarningCount(ctx, 5, -1, admin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Ledger.Record(ctx, 5, group)
	require.NoError(t, err)
	_, err = s.Ledger.Record(ctx, 5, group)
	require.NoError(t, err)

	prev, err := s.OverrideWarningCount(ctx, 5, 0, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, prev)

	w, err := s.WarningsOf(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Count)
	assert.Len(t, w.History, 2, "override adds no history")
}

func TestReconcileReportsAndRebans(t *testing.T) {
	ctx := context.Background()
	s, fake := newService(t)
	registered(t, s)

	require.NoError(t, s.Registry.Add(ctx, group, 5, "spam"))
	require.NoError(t, s.Registry.Add(ctx, group, 6, "spam"))
	fake.SetStatus(group, 5, platform.StatusMember)

	rep, err := s.Reconcile(ctx, group)
	require.NoError(t, err)
	require.Len(t, rep.StillIn, 1)
	assert.Equal(t, int64(5), rep.StillIn[0].Row.UserID)
	assert.Len(t, rep.NotIn, 1)

	bans := fake.Calls("ban")
	require.Len(t, bans, 1)
	assert.Equal(t, int64(5), bans[0].UserID)

	sent := fake.Calls("send")
	require.NotEmpty(t, sent)
	assert.Equal(t, reportChat, sent[0].ChatID)

	_, err = s.Reconcile(ctx, -999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileAll(t *testing.T) {
	ctx := context.Background()
	s, fake := newService(t)
	registered(t, s)
	_, err := s.RegisterGroup(ctx, -100301, "Physics")
	require.NoError(t, err)

	require.NoError(t, s.Registry.Add(ctx, -100301, 8, "spam"))
	fake.SetStatus(-100301, 8, platform.StatusAdministrator)

	reports := s.ReconcileAll(ctx)
	assert.Len(t, reports, 2)
	assert.Len(t, fake.Calls("ban"), 1)
}

func TestMuteAndUnmute(t *testing.T) {
	ctx := context.Background()
	s, fake := newService(t)
	registered(t, s)

	assert.ErrorIs(t, s.Mute(ctx, group, 5, 0), ErrValidation)
	assert.ErrorIs(t, s.Mute(ctx, group, 5, 10*time.Second), ErrValidation)
	require.NoError(t, s.Mute(ctx, group, 5, time.Hour))
	require.Len(t, fake.Calls("restrict"), 1)

	require.NoError(t, s.Unmute(ctx, group, 5))
	assert.Len(t, fake.Calls("unrestrict"), 1)

	fake.Fail("unrestrict", errors.New("chat not found"))
	var perr *PlatformError
	assert.ErrorAs(t, s.Unmute(ctx, group, 5), &perr)
}

func TestOperators(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)
	registered(t, s)

	ok, err := s.IsOperator(ctx, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsOperator(ctx, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.LinkOperator(ctx, group, 11), ErrNotFound)

	require.NoError(t, s.AddOperator(ctx, 11, admin))
	ok, err = s.IsOperator(ctx, 11)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.LinkOperator(ctx, group, 11))
	assert.ElementsMatch(t, []int64{reportChat, 11}, s.Reporter.Recipients(ctx, group))

	ops, err := s.ListOperators(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 2)

	assert.ErrorIs(t, s.RemoveOperator(ctx, admin), ErrValidation)
	require.NoError(t, s.UnlinkOperator(ctx, group, 11))
	assert.ErrorIs(t, s.UnlinkOperator(ctx, group, 11), ErrNotFound)
	require.NoError(t, s.RemoveOperator(ctx, 11))
	assert.ErrorIs(t, s.RemoveOperator(ctx, 11), ErrNotFound)
}

func TestRefreshProfile(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t)

	require.NoError(t, s.RefreshProfile(ctx, models.UserProfile{UserID: 5, FirstName: "Lee"}))
	require.NoError(t, s.RefreshProfile(ctx, models.UserProfile{UserID: 5, FirstName: "Lee", Username: "lee"}))

	stored, err := s.Users.GetProfile(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "lee", stored.Username)

	assert.Equal(t, "lee", s.Profile(ctx, 5).Username)
	assert.Equal(t, int64(99), s.Profile(ctx, 99).UserID)
}

func TestReconcileSchedule(t *testing.T) {
	s, _ := newService(t)
	assert.NoError(t, s.StartReconcileSchedule(""))
	assert.Error(t, s.StartReconcileSchedule("every tuesday"))
	require.NoError(t, s.StartReconcileSchedule("0 4 * * *"))
}

func TestBanIfRemoved(t *testing.T) {
	ctx := context.Background()
	s, fake := newService(t)
	registered(t, s)

	banned, err := s.BanIfRemoved(ctx, group, 5)
	require.NoError(t, err)
	assert.False(t, banned)

	require.NoError(t, s.Registry.Add(ctx, group, 5, "spam"))
	banned, err = s.BanIfRemoved(ctx, group, 5)
	require.NoError(t, err)
	assert.True(t, banned)

	banned, err = s.BanIfRemoved(ctx, -555, 5)
	require.NoError(t, err)
	assert.False(t, banned, "unregistered groups are ignored")
	assert.Len(t, fake.Calls("ban"), 1)
}
