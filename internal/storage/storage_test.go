package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tg-scriptguard/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestWarningRecordAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewWarningRepository(newTestDB(t))

	n, err := repo.Count(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i, group := range []int64{-1, -2, -1} {
		n, err := repo.Record(ctx, 7, group)
		require.NoError(t, err)
		assert.Equal(t, i+1, n)
	}

	history, err := repo.History(ctx, 7)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[2].WarningNumber)
	assert.Equal(t, int64(-2), history[1].GroupID)
}

func TestWarningRecordConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewWarningRepository(newTestDB(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(group int64) {
			defer wg.Done()
			_, err := repo.Record(ctx, 42, group)
			assert.NoError(t, err)
		}(int64(-(i % 3)))
	}
	wg.Wait()

	n, err := repo.Count(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	history, err := repo.History(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, history, 20)
}

func TestWarningOverride(t *testing.T) {
	ctx := context.Background()
	repo := NewWarningRepository(newTestDB(t))

	_, err := repo.Record(ctx, 5, -1)
	require.NoError(t, err)
	_, err = repo.Record(ctx, 5, -1)
	require.NoError(t, err)

	prev, err := repo.Override(ctx, 5, 0, 99)
	require.NoError(t, err)
	assert.Equal(t, 2, prev)

	n, _ := repo.Count(ctx, 5)
	assert.Equal(t, 0, n)

	n, err = repo.Record(ctx, 5, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, _ := repo.History(ctx, 5)
	assert.Len(t, history, 3, "override adds no history entry")

	overrides, err := repo.Overrides(ctx, 5)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, int64(99), overrides[0].OperatorID)
	assert.Equal(t, 2, overrides[0].PreviousCount)

	prev, err = repo.Override(ctx, 77, 4, 99)
	require.NoError(t, err)
	assert.Equal(t, 0, prev)
	n, _ = repo.Count(ctx, 77)
	assert.Equal(t, 4, n)
}

func TestRemovalUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewRemovalRepository(newTestDB(t))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, -10, 1, "first", at))
	require.NoError(t, repo.Upsert(ctx, -10, 1, "second", at.Add(time.Hour)))
	require.NoError(t, repo.Upsert(ctx, -20, 1, "other group", at))

	rows, err := repo.ListByGroup(ctx, -10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0].Reason)

	role, err := repo.Role(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RoleRemoved, role)

	deleted, err := repo.Delete(ctx, -10, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, -10, 1)
	require.NoError(t, err)
	assert.False(t, deleted)

	role, _ = repo.Role(ctx, 1)
	assert.Equal(t, models.RoleRemoved, role, "still removed in -20")

	_, err = repo.Delete(ctx, -20, 1)
	require.NoError(t, err)
	role, _ = repo.Role(ctx, 1)
	assert.Equal(t, models.RoleNormal, role)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGroupToggles(t *testing.T) {
	ctx := context.Background()
	repo := NewGroupRepository(newTestDB(t))

	g := &models.GroupInfo{GroupID: -100, GroupName: "Physics", ContentFilterEnabled: true}
	require.NoError(t, repo.CreateOrUpdateGroupInfo(ctx, g))

	updated, err := repo.SetToggle(ctx, -100, ToggleCommandDeletion, true)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.CommandDeletionEnabled)

	// re-registering keeps toggles and renames
	again := &models.GroupInfo{GroupID: -100, GroupName: "Physics 2"}
	require.NoError(t, repo.CreateOrUpdateGroupInfo(ctx, again))
	assert.True(t, again.CommandDeletionEnabled)
	assert.Equal(t, "Physics 2", again.GroupName)

	missing, err := repo.SetToggle(ctx, -999, ToggleContentFilter, false)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.SetToggle(ctx, -100, "language", true)
	assert.Error(t, err)

	cache := models.NewGroupInfoManager()
	require.NoError(t, InitializeGroups(ctx, repo, cache))
	cached, ok := cache.GetGroupInfo(-100)
	assert.True(t, ok)
	assert.Equal(t, "Physics 2", cached.GroupName)

	deleted, err := repo.DeleteGroupInfo(ctx, -100)
	require.NoError(t, err)
	assert.True(t, deleted)
	info, err := repo.GetGroupInfo(ctx, -100)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestBypassAndOperators(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	ops := NewOperatorRepository(db)

	require.NoError(t, users.AddBypass(ctx, 3, 1))
	require.NoError(t, users.AddBypass(ctx, 3, 1))
	ok, err := users.IsBypassed(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	removed, _ := users.RemoveBypass(ctx, 3)
	assert.True(t, removed)
	removed, _ = users.RemoveBypass(ctx, 3)
	assert.False(t, removed)

	require.NoError(t, users.UpsertProfile(ctx, &models.UserProfile{UserID: 3, FirstName: "Ann"}))
	require.NoError(t, users.UpsertProfile(ctx, &models.UserProfile{UserID: 3, FirstName: "Anna", Username: "anna"}))
	p, err := users.GetProfile(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Anna", p.FirstName)
	assert.Equal(t, "@anna", p.Handle())

	require.NoError(t, ops.Add(ctx, 9, 1))
	isOp, _ := ops.IsOperator(ctx, 9)
	assert.True(t, isOp)
	require.NoError(t, ops.Link(ctx, -100, 9))
	require.NoError(t, ops.Link(ctx, -100, 9))
	linked, err := ops.LinkedOperators(ctx, -100)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, linked)
	unlinked, _ := ops.Unlink(ctx, -100, 9)
	assert.True(t, unlinked)
}

func TestStatus(t *testing.T) {
	db := newTestDB(t)
	st, err := Status(db)
	require.NoError(t, err)
	require.Len(t, st, len(AllModels))
	for _, s := range st {
		assert.True(t, s.Exists, s.Name)
	}
}
