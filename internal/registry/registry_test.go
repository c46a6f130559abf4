package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-scriptguard/internal/platform"
	"tg-scriptguard/internal/platform/platformtest"
	"tg-scriptguard/internal/storage"
)

const group = int64(-1001)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	return New(storage.NewRemovalRepository(db))
}

func TestRemoveTwice(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	require.NoError(t, reg.Add(ctx, group, 5, "third warning"))
	require.NoError(t, reg.Add(ctx, group, 5, "banned again"))

	rows, err := reg.List(ctx, group)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	in, err := reg.Contains(ctx, group, 5)
	require.NoError(t, err)
	assert.True(t, in)

	deleted, err := reg.Remove(ctx, group, 5)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = reg.Remove(ctx, group, 5)
	require.NoError(t, err)
	assert.False(t, deleted)

	rows, err = reg.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	in, err = reg.Contains(ctx, group, 5)
	require.NoError(t, err)
	assert.False(t, in)
}

func userIDs(entries []Entry) []int64 {
	var out []int64
	for _, e := range entries {
		out = append(out, e.Row.UserID)
	}
	return out
}

func TestReconcileConverges(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	fake := platformtest.New()

	for _, u := range []int64{1, 2, 3, 4} {
		require.NoError(t, reg.Add(ctx, group, u, "test"))
	}
	fake.SetStatus(group, 1, platform.StatusMember)
	fake.SetStatus(group, 2, platform.StatusKicked)
	fake.SetStatus(group, 3, platform.StatusAdministrator)
	fake.FailLookup(group, 4, errors.New("flood wait"))

	rec := NewReconciler(reg, fake, fake)
	report, err := rec.Reconcile(ctx, group)
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{1, 3}, userIDs(report.StillIn))
	assert.ElementsMatch(t, []int64{2, 4}, userIDs(report.NotIn))
	assert.Equal(t, 4, report.Total())
	assert.Len(t, fake.Calls("ban"), 2)
	for _, e := range report.NotIn {
		if e.Row.UserID == 4 {
			assert.Error(t, e.LookupErr)
			assert.Equal(t, platform.StatusUnknown, e.Status)
		}
	}

	second, err := rec.Reconcile(ctx, group)
	require.NoError(t, err)
	assert.Empty(t, second.StillIn)
	assert.Len(t, second.NotIn, 4)
}

func TestReconcileReportsBanFailures(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)
	fake := platformtest.New()

	require.NoError(t, reg.Add(ctx, group, 9, "test"))
	fake.SetStatus(group, 9, platform.StatusMember)
	fake.Fail("ban", errors.New("not enough rights"))

	report, err := NewReconciler(reg, fake, fake).Reconcile(ctx, group)
	require.NoError(t, err)
	require.Len(t, report.BanFailures, 1)
	assert.Equal(t, int64(9), report.BanFailures[0].UserID)

	// still there next time, nothing retried behind our back
	assert.Len(t, fake.Calls("ban"), 1)
	report, err = NewReconciler(reg, fake, fake).Reconcile(ctx, group)
	require.NoError(t, err)
	assert.Len(t, report.StillIn, 1)
}
