package pools

import (
	"context"
	"testing"
	"time"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(testutil.NewDB(t))
	base := time.Unix(1700000000, 0).UTC()
	tick := 0
	r.clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return r
}

func phones(ns []DialerNumber) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.PhoneNumber
	}
	return out
}

func TestImportNumbers_SkipsNonDigitRows(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	pool, err := r.CreatePool(ctx, "Leads Q1", nil)
	require.NoError(t, err)

	res, err := r.ImportNumbers(ctx, pool.ID, []string{"5551234", "abc", "", "999"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 4, res.TotalRows)

	nums, err := r.ListNumbers(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"5551234", "999"}, phones(nums))
	for _, n := range nums {
		assert.False(t, n.IsCalled)
		assert.Equal(t, pool.ID, n.PoolID)
	}
}

func TestImportNumbers_TrimsAndKeepsDuplicates(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	pool, err := r.CreatePool(ctx, "dups", nil)
	require.NoError(t, err)

	_, err = r.ImportNumbers(ctx, pool.ID, []string{" 123 ", "123", "+44123", "12 3"})
	require.NoError(t, err)
	_, err = r.ImportNumbers(ctx, pool.ID, []string{"123"})
	require.NoError(t, err)

	nums, err := r.ListNumbers(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"123", "123", "123"}, phones(nums))
}

func TestImportNumbers_LargeBatchIsChunked(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	pool, err := r.CreatePool(ctx, "big", nil)
	require.NoError(t, err)

	rows := make([]string, numbersPerInsert*2+7)
	for i := range rows {
		rows[i] = "5550000"
	}
	res, err := r.ImportNumbers(ctx, pool.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, len(rows), res.Imported)

	prog, err := r.Progress(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, len(rows), prog.Total)
}

func TestImportNumbers_UnknownOrDeletedPool(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	_, err := r.ImportNumbers(ctx, 404, []string{"1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	pool, err := r.CreatePool(ctx, "gone", nil)
	require.NoError(t, err)
	require.NoError(t, r.DeletePool(ctx, pool.ID))

	_, err = r.ImportNumbers(ctx, pool.ID, []string{"1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = r.ListNumbers(ctx, pool.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkCalled_ExactMatchAllDuplicates(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	pool, err := r.CreatePool(ctx, "p", nil)
	require.NoError(t, err)
	other, err := r.CreatePool(ctx, "other", nil)
	require.NoError(t, err)

	_, err = r.ImportNumbers(ctx, pool.ID, []string{"5551234", "5551234", "15551234"})
	require.NoError(t, err)
	_, err = r.ImportNumbers(ctx, other.ID, []string{"5551234"})
	require.NoError(t, err)

	n, err := r.MarkCalled(ctx, pool.ID, "5551234")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	nums, err := r.ListNumbers(ctx, pool.ID)
	require.NoError(t, err)
	assert.True(t, nums[0].IsCalled)
	assert.True(t, nums[1].IsCalled)
	assert.False(t, nums[2].IsCalled, "country-code variant is a different number")

	otherNums, err := r.ListNumbers(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, otherNums[0].IsCalled)

	// Marking again is a no-op that keeps the flag set.
	n, err = r.MarkCalled(ctx, pool.ID, "5551234")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = r.MarkCalled(ctx, pool.ID, "0000")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestPools_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	_, err := r.CreatePool(ctx, "   ", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	first, err := r.CreatePool(ctx, "first", nil)
	require.NoError(t, err)
	second, err := r.CreatePool(ctx, "second", nil)
	require.NoError(t, err)

	list, err := r.ListPools(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	require.NoError(t, r.DeletePool(ctx, first.ID))
	assert.ErrorIs(t, r.DeletePool(ctx, first.ID), apperr.ErrNotFound)

	list, err = r.ListPools(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Name)

	_, err = r.GetPool(ctx, first.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	pool, err := r.CreatePool(ctx, "p", nil)
	require.NoError(t, err)
	_, err = r.ImportNumbers(ctx, pool.ID, []string{"1", "2", "3"})
	require.NoError(t, err)
	_, err = r.MarkCalled(ctx, pool.ID, "2")
	require.NoError(t, err)

	p, err := r.Progress(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, Progress{PoolID: pool.ID, Total: 3, Called: 1, Remaining: 2}, p)
}

func TestFilterPhoneNumbers(t *testing.T) {
	got := FilterPhoneNumbers([]string{"5551234", "abc", "", "999", "12a", "٣٣"})
	assert.Equal(t, []string{"5551234", "999"}, got)
}
