package features

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/cola500/equinet/internal/cache/rediscache"
	"github.com/stretchr/testify/require"
)

func TestFlags_DefaultsOnly(t *testing.T) {
	f := New(map[string]bool{RecurringBookings: true}, nil)
	ctx := context.Background()

	require.True(t, f.IsEnabled(ctx, RecurringBookings))
	require.False(t, f.IsEnabled(ctx, GroupBookings))
	require.NoError(t, f.Override(ctx, GroupBookings, true))
	require.False(t, f.IsEnabled(ctx, GroupBookings))
}

func TestFlags_RedisOverride(t *testing.T) {
	mr := miniredis.RunT(t)
	store := rediscache.New(mr.Addr(), "equinet:")
	f := New(map[string]bool{RecurringBookings: true}, store)
	ctx := context.Background()

	require.True(t, f.IsEnabled(ctx, RecurringBookings))

	require.NoError(t, f.Override(ctx, RecurringBookings, false))
	require.False(t, f.IsEnabled(ctx, RecurringBookings))
	v, err := mr.Get("equinet:feature:recurring_bookings")
	require.NoError(t, err)
	require.Equal(t, "false", v)

	require.NoError(t, f.Reset(ctx, RecurringBookings))
	require.True(t, f.IsEnabled(ctx, RecurringBookings))
}

func TestFlags_GarbageOrUnreachableFallsBackToDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	store := rediscache.New(mr.Addr(), "")
	f := New(map[string]bool{GroupBookings: true}, store)
	ctx := context.Background()

	require.NoError(t, mr.Set("feature:group_bookings", "maybe"))
	require.True(t, f.IsEnabled(ctx, GroupBookings))

	mr.Close()
	require.True(t, f.IsEnabled(ctx, GroupBookings))
}

func TestWithDefaults(t *testing.T) {
	ctx := context.Background()

	for name, configured := range map[string]map[string]bool{
		"nil":         nil,
		"empty":       {},
		"other flags": {GroupBookings: true},
		"explicit on": {RecurringBookings: true},
	} {
		t.Run(name, func(t *testing.T) {
			require.True(t, New(WithDefaults(configured), nil).IsEnabled(ctx, RecurringBookings))
		})
	}

	off := map[string]bool{RecurringBookings: false, GroupBookings: true}
	got := WithDefaults(off)
	require.False(t, got[RecurringBookings])
	require.True(t, got[GroupBookings])

	got[GroupBookings] = false
	require.True(t, off[GroupBookings])
}
