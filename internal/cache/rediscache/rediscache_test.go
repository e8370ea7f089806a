package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "equinet:")
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "provider:1", []byte("v"), time.Minute))
	require.True(t, mr.Exists("equinet:provider:1"))

	b, ok, err := c.Get(ctx, "provider:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "provider:1", "provider:2"))
	_, ok, err = c.Get(ctx, "provider:1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_MissAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "")

	ctx := context.Background()
	b, ok, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, b)

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Second))
	mr.FastForward(2 * time.Second)
	_, ok, err = c.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "")
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
}
