package redislock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	g := New(client, "srt:", time.Minute, nil)
	t.Cleanup(func() { _ = g.Close() })
	return g, mr
}

func TestGuard_SecondAcquireRefused(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	release, ok, err := g.TryAcquire(ctx, "acct|수서>부산@2025091710/1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("srt:run:acct|수서>부산@2025091710/1"))

	_, ok, err = g.TryAcquire(ctx, "acct|수서>부산@2025091710/1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = g.TryAcquire(ctx, "acct|수서>부산@2025091712/1")
	require.NoError(t, err)
	assert.True(t, ok, "different trips do not collide")

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("srt:run:acct|수서>부산@2025091710/1"))

	_, ok, err = g.TryAcquire(ctx, "acct|수서>부산@2025091710/1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_ReleaseLeavesForeignHolder(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	release, ok, err := g.TryAcquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	// lease expired and someone else took the key
	require.NoError(t, mr.Set("srt:run:k", "other-holder"))
	require.NoError(t, release(ctx))

	got, err := mr.Get("srt:run:k")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", got)
}

func TestGuard_ExpiresWithoutKeepAlive(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	_, ok, err := g.TryAcquire(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("srt:run:k"))

	mr.FastForward(time.Minute + time.Second)
	_, ok, err = g.TryAcquire(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_Extend(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("srt:run:k", "tok"))
	mr.SetTTL("srt:run:k", time.Second)

	held, err := g.extend(ctx, "srt:run:k", "tok")
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, time.Minute, mr.TTL("srt:run:k"))

	held, err = g.extend(ctx, "srt:run:k", "not-mine")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestDial_BadURL(t *testing.T) {
	_, err := Dial(context.Background(), "://nope", "srt:", nil)
	assert.Error(t, err)
}
