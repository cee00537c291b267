package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), "redis://"+srv.Addr(), time.Minute)
	require.NoError(t, err)
	return store, srv
}

func TestRedisGetUnknownChatReturnsDefault(t *testing.T) {
	store, _ := newTestRedisStore(t)

	s, err := store.Get(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, ModeNone, s.Mode)
	assert.Empty(t, s.Draft)
}

func TestRedisSaveGetRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	s := New()
	s.State = StateBuilderMode
	s.Mode = ModeEdit
	s.Step = StepMenu
	s.Draft["Имя"] = "Иван"
	s.People = []Person{{Label: "Иван Петров [#2]", Row: 2}}
	s.EditingRow = 4
	require.NoError(t, store.Save(ctx, 7, s))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StateBuilderMode, got.State)
	assert.Equal(t, ModeEdit, got.Mode)
	assert.Equal(t, StepMenu, got.Step)
	assert.Equal(t, "Иван", got.Draft["Имя"])
	assert.Equal(t, s.People, got.People)
	assert.Equal(t, 4, got.EditingRow)
}

func TestRedisExpiredSessionBehavesLikeMissing(t *testing.T) {
	store, srv := newTestRedisStore(t)
	ctx := context.Background()

	s := New()
	s.State = StateViewingCard
	s.ViewingRow = 3
	require.NoError(t, store.Save(ctx, 1, s))

	srv.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, got.State, "expired session must read as a fresh default")
	assert.Zero(t, got.ViewingRow)
}

func TestRedisGetSlidesTheWindow(t *testing.T) {
	store, srv := newTestRedisStore(t)
	ctx := context.Background()

	s := New()
	s.State = StateSelectingLetter
	require.NoError(t, store.Save(ctx, 1, s))

	// Touch the session every 40s; GETEX refreshes the TTL on each read.
	for i := 0; i < 3; i++ {
		srv.FastForward(40 * time.Second)
		got, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, StateSelectingLetter, got.State)
	}
}

func TestRedisClear(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	s := New()
	s.State = StateAdminMenu
	require.NoError(t, store.Save(ctx, 9, s))
	require.NoError(t, store.Clear(ctx, 9))

	got, err := store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, got.State)
}

func TestRedisCorruptPayloadResets(t *testing.T) {
	store, srv := newTestRedisStore(t)

	require.NoError(t, srv.Set(sessionKey(5), "{not json"))

	got, err := store.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, got.State)
	assert.Empty(t, got.Draft)
}

func TestRedisSweepIsNoop(t *testing.T) {
	store, _ := newTestRedisStore(t)

	removed, err := store.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-url", time.Minute)
	assert.Error(t, err)
}

func TestNewRedisStoreFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	_, err := NewRedisStore(context.Background(), "redis://"+addr, time.Minute)
	assert.Error(t, err)
}
