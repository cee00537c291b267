package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownChatReturnsDefault(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)

	s, err := store.Get(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, ModeNone, s.Mode)
	assert.Empty(t, s.Draft)
	assert.Zero(t, s.EditingRow)
}

func TestSaveGetRoundTrip(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	s := New()
	s.State = StateBuilderMode
	s.Mode = ModeEdit
	s.Step = StepMenu
	s.Draft["Имя"] = "Иван"
	s.EditingRow = 4
	require.NoError(t, store.Save(ctx, 7, s))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, StateBuilderMode, got.State)
	assert.Equal(t, ModeEdit, got.Mode)
	assert.Equal(t, StepMenu, got.Step)
	assert.Equal(t, "Иван", got.Draft["Имя"])
	assert.Equal(t, 4, got.EditingRow)
}

func TestExpiredSessionBehavesLikeMissing(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	s := New()
	s.State = StateViewingCard
	s.ViewingRow = 3
	require.NoError(t, store.Save(ctx, 1, s))

	current = current.Add(2 * time.Minute)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, got.State, "expired session must read as a fresh default")
	assert.Zero(t, got.ViewingRow)
}

func TestGetSlidesTheWindow(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	s := New()
	s.State = StateSelectingLetter
	require.NoError(t, store.Save(ctx, 1, s))

	// Touch the session every 40s; each read refreshes last access.
	for i := 0; i < 3; i++ {
		current = current.Add(40 * time.Second)
		got, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, StateSelectingLetter, got.State)
	}
}

func TestClear(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	s := New()
	s.State = StateAdminMenu
	require.NoError(t, store.Save(ctx, 9, s))
	require.NoError(t, store.Clear(ctx, 9))

	got, err := store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, got.State)
}

func TestSweepExpired(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Save(ctx, 1, New()))
	require.NoError(t, store.Save(ctx, 2, New()))

	current = current.Add(30 * time.Second)
	require.NoError(t, store.Save(ctx, 3, New()))

	current = current.Add(45 * time.Second)

	removed, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// Chat 3 is still live.
	got, _ := store.Get(ctx, 3)
	assert.NotNil(t, got)
}
