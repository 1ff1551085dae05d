package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateAndGet(t *testing.T) {
	m := NewManager(NewMemoryBackend())
	defer m.Close()
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 0, s.MaxStep)
	assert.Nil(t, s.GoogleEmail)
	assert.False(t, s.StartTime.IsZero())

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestManager_GetUnknown(t *testing.T) {
	m := NewManager(NewMemoryBackend())
	defer m.Close()

	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_TouchIsMonotonic(t *testing.T) {
	m := NewManager(NewMemoryBackend())
	defer m.Close()
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	for _, step := range []int{1, 3, 2, 3, 1} {
		_, err := m.Touch(ctx, s.ID, step)
		require.NoError(t, err)
	}

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MaxStep, "max step never moves backwards")
}

func TestManager_SetIdentity(t *testing.T) {
	m := NewManager(NewMemoryBackend())
	defer m.Close()
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	updated, err := m.SetIdentity(ctx, s.ID, "g-123", "Ada Lovelace", "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, updated.GoogleEmail)
	assert.Equal(t, "ada@example.com", *updated.GoogleEmail)
	assert.Equal(t, "Ada Lovelace", *updated.GoogleName)
	assert.Equal(t, "g-123", *updated.GoogleID)
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	ctx := context.Background()
	backend, err := NewRedisBackend(ctx, mr.Addr(), "", 0, time.Hour)
	require.NoError(t, err)
	defer backend.Close()

	m := NewManager(backend)

	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = m.Touch(ctx, s.ID, 5)
	require.NoError(t, err)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.MaxStep)

	require.NoError(t, backend.Delete(ctx, s.ID))
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisBackend_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)

	ctx := context.Background()
	backend, err := NewRedisBackend(ctx, mr.Addr(), "", 0, time.Minute)
	require.NoError(t, err)
	defer backend.Close()

	m := NewManager(backend)
	s, err := m.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
