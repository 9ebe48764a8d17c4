package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	var evicted []string
	m := NewMemoryStore(time.Minute, func(v string) { evicted = append(evicted, v) },
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	clock := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	ctx := context.Background()
	idA, err := m.Add(ctx, "a")
	require.NoError(t, err)
	idB, err := m.Add(ctx, "b")
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, m.Len())

	clock = clock.Add(45 * time.Second)
	v, err := m.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, []string{"b"}, evicted)

	_, err = m.Get(ctx, idB)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Remove(ctx, idA))
	require.NoError(t, m.Remove(ctx, idA))
	assert.Equal(t, []string{"b", "a"}, evicted)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryStoreWithoutIdleTimeout(t *testing.T) {
	m := NewMemoryStore[int](0, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = func() time.Time { return time.Now().Add(-24 * time.Hour) }

	_, err := m.Add(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Sweep())
	assert.Equal(t, 1, m.Len())
}
