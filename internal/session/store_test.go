package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/flashdeck/internal/apperr"
	"github.com/starford/flashdeck/internal/models"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cl.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(time.Hour),
		"redis":  NewRedisStore(cl, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
}

func TestStores_RoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New("abc")
			require.NoError(t, s.Submit("apple", models.Deck{"u1"}))
			require.NoError(t, store.Save(ctx, s))

			got, err := store.Get(ctx, "abc")
			require.NoError(t, err)
			assert.Equal(t, ScreenGallery, got.Screen)
			assert.Equal(t, models.Deck{"u1"}, got.Deck)
			assert.Equal(t, []bool{true}, got.Selected)

			require.NoError(t, store.Delete(ctx, "abc"))
			_, err = store.Get(ctx, "abc")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestStores_ReturnCopies(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New("abc")
			require.NoError(t, store.Save(ctx, s))

			s.Words = "mutated after save"
			got, err := store.Get(ctx, "abc")
			require.NoError(t, err)
			assert.Empty(t, got.Words)
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	s := New("old")
	s.UpdatedAt = time.Now().Add(-2 * time.Minute)
	require.NoError(t, store.Save(context.Background(), s))
	require.NoError(t, store.Save(context.Background(), New("fresh")))

	assert.Equal(t, 1, store.Sweep())
	_, err := store.Get(context.Background(), "old")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = store.Get(context.Background(), "fresh")
	assert.NoError(t, err)
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cl.Close()
	store := NewRedisStore(cl, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, store.Save(context.Background(), New("abc")))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"abc"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
