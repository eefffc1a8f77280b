package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(time.Minute)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, store.Set(ctx, "", []byte("v"), 0))
}

func TestLocal_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewLocal(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(2 * time.Second)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, store.Len())
}

func TestNamespace_IsolatesKeys(t *testing.T) {
	ctx := context.Background()
	shared := NewLocal(time.Minute)
	a := Namespace(shared, "supabase.auth.procurement")
	b := Namespace(shared, "supabase.auth.reports")

	require.NoError(t, a.Set(ctx, "session", []byte("a"), 0))
	require.NoError(t, b.Set(ctx, "session", []byte("b"), 0))

	gotA, err := a.Get(ctx, "session")
	require.NoError(t, err)
	gotB, err := b.Get(ctx, "session")
	require.NoError(t, err)

	assert.Equal(t, []byte("a"), gotA)
	assert.Equal(t, []byte("b"), gotB)
	assert.Equal(t, 2, shared.Len())

	raw, err := shared.Get(ctx, "supabase.auth.procurement:session")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), raw)
}

func TestNamespace_NilAndEmpty(t *testing.T) {
	ctx := context.Background()

	_, err := Namespace(nil, "x").Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	shared := NewLocal(time.Minute)
	assert.Equal(t, Store(shared), Namespace(shared, ""))
}
