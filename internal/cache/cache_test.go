package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuntlytics/stuntlytics/internal/config"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), &config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	key := Key("summary", "a1b2c3")
	require.NoError(t, store.Set(ctx, key, []byte(`{"total":2000}`), time.Minute))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"total":2000}`), got)
}

func TestRedisStore_MissAndExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, Key("summary", "absent"))
	assert.ErrorIs(t, err, ErrMiss)

	key := Key("fields", "deadbeef")
	require.NoError(t, store.Set(ctx, key, []byte("nama_kabupaten_kota"), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_Delete(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	key := Key("export", "ff00")
	require.NoError(t, store.Set(ctx, key, []byte("payload"), 0))
	require.NoError(t, store.Delete(ctx, key))

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestJSONHelpers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	type resolved struct {
		Field  string   `json:"field"`
		Values []string `json:"values"`
	}
	in := resolved{Field: "nama_kabupaten_kota", Values: []string{"GARUT", "KOTA BANDUNG"}}

	key := Key("fields", "0011")
	require.NoError(t, SetJSON(ctx, store, key, in, time.Minute))

	var out resolved
	require.NoError(t, GetJSON(ctx, store, key, &out))
	assert.Equal(t, in, out)
}

func TestKey_Namespacing(t *testing.T) {
	assert.Equal(t, "stuntlytics:summary:abc", Key("summary", "abc"))
	assert.NotEqual(t, Key("summary", "abc"), Key("trend", "abc"))
}
