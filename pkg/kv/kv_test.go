package kv_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/kv"
)

func stores(t *testing.T) map[string]kv.Store {
	t.Helper()
	out := map[string]kv.Store{
		"memory": kv.NewMemory(),
		"file":   kv.NewFile(filepath.Join(t.TempDir(), "nested", "state.json")),
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		require.NoError(t, err)
		client := redis.NewClient(opts)
		t.Cleanup(func() { _ = client.Close() })
		out["redis"] = kv.NewRedis(client, kv.WithPrefix("pushkit-test:"+t.Name()+":"))
	}
	return out
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, kv.ErrNotFound)

			require.NoError(t, s.Set(ctx, "a", []byte("one")))
			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			require.NoError(t, s.Set(ctx, "a", []byte("two")))
			got, err = s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			require.NoError(t, s.Delete(ctx, "a"))
			require.NoError(t, s.Delete(ctx, "a"), "deleting a missing key is a no-op")
			_, err = s.Get(ctx, "a")
			assert.ErrorIs(t, err, kv.ErrNotFound)

			assert.ErrorIs(t, s.Set(ctx, "", nil), kv.ErrEmptyKey)
			_, err = s.Get(ctx, "")
			assert.ErrorIs(t, err, kv.ErrEmptyKey)
			assert.ErrorIs(t, s.Delete(ctx, ""), kv.ErrEmptyKey)
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()

	type snapshot struct {
		Endpoint string   `json:"endpoint"`
		Orphans  []string `json:"orphans"`
	}

	in := snapshot{Endpoint: "https://push.example.com/1", Orphans: []string{"a", "b"}}
	require.NoError(t, kv.SetJSON(ctx, s, "snap", in))

	var out snapshot
	require.NoError(t, kv.GetJSON(ctx, s, "snap", &out))
	assert.Equal(t, in, out)

	assert.ErrorIs(t, kv.GetJSON(ctx, s, "nope", &out), kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, "bad", []byte("{")))
	assert.ErrorIs(t, kv.GetJSON(ctx, s, "bad", &out), kv.ErrCorrupted)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
	assert.Equal(t, 1, s.Len())
}

func TestFile_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, kv.NewFile(path).Set(ctx, "push/active", []byte(`{"endpoint":"x"}`)))

	got, err := kv.NewFile(path).Get(ctx, "push/active")
	require.NoError(t, err)
	assert.JSONEq(t, `{"endpoint":"x"}`, string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestFile_Corrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := kv.NewFile(path).Get(context.Background(), "k")
	assert.ErrorIs(t, err, kv.ErrCorrupted)
}
