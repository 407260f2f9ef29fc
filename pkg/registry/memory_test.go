package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/kv"
	"github.com/dmitrymomot/pushkit/pkg/registry"
)

type recordingPusher struct {
	mu    sync.Mutex
	sent  []registry.Device
	data  [][]byte
	errFn func(registry.Device) error
}

func (p *recordingPusher) Push(_ context.Context, d registry.Device, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, d)
	p.data = append(p.data, payload)
	if p.errFn != nil {
		return p.errFn(d)
	}
	return nil
}

func (p *recordingPusher) calls() []registry.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]registry.Device(nil), p.sent...)
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func register(t *testing.T, m *registry.Memory, endpoint string) {
	t.Helper()
	require.NoError(t, m.RegisterDevice(context.Background(), registry.Subscription{
		Endpoint: endpoint,
		Keys:     registry.Keys{P256dh: "p", Auth: "a"},
	}, endpoint))
}

func TestMemory_RegisterDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("requires key", func(t *testing.T) {
		m := registry.NewMemory()
		err := m.RegisterDevice(ctx, registry.Subscription{Endpoint: "https://e/1"}, "x")
		assert.ErrorIs(t, err, registry.ErrServiceUnavailable)
	})

	t.Run("requires endpoint", func(t *testing.T) {
		m := registry.NewMemory(registry.WithPublicKey("K"))
		assert.ErrorIs(t, m.RegisterDevice(ctx, registry.Subscription{}, "x"), registry.ErrInvalidRequest)
	})

	t.Run("re-register keeps identity", func(t *testing.T) {
		m := registry.NewMemory(registry.WithPublicKey("K"), registry.WithClock(fixedClock()))
		register(t, m, "https://e/1")
		first := m.Devices()[0]

		require.NoError(t, m.RegisterDevice(ctx, registry.Subscription{
			Endpoint: "https://e/1",
			Keys:     registry.Keys{P256dh: "p2", Auth: "a2"},
		}, ""))

		devices := m.Devices()
		require.Len(t, devices, 1)
		assert.Equal(t, first.ID, devices[0].ID)
		assert.Equal(t, first.CreatedAt, devices[0].CreatedAt)
		assert.Equal(t, "p2", devices[0].Keys.P256dh)
		assert.Equal(t, "Unknown device", devices[0].Label)
	})

	t.Run("devices ordered by creation", func(t *testing.T) {
		m := registry.NewMemory(registry.WithPublicKey("K"), registry.WithClock(fixedClock()))
		register(t, m, "https://e/b")
		register(t, m, "https://e/a")
		register(t, m, "https://e/c")

		var got []string
		for _, d := range m.Devices() {
			got = append(got, d.Endpoint)
		}
		assert.Equal(t, []string{"https://e/b", "https://e/a", "https://e/c"}, got)
	})
}

func TestMemory_UpdatePreferences_Sequencing(t *testing.T) {
	ctx := context.Background()
	m := registry.NewMemory()

	require.NoError(t, m.UpdatePreferences(ctx, registry.PreferencesPatch{Push: registry.Bool(false)}, 5))
	require.NoError(t, m.UpdatePreferences(ctx, registry.PreferencesPatch{Push: registry.Bool(true)}, 4))

	prefs, err := m.Preferences(ctx)
	require.NoError(t, err)
	assert.False(t, prefs.Push, "older seq must not overwrite newer write")

	require.NoError(t, m.UpdatePreferences(ctx, registry.PreferencesPatch{Push: registry.Bool(true)}, 0))
	prefs, _ = m.Preferences(ctx)
	assert.True(t, prefs.Push, "unsequenced writes always apply")

	err = m.UpdatePreferences(ctx, registry.PreferencesPatch{Digest: registry.DigestPtr("hourly")}, 9)
	assert.ErrorIs(t, err, registry.ErrInvalidRequest)
}

func TestMemory_Feed(t *testing.T) {
	ctx := context.Background()
	m := registry.NewMemory(registry.WithClock(fixedClock()))

	n := m.Publish(registry.Notification{Kind: "bogus", Title: "x"})
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
	assert.Equal(t, registry.KindSystem, n.Kind)

	for range 60 {
		m.Publish(registry.Notification{Kind: registry.KindMention})
	}

	items, err := m.ListNotifications(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, items, 50)

	items[0].Title = "mutated"
	again, _ := m.ListNotifications(ctx, 0)
	assert.NotEqual(t, "mutated", again[0].Title, "list returns a copy")

	assert.ErrorIs(t, m.MarkRead(ctx, "nope"), registry.ErrNotFound)
	require.NoError(t, m.MarkRead(ctx, n.ID))
	require.NoError(t, m.DeleteNotification(ctx, n.ID))

	all, _ := m.ListNotifications(ctx, 500)
	assert.Len(t, all, 60)
}

func TestMemory_SendTest(t *testing.T) {
	ctx := context.Background()

	t.Run("drops gone devices", func(t *testing.T) {
		pusher := &recordingPusher{errFn: func(d registry.Device) error {
			if d.Endpoint == "https://e/gone" {
				return registry.ErrDeviceGone
			}
			return nil
		}}
		m := registry.NewMemory(registry.WithPublicKey("K"), registry.WithPusher(pusher))
		register(t, m, "https://e/ok")
		register(t, m, "https://e/gone")

		require.NoError(t, m.SendTest(ctx))
		assert.Len(t, pusher.calls(), 2)

		devices := m.Devices()
		require.Len(t, devices, 1)
		assert.Equal(t, "https://e/ok", devices[0].Endpoint)

		var payload registry.PushPayload
		require.NoError(t, json.Unmarshal(pusher.data[0], &payload))
		assert.Equal(t, registry.KindSystem, payload.Kind)
		assert.Equal(t, "pushkit-system", payload.Tag)
		assert.NotEmpty(t, payload.ID)
	})

	t.Run("returns first push error", func(t *testing.T) {
		boom := errors.New("boom")
		pusher := &recordingPusher{errFn: func(registry.Device) error { return boom }}
		m := registry.NewMemory(registry.WithPublicKey("K"), registry.WithPusher(pusher))
		register(t, m, "https://e/1")

		assert.ErrorIs(t, m.SendTest(ctx), boom)
		items, _ := m.ListNotifications(ctx, 0)
		assert.Len(t, items, 1, "notification is recorded even when push fails")
	})

	t.Run("respects preferences", func(t *testing.T) {
		prefs := registry.DefaultPreferences()
		prefs.Enabled = false
		pusher := &recordingPusher{}
		m := registry.NewMemory(registry.WithPublicKey("K"), registry.WithPusher(pusher), registry.WithInitialPreferences(prefs))
		register(t, m, "https://e/1")

		require.NoError(t, m.SendTest(ctx))
		assert.Empty(t, pusher.calls())
	})
}

type failingStore struct{ kv.Store }

func (failingStore) Set(context.Context, string, []byte) error {
	return kv.ErrStoreIO
}

func TestMemory_PersistsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	first := registry.NewMemory(
		registry.WithPublicKey("K"),
		registry.WithClock(fixedClock()),
		registry.WithStore(kv.NewFile(path), "registry"),
	)
	require.NoError(t, first.Load(ctx))
	register(t, first, "https://e/1")
	register(t, first, "https://e/2")
	require.NoError(t, first.UnregisterDevice(ctx, "https://e/2"))
	require.NoError(t, first.UpdatePreferences(ctx, registry.PreferencesPatch{BillReminders: registry.Bool(false)}, 7))
	require.NoError(t, first.SendTest(ctx))
	mention := first.Publish(registry.Notification{Kind: registry.KindMention, Title: "hi"})
	require.NoError(t, first.MarkRead(ctx, mention.ID))

	second := registry.NewMemory(
		registry.WithPublicKey("K"),
		registry.WithStore(kv.NewFile(path), "registry"),
	)
	require.NoError(t, second.Load(ctx))

	devices := second.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, first.Devices()[0], devices[0])

	prefs, err := second.Preferences(ctx)
	require.NoError(t, err)
	assert.False(t, prefs.BillReminders)

	// the sequence survives: an older write is still dropped
	require.NoError(t, second.UpdatePreferences(ctx, registry.PreferencesPatch{BillReminders: registry.Bool(true)}, 6))
	prefs, err = second.Preferences(ctx)
	require.NoError(t, err)
	assert.False(t, prefs.BillReminders)

	list, err := second.ListNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Test notification", list[0].Title)
	assert.Equal(t, mention.ID, list[1].ID)
	assert.True(t, list[1].Read)
	assert.Equal(t, registry.KindMention, list[1].Kind)
}

func TestMemory_LoadWithoutSavedState(t *testing.T) {
	m := registry.NewMemory(registry.WithStore(kv.NewMemory(), "registry"))
	require.NoError(t, m.Load(context.Background()))

	prefs, err := m.Preferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultPreferences(), prefs)
	assert.Empty(t, m.Devices())
}

func TestMemory_StorageFailure(t *testing.T) {
	ctx := context.Background()
	m := registry.NewMemory(
		registry.WithPublicKey("K"),
		registry.WithStore(failingStore{kv.NewMemory()}, "registry"),
	)

	err := m.RegisterDevice(ctx, registry.Subscription{Endpoint: "https://e/1"}, "x")
	assert.ErrorIs(t, err, registry.ErrStorage)
	assert.ErrorIs(t, err, kv.ErrStoreIO)

	assert.ErrorIs(t, m.SendTest(ctx), registry.ErrStorage)
}

func TestMemory_LoadCorruptedState(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "registry", []byte("{")))

	m := registry.NewMemory(registry.WithStore(store, "registry"))
	err := m.Load(ctx)
	assert.ErrorIs(t, err, registry.ErrStorage)
	assert.ErrorIs(t, err, kv.ErrCorrupted)
}
