package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pushkit/pkg/async"
	"github.com/dmitrymomot/pushkit/pkg/kv"
)

// Pusher delivers a payload to a registered device. The reference server
// plugs in a Web Push sender; nil means SendTest only records a notification.
type Pusher interface {
	Push(ctx context.Context, device Device, payload []byte) error
}

// Memory is an in-process Registry for a single user. It is safe for
// concurrent use and suitable for tests and development servers.
// With WithStore every change is also written to a kv.Store.
type Memory struct {
	mu            sync.RWMutex
	key           KeyInfo
	devices       map[string]Device // endpoint -> device
	prefs         Preferences
	prefsSeq      uint64
	notifications []Notification
	pusher        Pusher
	now           func() time.Time

	store    kv.Store
	storeKey string
}

// memoryState is the persisted form of a Memory registry. The VAPID key is
// not part of it.
type memoryState struct {
	Devices       []Device       `json:"devices"`
	Preferences   Preferences    `json:"preferences"`
	PrefsSeq      uint64         `json:"prefsSeq"`
	Notifications []Notification `json:"notifications"`
}

var _ Registry = (*Memory)(nil)

// MemoryOption configures a Memory registry.
type MemoryOption func(*Memory)

// WithPublicKey makes the VAPID key available.
func WithPublicKey(publicKey string) MemoryOption {
	return func(m *Memory) {
		m.key = KeyInfo{PublicKey: publicKey, Available: publicKey != ""}
	}
}

// WithPusher sets the transport used by SendTest.
func WithPusher(p Pusher) MemoryOption {
	return func(m *Memory) { m.pusher = p }
}

// WithInitialPreferences replaces the default preference record.
func WithInitialPreferences(p Preferences) MemoryOption {
	return func(m *Memory) { m.prefs = p }
}

// WithStore saves the whole registry state under key after every change.
// Call Load once before serving to restore what was saved.
func WithStore(store kv.Store, key string) MemoryOption {
	return func(m *Memory) {
		m.store = store
		m.storeKey = key
	}
}

// WithClock overrides time.Now for notification timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty in-memory registry.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		devices: make(map[string]Device),
		prefs:   DefaultPreferences(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load replaces the current state with the one saved in the store. A store
// without saved state leaves the registry as it is.
func (m *Memory) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	var st memoryState
	err := kv.GetJSON(ctx, m.store, m.storeKey, &st)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return nil
	case err != nil:
		return errors.Join(ErrStorage, fmt.Errorf("load state: %w", err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices = make(map[string]Device, len(st.Devices))
	for _, d := range st.Devices {
		m.devices[d.Endpoint] = d
	}
	if st.Preferences.Digest.Valid() {
		m.prefs = st.Preferences
	}
	m.prefsSeq = st.PrefsSeq
	m.notifications = st.Notifications
	return nil
}

// save writes the state to the store. The caller holds m.mu. On failure the
// in-memory state stays ahead of the store until the next successful save.
func (m *Memory) save(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	st := memoryState{
		Devices:       make([]Device, 0, len(m.devices)),
		Preferences:   m.prefs,
		PrefsSeq:      m.prefsSeq,
		Notifications: m.notifications,
	}
	for _, d := range m.devices {
		st.Devices = append(st.Devices, d)
	}
	slices.SortFunc(st.Devices, func(a, b Device) int { return a.CreatedAt.Compare(b.CreatedAt) })

	if err := kv.SetJSON(ctx, m.store, m.storeKey, st); err != nil {
		return errors.Join(ErrStorage, fmt.Errorf("save state: %w", err))
	}
	return nil
}

func (m *Memory) VAPIDKey(ctx context.Context) (KeyInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key, nil
}

func (m *Memory) RegisterDevice(ctx context.Context, sub Subscription, label string) error {
	if sub.Endpoint == "" {
		return ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.key.Available {
		return ErrServiceUnavailable
	}

	device, exists := m.devices[sub.Endpoint]
	if !exists {
		device = Device{ID: uuid.NewString(), Endpoint: sub.Endpoint, CreatedAt: m.now()}
	}
	device.Keys = sub.Keys
	device.Label = NormalizeLabel(label)
	m.devices[sub.Endpoint] = device
	return m.save(ctx)
}

func (m *Memory) UnregisterDevice(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[endpoint]; !ok {
		return nil
	}
	delete(m.devices, endpoint)
	return m.save(ctx)
}

// Devices returns registered devices ordered by creation time.
func (m *Memory) Devices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Device) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (m *Memory) Preferences(ctx context.Context) (Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefs, nil
}

// UpdatePreferences keeps the write with the highest seq. A stale write is
// acknowledged but dropped; seq 0 always applies.
func (m *Memory) UpdatePreferences(ctx context.Context, patch PreferencesPatch, seq uint64) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != 0 && seq < m.prefsSeq {
		return nil
	}
	if seq > m.prefsSeq {
		m.prefsSeq = seq
	}
	m.prefs = patch.ApplyTo(m.prefs)
	return m.save(ctx)
}

// ListNotifications returns the newest limit records, oldest first, so callers
// cannot depend on server ordering.
func (m *Memory) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.notifications)
	start := max(n-limit, 0)
	return slices.Clone(m.notifications[start:]), nil
}

func (m *Memory) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].Read = true
			return m.save(ctx)
		}
	}
	return ErrNotFound
}

func (m *Memory) MarkAllRead(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.notifications {
		m.notifications[i].Read = true
	}
	return m.save(ctx)
}

func (m *Memory) DeleteNotification(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.notifications)
	m.notifications = slices.DeleteFunc(m.notifications, func(n Notification) bool { return n.ID == id })
	if len(m.notifications) == before {
		return nil
	}
	return m.save(ctx)
}

// Publish appends a notification, filling in ID and CreatedAt when empty.
// Records are kept in creation order. A storage error is not reported; the
// record is saved again with the next change.
func (m *Memory) Publish(n Notification) Notification {
	n, _ = m.publish(context.Background(), n)
	return n
}

func (m *Memory) publish(ctx context.Context, n Notification) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.now()
	}
	if !n.Kind.Valid() {
		n.Kind = KindSystem
	}
	m.notifications = append(m.notifications, n)
	return n, m.save(ctx)
}

// SendTest records a system notification and pushes it to every device when
// preferences allow push. Devices reported as gone are unregistered; the first
// other push error is returned.
func (m *Memory) SendTest(ctx context.Context) error {
	n, err := m.publish(ctx, Notification{
		Kind:  KindSystem,
		Title: "Test notification",
		Body:  "Push delivery is working.",
	})
	if err != nil {
		return err
	}

	m.mu.RLock()
	pusher := m.pusher
	prefs := m.prefs
	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	m.mu.RUnlock()

	if pusher == nil || !prefs.Allows(n.Kind, ChannelPush) {
		return nil
	}

	payload, err := encodePushPayload(n)
	if err != nil {
		return err
	}

	// devices are pushed concurrently; outcomes are handled in device order
	futures := make([]*async.Future[struct{}], len(devices))
	for i, d := range devices {
		futures[i] = async.Async(ctx, d, func(ctx context.Context, d Device) (struct{}, error) {
			return struct{}{}, pusher.Push(ctx, d, payload)
		})
	}

	var firstErr error
	for i, f := range futures {
		_, err := f.Await()
		switch {
		case err == nil:
		case errors.Is(err, ErrDeviceGone):
			_ = m.UnregisterDevice(ctx, devices[i].Endpoint)
		case firstErr == nil:
			firstErr = err
		}
	}
	return firstErr
}
