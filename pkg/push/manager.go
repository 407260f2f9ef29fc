package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/kv"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/registry"
	"github.com/dmitrymomot/pushkit/pkg/statemachine"
	"github.com/dmitrymomot/pushkit/pkg/vapid"
)

const (
	keySubscription = "push/subscription"
	keyOrphans      = "push/orphans"
)

// record is what the manager persists about its own registration.
type record struct {
	Endpoint     string    `json:"endpoint"`
	Label        string    `json:"label"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Manager negotiates the device push subscription and keeps the registry in
// sync with it. All methods are safe for concurrent use. Subscribe and
// Unsubscribe are mutually exclusive; a second call while one is running gets
// ErrBusy.
type Manager struct {
	platform    Platform
	registry    registry.Registry
	store       kv.Store
	logger      *slog.Logger
	callTimeout time.Duration
	machine     *statemachine.Machine[State, event]

	persistMu sync.Mutex // serializes kv writes

	mu           sync.Mutex
	busy         bool
	gen          uint64
	closed       bool
	loaded       bool
	permission   Permission
	subscription *registry.Subscription
	label        string
	persisted    *record
	orphans      []string
	lastErr      error
}

// NewManager creates a manager. The initial state is StateUnsupported or
// StateIdle depending on platform.Supported; no other call is made.
func NewManager(platform Platform, reg registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		platform:    platform,
		registry:    reg,
		store:       kv.NewMemory(),
		logger:      slog.Default(),
		callTimeout: 10 * time.Second,
		permission:  PermissionDefault,
	}
	for _, opt := range opts {
		opt(m)
	}

	initial := StateIdle
	if !platform.Supported() {
		initial = StateUnsupported
	}
	m.machine = newMachine(initial, func(from, to State, e event) {
		m.logger.LogAttrs(context.Background(), slog.LevelDebug, "push state changed",
			logger.Component("push"),
			slog.String("from", string(from)),
			logger.State(string(to)),
			slog.String("event", string(e)),
		)
	})
	return m
}

// Status returns a snapshot without touching the platform or the network.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// CheckStatus refreshes the view of the platform channel and permission.
// It never calls a mutating registry endpoint and never fails: query errors
// leave the manager idle with LastError set. While a subscribe or unsubscribe
// is running the current snapshot is returned as is.
func (m *Manager) CheckStatus(ctx context.Context) Status {
	m.mu.Lock()
	if m.closed || m.busy || m.machine.Is(StateUnsupported) {
		defer m.mu.Unlock()
		return m.snapshot()
	}
	m.gen++
	gen := m.gen
	m.fire(ctx, evCheck, nil)
	m.mu.Unlock()

	m.load(ctx)

	perm, sub, err := m.query(ctx)

	m.mu.Lock()
	if m.closed || gen != m.gen {
		defer m.mu.Unlock()
		return m.snapshot()
	}

	if err != nil {
		m.subscription = nil
		m.lastErr = err
		m.fire(ctx, evResolve, false)
		status := m.snapshot()
		m.mu.Unlock()

		m.logger.LogAttrs(ctx, slog.LevelWarn, "push status check failed",
			logger.Component("push"),
			logger.Error(err),
		)
		return status
	}

	m.permission = perm
	m.subscription = sub
	m.lastErr = nil
	rotated := m.detectRotation(ctx, sub)
	m.fire(ctx, evResolve, sub != nil && perm == PermissionGranted)
	status := m.snapshot()
	m.mu.Unlock()

	if rotated {
		m.flush(ctx)
	}
	return status
}

func (m *Manager) query(ctx context.Context) (Permission, *registry.Subscription, error) {
	callCtx, cancel := m.call(ctx)
	defer cancel()

	perm, err := m.platform.Permission(callCtx)
	if err != nil {
		return "", nil, channelError("read permission", err)
	}
	sub, err := m.platform.ActiveChannel(callCtx)
	if err != nil {
		return "", nil, channelError("read channel", err)
	}
	return perm, sub, nil
}

// detectRotation queues the persisted endpoint for cleanup when the platform
// no longer holds it and reports whether persisted state changed.
// Caller holds m.mu.
func (m *Manager) detectRotation(ctx context.Context, sub *registry.Subscription) bool {
	if m.persisted == nil {
		return false
	}
	if sub != nil && sub.Endpoint == m.persisted.Endpoint {
		if m.label == "" {
			m.label = m.persisted.Label
		}
		return false
	}

	m.logger.LogAttrs(ctx, slog.LevelInfo, "registered push channel disappeared",
		logger.Component("push"),
		logger.Endpoint(m.persisted.Endpoint),
	)
	m.addOrphan(m.persisted.Endpoint)
	m.persisted = nil
	m.label = ""
	return true
}

// Subscribe asks for permission, opens the platform channel with the server
// key and registers it under label. A denied permission restores the previous
// state and never prompts twice in a session. Failures after the permission
// step leave the manager in StateError; nothing is retried automatically.
func (m *Manager) Subscribe(ctx context.Context, label string) (Status, error) {
	m.mu.Lock()
	if err := m.begin(); err != nil {
		defer m.mu.Unlock()
		return m.snapshot(), err
	}
	prev := m.subscription
	wasSubscribed := m.machine.Is(StateSubscribed)
	cachedPerm := m.permission
	m.fire(ctx, evSubscribe, nil)
	m.mu.Unlock()

	defer m.end()

	m.load(ctx)

	perm, err := m.requestPermission(ctx, cachedPerm)
	if err != nil {
		return m.settle(func() {
			if perm != "" {
				m.permission = perm
			}
			m.lastErr = err
			m.fire(ctx, evAbort, wasSubscribed)
		}), err
	}

	sub, err := m.openChannel(ctx)
	if err != nil {
		return m.fail(ctx, "subscribe", err)
	}

	label = registry.NormalizeLabel(label)
	if err := m.register(ctx, *sub, label); err != nil {
		if prev == nil || prev.Endpoint != sub.Endpoint {
			m.closeFresh(ctx)
		}
		return m.fail(ctx, "subscribe", err)
	}

	if prev != nil && prev.Endpoint != sub.Endpoint {
		m.retire(ctx, prev.Endpoint)
	} else if p := m.persistedRecord(); p != nil && p.Endpoint != sub.Endpoint {
		m.retire(ctx, p.Endpoint)
	}

	m.logger.LogAttrs(ctx, slog.LevelInfo, "push subscription registered",
		logger.Component("push"),
		logger.Endpoint(sub.Endpoint),
		logger.DeviceLabel(label),
	)

	status := m.settle(func() {
		m.permission = PermissionGranted
		m.subscription = sub
		m.label = label
		m.persisted = &record{Endpoint: sub.Endpoint, Label: label, RegisteredAt: time.Now()}
		m.lastErr = nil
		m.fire(ctx, evSubscribed, nil)
	})
	m.flush(ctx)
	return status, nil
}

func (m *Manager) requestPermission(ctx context.Context, cached Permission) (Permission, error) {
	if cached == PermissionDenied {
		return PermissionDenied, ErrPermissionDenied
	}
	perm, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return "", errors.Join(ErrPermissionDenied, err)
	}
	if perm != PermissionGranted {
		return perm, ErrPermissionDenied
	}
	return perm, nil
}

func (m *Manager) openChannel(ctx context.Context) (*registry.Subscription, error) {
	callCtx, cancel := m.call(ctx)
	defer cancel()

	info, err := m.registry.VAPIDKey(callCtx)
	if err != nil {
		if errors.Is(err, ErrServiceUnavailable) {
			return nil, err
		}
		return nil, networkError(err)
	}
	if !info.Available {
		return nil, ErrServiceUnavailable
	}

	key, err := vapid.DecodeServerKey(info.PublicKey)
	if err != nil {
		return nil, err
	}
	if err := vapid.ValidatePublicKey(key); err != nil {
		return nil, errors.Join(ErrInvalidKeyFormat, err)
	}

	openCtx, cancelOpen := m.call(ctx)
	defer cancelOpen()

	sub, err := m.platform.OpenChannel(openCtx, ChannelOptions{ServerKey: key, UserVisibleOnly: true})
	if err != nil {
		return nil, channelError("open channel", err)
	}
	if sub == nil || sub.Endpoint == "" {
		return nil, fmt.Errorf("%w: platform returned no subscription", ErrChannel)
	}
	return sub, nil
}

func (m *Manager) register(ctx context.Context, sub registry.Subscription, label string) error {
	callCtx, cancel := m.call(ctx)
	defer cancel()
	return networkError(m.registry.RegisterDevice(callCtx, sub, label))
}

// closeFresh drops a channel opened by a subscribe that failed to register.
func (m *Manager) closeFresh(ctx context.Context) {
	callCtx, cancel := m.call(ctx)
	defer cancel()
	if err := m.platform.CloseChannel(callCtx); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to close unregistered push channel",
			logger.Component("push"),
			logger.Error(err),
		)
	}
}

// retire unregisters an endpoint replaced by a new subscription. Failures are
// queued for Reconcile.
func (m *Manager) retire(ctx context.Context, endpoint string) {
	callCtx, cancel := m.call(ctx)
	defer cancel()
	if err := m.registry.UnregisterDevice(callCtx, endpoint); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to unregister superseded endpoint",
			logger.Component("push"),
			logger.Endpoint(endpoint),
			logger.Error(err),
		)
		m.mu.Lock()
		m.addOrphan(endpoint)
		m.mu.Unlock()
		m.flush(ctx)
	}
}

// Unsubscribe removes the remote registration and closes the platform channel.
// Both steps are always attempted; their errors are joined. The manager ends
// up idle either way, and an endpoint that could not be unregistered is kept
// for Reconcile. Without an active subscription it is a no-op.
func (m *Manager) Unsubscribe(ctx context.Context) (Status, error) {
	m.mu.Lock()
	if err := m.begin(); err != nil {
		defer m.mu.Unlock()
		return m.snapshot(), err
	}
	sub := m.subscription
	m.mu.Unlock()

	defer m.end()

	m.load(ctx)

	if sub == nil {
		callCtx, cancel := m.call(ctx)
		active, err := m.platform.ActiveChannel(callCtx)
		cancel()
		if err != nil {
			err = channelError("read channel", err)
			return m.settle(func() { m.lastErr = err }), err
		}
		if active == nil {
			return m.Status(), nil
		}
		sub = active
	}

	m.mu.Lock()
	m.fire(ctx, evUnsubscribe, nil)
	m.mu.Unlock()

	var remoteErr, closeErr error
	func() {
		callCtx, cancel := m.call(ctx)
		defer cancel()
		remoteErr = networkError(m.registry.UnregisterDevice(callCtx, sub.Endpoint))
	}()
	func() {
		callCtx, cancel := m.call(ctx)
		defer cancel()
		if err := m.platform.CloseChannel(callCtx); err != nil {
			closeErr = channelError("close channel", err)
		}
	}()

	if remoteErr != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to unregister push endpoint",
			logger.Component("push"),
			logger.Endpoint(sub.Endpoint),
			logger.Error(remoteErr),
		)
	}

	err := errors.Join(remoteErr, closeErr)
	status := m.settle(func() {
		if remoteErr != nil {
			m.addOrphan(sub.Endpoint)
		}
		m.subscription = nil
		m.label = ""
		m.persisted = nil
		m.lastErr = err
		m.fire(ctx, evUnsubscribed, nil)
	})
	m.flush(ctx)
	return status, err
}

// Reconcile retries unregistering endpoints left behind by failed
// unsubscribes or rotated channels. The local channel is not touched.
// Endpoints that still fail stay queued and their errors are joined.
func (m *Manager) Reconcile(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.mu.Unlock()

	m.load(ctx)

	m.mu.Lock()
	pending := slices.Clone(m.orphans)
	m.mu.Unlock()

	var (
		errs []error
		done []string
	)
	for _, endpoint := range pending {
		callCtx, cancel := m.call(ctx)
		err := networkError(m.registry.UnregisterDevice(callCtx, endpoint))
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", endpoint, err))
			continue
		}
		done = append(done, endpoint)
	}

	err := errors.Join(errs...)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.orphans = slices.DeleteFunc(m.orphans, func(e string) bool { return slices.Contains(done, e) })
	remaining := len(m.orphans)
	if err != nil {
		m.lastErr = err
	}
	m.mu.Unlock()

	if len(done) > 0 {
		m.flush(ctx)
	}

	m.logger.LogAttrs(ctx, slog.LevelDebug, "push reconcile finished",
		logger.Component("push"),
		logger.Count(len(done)),
		slog.Int("remaining", remaining),
	)
	return err
}

// Close stops the manager. Operations still running complete, but their
// results are discarded; later calls return ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// begin claims the mutation slot. Caller holds m.mu.
func (m *Manager) begin() error {
	switch {
	case m.closed:
		return ErrClosed
	case m.machine.Is(StateUnsupported):
		m.lastErr = ErrUnsupported
		return ErrUnsupported
	case m.busy:
		return ErrBusy
	}
	m.busy = true
	m.gen++
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// settle applies fn unless the manager was closed meanwhile, then returns a snapshot.
func (m *Manager) settle(fn func()) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		fn()
	}
	return m.snapshot()
}

func (m *Manager) fail(ctx context.Context, op string, err error) (Status, error) {
	m.logger.LogAttrs(ctx, slog.LevelWarn, "push "+op+" failed",
		logger.Component("push"),
		logger.Operation(op),
		logger.Error(err),
	)
	return m.settle(func() {
		m.lastErr = err
		m.fire(ctx, evFail, nil)
	}), err
}

// fire applies a transition. A rejected transition means the state moved
// under us, which only happens after Close; it is logged and ignored.
// Caller holds m.mu.
func (m *Manager) fire(ctx context.Context, e event, data any) {
	if err := m.machine.Fire(ctx, e, data); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelDebug, "push transition skipped",
			logger.Component("push"),
			logger.State(string(m.machine.Current())),
			slog.String("event", string(e)),
			logger.Error(err),
		)
	}
}

// snapshot builds a Status. Caller holds m.mu.
func (m *Manager) snapshot() Status {
	state := m.machine.Current()
	s := Status{
		State:          state,
		Supported:      state != StateUnsupported,
		Subscribed:     state == StateSubscribed,
		Permission:     m.permission,
		Label:          m.label,
		PendingCleanup: slices.Clone(m.orphans),
		LastError:      m.lastErr,
	}
	if m.subscription != nil {
		sub := *m.subscription
		s.Subscription = &sub
	}
	return s
}

func (m *Manager) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.callTimeout)
}

func (m *Manager) persistedRecord() *record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persisted
}

// load reads persisted state once. Storage errors are logged; the manager
// then works from memory only.
func (m *Manager) load(ctx context.Context) {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	var (
		rec     record
		orphans []string
	)
	recErr := kv.GetJSON(ctx, m.store, keySubscription, &rec)
	orphErr := kv.GetJSON(ctx, m.store, keyOrphans, &orphans)
	for _, err := range []error{recErr, orphErr} {
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to load push state",
				logger.Component("push"),
				logger.Error(err),
			)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return
	}
	m.loaded = true
	if recErr == nil && rec.Endpoint != "" && m.persisted == nil {
		m.persisted = &rec
	}
	for _, e := range orphans {
		if e != "" && !slices.Contains(m.orphans, e) {
			m.orphans = append(m.orphans, e)
		}
	}
}

// addOrphan queues endpoint for Reconcile. Caller holds m.mu and calls
// flush after releasing it.
func (m *Manager) addOrphan(endpoint string) {
	if endpoint != "" && !slices.Contains(m.orphans, endpoint) {
		m.orphans = append(m.orphans, endpoint)
	}
}

// flush writes the registration record and the cleanup queue to the store.
// Errors are logged; the in-memory state stays authoritative for the session.
func (m *Manager) flush(ctx context.Context) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	var rec *record
	if m.persisted != nil {
		r := *m.persisted
		rec = &r
	}
	orphans := slices.Clone(m.orphans)
	m.mu.Unlock()

	var errs []error
	if rec != nil {
		errs = append(errs, kv.SetJSON(ctx, m.store, keySubscription, rec))
	} else {
		errs = append(errs, m.store.Delete(ctx, keySubscription))
	}
	if len(orphans) > 0 {
		errs = append(errs, kv.SetJSON(ctx, m.store, keyOrphans, orphans))
	} else {
		errs = append(errs, m.store.Delete(ctx, keyOrphans))
	}

	if err := errors.Join(errs...); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist push state",
			logger.Component("push"),
			logger.Count(len(orphans)),
			logger.Error(err),
		)
	}
}

// networkError tags registry failures and call timeouts as ErrNetworkFailure.
func networkError(err error) error {
	if err == nil || errors.Is(err, ErrNetworkFailure) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrNetworkFailure, err)
	}
	return err
}

func channelError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrNetworkFailure, fmt.Errorf("%s: %w", op, err))
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrChannel) {
		return err
	}
	return errors.Join(ErrChannel, fmt.Errorf("%s: %w", op, err))
}
