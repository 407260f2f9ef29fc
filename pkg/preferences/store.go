package preferences

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/pushkit/pkg/kv"
	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/optimistic"
	"github.com/dmitrymomot/pushkit/pkg/registry"
)

// Preferences is the flat record of delivery switches.
type Preferences = registry.Preferences

// Patch carries the fields to change; nil fields are left alone.
type Patch = registry.PreferencesPatch

const keySnapshot = "preferences/snapshot"

// write is a Set in flight. prev is the record it was applied over; a Load
// that replays the write moves prev to the freshly fetched base. Guarded by
// Store.mu.
type write struct {
	patch Patch
	prev  *Preferences
}

type snapshot struct {
	Preferences Preferences `json:"preferences"`
	Seq         uint64      `json:"seq"`
}

// Defaults returns the preferences served before anything is known.
func Defaults() Preferences {
	return registry.DefaultPreferences()
}

// Store is the client-side view of the preference record. Safe for
// concurrent use; no lock is held across registry calls. With WithStore the
// persisted snapshot is read once by NewStore.
type Store struct {
	registry    registry.Registry
	kv          kv.Store
	logger      *slog.Logger
	callTimeout time.Duration
	now         func() time.Time
	queue       *optimistic.Queue[write]

	persistMu sync.Mutex

	mu      sync.Mutex
	prefs   Preferences
	seq     uint64
	gen     uint64
	loading bool
	mark    uint64
	closed  bool
	lastErr error
}

func NewStore(reg registry.Registry, opts ...Option) *Store {
	s := &Store{
		registry:    reg,
		logger:      slog.Default(),
		callTimeout: 10 * time.Second,
		now:         time.Now,
		queue:       optimistic.New[write](),
		prefs:       Defaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore(context.Background())
	return s
}

// Get returns the current local preferences.
func (s *Store) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Allows reports whether kind may be delivered over channel under the current
// preferences. The master switch overrides everything else.
func (s *Store) Allows(kind registry.Kind, channel registry.Channel) bool {
	return s.Get().Allows(kind, channel)
}

// LastError returns the error of the most recent failed call, nil after a success.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load fetches the remote record. Local writes that are still in flight or
// were made during the fetch are re-applied on top of it. On failure the
// previous value stays in place and the error is returned.
func (s *Store) Load(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return s.prefs, ErrClosed
	}
	s.gen++
	gen := s.gen
	mark := s.queue.Seq()
	s.loading, s.mark = true, mark
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	remote, err := s.registry.Preferences(callCtx)
	cancel()

	s.mu.Lock()
	if gen == s.gen {
		s.loading = false
	}
	switch {
	case s.closed:
		defer s.mu.Unlock()
		return s.prefs, ErrClosed
	case err != nil:
		err = networkError(err)
		s.lastErr = err
		prefs := s.prefs
		s.mu.Unlock()

		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to load preferences",
			logger.Component("preferences"),
			logger.Error(err),
		)
		return prefs, err
	case gen != s.gen:
		// a newer Load owns the result
		defer s.mu.Unlock()
		return s.prefs, nil
	}

	for _, w := range s.queue.Outstanding(mark) {
		*w.prev = remote
		remote = w.patch.ApplyTo(remote)
	}
	s.prefs = remote
	s.lastErr = nil
	s.mu.Unlock()

	s.prune()
	s.persist(ctx)
	return remote, nil
}

// Set merges patch into the local preferences immediately and then sends it
// to the registry. If the registry call fails, each patched field that no
// later Set has touched gets its previous value back, or the value a Load
// fetched meanwhile; the error is returned and kept as LastError.
func (s *Store) Set(ctx context.Context, patch Patch) (Preferences, error) {
	if err := patch.Validate(); err != nil {
		return s.Get(), err
	}
	if patch.IsEmpty() {
		return s.Get(), nil
	}

	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return s.prefs, ErrClosed
	}
	prev := s.prefs
	s.prefs = patch.ApplyTo(s.prefs)
	seq := s.nextSeq()
	id := s.queue.Begin(write{patch: patch, prev: &prev}, s.compensate)
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	err := networkError(s.registry.UpdatePreferences(callCtx, patch, seq))
	cancel()

	if err != nil {
		_ = s.queue.Rollback(id)

		s.mu.Lock()
		if !s.closed {
			s.lastErr = err
		}
		prefs := s.prefs
		s.mu.Unlock()

		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to update preferences",
			logger.Component("preferences"),
			logger.Sequence(seq),
			slog.Any("fields", patch.Fields()),
			logger.Error(err),
		)
		s.prune()
		return prefs, err
	}

	_ = s.queue.Commit(id)

	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return s.prefs, nil
	}
	s.lastErr = nil
	prefs := s.prefs
	s.mu.Unlock()

	s.prune()
	s.persist(ctx)
	return prefs, nil
}

// Close makes results of calls still in flight no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// compensate restores the fields of a failed write to their value before it,
// skipping fields a later write has overwritten.
func (s *Store) compensate(w write, later []write) {
	fields := w.patch.Fields()
	for _, l := range later {
		fields = slices.DeleteFunc(fields, func(f registry.Field) bool {
			return slices.Contains(l.patch.Fields(), f)
		})
	}
	if len(fields) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.prefs = registry.PatchFrom(*w.prev, fields...).ApplyTo(s.prefs)
}

// nextSeq returns a write sequence that is strictly increasing within the
// store and follows wall clock time across processes. Caller holds s.mu.
func (s *Store) nextSeq() uint64 {
	seq := uint64(s.now().UnixMicro())
	if seq <= s.seq {
		seq = s.seq + 1
	}
	s.seq = seq
	return seq
}

// prune drops settled writes once nothing is in flight, so a later rollback
// still sees every write that followed it. Writes a running Load has to
// replay are kept.
func (s *Store) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Pending() > 0 {
		return
	}
	upTo := s.queue.Seq()
	if s.loading {
		upTo = s.mark
	}
	s.queue.Prune(upTo)
}

// restore seeds the store from the persisted snapshot.
func (s *Store) restore(ctx context.Context) {
	if s.kv == nil {
		return
	}

	var snap snapshot
	err := kv.GetJSON(ctx, s.kv, keySnapshot, &snap)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to restore preferences",
			logger.Component("preferences"),
			logger.Error(err),
		)
	default:
		s.prefs = snap.Preferences
		s.seq = snap.Seq
	}
}

func (s *Store) persist(ctx context.Context) {
	if s.kv == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := snapshot{Preferences: s.prefs, Seq: s.seq}
	s.mu.Unlock()

	if err := kv.SetJSON(ctx, s.kv, keySnapshot, snap); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to persist preferences",
			logger.Component("preferences"),
			logger.Error(err),
		)
	}
}

func networkError(err error) error {
	if err == nil || errors.Is(err, registry.ErrNetworkFailure) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(registry.ErrNetworkFailure, err)
	}
	return err
}
