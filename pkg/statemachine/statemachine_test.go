package statemachine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrymomot/pushkit/pkg/statemachine"
)

type state string
type event string

const (
	idle        state = "idle"
	subscribing state = "subscribing"
	subscribed  state = "subscribed"
	failed      state = "error"

	subscribe event = "subscribe"
	complete  event = "complete"
	fail      event = "fail"
	abort     event = "abort"
)

func newMachine(t *testing.T, opts ...statemachine.Option[state, event]) *statemachine.Machine[state, event] {
	t.Helper()
	hadSubscription := func(_ context.Context, _ state, data any) bool {
		had, _ := data.(bool)
		return had
	}

	base := []statemachine.Option[state, event]{
		statemachine.WithTransition(statemachine.From(idle, subscribed, failed), subscribing, subscribe),
		statemachine.WithTransition(statemachine.From(subscribing), subscribed, complete),
		statemachine.WithTransition(statemachine.From(subscribing), failed, fail),
		statemachine.WithTransition(statemachine.From(subscribing), subscribed, abort,
			statemachine.WithGuard(hadSubscription)),
		statemachine.WithTransition(statemachine.From(subscribing), idle, abort),
	}
	m, err := statemachine.New(idle, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMachine_Transitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newMachine(t)

	if m.Current() != idle {
		t.Fatalf("expected %s, got %s", idle, m.Current())
	}
	if !m.CanFire(ctx, subscribe, nil) {
		t.Fatal("expected subscribe to be allowed from idle")
	}
	if m.CanFire(ctx, complete, nil) {
		t.Fatal("complete must not be allowed from idle")
	}

	for _, e := range []event{subscribe, complete, subscribe, fail} {
		if err := m.Fire(ctx, e, nil); err != nil {
			t.Fatalf("Fire(%s): %v", e, err)
		}
	}
	if !m.Is(failed) {
		t.Fatalf("expected %s, got %s", failed, m.Current())
	}

	m.Reset()
	if m.Current() != idle {
		t.Fatalf("expected %s after reset, got %s", idle, m.Current())
	}
}

func TestMachine_GuardSelectsTarget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		had  bool
		want state
	}{
		{"restores subscription", true, subscribed},
		{"falls back to idle", false, idle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newMachine(t)
			if err := m.Fire(ctx, subscribe, nil); err != nil {
				t.Fatal(err)
			}
			if err := m.Fire(ctx, abort, tt.had); err != nil {
				t.Fatal(err)
			}
			if m.Current() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, m.Current())
			}
		})
	}
}

func TestMachine_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := newMachine(t)
	err := m.Fire(ctx, complete, nil)
	if !statemachine.IsNoTransitionAvailableError(err) {
		t.Fatalf("expected no-transition error, got %v", err)
	}
	if !strings.Contains(err.Error(), "'idle'") || !strings.Contains(err.Error(), "'complete'") {
		t.Fatalf("unexpected message: %v", err)
	}

	never := func(context.Context, state, any) bool { return false }
	m = statemachine.MustNew(idle,
		statemachine.WithTransition(statemachine.From(idle), subscribing, subscribe, statemachine.WithGuard(never)),
	)
	err = m.Fire(ctx, subscribe, nil)
	if !statemachine.IsTransitionRejectedError(err) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if m.CanFire(ctx, subscribe, nil) {
		t.Fatal("CanFire must honour guards")
	}

	_, err = statemachine.New(idle, statemachine.WithTransition(nil, subscribing, subscribe))
	if !errors.Is(err, statemachine.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestMachine_ActionAbortsTransition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("boom")

	var calls int
	m := statemachine.MustNew(idle,
		statemachine.WithTransition(statemachine.From(idle), subscribing, subscribe,
			statemachine.WithAction(func(_ context.Context, from, to state, _ any) error {
				calls++
				if from != idle || to != subscribing {
					t.Errorf("unexpected action args %s -> %s", from, to)
				}
				return boom
			})),
	)

	err := m.Fire(ctx, subscribe, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 action call, got %d", calls)
	}
	if m.Current() != idle {
		t.Fatalf("state must not change when an action fails, got %s", m.Current())
	}
}

func TestMachine_Observer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var got []string
	m := newMachine(t, statemachine.WithObserver(func(from, to state, e event) {
		got = append(got, string(from)+"-"+string(e)+"->"+string(to))
	}))

	_ = m.Fire(ctx, subscribe, nil)
	_ = m.Fire(ctx, complete, nil)
	_ = m.Fire(ctx, complete, nil) // not allowed, not observed

	want := []string{"idle-subscribe->subscribing", "subscribing-complete->subscribed"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMachine_ObserverMayReadState(t *testing.T) {
	t.Parallel()

	var m *statemachine.Machine[state, event]
	var seen state
	m = newMachine(t, statemachine.WithObserver(func(_, _ state, _ event) {
		seen = m.Current()
	}))

	if err := m.Fire(context.Background(), subscribe, nil); err != nil {
		t.Fatal(err)
	}
	if seen != subscribing {
		t.Fatalf("observer saw %s", seen)
	}
}

func TestMachine_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newMachine(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Fire(ctx, subscribe, nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			_ = m.Current()
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("exactly one subscribe should win, got %d", wins)
	}
}
