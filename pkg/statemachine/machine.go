package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Machine is a thread-safe in-memory finite state machine over comparable
// state and event types. Transitions are looked up by [from][event]; when
// several are registered for the same pair, the first one whose guards all
// pass wins.
type Machine[S, E comparable] struct {
	mu           sync.RWMutex
	initialState S
	currentState S
	transitions  map[S]map[E][]Transition[S, E]
	observers    []Observer[S, E]
}

func newMachine[S, E comparable](initial S) *Machine[S, E] {
	return &Machine[S, E]{
		initialState: initial,
		currentState: initial,
		transitions:  make(map[S]map[E][]Transition[S, E]),
	}
}

func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState
}

// Is reports whether the machine is in any of the given states.
func (m *Machine[S, E]) Is(states ...S) bool {
	cur := m.Current()
	for _, s := range states {
		if s == cur {
			return true
		}
	}
	return false
}

func (m *Machine[S, E]) AddTransition(from, to S, event E, guards []Guard[S], actions []Action[S]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[E][]Transition[S, E])
	}
	m.transitions[from][event] = append(m.transitions[from][event], Transition[S, E]{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  guards,
		Actions: actions,
	})
}

// Fire applies event. Guards and actions run under the machine lock, so they
// must not call back into the machine.
func (m *Machine[S, E]) Fire(ctx context.Context, event E, data any) error {
	m.mu.Lock()

	from := m.currentState
	t, err := m.match(ctx, from, event, data)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	for _, action := range t.Actions {
		if err := action(ctx, from, t.To, data); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.currentState = t.To
	observers := m.observers
	m.mu.Unlock()

	for _, o := range observers {
		o(from, t.To, event)
	}
	return nil
}

func (m *Machine[S, E]) CanFire(ctx context.Context, event E, data any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, err := m.match(ctx, m.currentState, event, data)
	return err == nil
}

// Reset returns the machine to its initial state without running actions.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentState = m.initialState
}

func (m *Machine[S, E]) match(ctx context.Context, from S, event E, data any) (*Transition[S, E], error) {
	candidates := m.transitions[from][event]
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(from, event)
	}

	for i := range candidates {
		if guardsPass(ctx, candidates[i].Guards, from, data) {
			return &candidates[i], nil
		}
	}
	return nil, NewErrTransitionRejected(from, event)
}

func guardsPass[S comparable](ctx context.Context, guards []Guard[S], from S, data any) bool {
	for _, g := range guards {
		if g != nil && !g(ctx, from, data) {
			return false
		}
	}
	return true
}
