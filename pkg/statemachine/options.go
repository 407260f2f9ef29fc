package statemachine

import "fmt"

// Option configures a machine during construction.
type Option[S, E comparable] func(*Machine[S, E]) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption[S comparable] func(*transitionConfig[S])

type transitionConfig[S comparable] struct {
	guards  []Guard[S]
	actions []Action[S]
}

// New creates a machine with the given initial state and options.
func New[S, E comparable](initial S, opts ...Option[S, E]) (*Machine[S, E], error) {
	m := newMachine[S, E](initial)
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on a bad option.
func MustNew[S, E comparable](initial S, opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

// WithTransition adds a transition from each state in from to to on event.
func WithTransition[S, E comparable](from []S, to S, event E, opts ...TransitionOption[S]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if len(from) == 0 {
			return fmt.Errorf("%w: no source state for event %v", ErrInvalidTransition, event)
		}
		cfg := &transitionConfig[S]{}
		for _, opt := range opts {
			opt(cfg)
		}
		for _, f := range from {
			m.AddTransition(f, to, event, cfg.guards, cfg.actions)
		}
		return nil
	}
}

// WithObserver registers fn to run after every transition, outside the lock.
func WithObserver[S, E comparable](fn Observer[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		if fn != nil {
			m.observers = append(m.observers, fn)
		}
		return nil
	}
}

// From is a readability helper for WithTransition.
func From[S comparable](states ...S) []S { return states }

func WithGuard[S comparable](guard Guard[S]) TransitionOption[S] {
	return func(cfg *transitionConfig[S]) {
		if guard != nil {
			cfg.guards = append(cfg.guards, guard)
		}
	}
}

func WithAction[S comparable](action Action[S]) TransitionOption[S] {
	return func(cfg *transitionConfig[S]) {
		if action != nil {
			cfg.actions = append(cfg.actions, action)
		}
	}
}
