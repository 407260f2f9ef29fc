package statemachine

import "context"

// Guard evaluates whether a transition may be taken for the given data.
type Guard[S comparable] func(ctx context.Context, from S, data any) bool

// Action executes a side effect during a transition. Returning an error
// prevents the state change.
type Action[S comparable] func(ctx context.Context, from, to S, data any) error

// Observer is notified after every completed transition.
type Observer[S, E comparable] func(from, to S, event E)

// Transition defines a state change triggered by an event.
type Transition[S, E comparable] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S]  // All must pass for transition to proceed
	Actions []Action[S] // Executed in order before state change
}
