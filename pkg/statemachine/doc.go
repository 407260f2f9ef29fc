// Package statemachine implements a small generic finite state machine.
//
// States and events are any comparable types, usually string-based enums:
//
//	type State string
//	type Event string
//
//	m := statemachine.MustNew[State, Event]("idle",
//	    statemachine.WithTransition(statemachine.From[State]("idle"), "checking", Event("check")),
//	)
//	err := m.Fire(ctx, "check", nil)
//
// Several transitions may share a source state and event; the first one whose
// guards all pass is taken, which lets guards pick the target state from the
// data passed to Fire. Actions run before the state changes and abort the
// transition on error. Observers run after the change, outside the lock.
//
// Fire returns *ErrNoTransitionAvailable when nothing is registered for the
// current state and event, and *ErrTransitionRejected when guards vetoed every
// candidate. Use IsNoTransitionAvailableError and IsTransitionRejectedError to
// tell them apart.
package statemachine
