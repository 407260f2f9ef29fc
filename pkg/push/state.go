package push

import (
	"context"

	"github.com/dmitrymomot/pushkit/pkg/statemachine"
)

// State is the lifecycle state of the subscription manager.
type State string

const (
	StateUnsupported   State = "unsupported"
	StateIdle          State = "idle"
	StateChecking      State = "checking"
	StateSubscribing   State = "subscribing"
	StateSubscribed    State = "subscribed"
	StateUnsubscribing State = "unsubscribing"
	StateError         State = "error"
)

type event string

const (
	evCheck        event = "check"
	evResolve      event = "resolve"
	evSubscribe    event = "subscribe"
	evSubscribed   event = "subscribed"
	evFail         event = "fail"
	evAbort        event = "abort"
	evUnsubscribe  event = "unsubscribe"
	evUnsubscribed event = "unsubscribed"
)

// active picks the subscribed branch when Fire is called with true.
func active(_ context.Context, _ State, data any) bool {
	ok, _ := data.(bool)
	return ok
}

func newMachine(initial State, observer statemachine.Observer[State, event]) *statemachine.Machine[State, event] {
	from := statemachine.From[State]
	settled := from(StateIdle, StateSubscribed, StateError, StateChecking)

	return statemachine.MustNew(initial,
		statemachine.WithTransition(settled, StateChecking, evCheck),
		statemachine.WithTransition(from(StateChecking), StateSubscribed, evResolve, statemachine.WithGuard(active)),
		statemachine.WithTransition(from(StateChecking), StateIdle, evResolve),

		statemachine.WithTransition(settled, StateSubscribing, evSubscribe),
		statemachine.WithTransition(from(StateSubscribing), StateSubscribed, evSubscribed),
		statemachine.WithTransition(from(StateSubscribing), StateError, evFail),
		// abort leaves no side effects behind, so the previous state comes back
		statemachine.WithTransition(from(StateSubscribing), StateSubscribed, evAbort, statemachine.WithGuard(active)),
		statemachine.WithTransition(from(StateSubscribing), StateIdle, evAbort),

		statemachine.WithTransition(settled, StateUnsubscribing, evUnsubscribe),
		statemachine.WithTransition(from(StateUnsubscribing), StateIdle, evUnsubscribed),

		statemachine.WithObserver(observer),
	)
}
