package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the device registration state.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistering  State = "registering"
	StateReady        State = "ready"
	StateOnCall       State = "onCall"
	StateError        State = "error"
)

// Event is a device lifecycle signal.
type Event string

const (
	EventRegister        Event = "register"
	EventRegistered      Event = "registered"
	EventUnregistered    Event = "unregistered"
	EventCallStarted     Event = "callStarted"
	EventCallEnded       Event = "callEnded"
	EventTokenWillExpire Event = "tokenWillExpire"
	EventTokenUpdated    Event = "tokenUpdated"
	EventFailed          Event = "failed"
)

var ErrInvalidTransition = errors.New("client: invalid registration transition")

// Token events keep the current state so a refresh never drops a call.
var transitions = map[State]map[Event]State{
	StateUnregistered: {
		EventRegister: StateRegistering,
		EventFailed:   StateError,
	},
	StateRegistering: {
		EventRegistered:   StateReady,
		EventUnregistered: StateUnregistered,
		EventFailed:       StateError,
	},
	StateReady: {
		EventCallStarted:     StateOnCall,
		EventTokenWillExpire: StateReady,
		EventTokenUpdated:    StateReady,
		EventUnregistered:    StateUnregistered,
		EventFailed:          StateError,
	},
	StateOnCall: {
		EventCallEnded:       StateReady,
		EventTokenWillExpire: StateOnCall,
		EventTokenUpdated:    StateOnCall,
		EventUnregistered:    StateUnregistered,
		EventFailed:          StateError,
	},
	StateError: {
		EventRegister:     StateRegistering,
		EventTokenUpdated: StateError,
		EventUnregistered: StateUnregistered,
		EventFailed:       StateError,
	},
}

// Transition is reported to the OnChange hook after each applied event.
type Transition struct {
	From  State
	To    State
	Event Event
}

// Registration is a concurrency-safe device lifecycle state machine.
type Registration struct {
	mu       sync.Mutex
	state    State
	onChange func(Transition)
}

// NewRegistration starts unregistered. onChange may be nil.
func NewRegistration(onChange func(Transition)) *Registration {
	return &Registration{
		state:    StateUnregistered,
		onChange: onChange,
	}
}

func (r *Registration) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Apply moves the machine on ev. The state is unchanged on error.
func (r *Registration) Apply(ev Event) (State, error) {
	r.mu.Lock()
	from := r.state
	next, ok := transitions[from][ev]
	if !ok {
		r.mu.Unlock()
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}
	r.state = next
	hook := r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(Transition{From: from, To: next, Event: ev})
	}
	return next, nil
}

// Run applies events from ch until it closes or ctx is done. Invalid
// transitions are passed to onInvalid and otherwise ignored.
func (r *Registration) Run(ctx context.Context, ch <-chan Event, onInvalid func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := r.Apply(ev); err != nil && onInvalid != nil {
				onInvalid(err)
			}
		}
	}
}
