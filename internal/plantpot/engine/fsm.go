package engine

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/saturnblock/pythonplantpot/internal/log"
)

// Engine states
const (
	StateStopped  = "stopped"
	StateRunning  = "running"
	StateStopping = "stopping"
)

// Lifecycle events
const (
	EventStart  = "start"
	EventStop   = "stop"
	EventHalted = "halted"
)

func newLifecycle(onEnter func(from, to string)) *fsm.FSM {
	events := fsm.Events{
		{Name: EventStart, Src: []string{StateStopped}, Dst: StateRunning},
		{Name: EventStop, Src: []string{StateRunning}, Dst: StateStopping},
		// the loop may also end on its own when the start context is cancelled
		{Name: EventHalted, Src: []string{StateRunning, StateStopping}, Dst: StateStopped},
	}
	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			log.Debug("engine: %s -> %s (%s)", e.Src, e.Dst, e.Event)
			if onEnter != nil {
				onEnter(e.Src, e.Dst)
			}
		},
	}
	return fsm.NewFSM(StateStopped, events, callbacks)
}

// isTransitionError reports errors that only mean the event did not apply
func isTransitionError(err error) bool {
	if err == nil {
		return false
	}
	var invalid fsm.InvalidEventError
	var noTransition fsm.NoTransitionError
	return errors.As(err, &invalid) || errors.As(err, &noTransition)
}
