package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a history entry
type EventKind string

// History entry kinds
const (
	KindScheduled EventKind = "scheduled"
	KindManual    EventKind = "manual"
	KindTimed     EventKind = "timed"
	KindRepot     EventKind = "repot"
	KindSkipped   EventKind = "skipped"
)

// Outcome of a due check, as logged
type Outcome string

// Due check outcomes
const (
	OutcomeNotDue  Outcome = "watering not due"
	OutcomeWatered Outcome = "watered"
	OutcomeSkipped Outcome = "preconditions not met"
)

// Skip reasons beyond the gate's own
const (
	ReasonBudgetExhausted = "budget exhausted"
	ReasonPumpBusy        = "pump busy"
	ReasonPumpFailure     = "pump failure"
)

// Event is one entry of the watering history
type Event struct {
	ID              string        `json:"id"`
	Time            time.Time     `json:"time"`
	Kind            EventKind     `json:"kind"`
	AmountMl        int           `json:"amountMl,omitempty"`
	Duration        time.Duration `json:"duration,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	RemainingCycles int           `json:"remainingCycles"`
	Error           string        `json:"error,omitempty"`
}

func newEvent(now time.Time, kind EventKind) Event {
	return Event{ID: uuid.NewString(), Time: now, Kind: kind}
}

// Recorder persists engine history. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordEvent(ev Event) error
	LogEntry(level, message string) error
}
