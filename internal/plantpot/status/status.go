// Package status persists the cycle budget and the watering schedule.
// The engine is the only writer; the CLI and the HTTP API read the file.
package status

import (
	"math"
	"os"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/fileutil"
)

// CycleStatus is the persisted engine state
type CycleStatus struct {
	LastWateringTime time.Time `json:"lastWateringTime"`
	NextWateringTime time.Time `json:"nextWateringTime"`
	RemainingCycles  int       `json:"remainingCycles"`
	SecondsRemaining int       `json:"secondsRemaining"`
}

// Cycles is how many full waterings of amountMl a tank of capacityMl holds
func Cycles(capacityMl float64, amountMl int) int {
	if amountMl <= 0 || capacityMl <= 0 {
		return 0
	}
	return int(math.Floor(capacityMl / float64(amountMl)))
}

// SecondsUntil returns the whole seconds from now until next, rounded up, never negative
func SecondsUntil(next, now time.Time) int {
	d := next.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Due reports whether the next watering time has been reached
func (s CycleStatus) Due(now time.Time) bool {
	return SecondsUntil(s.NextWateringTime, now) == 0
}

// Store reads and writes the status file
type Store struct {
	path string
	now  func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store backed by path
func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the status file location
func (s *Store) Path() string { return s.path }

// Read returns the persisted status. ok is false when the file does not exist yet.
func (s *Store) Read() (st CycleStatus, ok bool, err error) {
	if err := fileutil.ReadJSON(s.path, &st); err != nil {
		if os.IsNotExist(err) {
			return CycleStatus{}, false, nil
		}
		return CycleStatus{}, false, perrors.Mark(err, perrors.ErrPersistenceFailure)
	}
	return st, true, nil
}

// Load returns the persisted status, or a fresh one when the file is absent or unreadable
func (s *Store) Load(cfg config.Config) CycleStatus {
	st, ok, err := s.Read()
	switch {
	case err != nil:
		log.Error("Status file %s is unreadable (%v), starting a new cycle budget", s.path, err)
		return s.Initialize(cfg)
	case !ok:
		log.Info("No status at %s, starting a new cycle budget", s.path)
		return s.Initialize(cfg)
	}
	if st.RemainingCycles < 0 {
		st.RemainingCycles = 0
	}
	return st
}

// Initialize computes a full budget and schedules the first watering one interval from now
func (s *Store) Initialize(cfg config.Config) CycleStatus {
	now := s.now()
	next := now.Add(cfg.Interval())
	return CycleStatus{
		LastWateringTime: now,
		NextWateringTime: next,
		RemainingCycles:  Cycles(cfg.Tank.CapacityMl, cfg.Watering.AmountMl),
		SecondsRemaining: SecondsUntil(next, now),
	}
}

// Reset starts over after the pot was repotted and the tank refilled
func (s *Store) Reset(cfg config.Config) CycleStatus {
	return s.Initialize(cfg)
}

// RecordWatering consumes one cycle and schedules the next watering
func (s *Store) RecordWatering(st CycleStatus, cfg config.Config) CycleStatus {
	now := s.now()
	st.LastWateringTime = now
	if st.RemainingCycles > 0 {
		st.RemainingCycles--
	}
	st.NextWateringTime = now.Add(cfg.Interval())
	st.SecondsRemaining = SecondsUntil(st.NextWateringTime, now)
	return st
}

// Advance pushes the next watering one interval from now without consuming a cycle
func (s *Store) Advance(st CycleStatus, interval time.Duration) CycleStatus {
	now := s.now()
	st.NextWateringTime = now.Add(interval)
	st.SecondsRemaining = SecondsUntil(st.NextWateringTime, now)
	return st
}

// Save atomically replaces the status file
func (s *Store) Save(st CycleStatus) error {
	if err := fileutil.WriteJSONAtomic(s.path, st); err != nil {
		return perrors.Mark(err, perrors.ErrPersistenceFailure)
	}
	return nil
}
