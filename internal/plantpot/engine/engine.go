// Package engine runs the watering schedule. Once started it ticks every second:
// it publishes the countdown, executes operator commands and, when a watering is
// due, waters if the cycle budget and the precondition gate allow it.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/gate"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/hal"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/notify"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/status"
)

const (
	// DefaultTick is the schedule loop period
	DefaultTick = time.Second
	// DefaultStopTimeout bounds how long Stop waits for the loop to exit
	DefaultStopTimeout = 10 * time.Second
)

// Snapshot is a consistent view of the engine for status displays
type Snapshot struct {
	State       string             `json:"state"`
	Status      status.CycleStatus `json:"status"`
	PumpRunning bool               `json:"pumpRunning"`
	LastTick    time.Time          `json:"lastTick"`
	LastOutcome Outcome            `json:"lastOutcome,omitempty"`
	LastReason  string             `json:"lastReason,omitempty"`
	LastGate    *gate.Decision     `json:"lastGate,omitempty"`
}

// Engine is the watering schedule loop
type Engine struct {
	source  config.Source
	sensors hal.SensorSource
	pump    hal.PumpActuator
	store   *status.Store
	inbox   *command.Channel
	gate    *gate.Gate

	now         func() time.Time
	tick        time.Duration
	stopTimeout time.Duration
	recorder    Recorder
	notifier    notify.Notifier
	metrics     *Metrics

	lifecycle *fsm.FSM

	mu          sync.Mutex
	cfg         config.Config // last configuration that passed CheckEngine
	st          status.CycleStatus
	cancel      context.CancelFunc
	done        chan struct{}
	lastTick    time.Time
	lastOutcome Outcome
	lastReason  string
	lastGate    *gate.Decision

	pumpBusy    atomic.Bool
	pumpWG      sync.WaitGroup
	pumpCtx     context.Context
	pumpCancel  context.CancelFunc
	pumpResults chan pumpResult
	watering    *pendingWatering
	resets      int
	bgWG        sync.WaitGroup
	bgCtx       context.Context
	bgCancel    context.CancelFunc
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now. The status store should share the same clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTick sets the loop period
func WithTick(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tick = d
		}
	}
}

// WithStopTimeout bounds Stop
func WithStopTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.stopTimeout = d
		}
	}
}

// WithRecorder persists history and engine log entries
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithNotifier sends operator notices
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithMetrics exports Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New wires an engine. Nothing runs until Start.
func New(source config.Source, sensors hal.SensorSource, pump hal.PumpActuator, store *status.Store, inbox *command.Channel, opts ...Option) *Engine {
	e := &Engine{
		source:      source,
		sensors:     sensors,
		pump:        pump,
		store:       store,
		inbox:       inbox,
		gate:        gate.New(sensors, source),
		now:         time.Now,
		tick:        DefaultTick,
		stopTimeout: DefaultStopTimeout,
		cfg:         source.Current(),
		pumpResults: make(chan pumpResult, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.freshContexts()
	e.lifecycle = newLifecycle(func(_, to string) {
		e.metrics.setState(to)
	})
	return e
}

// State returns the lifecycle state
func (e *Engine) State() string {
	return e.lifecycle.Current()
}

// Running reports whether the loop is active
func (e *Engine) Running() bool {
	return e.lifecycle.Is(StateRunning)
}

// Start validates the configuration, loads the persisted status and starts the loop.
// Starting a running engine is a no-op. The loop also ends when ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	cfg := e.source.Current()
	if err := cfg.CheckEngine(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.lifecycle.Is(StateStopped) {
		log.Info("Engine already %s", e.lifecycle.Current())
		return nil
	}

	e.freshContexts()
	e.cfg = cfg
	e.st = e.store.Load(cfg)
	e.collectPump()
	e.st.SecondsRemaining = status.SecondsUntil(e.st.NextWateringTime, e.now())
	if err := e.store.Save(e.st); err != nil {
		log.Error("Failed to persist status: %v", err)
	}
	e.metrics.observeSchedule(e.st.RemainingCycles, e.st.SecondsRemaining)

	if err := e.lifecycle.Event(ctx, EventStart); err != nil && !isTransitionError(err) {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	go e.run(loopCtx, done)

	log.Info("Engine started: every %v water %dml, %d cycles left, next in %ds",
		cfg.Interval(), cfg.Watering.AmountMl, e.st.RemainingCycles, e.st.SecondsRemaining)
	e.logEntry("info", fmt.Sprintf("engine started (%d cycles left)", e.st.RemainingCycles))
	return nil
}

// Stop asks the loop to exit and waits for it. Stopping a stopped engine is a no-op.
// Pump activations already running are not interrupted; use Wait to join them.
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.lifecycle.Current() {
	case StateStopped:
		e.mu.Unlock()
		log.Info("Engine is not running")
		return nil
	case StateRunning:
		if err := e.lifecycle.Event(context.Background(), EventStop); err != nil && !isTransitionError(err) {
			log.Error("Engine stop transition failed: %v", err)
		}
		e.cancel()
	}
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		log.Info("Engine stopped")
		return nil
	case <-time.After(e.stopTimeout):
		return fmt.Errorf("engine did not stop within %v", e.stopTimeout)
	}
}

// Wait blocks until in-flight pump activations and notices finish. If ctx ends
// first, running pumps are switched off and pending notices abandoned; the next
// Start arms fresh contexts.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.pumpWG.Wait()
		e.bgWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.mu.Lock()
		pumpCancel, bgCancel := e.pumpCancel, e.bgCancel
		e.mu.Unlock()
		pumpCancel()
		bgCancel()
		<-done
		return ctx.Err()
	}
}

// Snapshot returns the current status without touching the disk
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:       e.lifecycle.Current(),
		Status:      e.st,
		PumpRunning: e.pumpBusy.Load(),
		LastTick:    e.lastTick,
		LastOutcome: e.lastOutcome,
		LastReason:  e.lastReason,
		LastGate:    e.lastGate,
	}
}

// Config returns the configuration the engine is acting on
func (e *Engine) Config() config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Inbox returns the command channel the engine polls
func (e *Engine) Inbox() *command.Channel {
	return e.inbox
}

// PumpOn switches the pump on outside the schedule. It fails while an activation runs.
func (e *Engine) PumpOn() error {
	if e.pumpBusy.Load() {
		return perrors.ErrPumpBusy
	}
	return e.pump.SetOn()
}

// PumpOff switches the pump off. It is always allowed.
func (e *Engine) PumpOff() error {
	return e.pump.SetOff()
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(e.tick)
	defer func() {
		ticker.Stop()
		if err := e.lifecycle.Event(context.Background(), EventHalted); err != nil && !isTransitionError(err) {
			log.Error("Engine halt transition failed: %v", err)
		}
		e.logEntry("info", "engine stopped")
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.step(ctx)
		}
	}
}

func (e *Engine) logEntry(level, message string) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.LogEntry(level, message); err != nil {
		log.DebugH2("failed to record log entry: %v", err)
	}
}

func (e *Engine) recordEvent(ev Event) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordEvent(ev); err != nil {
		log.Error("Failed to record %s event: %v", ev.Kind, err)
	}
}

// freshContexts replaces the pump and notice contexts once a Wait has cancelled them.
// Callers hold mu, except New.
func (e *Engine) freshContexts() {
	if e.pumpCtx == nil || e.pumpCtx.Err() != nil {
		e.pumpCtx, e.pumpCancel = context.WithCancel(context.Background())
	}
	if e.bgCtx == nil || e.bgCtx.Err() != nil {
		e.bgCtx, e.bgCancel = context.WithCancel(context.Background())
	}
}

// sendNotice delivers n in the background. Callers hold mu.
func (e *Engine) sendNotice(n notify.Notice) {
	e.sendNoticeWith(e.bgCtx, n)
}

func (e *Engine) sendNoticeWith(parent context.Context, n notify.Notice) {
	if e.notifier == nil {
		return
	}
	n.Time = e.now()
	e.bgWG.Add(1)
	go func() {
		defer e.bgWG.Done()
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()
		if err := e.notifier.Notify(ctx, n); err != nil {
			log.DebugH2("notice %s not delivered: %v", n.Kind, err)
		}
	}()
}
