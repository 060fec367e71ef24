package engine

import (
	"fmt"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/notify"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/status"
)

// pumpResult is how an activation ended, reported to the next step
type pumpResult struct {
	kind EventKind
	err  error
}

// pendingWatering remembers what a scheduled activation changed, so a failed run
// can give the cycle back
type pendingWatering struct {
	previousLast time.Time
	wateredAt    time.Time
	resets       int
}

// startPump launches a tracked activation. It returns false without side effects
// when another activation is still running. Callers hold mu.
func (e *Engine) startPump(kind EventKind, amountMl int, d time.Duration) bool {
	if !e.pumpBusy.CompareAndSwap(false, true) {
		return false
	}
	// the previous activation reported before releasing pumpBusy
	e.collectPump()
	e.metrics.observePumpStart(kind)

	ev := newEvent(e.now(), kind)
	ev.AmountMl = amountMl
	ev.Duration = d
	before := e.st.RemainingCycles
	ev.RemainingCycles = before
	if kind == KindScheduled && ev.RemainingCycles > 0 {
		ev.RemainingCycles--
	}

	ctx, bg := e.pumpCtx, e.bgCtx
	e.pumpWG.Add(1)
	go func() {
		defer e.pumpWG.Done()

		log.InfoH2("Pump on for %v (%s)", d, kind)
		start := time.Now()
		err := e.pump.RunFor(ctx, d)
		elapsed := time.Since(start)
		e.metrics.observePumpEnd(elapsed.Seconds(), err)

		if err != nil {
			ev.Error = err.Error()
			if kind == KindScheduled {
				ev.RemainingCycles = before
			}
			log.Error("Pump activation (%s) failed after %v: %v", kind, elapsed.Round(time.Millisecond), err)
			e.logEntry("error", fmt.Sprintf("pump %s failed: %v", kind, err))
			e.sendNoticeWith(bg, notify.Notice{
				Kind:    notify.KindPumpFailure,
				Title:   "Pump failure",
				Message: fmt.Sprintf("%s activation failed: %v", kind, err),
			})
		} else {
			log.InfoH2("Pump off after %v (%s)", elapsed.Round(time.Millisecond), kind)
		}
		e.recordEvent(ev)
		e.pumpResults <- pumpResult{kind: kind, err: err}
		e.pumpBusy.Store(false)
	}()
	return true
}

// collectPump picks up the result of a finished activation. A failed scheduled
// run gives its cycle back and restores lastWateringTime unless a repot reset or
// a newer watering has replaced them. It reports whether it recorded a skip.
// Callers hold mu.
func (e *Engine) collectPump() bool {
	var res pumpResult
	select {
	case res = <-e.pumpResults:
	default:
		return false
	}
	if res.kind != KindScheduled {
		return false
	}
	w := e.watering
	e.watering = nil
	if res.err == nil || w == nil {
		return false
	}
	if w.resets != e.resets || !e.st.LastWateringTime.Equal(w.wateredAt) {
		log.Info("Pump failure after status changed, budget left as is")
		return false
	}

	e.st.RemainingCycles++
	e.st.LastWateringTime = w.previousLast
	e.st.SecondsRemaining = status.SecondsUntil(e.st.NextWateringTime, e.now())
	e.persist()

	e.lastOutcome = OutcomeSkipped
	e.lastReason = ReasonPumpFailure
	e.metrics.observeSkip(ReasonPumpFailure)
	log.Warn("%s: %s, %d cycles left", OutcomeSkipped, ReasonPumpFailure, e.st.RemainingCycles)
	e.logEntry("warn", fmt.Sprintf("%s: %s", OutcomeSkipped, ReasonPumpFailure))

	ev := newEvent(e.now(), KindSkipped)
	ev.Reason = ReasonPumpFailure
	ev.RemainingCycles = e.st.RemainingCycles
	ev.Error = res.err.Error()
	e.recordEvent(ev)
	return true
}
