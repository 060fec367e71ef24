package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/gate"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/notify"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/status"
)

// step runs one tick: countdown, commands, due check. Failures are logged and the
// loop carries on.
func (e *Engine) step(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.lastTick = now
	e.st.SecondsRemaining = status.SecondsUntil(e.st.NextWateringTime, now)
	e.persist()

	reported := e.collectPump()
	e.processCommand()

	if e.st.Due(e.now()) {
		e.dueCheck()
		e.persist()
	} else if !reported {
		e.lastOutcome = OutcomeNotDue
		e.lastReason = ""
	}
	e.metrics.observeSchedule(e.st.RemainingCycles, e.st.SecondsRemaining)
}

func (e *Engine) persist() {
	if err := e.store.Save(e.st); err != nil {
		log.Error("Failed to persist status: %v", err)
	}
}

// currentConfig re-reads the configuration, falling back to the last valid one
func (e *Engine) currentConfig() config.Config {
	cfg := e.source.Current()
	if err := cfg.CheckEngine(); err != nil {
		log.Error("Ignoring configuration: %v", err)
		return e.cfg
	}
	e.cfg = cfg
	return cfg
}

func (e *Engine) processCommand() {
	cmd := e.inbox.Peek()
	if cmd.IsNone() {
		return
	}
	cfg := e.currentConfig()
	log.Info("Operator command: %s", cmd)

	switch cmd.Action {
	case command.ActionManualPump:
		if !e.startPump(KindManual, cmd.AmountMl, cfg.PumpDuration(cmd.AmountMl)) {
			log.Info("Pump busy, %s stays pending", cmd)
			return
		}
	case command.ActionTimedPump:
		if !e.startPump(KindTimed, 0, cmd.Duration()) {
			log.Info("Pump busy, %s stays pending", cmd)
			return
		}
	case command.ActionRepotReset:
		e.st = e.store.Reset(cfg)
		e.resets++
		e.persist()
		ev := newEvent(e.now(), KindRepot)
		ev.RemainingCycles = e.st.RemainingCycles
		e.recordEvent(ev)
		log.Info("Repot reset: %d cycles, next watering in %ds", e.st.RemainingCycles, e.st.SecondsRemaining)
		e.logEntry("info", fmt.Sprintf("repot reset (%d cycles)", e.st.RemainingCycles))
	}

	if err := e.inbox.Consume(cmd); err != nil {
		log.Error("Failed to consume %s: %v", cmd, err)
	}
}

// dueCheck waters or skips. Either way the next watering is one interval from now.
func (e *Engine) dueCheck() {
	cfg := e.currentConfig()
	amount := cfg.Watering.AmountMl

	reason := ""
	var decision *gate.Decision
	switch {
	case e.st.RemainingCycles <= 0:
		reason = ReasonBudgetExhausted
	default:
		d := e.gate.Check(cfg, amount)
		decision = &d
		tank := -1.0
		if d.Reason != gate.ReasonSensorUnavailable || d.TankMl > 0 {
			tank = d.TankMl
		}
		e.metrics.observeReadings(tank, d.MoisturePercent)
		if !d.Allowed {
			reason = string(d.Reason)
		} else if !e.startPump(KindScheduled, amount, cfg.PumpDuration(amount)) {
			reason = ReasonPumpBusy
		}
	}
	e.lastGate = decision

	if reason == "" {
		previous := e.st.LastWateringTime
		e.st = e.store.RecordWatering(e.st, cfg)
		e.watering = &pendingWatering{
			previousLast: previous,
			wateredAt:    e.st.LastWateringTime,
			resets:       e.resets,
		}
		e.lastOutcome = OutcomeWatered
		e.lastReason = ""
		log.Info("%s %dml, %d cycles left, next in %ds", OutcomeWatered, amount, e.st.RemainingCycles, e.st.SecondsRemaining)
		e.logEntry("info", fmt.Sprintf("watered %dml (%d cycles left)", amount, e.st.RemainingCycles))
		if e.st.RemainingCycles == 0 {
			e.sendNotice(notify.Notice{
				Kind:    notify.KindRefill,
				Title:   "Refill the tank",
				Message: "The last scheduled watering of this tank has started. Refill the reservoir and run `plantpot repot`.",
			})
		}
		return
	}

	e.st = e.store.Advance(e.st, cfg.Interval())
	e.lastOutcome = OutcomeSkipped
	e.lastReason = reason
	e.metrics.observeSkip(reason)
	log.Warn("%s: %s", OutcomeSkipped, reason)
	if decision != nil && decision.Err != nil {
		log.ErrorH2("%v", decision.Err)
	}
	e.logEntry("warn", fmt.Sprintf("%s: %s", OutcomeSkipped, reason))

	ev := newEvent(e.now(), KindSkipped)
	ev.AmountMl = amount
	ev.Reason = reason
	ev.RemainingCycles = e.st.RemainingCycles
	if decision != nil && decision.Err != nil {
		ev.Error = decision.Err.Error()
	}
	e.recordEvent(ev)

	fields := map[string]string{
		"reason":          reason,
		"remainingCycles": strconv.Itoa(e.st.RemainingCycles),
	}
	if decision != nil {
		fields["tankMl"] = strconv.FormatFloat(decision.TankMl, 'f', 0, 64)
		if decision.MoisturePercent >= 0 {
			fields["moisturePercent"] = strconv.Itoa(decision.MoisturePercent)
		}
	}
	kind := notify.KindSkipped
	if reason == ReasonBudgetExhausted || reason == string(gate.ReasonTankLow) {
		kind = notify.KindRefill
	}
	e.sendNotice(notify.Notice{
		Kind:    kind,
		Title:   "Watering skipped",
		Message: fmt.Sprintf("%s: %s", OutcomeSkipped, reason),
		Fields:  fields,
	})
}
