//nolint:revive // Handler methods follow interface patterns with some unused parameters
package core

import (
	"fmt"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/socket"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/engine"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/gate"
)

const defaultLimit = 100

// Snapshot returns the engine status
func (c *Controller) Snapshot() engine.Snapshot {
	return c.engine.Snapshot()
}

// Issue queues cmd in the engine's inbox
func (c *Controller) Issue(cmd command.Command) (command.Command, error) {
	return c.inbox.Issue(cmd)
}

// PumpOn switches the pump on outside the schedule
func (c *Controller) PumpOn() error {
	if err := c.engine.PumpOn(); err != nil {
		return err
	}
	log.Warn("Pump switched on manually")
	return nil
}

// PumpOff switches the pump off
func (c *Controller) PumpOff() error {
	return c.engine.PumpOff()
}

// Sensors evaluates the precondition gate with the configuration the engine acts on
func (c *Controller) Sensors() gate.Decision {
	cfg := c.engine.Config()
	return c.gate.Check(cfg, cfg.Watering.AmountMl)
}

// History returns recent watering events
func (c *Controller) History(kind string, limit int) ([]engine.Event, error) {
	if !c.db.IsEnabled() {
		return nil, fmt.Errorf("history database is disabled")
	}
	return c.db.GetEvents(kind, limit)
}

// Summary aggregates the history since the given time
func (c *Controller) Summary(since time.Time) (types.Summary, error) {
	if !c.db.IsEnabled() {
		return types.Summary{}, fmt.Errorf("history database is disabled")
	}
	return c.db.GetSummary(since)
}

func failure(format string, args ...interface{}) types.Response {
	return types.Response{Success: false, Error: fmt.Sprintf(format, args...)}
}

func queued(cmd command.Command) types.Response {
	return types.Response{
		Success: true,
		Message: fmt.Sprintf("Queued %s", cmd),
		Data:    map[string]interface{}{"issuedAt": cmd.IssuedAt},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// HandleStatusCommand implements socket.Handler
func (c *Controller) HandleStatusCommand(cmd types.Command) types.Response {
	snap := c.engine.Snapshot()
	cfg := c.engine.Config()

	data := map[string]interface{}{
		"state":            snap.State,
		"pumpRunning":      snap.PumpRunning,
		"remainingCycles":  snap.Status.RemainingCycles,
		"secondsRemaining": snap.Status.SecondsRemaining,
		"lastWateringTime": formatTime(snap.Status.LastWateringTime),
		"nextWateringTime": formatTime(snap.Status.NextWateringTime),
		"lastOutcome":      string(snap.LastOutcome),
		"lastReason":       snap.LastReason,
		"intervalSeconds":  cfg.Watering.IntervalSeconds,
		"amountMl":         cfg.Watering.AmountMl,
		"database_enabled": c.db.IsEnabled(),
		"http_enabled":     c.httpServer != nil,
		"mqtt_enabled":     c.bridge != nil,
	}
	if snap.LastGate != nil {
		data["tankMl"] = snap.LastGate.TankMl
		data["moisturePercent"] = snap.LastGate.MoisturePercent
	}

	return types.Response{
		Success: true,
		Message: "Engine status retrieved successfully",
		Data:    data,
	}
}

// HandlePumpCommand implements socket.Handler
func (c *Controller) HandlePumpCommand(cmd types.Command) types.Response {
	amount := socket.IntArg(cmd, "amount_ml", c.engine.Config().Watering.AmountMl)
	issued, err := c.Issue(command.ManualPump(amount))
	if err != nil {
		return failure("Failed to queue manual pump: %v", err)
	}
	return queued(issued)
}

// HandleTimedPumpCommand implements socket.Handler
func (c *Controller) HandleTimedPumpCommand(cmd types.Command) types.Response {
	seconds := socket.IntArg(cmd, "duration_seconds", 0)
	issued, err := c.Issue(command.TimedPump(time.Duration(seconds) * time.Second))
	if err != nil {
		return failure("Failed to queue timed pump: %v", err)
	}
	return queued(issued)
}

// HandleRepotCommand implements socket.Handler
func (c *Controller) HandleRepotCommand(cmd types.Command) types.Response {
	issued, err := c.Issue(command.RepotReset())
	if err != nil {
		return failure("Failed to queue repot reset: %v", err)
	}
	return queued(issued)
}

// HandlePumpOnCommand implements socket.Handler
func (c *Controller) HandlePumpOnCommand(cmd types.Command) types.Response {
	if err := c.PumpOn(); err != nil {
		return failure("Failed to switch pump on: %v", err)
	}
	return types.Response{Success: true, Message: "Pump on"}
}

// HandlePumpOffCommand implements socket.Handler
func (c *Controller) HandlePumpOffCommand(cmd types.Command) types.Response {
	if err := c.PumpOff(); err != nil {
		return failure("Failed to switch pump off: %v", err)
	}
	return types.Response{Success: true, Message: "Pump off"}
}

// HandleGetHistoryCommand implements socket.Handler
func (c *Controller) HandleGetHistoryCommand(cmd types.Command) types.Response {
	limit := socket.IntArg(cmd, "limit", defaultLimit)
	events, err := c.History(socket.StringArg(cmd, "kind"), limit)
	if err != nil {
		return failure("Failed to get history: %v", err)
	}
	summary, err := c.Summary(time.Time{})
	if err != nil {
		return failure("Failed to summarize history: %v", err)
	}
	if events == nil {
		events = []engine.Event{}
	}

	return types.Response{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d events", len(events)),
		Data:    map[string]interface{}{"events": events, "summary": summary},
	}
}

// HandleGetLogsCommand implements socket.Handler
func (c *Controller) HandleGetLogsCommand(cmd types.Command) types.Response {
	if !c.db.IsEnabled() {
		return failure("Database logging is disabled")
	}

	logs, err := c.db.GetRecentLogs(socket.IntArg(cmd, "limit", defaultLimit))
	if err != nil {
		return failure("Failed to get logs: %v", err)
	}
	if logs == nil {
		logs = []types.EngineLog{}
	}

	return types.Response{
		Success: true,
		Message: fmt.Sprintf("Retrieved %d log entries", len(logs)),
		Data:    map[string]interface{}{"logs": logs},
	}
}

// HandleGetMetricsCommand implements socket.Handler
func (c *Controller) HandleGetMetricsCommand(cmd types.Command) types.Response {
	metrics, err := flattenMetrics(c.registry, "plantpot_")
	if err != nil {
		return failure("Failed to gather metrics: %v", err)
	}
	return types.Response{
		Success: true,
		Message: "Engine metrics retrieved successfully",
		Data:    map[string]interface{}{"metrics": metrics},
	}
}

// HandleSensorsCommand implements socket.Handler
func (c *Controller) HandleSensorsCommand(cmd types.Command) types.Response {
	d := c.Sensors()
	data := map[string]interface{}{
		"allowed":         d.Allowed,
		"reason":          string(d.Reason),
		"tankMl":          d.TankMl,
		"moisturePercent": d.MoisturePercent,
	}
	if d.Err != nil {
		data["error"] = d.Err.Error()
	}
	return types.Response{Success: true, Message: "Sensors read", Data: data}
}
