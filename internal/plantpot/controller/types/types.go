//nolint:revive // Package types holds the wire types shared by the controller and its clients
package types

// Socket actions
const (
	ActionStatus     = "status"
	ActionPump       = "pump"
	ActionTimedPump  = "timed_pump"
	ActionRepot      = "repot"
	ActionPumpOn     = "pump_on"
	ActionPumpOff    = "pump_off"
	ActionGetHistory = "get_history"
	ActionGetLogs    = "get_logs"
	ActionGetMetrics = "get_metrics"
	ActionSensors    = "sensors"
)

// Command is a request sent to the controller over the socket
type Command struct {
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Response is the controller's reply
type Response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// EngineLog is one row of the engine log table
type EngineLog struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Summary aggregates the watering history
type Summary struct {
	Waterings     int            `json:"waterings"`
	Skips         int            `json:"skips"`
	TotalMl       int            `json:"totalMl"`
	PumpFailures  int            `json:"pumpFailures"`
	ByKind        map[string]int `json:"byKind"`
	LastWateredAt string         `json:"lastWateredAt,omitempty"`
}
