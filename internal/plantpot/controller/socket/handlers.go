package socket

import (
	"fmt"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
)

// Handler implements one method per socket action
type Handler interface {
	HandleStatusCommand(cmd types.Command) types.Response
	HandlePumpCommand(cmd types.Command) types.Response
	HandleTimedPumpCommand(cmd types.Command) types.Response
	HandleRepotCommand(cmd types.Command) types.Response
	HandlePumpOnCommand(cmd types.Command) types.Response
	HandlePumpOffCommand(cmd types.Command) types.Response
	HandleGetHistoryCommand(cmd types.Command) types.Response
	HandleGetLogsCommand(cmd types.Command) types.Response
	HandleGetMetricsCommand(cmd types.Command) types.Response
	HandleSensorsCommand(cmd types.Command) types.Response
}

// DefaultCommandHandler implements CommandHandler by routing to Handler methods
type DefaultCommandHandler struct {
	handler Handler
}

// NewDefaultCommandHandler creates a new default command handler
func NewDefaultCommandHandler(handler Handler) *DefaultCommandHandler {
	return &DefaultCommandHandler{handler: handler}
}

// HandleCommand processes a socket command
func (h *DefaultCommandHandler) HandleCommand(cmd types.Command) types.Response {
	switch cmd.Action {
	case types.ActionStatus:
		return h.handler.HandleStatusCommand(cmd)
	case types.ActionPump:
		return h.handler.HandlePumpCommand(cmd)
	case types.ActionTimedPump:
		return h.handler.HandleTimedPumpCommand(cmd)
	case types.ActionRepot:
		return h.handler.HandleRepotCommand(cmd)
	case types.ActionPumpOn:
		return h.handler.HandlePumpOnCommand(cmd)
	case types.ActionPumpOff:
		return h.handler.HandlePumpOffCommand(cmd)
	case types.ActionGetHistory:
		return h.handler.HandleGetHistoryCommand(cmd)
	case types.ActionGetLogs:
		return h.handler.HandleGetLogsCommand(cmd)
	case types.ActionGetMetrics:
		return h.handler.HandleGetMetricsCommand(cmd)
	case types.ActionSensors:
		return h.handler.HandleSensorsCommand(cmd)
	default:
		return types.Response{
			Success: false,
			Error:   fmt.Sprintf("Unknown command: %s", cmd.Action),
		}
	}
}

// IntArg reads a numeric argument. JSON numbers decode as float64.
func IntArg(cmd types.Command, key string, def int) int {
	switch v := cmd.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}

// StringArg reads a string argument
func StringArg(cmd types.Command, key string) string {
	s, _ := cmd.Data[key].(string)
	return s
}
