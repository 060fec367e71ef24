package types

import (
	"time"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
)

// ControllerConfig holds the process level settings of the controller
type ControllerConfig struct {
	ConfigPath  string        // Configuration file, hot reloaded
	DaemonMode  bool          // Detach from the terminal
	PidFile     string        // PID file location
	LogFile     string        // Log file location
	Tick        time.Duration // Engine loop period
	DatabaseOn  bool          // Record history in SQLite
	SocketOn    bool          // Serve the operator socket
	WatchConfig bool          // Reload the configuration file on change
}

// DefaultControllerConfig provides default values
var DefaultControllerConfig = ControllerConfig{
	ConfigPath:  config.DefaultPath,
	DaemonMode:  true,
	PidFile:     config.Default().Paths.PidFile,
	LogFile:     config.Default().Paths.LogFile,
	Tick:        time.Second,
	DatabaseOn:  true,
	SocketOn:    true,
	WatchConfig: true,
}
