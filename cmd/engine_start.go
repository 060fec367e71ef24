package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/core"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
)

var (
	startForeground bool
	startPidFile    string
	startLogFile    string
	startTick       time.Duration
	startNoDatabase bool
	startNoSocket   bool
	startNoWatch    bool
)

var engineStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the watering controller",
	Long: `Start the watering controller.

The controller runs as a daemon by default. Use --foreground to run in the current terminal.
Configuration changes are picked up while running unless --no-watch is given.`,
	Example: `  # Start as daemon
  plantpot engine start

  # Start in foreground
  plantpot engine start --foreground

  # Start with a custom configuration
  plantpot --config /etc/plantpot/config.yaml engine start`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		controllerConfig := types.ControllerConfig{
			ConfigPath:  configPath,
			DaemonMode:  !startForeground,
			PidFile:     pick(startPidFile, cfg.Paths.PidFile),
			LogFile:     pick(startLogFile, cfg.Paths.LogFile),
			Tick:        startTick,
			DatabaseOn:  !startNoDatabase,
			SocketOn:    !startNoSocket,
			WatchConfig: !startNoWatch,
		}

		log.Debug("Controller config: %+v", controllerConfig)
		return core.New(controllerConfig).Start()
	},
}

func init() {
	engineCmd.AddCommand(engineStartCmd)

	engineStartCmd.Flags().BoolVarP(&startForeground, "foreground", "f", false, "Run in foreground instead of as a daemon")
	engineStartCmd.Flags().StringVar(&startPidFile, "pid-file", "", "Custom PID file location")
	engineStartCmd.Flags().StringVar(&startLogFile, "log-file", "", "Custom log file location")
	engineStartCmd.Flags().DurationVar(&startTick, "tick", types.DefaultControllerConfig.Tick, "Engine loop period")
	engineStartCmd.Flags().BoolVar(&startNoDatabase, "no-db", false, "Do not record history in SQLite")
	engineStartCmd.Flags().BoolVar(&startNoSocket, "no-socket", false, "Do not serve the operator socket")
	engineStartCmd.Flags().BoolVar(&startNoWatch, "no-watch", false, "Do not reload the configuration file on change")
}
