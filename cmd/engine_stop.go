package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/daemon"
)

var (
	stopPidFile string
	stopTimeout time.Duration
)

var engineStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the watering controller",
	Long: `Stop the running controller daemon.

A watering in progress is finished before the controller exits. The process is
killed if it has not exited after --timeout.`,
	Example: `  # Stop the controller
  plantpot engine stop

  # Stop with custom PID file
  plantpot engine stop --pid-file /custom/path/plantpot.pid`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log.Info("🛑 Stopping plant pot controller...")
		return daemon.StopDaemon(pick(stopPidFile, cfg.Paths.PidFile), stopTimeout)
	},
}

func init() {
	engineCmd.AddCommand(engineStopCmd)

	engineStopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Custom PID file location")
	engineStopCmd.Flags().DurationVar(&stopTimeout, "timeout", 30*time.Second, "How long to wait before killing the controller")
}
