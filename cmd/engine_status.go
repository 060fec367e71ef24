package cmd

import (
	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/daemon"
)

var (
	statusPidFile string
	statusLogFile string
	statusJSON    bool
)

var engineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show controller status",
	Long: `Display the daemon status and, when it is running, the watering schedule:
remaining waterings, time until the next watering and the last sensor readings.`,
	Example: `  # Show status
  plantpot engine status

  # Show status in JSON format
  plantpot engine status --json`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pidFile := pick(statusPidFile, cfg.Paths.PidFile)
		logFile := pick(statusLogFile, cfg.Paths.LogFile)
		if err := daemon.ShowStatus(pidFile, logFile, statusJSON); err != nil {
			return err
		}
		if statusJSON {
			return nil
		}

		client := runningClient(cfg)
		if client == nil {
			return nil
		}
		log.Info("")
		return client.PrintStatus()
	},
}

func init() {
	engineCmd.AddCommand(engineStatusCmd)

	engineStatusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Custom PID file location")
	engineStatusCmd.Flags().StringVar(&statusLogFile, "log-file", "", "Custom log file location")
	engineStatusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status in JSON format")
}
