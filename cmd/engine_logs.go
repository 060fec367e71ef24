package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/daemon"
)

var (
	logsFile     string
	logsFollow   bool
	logsLive     bool
	logsLimit    int
	logsInterval time.Duration
)

var engineLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show controller logs",
	Long: `Show the controller logs.

Without flags the most recent engine log entries are printed. --follow streams
the daemon log file (like tail -f) and --live polls the engine log over the socket.`,
	Example: `  # Show the last 50 engine log entries
  plantpot engine logs

  # Follow the daemon log file
  plantpot engine logs --follow

  # Stream engine logs from the running controller
  plantpot engine logs --live`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logFile := pick(logsFile, cfg.Paths.LogFile)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if logsFollow {
			log.Info("📋 Following controller logs: %s", logFile)
			log.Info("Press Ctrl+C to stop following logs")
			log.Info("==========================================")
			return daemon.FollowLogs(ctx, logFile, os.Stdout)
		}

		client := runningClient(cfg)
		if client == nil {
			if logsLive {
				return fmt.Errorf("controller is not running")
			}
			daemon.ShowRecentLogs(logFile, logsLimit)
			return nil
		}

		if logsLive {
			return client.StreamLiveLogs(logsLimit, logsInterval, ctx.Done())
		}
		return client.PrintLogs(logsLimit)
	},
}

func init() {
	engineCmd.AddCommand(engineLogsCmd)

	engineLogsCmd.Flags().StringVar(&logsFile, "log-file", "", "Custom log file location")
	engineLogsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow the daemon log file")
	engineLogsCmd.Flags().BoolVar(&logsLive, "live", false, "Poll engine logs from the running controller")
	engineLogsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 50, "Number of entries to show")
	engineLogsCmd.Flags().DurationVar(&logsInterval, "interval", 2*time.Second, "Refresh interval for --live")
	engineLogsCmd.MarkFlagsMutuallyExclusive("follow", "live")
}
