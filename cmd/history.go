package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/database"
)

var (
	historyLimit int
	historyKind  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent waterings",
	Long: `Show recent watering events and a summary of the history.

The running controller is asked over its socket. When it is not running the
history database is read directly.`,
	Example: `  # Last 20 events
  plantpot history

  # Only scheduled waterings
  plantpot history --kind scheduled --limit 50`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if client := runningClient(cfg); client != nil {
			return client.PrintHistory(historyKind, historyLimit)
		}

		db := database.New(cfg.Paths.DatabaseFile, true)
		if err := db.Init(); err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		events, err := db.GetEvents(historyKind, historyLimit)
		if err != nil {
			return err
		}
		summary, err := db.GetSummary(time.Time{})
		if err != nil {
			return err
		}

		fmt.Printf("📜 Watering History (%d events)\n", len(events))
		fmt.Println("==========================================")
		for _, ev := range events {
			line := fmt.Sprintf("%s  %-9s", ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Kind)
			switch {
			case ev.AmountMl > 0:
				line += fmt.Sprintf("  %d ml", ev.AmountMl)
			case ev.Duration > 0:
				line += fmt.Sprintf("  %v", ev.Duration)
			}
			if ev.Reason != "" {
				line += "  " + ev.Reason
			}
			if ev.Error != "" {
				line += "  ❌ " + ev.Error
			}
			fmt.Println(line)
		}
		fmt.Println("==========================================")
		fmt.Printf("💧 %d waterings, %d ml total, %d skipped, %d pump failures\n",
			summary.Waterings, summary.TotalMl, summary.Skips, summary.PumpFailures)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of events to show")
	historyCmd.Flags().StringVarP(&historyKind, "kind", "k", "", "Only show events of this kind")
	_ = historyCmd.RegisterFlagCompletionFunc("kind", eventKinds)
}
