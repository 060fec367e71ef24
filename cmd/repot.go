package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
)

var (
	repotYes   bool
	repotPrime int
)

var repotCmd = &cobra.Command{
	Use:   "repot",
	Short: "Reset the watering budget after refilling or repotting",
	Long: `Reset the remaining waterings to a full tank and restart the schedule.

Run this after refilling the tank. --prime waters the fresh soil once the reset
is done.`,
	Example: `  # Reset after a refill
  plantpot repot

  # Reset and water 50 ml
  plantpot repot --yes --prime 50`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if !repotYes {
			confirmed := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("Reset the budget to a full %.0f ml tank?", cfg.Tank.CapacityMl),
				Default: true,
			}
			if err := survey.AskOne(prompt, &confirmed); err != nil {
				return fmt.Errorf("repot canceled: %w", err)
			}
			if !confirmed {
				log.Info("Repot canceled")
				return nil
			}
		}

		client := runningClient(cfg)
		if client == nil {
			if err := issueOffline(cfg, command.RepotReset()); err != nil {
				return err
			}
			if repotPrime > 0 {
				log.Warn("--prime needs a running controller, skipping the priming watering")
			}
			return nil
		}

		if err := report(client.Repot()); err != nil {
			return err
		}
		if repotPrime <= 0 {
			return nil
		}
		// the inbox holds one command, wait for the reset to be consumed first
		if err := waitConsumed(cfg.Paths.CommandFile); err != nil {
			return err
		}
		return report(client.Pump(repotPrime))
	},
}

func init() {
	rootCmd.AddCommand(repotCmd)

	repotCmd.Flags().BoolVarP(&repotYes, "yes", "y", false, "Do not ask for confirmation")
	repotCmd.Flags().IntVar(&repotPrime, "prime", 0, "Water this many ml after the reset (0 disables)")
}
