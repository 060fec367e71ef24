package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
)

var (
	pumpAmount   int
	pumpDuration time.Duration
	pumpOn       bool
	pumpOff      bool
)

var pumpCmd = &cobra.Command{
	Use:   "pump",
	Short: "Run the pump outside the schedule",
	Long: `Queue a manual watering for the controller.

--amount pumps a volume using the pump calibration, --duration runs the pump for
a fixed time. Without either flag the configured watering amount is used.
Manual runs do not count against the remaining waterings of the tank.

--on and --off switch the pump directly for testing the hardware; they need a
running controller.`,
	Example: `  # Water the configured amount
  plantpot pump

  # Water 80 ml
  plantpot pump --amount 80

  # Run the pump for 5 seconds
  plantpot pump --duration 5s

  # Hardware test
  plantpot pump --on && sleep 2 && plantpot pump --off`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := runningClient(cfg)

		if pumpOn || pumpOff {
			if client == nil {
				return fmt.Errorf("controller is not running")
			}
			var resp *types.Response
			if pumpOn {
				resp, err = client.PumpOn()
			} else {
				resp, err = client.PumpOff()
			}
			return report(resp, err)
		}

		cmd := pumpCommand(cfg)
		if err := cmd.Validate(); err != nil {
			return err
		}

		if client == nil {
			return issueOffline(cfg, cmd)
		}
		if cmd.Action == command.ActionTimedPump {
			return report(client.TimedPump(cmd.Duration()))
		}
		return report(client.Pump(cmd.AmountMl))
	},
}

// pumpCommand builds the command the flags ask for
func pumpCommand(cfg config.Config) command.Command {
	if pumpDuration > 0 {
		return command.TimedPump(pumpDuration)
	}
	amount := pumpAmount
	if amount <= 0 {
		amount = cfg.Watering.AmountMl
	}
	return command.ManualPump(amount)
}

// issueOffline leaves cmd in the inbox file for the controller to pick up when it starts
func issueOffline(cfg config.Config, cmd command.Command) error {
	issued, err := command.Open(cfg.Paths.CommandFile).Issue(cmd)
	if err != nil {
		return err
	}
	log.Warn("Controller is not running, %s left in %s", issued, cfg.Paths.CommandFile)
	return nil
}

func report(resp *types.Response, err error) error {
	if err != nil {
		return fmt.Errorf("failed to communicate with controller: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	log.Info("✅ %s", resp.Message)
	return nil
}

func init() {
	rootCmd.AddCommand(pumpCmd)

	pumpCmd.Flags().IntVarP(&pumpAmount, "amount", "a", 0, "Volume to pump in ml")
	pumpCmd.Flags().DurationVarP(&pumpDuration, "duration", "t", 0, "Run the pump for this long")
	pumpCmd.Flags().BoolVar(&pumpOn, "on", false, "Switch the pump on")
	pumpCmd.Flags().BoolVar(&pumpOff, "off", false, "Switch the pump off")
	pumpCmd.MarkFlagsMutuallyExclusive("amount", "duration", "on", "off")
}
