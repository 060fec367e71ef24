// Package cmd provides the plantpot command-line interface
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plantpot",
	Short: "Watering controller for a self-watering plant pot",
	Long: `plantpot - watering controller for a Raspberry Pi plant pot

Waters the plant on a fixed interval when the soil is dry enough and the
tank holds enough water, and takes manual commands from the operator.

Features:
  • Scheduled watering with moisture and tank checks
  • Manual and timed pump runs, repot reset
  • Watering history and engine logs in SQLite
  • Optional HTTP API, live status over WebSocket and an MQTT bridge`,
	Example: `  # Write a default configuration
  plantpot config init

  # Start the controller daemon
  plantpot engine start

  # Water 50 ml now
  plantpot pump --amount 50

  # Show recent waterings
  plantpot history`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			log.SetDebugMode(true)
			log.Debug("Debug mode enabled")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Configuration file")
}
