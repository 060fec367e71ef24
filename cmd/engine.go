package cmd

import (
	"github.com/spf13/cobra"
)

var engineCmd = &cobra.Command{
	Use:     "engine",
	Aliases: []string{"e"},
	Short:   "Watering engine daemon operations",
	Long: `Manage the controller daemon that runs the watering schedule.

The controller:
  - Checks every second whether a watering is due
  - Waters only when the tank and the soil allow it
  - Executes manual commands from the command inbox and the socket
  - Records every watering in the history database`,
	Example: `  # Start the controller daemon
  plantpot engine start

  # Check controller status
  plantpot engine status

  # Stop the controller daemon
  plantpot engine stop

  # Follow controller logs
  plantpot engine logs --follow`,
}

func init() {
	rootCmd.AddCommand(engineCmd)
}
