package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/gate"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/hal"
)

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Read the sensors once",
	Long: `Read the soil moisture and tank level and show whether a watering of the
configured amount would be allowed right now.

The running controller owns the hardware, so it is asked over its socket. When no
controller is running the sensors are opened directly.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if client := runningClient(cfg); client != nil {
			return client.PrintSensors()
		}

		device, err := hal.Open(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = device.Close() }()

		printDecision(gate.New(device, config.Static(cfg)).Evaluate(cfg.Watering.AmountMl))
		return nil
	},
}

func printDecision(d gate.Decision) {
	fmt.Println("🌡️  Sensors")
	fmt.Println("==========================================")
	if d.Err != nil {
		fmt.Printf("❌ Sensor error: %v\n", d.Err)
	}
	fmt.Printf("🚰 Tank: %.0f ml\n", d.TankMl)
	if d.MoisturePercent >= 0 {
		fmt.Printf("🌱 Moisture: %d%%\n", d.MoisturePercent)
	} else {
		fmt.Println("🌱 Moisture: not read")
	}
	if d.Allowed {
		fmt.Println("✅ Watering allowed")
	} else {
		fmt.Printf("⛔ Watering blocked: %s\n", d.Reason)
	}
}

func init() {
	rootCmd.AddCommand(sensorsCmd)
}
