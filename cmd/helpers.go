package cmd

import (
	"fmt"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/command"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/socket"
)

// loadConfig reads the file named by --config, writing defaults when it is missing
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// runningClient returns a socket client for the controller, or nil when no
// controller is answering on the configured socket
func runningClient(cfg config.Config) *socket.Client {
	client := socket.NewClient(cfg.Paths.SocketFile)
	if !client.IsRunning() {
		log.Debug("No controller listening on %s", cfg.Paths.SocketFile)
		return nil
	}
	return client
}

// pick returns override when set, otherwise def
func pick(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

var consumeTimeout = 15 * time.Second

// waitConsumed polls the command inbox until the engine has picked up the pending command
func waitConsumed(path string) error {
	deadline := time.Now().Add(consumeTimeout)
	for !command.Open(path).Peek().IsNone() {
		if time.Now().After(deadline) {
			return fmt.Errorf("controller did not pick up the pending command within %v", consumeTimeout)
		}
		time.Sleep(250 * time.Millisecond)
	}
	return nil
}
