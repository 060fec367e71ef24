package socket

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/controller/types"
)

// Client talks to a running controller over its socket
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new controller client
func NewClient(socketPath string) *Client {
	if socketPath == "" {
		socketPath = config.Default().Paths.SocketFile
	}
	return &Client{
		socketPath: socketPath,
		timeout:    30 * time.Second,
	}
}

// SetTimeout sets the connection timeout for the client
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// SendCommand sends a command to the controller and returns the response
func (c *Client) SendCommand(action string, data map[string]interface{}) (*types.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller socket %s: %w", c.socketPath, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	cmd := types.Command{
		Action: action,
		Data:   data,
	}
	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var response types.Response
	if err := json.NewDecoder(conn).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}

// Status gets the engine snapshot
func (c *Client) Status() (*types.Response, error) {
	return c.SendCommand(types.ActionStatus, nil)
}

// Pump queues a manual watering of amountMl
func (c *Client) Pump(amountMl int) (*types.Response, error) {
	return c.SendCommand(types.ActionPump, map[string]interface{}{
		"amount_ml": amountMl,
	})
}

// TimedPump queues a pump run of a fixed duration
func (c *Client) TimedPump(d time.Duration) (*types.Response, error) {
	return c.SendCommand(types.ActionTimedPump, map[string]interface{}{
		"duration_seconds": int(d / time.Second),
	})
}

// Repot queues a cycle budget reset
func (c *Client) Repot() (*types.Response, error) {
	return c.SendCommand(types.ActionRepot, nil)
}

// PumpOn switches the pump on until PumpOff
func (c *Client) PumpOn() (*types.Response, error) {
	return c.SendCommand(types.ActionPumpOn, nil)
}

// PumpOff switches the pump off
func (c *Client) PumpOff() (*types.Response, error) {
	return c.SendCommand(types.ActionPumpOff, nil)
}

// GetHistory gets recent watering events. An empty kind returns all kinds.
func (c *Client) GetHistory(kind string, limit int) (*types.Response, error) {
	data := map[string]interface{}{
		"limit": limit,
	}
	if kind != "" {
		data["kind"] = kind
	}
	return c.SendCommand(types.ActionGetHistory, data)
}

// GetLogs gets recent engine log entries from the database
func (c *Client) GetLogs(limit int) (*types.Response, error) {
	return c.SendCommand(types.ActionGetLogs, map[string]interface{}{
		"limit": limit,
	})
}

// GetMetrics gets the current gauge and counter values
func (c *Client) GetMetrics() (*types.Response, error) {
	return c.SendCommand(types.ActionGetMetrics, nil)
}

// Sensors reads the sensors and evaluates the precondition gate
func (c *Client) Sensors() (*types.Response, error) {
	return c.SendCommand(types.ActionSensors, nil)
}

// IsRunning checks if the controller answers on its socket
func (c *Client) IsRunning() bool {
	response, err := c.Status()
	return err == nil && response.Success
}

// WaitFor waits for the controller to become available
func (c *Client) WaitFor(maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		if c.IsRunning() {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("controller did not become available within %v", maxWait)
}
