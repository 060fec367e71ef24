package socket

import (
	"fmt"
	"sort"
	"time"
)

// formatTimestamp renders an RFC3339 or SQLite timestamp as a local clock time
func formatTimestamp(ts interface{}) string {
	t, ok := ts.(string)
	if !ok {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, t); err == nil {
			return parsed.Local().Format("2006-01-02 15:04:05")
		}
	}
	return t
}

// formatCountdown renders seconds as h/m/s
func formatCountdown(seconds float64) string {
	return (time.Duration(seconds) * time.Second).String()
}

func getLevelIcon(level string) string {
	switch level {
	case "error":
		return "❌"
	case "warn":
		return "⚠️"
	case "debug":
		return "🔍"
	default:
		return "ℹ️"
	}
}

func displayLogEntry(logMap map[string]interface{}) {
	level, _ := logMap["level"].(string)
	message, _ := logMap["message"].(string)
	fmt.Printf("[%s] %s %s\n", formatTimestamp(logMap["timestamp"]), getLevelIcon(level), message)
}

// PrintStatus prints a formatted status report
func (c *Client) PrintStatus() error {
	response, err := c.Status()
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("status request failed: %s", response.Error)
	}

	data := response.Data
	fmt.Println("🪴 Plant Pot Status")
	fmt.Println("==========================================")

	if state, ok := data["state"].(string); ok && state == "running" {
		fmt.Println("🟢 Engine: RUNNING")
	} else {
		fmt.Printf("🔴 Engine: %v\n", data["state"])
	}
	if running, ok := data["pumpRunning"].(bool); ok && running {
		fmt.Println("💧 Pump: ON")
	}
	if cycles, ok := data["remainingCycles"].(float64); ok {
		fmt.Printf("🔁 Remaining cycles: %.0f\n", cycles)
	}
	if secs, ok := data["secondsRemaining"].(float64); ok {
		fmt.Printf("⏱️  Next watering in: %s\n", formatCountdown(secs))
	}
	if last, ok := data["lastWateringTime"].(string); ok && last != "" {
		fmt.Printf("🕑 Last watering: %s\n", formatTimestamp(last))
	}
	if next, ok := data["nextWateringTime"].(string); ok && next != "" {
		fmt.Printf("🕑 Next watering: %s\n", formatTimestamp(next))
	}
	if outcome, ok := data["lastOutcome"].(string); ok && outcome != "" {
		reason, _ := data["lastReason"].(string)
		if reason != "" {
			fmt.Printf("📝 Last tick: %s (%s)\n", outcome, reason)
		} else {
			fmt.Printf("📝 Last tick: %s\n", outcome)
		}
	}
	for _, feature := range []string{"database_enabled", "http_enabled", "mqtt_enabled"} {
		if on, ok := data[feature].(bool); ok {
			state := "DISABLED"
			if on {
				state = "ENABLED"
			}
			fmt.Printf("   %s: %s\n", feature, state)
		}
	}
	return nil
}

// PrintSensors prints the current readings and the gate decision
func (c *Client) PrintSensors() error {
	response, err := c.Sensors()
	if err != nil {
		return fmt.Errorf("failed to read sensors: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("sensors request failed: %s", response.Error)
	}

	data := response.Data
	fmt.Println("🌡️  Sensors")
	fmt.Println("==========================================")
	if tank, ok := data["tankMl"].(float64); ok {
		fmt.Printf("🚰 Tank: %.0f ml\n", tank)
	}
	if moisture, ok := data["moisturePercent"].(float64); ok && moisture >= 0 {
		fmt.Printf("🌱 Moisture: %.0f%%\n", moisture)
	} else {
		fmt.Println("🌱 Moisture: not read")
	}
	if allowed, ok := data["allowed"].(bool); ok {
		if allowed {
			fmt.Println("✅ Watering allowed")
		} else {
			fmt.Printf("⛔ Watering blocked: %v\n", data["reason"])
		}
	}
	return nil
}

// PrintHistory prints recent watering events and their summary
func (c *Client) PrintHistory(kind string, limit int) error {
	response, err := c.GetHistory(kind, limit)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("history request failed: %s", response.Error)
	}

	fmt.Printf("📜 Watering History (last %d events)\n", limit)
	fmt.Println("==========================================")

	events, _ := response.Data["events"].([]interface{})
	if len(events) == 0 {
		fmt.Println("No events recorded.")
	}
	for _, evInterface := range events {
		ev, ok := evInterface.(map[string]interface{})
		if !ok {
			continue
		}
		line := fmt.Sprintf("[%s] %v", formatTimestamp(ev["time"]), ev["kind"])
		if ml, ok := ev["amountMl"].(float64); ok && ml > 0 {
			line += fmt.Sprintf(" %.0fml", ml)
		}
		if reason, ok := ev["reason"].(string); ok && reason != "" {
			line += " (" + reason + ")"
		}
		if cycles, ok := ev["remainingCycles"].(float64); ok {
			line += fmt.Sprintf(" cycles=%.0f", cycles)
		}
		if errMsg, ok := ev["error"].(string); ok && errMsg != "" {
			line += " ❌ " + errMsg
		}
		fmt.Println(line)
	}

	if summary, ok := response.Data["summary"].(map[string]interface{}); ok {
		fmt.Println()
		fmt.Printf("💧 Waterings: %v, total %v ml\n", summary["waterings"], summary["totalMl"])
		fmt.Printf("⛔ Skips: %v\n", summary["skips"])
		fmt.Printf("❌ Pump failures: %v\n", summary["pumpFailures"])
	}
	return nil
}

// PrintLogs prints recent engine log entries, oldest first
func (c *Client) PrintLogs(limit int) error {
	response, err := c.GetLogs(limit)
	if err != nil {
		return fmt.Errorf("failed to get logs: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("get logs request failed: %s", response.Error)
	}

	fmt.Printf("📋 Recent Logs (last %d entries)\n", limit)
	fmt.Println("==========================================")

	logs, _ := response.Data["logs"].([]interface{})
	if len(logs) == 0 {
		fmt.Println("No logs available.")
		return nil
	}
	for i := len(logs) - 1; i >= 0; i-- {
		if logMap, ok := logs[i].(map[string]interface{}); ok {
			displayLogEntry(logMap)
		}
	}
	return nil
}

// StreamLiveLogs polls the engine log and prints new entries until stop is closed
func (c *Client) StreamLiveLogs(limit int, interval time.Duration, stop <-chan struct{}) error {
	fmt.Printf("📡 Live Engine Logs (refreshing every %v)\n", interval)
	fmt.Println("Press Ctrl+C to stop streaming")

	var lastLogID int64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		response, err := c.GetLogs(limit)
		switch {
		case err != nil:
			fmt.Printf("❌ Error getting logs: %v\n", err)
		case !response.Success:
			fmt.Printf("❌ Failed to get logs: %s\n", response.Error)
		default:
			logs, _ := response.Data["logs"].([]interface{})
			// Newest first on the wire
			for i := len(logs) - 1; i >= 0; i-- {
				logMap, ok := logs[i].(map[string]interface{})
				if !ok {
					continue
				}
				id, _ := logMap["id"].(float64)
				if int64(id) > lastLogID {
					lastLogID = int64(id)
					displayLogEntry(logMap)
				}
			}
		}

		select {
		case <-stop:
			return nil
		case <-ticker.C:
		}
	}
}

// PrintMetrics prints the engine metrics by name
func (c *Client) PrintMetrics() error {
	response, err := c.GetMetrics()
	if err != nil {
		return fmt.Errorf("failed to get metrics: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("get metrics request failed: %s", response.Error)
	}

	fmt.Println("📊 Engine Metrics")
	fmt.Println("==========================================")

	metrics, _ := response.Data["metrics"].(map[string]interface{})
	if len(metrics) == 0 {
		fmt.Println("No metrics available.")
		return nil
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("   %s = %v\n", name, metrics[name])
	}
	return nil
}
