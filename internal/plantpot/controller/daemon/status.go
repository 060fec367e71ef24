package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/saturnblock/pythonplantpot/internal/log"
)

// ShowStatus prints the daemon status and the tail of its log
func ShowStatus(pidFile, logFile string, jsonOutput bool) error {
	daemonStatus := GetDaemonStatus(pidFile)
	if jsonOutput {
		return outputStatusJSON(daemonStatus, logFile)
	}

	state, _ := daemonStatus["status"].(string)

	log.Info("🪴 Plant Pot Controller")
	log.Info("==========================================")

	switch state {
	case StatusRunning:
		log.Info("🟢 Status: RUNNING (Daemon Mode)")
		log.Info("📄 Process ID: %v", daemonStatus["pid"])
		log.Info("📄 PID File: %s", pidFile)
		log.Info("📝 Log File: %s", logFile)
		ShowRecentLogs(logFile, 5)

	case StatusDead:
		log.Info("🟡 Status: STOPPED (Stale PID file found)")
		log.Info("💬 A previous controller was running but is no longer active")
		log.Info("🔧 Suggestion: Run 'plantpot engine start' to start a new one")

	case StatusStopped:
		log.Info("⚫ Status: NOT RUNNING")
		log.Info("📄 PID File: %s (not found)", pidFile)
		log.Info("🔧 Suggestion: Run 'plantpot engine start' to start the controller")

	default:
		log.Info("🔴 Status: ERROR")
		log.Info("💬 %v", daemonStatus["message"])
		log.Info("📄 PID File: %s", pidFile)
	}
	return nil
}

func outputStatusJSON(daemonStatus map[string]interface{}, logFile string) error {
	state, _ := daemonStatus["status"].(string)
	jsonStatus := map[string]interface{}{
		"daemon_running": state == StatusRunning,
		"status":         state,
		"pid_file":       daemonStatus["pid_file"],
		"log_file":       logFile,
	}
	if state == StatusRunning {
		jsonStatus["pid"] = daemonStatus["pid"]
	}
	if msg, ok := daemonStatus["message"]; ok {
		jsonStatus["message"] = msg
	}

	jsonData, err := json.MarshalIndent(jsonStatus, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status to JSON: %w", err)
	}
	fmt.Println(string(jsonData))
	return nil
}
