// Package daemon detaches the controller from the terminal and manages it through its PID file
package daemon

import (
	"fmt"
	"os"
	"syscall"
	"time"

	godaemon "github.com/sevlyar/go-daemon"

	"github.com/saturnblock/pythonplantpot/internal/log"
)

// Status values reported by GetDaemonStatus
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusDead    = "dead"
	StatusError   = "error"
)

// Daemonize forks a detached copy of the current process. Inside the copy it
// returns isChild true and the caller goes on to run the controller. In the
// parent it returns the child's PID. The PID file is locked so a second
// controller cannot start.
func Daemonize(pidFile, logFile string) (isChild bool, pid int, err error) {
	if err := EnsureDirectoriesExist(pidFile, logFile); err != nil {
		return false, 0, err
	}

	ctx := &godaemon.Context{
		PidFileName: pidFile,
		PidFilePerm: 0644,
		LogFileName: logFile,
		LogFilePerm: 0640,
		WorkDir:     "./",
		Umask:       027,
	}

	child, err := ctx.Reborn()
	if err != nil {
		return false, 0, fmt.Errorf("failed to fork daemon: %w", err)
	}
	if child != nil {
		return false, child.Pid, nil
	}
	return true, os.Getpid(), nil
}

// processAlive sends signal 0 to pid
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// GetDaemonStatus inspects the PID file and the process it names.
// A stale PID file is removed.
func GetDaemonStatus(pidFile string) map[string]interface{} {
	status := map[string]interface{}{
		"daemon":   false,
		"pid_file": pidFile,
	}

	pid, err := ReadPIDFromFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			status["status"] = StatusStopped
			status["message"] = "PID file not found"
		} else {
			status["status"] = StatusError
			status["message"] = err.Error()
		}
		return status
	}

	status["pid"] = pid

	if !processAlive(pid) {
		status["status"] = StatusDead
		if removeErr := RemovePIDFile(pidFile); removeErr != nil {
			status["message"] = fmt.Sprintf("Process not running, %v", removeErr)
		} else {
			status["message"] = "Process not running (cleaned up stale PID file)"
		}
		return status
	}

	status["daemon"] = true
	status["status"] = StatusRunning
	status["message"] = "Daemon is running"
	return status
}

// StopDaemon sends SIGTERM and escalates to SIGKILL after grace
func StopDaemon(pidFile string, grace time.Duration) error {
	pid, err := ReadPIDFromFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("daemon is not running (PID file not found)")
		}
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		if !processAlive(pid) {
			log.Info("Process %d already exited", pid)
			return RemovePIDFile(pidFile)
		}
		return fmt.Errorf("failed to send SIGTERM to process %d: %w", pid, err)
	}

	// The engine finishes a running pump activation before it exits
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	if processAlive(pid) {
		log.Info("Process still running, sending SIGKILL...")
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process %d: %w", pid, err)
		}
	}

	if err := RemovePIDFile(pidFile); err != nil {
		return err
	}

	log.Info("✅ Plant pot controller stopped")
	return nil
}
