package daemon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tail "github.com/hpcloud/tail"

	"github.com/saturnblock/pythonplantpot/internal/log"
)

// LastLines returns up to n trailing non-empty lines of path
func LastLines(path string, n int) ([]string, error) {
	//nolint:gosec // G304: log file path comes from the configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if len(ring) == n {
			ring = append(ring[1:], line)
		} else {
			ring = append(ring, line)
		}
	}
	return ring, scanner.Err()
}

// ShowRecentLogs prints the last n lines of the log file if it exists
func ShowRecentLogs(logFile string, n int) {
	lines, err := LastLines(logFile, n)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Info("   (Unable to read log file)")
		}
		return
	}

	log.Info("")
	log.Info("📋 Recent Activity (last %d lines from log):", n)
	for _, line := range lines {
		log.Info("   %s", line)
	}
}

// FollowLogs copies lines appended to logFile into out until ctx is done
func FollowLogs(ctx context.Context, logFile string, out io.Writer) error {
	t, err := tail.TailFile(logFile, tail.Config{
		ReOpen:    true,
		Follow:    true,
		MustExist: false,
		Poll:      true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail log file: %w", err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			stopTail(t)
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return fmt.Errorf("log tail channel closed")
			}
			if line == nil || strings.TrimSpace(line.Text) == "" {
				continue
			}
			if _, err := fmt.Fprintln(out, line.Text); err != nil {
				stopTail(t)
				return err
			}
		}
	}
}

// stopTail stops t while draining Lines, which the tail goroutine sends on unbuffered
func stopTail(t *tail.Tail) {
	stopped := make(chan struct{})
	go func() {
		_ = t.Stop()
		close(stopped)
	}()
	for {
		select {
		case <-stopped:
			return
		case <-t.Lines:
		}
	}
}
