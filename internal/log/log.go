//nolint:revive // Package name kept as "log" for stable internal imports.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu         sync.Mutex
	debugMode            = false
	timestamps           = false
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
)

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debugMode = enabled
}

// IsDebug reports whether debug logging is enabled
func IsDebug() bool {
	mu.Lock()
	defer mu.Unlock()
	return debugMode
}

// SetTimestamps prefixes every line with an RFC3339 timestamp.
// The daemon turns this on because its output goes to a log file.
func SetTimestamps(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = enabled
}

// SetOutput redirects informational and error output. Nil keeps the current writer.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

func write(toErr bool, prefix, format string, elem ...any) {
	mu.Lock()
	defer mu.Unlock()

	w := stdout
	if toErr {
		w = stderr
	}
	line := prefix + fmt.Sprintf(format, elem...)
	if timestamps {
		line = time.Now().Format(time.RFC3339) + " " + line
	}
	fmt.Fprintln(w, line)
}

func debugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debugMode
}

// Debug logs debug messages when debug mode is enabled
func Debug(format string, elem ...any) {
	if debugEnabled() {
		write(false, color.CyanString("[DEBUG] "), format, elem...)
	}
}

// DebugH2 logs indented debug messages when debug mode is enabled
func DebugH2(format string, elem ...any) {
	if debugEnabled() {
		write(false, color.CyanString("  [DEBUG] "), format, elem...)
	}
}

// DebugH3 logs more indented debug messages when debug mode is enabled
func DebugH3(format string, elem ...any) {
	if debugEnabled() {
		write(false, color.CyanString("    [DEBUG] "), format, elem...)
	}
}

// Fatal logs an error message and exits the program
func Fatal(args ...interface{}) {
	var message string

	switch len(args) {
	case 0:
		message = "fatal error occurred"
	case 1:
		switch v := args[0].(type) {
		case error:
			message = v.Error()
		case string:
			message = v
		default:
			message = fmt.Sprintf("%v", v)
		}
	default:
		// A leading format string takes the rest as arguments
		if format, ok := args[0].(string); ok && strings.Contains(format, "%") {
			message = fmt.Sprintf(format, args[1:]...)
		} else {
			message = fmt.Sprint(args...)
		}
	}

	for _, line := range strings.Split(strings.TrimSpace(message), "\n") {
		write(true, color.RedString("[x] "), "%s", line)
	}
	os.Exit(1)
}

// Error logs an error message to stderr
func Error(format string, elem ...any) {
	write(true, color.RedString("[x] "), format, elem...)
}

// ErrorH2 logs an indented error message to stderr
func ErrorH2(format string, elem ...any) {
	write(true, color.RedString("  [x] "), format, elem...)
}

// Warn logs a condition that needs operator attention but is not a failure
func Warn(format string, elem ...any) {
	write(false, color.MagentaString("[!] "), format, elem...)
}

// Info logs an informational message
func Info(format string, elem ...any) {
	write(false, color.BlueString("[x] "), format, elem...)
}

// InfoH2 logs an indented informational message
func InfoH2(format string, elem ...any) {
	write(false, color.GreenString("  [x] "), format, elem...)
}

// InfoH3 logs a double-indented informational message
func InfoH3(format string, elem ...any) {
	write(false, color.YellowString("    [x] "), format, elem...)
}
