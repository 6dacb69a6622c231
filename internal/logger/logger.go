// Package logger provides a small package-level logging facade used across
// the checker. Messages go to a size-rotated log file in the state directory
// and, when attached to a terminal, to stderr as well.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	verbose bool
	std     = log.New(os.Stderr, "", log.LstdFlags)
	file    io.WriteCloser
)

// SetVerbose enables debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// SetLogFile routes output to a rotating log file at the given path in
// addition to stderr. Each rotated file is capped at 1 MiB with a short
// history, matching the low-volume nature of the checker.
func SetLogFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
	}
	file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    1, // megabytes
		MaxBackups: 2,
	}
	std.SetOutput(io.MultiWriter(os.Stderr, file))
}

// Close releases the log file, if one was configured.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
		std.SetOutput(os.Stderr)
	}
}

// Debug logs a message only when verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.Lock()
	v := verbose
	mu.Unlock()
	if !v {
		return
	}
	std.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
}

// Info logs an informational message.
func Info(format string, args ...any) {
	std.Output(2, "INFO "+fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func Warn(format string, args ...any) {
	std.Output(2, "WARN "+fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(format string, args ...any) {
	std.Output(2, "ERROR "+fmt.Sprintf(format, args...))
}
