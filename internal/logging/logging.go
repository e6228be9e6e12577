// Package logging provides centralized logging functionality using logrus.
// It configures structured logging with JSON formatting and provides
// convenience functions for different log levels.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// programName is used as a field in all log entries for identification
var programName = filepath.Base(os.Args[0])

// backendName tags entries written on behalf of the remote-write backend
const backendName = "coralogix"

func entry() *log.Entry {
	return log.WithFields(log.Fields{"job": programName, "backend": backendName})
}

// LogInfo logs an informational message with the job and backend fields.
func LogInfo(msg string) {
	entry().Info(msg)
}

// LogDebug logs a debug message with the job and backend fields.
func LogDebug(msg string) {
	entry().Debug(msg)
}

// LogError logs the provided error message with the job and backend fields.
// This function should be used to log recoverable errors that do not terminate the program.
func LogError(msg string) {
	entry().Error(msg)
}

// SetDebug switches between debug and info level.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}

// PrepareLogs initializes the logging system with JSON formatting. Entries
// always go to stdout; when logName is not empty they are also appended to
// that file.
//
// Parameters:
//   - logName: Path to the log file (will be created if it doesn't exist)
//
// Returns an error if the log file cannot be opened or created.
func PrepareLogs(logName string) error {
	var out io.Writer = os.Stdout
	if logName != "" {
		logFile, err := os.OpenFile(logName, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, logFile)
	}
	log.SetOutput(out)
	log.SetFormatter(&log.JSONFormatter{})
	return nil
}
