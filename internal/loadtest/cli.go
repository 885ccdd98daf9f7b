package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/huddle/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends log output to stdout and to logFile. An empty logFile
// gets a timestamped name. The returned func closes the file.
func SetupLogging(logFile, format string) (func() error, error) {
	if logFile == "" {
		logFile = "load_test_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file)), logger.WithFormat(format)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file.Close, nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Huddle Load Test Tool
=====================

Registers synthetic users, imports generated calendars for them, runs
concurrent meeting searches and checks that no returned slot overlaps
the generated busy time.

Usage:
  huddle-load [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -users int         Number of synthetic users (default 200)
  -searches int      Number of meeting searches (default 1000)
  -group int         Participants per search (default 3)
  -duration int      Meeting length in minutes (default 30)
  -days int          Days of busy time to generate (default 5)
  -blocks int        Maximum busy blocks per user and day (default 4)
  -workers int       Number of concurrent workers (default CPU cores * 2)
  -rps float         Client side request rate, 0 for unlimited (default 0)
  -timeout duration  HTTP request timeout (default 30s)
  -drain duration    Time allowed for queued imports to finish (default 1m)
  -seed uint         Fixture seed (default: current time)
  -output string     Write the generated fixture as JSON
  -log string        Log file (default: load_test_TIMESTAMP.log)
  -format string     Log format, text or json (default "text")
  -verbose           Log every failed request
  -help              Show this help message

Examples:
  huddle-load -users 500 -searches 5000 -workers 16
  huddle-load -url http://localhost:8080 -rps 40 -seed 42 -output fixture.json
`)
}
