package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/proxtag/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Proxtag Simulation Tool
=======================

A concurrent load and invariant-checking tool for the proxtag arbitration service.
It registers players, partitions them into rooms, streams signal telemetry and
tag attempts, then verifies that every room ends with a consistent it-holder
and score totals.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -players int
        Number of players to register (default 100)
  -room-size int
        Players per room (default 4)
  -duration duration
        How long to stream traffic (default 30s)
  -workers int
        Number of concurrent traffic workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -tag-interval duration
        Delay between tag attempts per worker (default 50ms)
  -signal-floor int
        Weakest simulated reading in dBm (default -90)
  -signal-ceil int
        Strongest simulated reading in dBm (default -50)
  -log string
        Log file for run output (default: simulation_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/simulate/main.go

  # Larger run against a different host
  go run cmd/simulate/main.go -players 500 -workers 16 -url http://localhost:8080

  # Close-range crowd (everything within tag distance)
  go run cmd/simulate/main.go -signal-floor -60 -signal-ceil -40 -duration 1m

  # Verbose run with a custom log file
  go run cmd/simulate/main.go -verbose -log my_run.log
`)
}
