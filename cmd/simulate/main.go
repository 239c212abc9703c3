package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/proxtag/internal/simulate"
)

// Default configuration constants.
const (
	defaultPlayers     = 100
	defaultRoomSize    = 4
	defaultDuration    = 30 * time.Second
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTagInterval = 50 * time.Millisecond
	defaultSignalFloor = -90
	defaultSignalCeil  = -50
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players     = flag.Int("players", defaultPlayers, "Number of players to register")
		roomSize    = flag.Int("room-size", defaultRoomSize, "Players per room")
		duration    = flag.Duration("duration", defaultDuration, "How long to stream traffic")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent traffic workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		tagInterval = flag.Duration("tag-interval", defaultTagInterval, "Delay between tag attempts per worker")
		signalFloor = flag.Int("signal-floor", defaultSignalFloor, "Weakest simulated reading in dBm")
		signalCeil  = flag.Int("signal-ceil", defaultSignalCeil, "Strongest simulated reading in dBm")
		logFile     = flag.String("log", "", "Log file for run output (default: simulation_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	// Setup logging
	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simulate.Config{
		BaseURL:     *baseURL,
		Players:     *players,
		RoomSize:    *roomSize,
		Duration:    *duration,
		Workers:     *workers,
		Timeout:     *timeout,
		TagInterval: *tagInterval,
		SignalFloor: *signalFloor,
		SignalCeil:  *signalCeil,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	// Run the simulation
	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
