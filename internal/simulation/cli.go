package simulation

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/velopick/pkg/logger"
)

const filePermission = 0o600

// SetupLogging sends the global logger to stdout and, when logFile is set,
// to that file too.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile == "" {
		return nil
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the contest simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Velopick Contest Simulator
==========================

Drives a running velopick server through a complete contest and checks the
standings it reports against a local computation. Run it against a server
with no contest data; standings are global.

Usage:
  go run ./cmd/contest-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -scenario string
        YAML scenario to replay (default: generate one)
  -seed int
        Generator seed, 0 picks one from the clock
  -riders int
        Generated riders (default 40)
  -races int
        Generated races (default 5)
  -participants int
        Generated participants (default 50)
  -workers int
        Concurrent prediction submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -deadline duration
        Registration window of each race (default 5s)
  -output string
        Write the scenario that was run to this YAML file
  -log string
        Also write logs to this file
  -verbose
        Log every prediction request
  -help
        Show this help message

Examples:
  # Generated contest against a local server
  go run ./cmd/contest-sim

  # Reproducible run, keeping the scenario
  go run ./cmd/contest-sim -seed 42 -output contest.yaml

  # Replay a saved scenario
  go run ./cmd/contest-sim -scenario contest.yaml -url http://localhost:8080
`)
}
