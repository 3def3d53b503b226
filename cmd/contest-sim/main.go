package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/velopick/internal/simulation"
)

// Default configuration constants.
const (
	defaultRiders       = 40
	defaultRaces        = 5
	defaultParticipants = 50
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultDeadlineIn   = 5 * time.Second
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		scenarioFile = flag.String("scenario", "", "YAML scenario to replay (default: generate one)")
		seed         = flag.Int64("seed", 0, "Generator seed, 0 picks one from the clock")
		riders       = flag.Int("riders", defaultRiders, "Generated riders")
		races        = flag.Int("races", defaultRaces, "Generated races")
		participants = flag.Int("participants", defaultParticipants, "Generated participants")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent prediction submitters")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		deadlineIn   = flag.Duration("deadline", defaultDeadlineIn, "Registration window of each race")
		outputFile   = flag.String("output", "", "Write the scenario that was run to this YAML file")
		logFile      = flag.String("log", "", "Also write logs to this file")
		verbose      = flag.Bool("verbose", false, "Log every prediction request")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulation.ShowHelp()
		return
	}

	if err := simulation.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	cfg := &simulation.Config{
		BaseURL:      *baseURL,
		ScenarioFile: *scenarioFile,
		Seed:         *seed,
		Riders:       *riders,
		Races:        *races,
		Participants: *participants,
		Workers:      *workers,
		Timeout:      *timeout,
		DeadlineIn:   *deadlineIn,
		OutputFile:   *outputFile,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}
	if err := cfg.Validate(); err != nil {
		os.Stderr.WriteString("Invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(cfg *simulation.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()
	return simulation.NewRunner(cfg).Run(ctx)
}
