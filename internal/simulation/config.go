// Package simulation drives a running velopick server through a complete
// contest and checks the standings it reports against a local computation.
package simulation

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	ScenarioFile string        // Optional YAML scenario; generated when empty
	Seed         int64         // Generator seed; 0 picks one from the clock
	Riders       int           // Generated riders
	Races        int           // Generated races
	Participants int           // Generated participants
	Workers      int           // Concurrent prediction submitters
	Timeout      time.Duration // HTTP request timeout
	DeadlineIn   time.Duration // Registration window given to each race
	OutputFile   string        // Where the scenario is written after the run
	LogFile      string        // Log file for the run
	Verbose      bool          // Log every request
}

// Stats holds run statistics.
type Stats struct {
	RidersCreated        int
	RacesCreated         int
	PredictionsSubmitted int
	PredictionsFailed    int
	ResultsCommitted     int
	ScoresWritten        int
	StandingsRows        int
	Mismatches           int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}

// remoteRules mirrors the scoring fields of GET /stats.
type remoteRules struct {
	Variant           string `json:"variant"`
	TopPicksSize      int    `json:"topPicksSize"`
	CandidatePoolSize int    `json:"candidatePoolSize"`
}
