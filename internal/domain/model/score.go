package model

import "time"

// Score is the stored outcome of scoring one prediction against one result.
// Rows for a race are always replaced as a set, never merged.
type Score struct {
	UserID          string    `json:"user_id"`
	RaceID          string    `json:"race_id"`
	TopPicksScore   int       `json:"top_picks_score"`
	RankedScore     int       `json:"ranked_score"`
	HeadToHeadScore int       `json:"head_to_head_score"`
	TotalScore      int       `json:"total_score"`
	Variant         string    `json:"variant"`
	ComputedAt      time.Time `json:"computed_at"`
}

// RecomputeJob asks the worker pool to re-run scoring for one race.
type RecomputeJob struct {
	JobID      string    `json:"job_id"`
	RaceID     string    `json:"race_id"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
