package model

import "time"

// Pick is one entry of the top-picks list: a rider and the finishing
// position the participant declared for them.
type Pick struct {
	RiderID  string `json:"rider_id"`
	Position int    `json:"position"`
}

// RankedPick places a candidate at a predicted position within the pool.
type RankedPick struct {
	RiderID           string `json:"rider_id"`
	PredictedPosition int    `json:"predicted_position"`
}

// Prediction is one participant's entry for one race. At most one exists
// per (UserID, RaceID); a new submission replaces the old one.
type Prediction struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	RaceID           string       `json:"race_id"`
	TopPicks         []Pick       `json:"top_picks"`
	RankedCandidates []RankedPick `json:"ranked_candidates"`
	HeadToHeadPick   string       `json:"head_to_head_pick,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Participant carries the optional display name shown in standings.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}
