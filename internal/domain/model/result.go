package model

import (
	"sort"
	"time"
)

// ActualResult is the administrator-entered outcome of a race.
type ActualResult struct {
	RaceID string `json:"race_id"`
	// FinishPositions maps rider id to real finishing position (1-based).
	FinishPositions map[string]int `json:"finish_positions"`
	// CandidateOrder is the administrator ordering of the candidate pool,
	// positions 1..n. Optional; derived from FinishPositions when empty.
	CandidateOrder   map[string]int `json:"candidate_order,omitempty"`
	HeadToHeadWinner string         `json:"head_to_head_winner,omitempty"`
	EnteredAt        time.Time      `json:"entered_at"`
}

// Validate checks position ranges and uniqueness.
func (r ActualResult) Validate() error {
	if r.RaceID == "" {
		return Invalidf("result: race id is required")
	}
	taken := make(map[int]string, len(r.FinishPositions))
	for rider, pos := range r.FinishPositions {
		if rider == "" {
			return Invalidf("result %s: empty rider id", r.RaceID)
		}
		if pos < 1 {
			return Invalidf("result %s: rider %s has position %d", r.RaceID, rider, pos)
		}
		if other, dup := taken[pos]; dup {
			return Invalidf("result %s: riders %s and %s share position %d", r.RaceID, lesser(other, rider), greater(other, rider), pos)
		}
		taken[pos] = rider
	}
	n := len(r.CandidateOrder)
	slots := make(map[int]struct{}, n)
	for rider, pos := range r.CandidateOrder {
		if rider == "" {
			return Invalidf("result %s: empty candidate id", r.RaceID)
		}
		if pos < 1 || pos > n {
			return Invalidf("result %s: candidate %s ordered at %d, want 1..%d", r.RaceID, rider, pos, n)
		}
		if _, dup := slots[pos]; dup {
			return Invalidf("result %s: candidate order position %d used twice", r.RaceID, pos)
		}
		slots[pos] = struct{}{}
	}
	return nil
}

// TopPicksLookup is the table top picks are scored against: real finishing
// positions, completed with candidate order entries for riders that have no
// finishing position.
func (r ActualResult) TopPicksLookup() map[string]int {
	out := make(map[string]int, len(r.FinishPositions)+len(r.CandidateOrder))
	for rider, pos := range r.CandidateOrder {
		out[rider] = pos
	}
	for rider, pos := range r.FinishPositions {
		out[rider] = pos
	}
	return out
}

// RankingLookup is the table ranked candidates are scored against. An
// explicit candidate order wins. Otherwise the pool members that finished
// are ranked 1..n by finishing position; a nil pool ranks every finisher.
func (r ActualResult) RankingLookup(pool []string) map[string]int {
	if len(r.CandidateOrder) > 0 {
		out := make(map[string]int, len(r.CandidateOrder))
		for rider, pos := range r.CandidateOrder {
			out[rider] = pos
		}
		return out
	}

	type finisher struct {
		rider string
		pos   int
	}
	var finishers []finisher
	if pool == nil {
		for rider, pos := range r.FinishPositions {
			finishers = append(finishers, finisher{rider, pos})
		}
	} else {
		for _, rider := range pool {
			if pos, ok := r.FinishPositions[rider]; ok {
				finishers = append(finishers, finisher{rider, pos})
			}
		}
	}
	sort.Slice(finishers, func(i, j int) bool { return finishers[i].pos < finishers[j].pos })

	out := make(map[string]int, len(finishers))
	for i, f := range finishers {
		out[f.rider] = i + 1
	}
	return out
}

func lesser(a, b string) string {
	if a < b {
		return a
	}
	return b
}

func greater(a, b string) string {
	if a < b {
		return b
	}
	return a
}
