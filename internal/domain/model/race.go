package model

import (
	"strings"
	"time"
)

// Race is a scored event with a registration deadline after which
// predictions are frozen.
type Race struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Date                 time.Time `json:"date"`
	RegistrationDeadline time.Time `json:"registration_deadline"`
	IsMonument           bool      `json:"is_monument"`
	// RuleVariant overrides the deployment default when set ("A" or "B").
	RuleVariant string `json:"rule_variant,omitempty"`
}

// IsOpen reports whether predictions are still accepted at now.
func (r Race) IsOpen(now time.Time) bool {
	return now.Before(r.RegistrationDeadline)
}

// Validate checks the fields required to store a race.
func (r Race) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return Invalidf("race id is required")
	case strings.TrimSpace(r.Name) == "":
		return Invalidf("race %s: name is required", r.ID)
	case r.RegistrationDeadline.IsZero():
		return Invalidf("race %s: registration deadline is required", r.ID)
	}
	return nil
}

// HeadToHead names the two contenders of a race's head-to-head duel.
type HeadToHead struct {
	RiderA string `json:"rider_a"`
	RiderB string `json:"rider_b"`
}

// Has reports whether riderID is one of the two contenders.
func (h HeadToHead) Has(riderID string) bool {
	return riderID != "" && (riderID == h.RiderA || riderID == h.RiderB)
}

// RaceSetup is the administrator-curated part of a race: the candidate
// pool for the ranked prediction and the optional head-to-head duel.
type RaceSetup struct {
	RaceID     string      `json:"race_id"`
	Candidates []string    `json:"candidates"`
	HeadToHead *HeadToHead `json:"head_to_head,omitempty"`
}

// InPool reports whether riderID is a candidate.
func (s RaceSetup) InPool(riderID string) bool {
	for _, c := range s.Candidates {
		if c == riderID {
			return true
		}
	}
	return false
}

// Validate checks pool and duel consistency. maxPool bounds the pool size.
func (s RaceSetup) Validate(maxPool int) error {
	if s.RaceID == "" {
		return Invalidf("setup: race id is required")
	}
	if maxPool > 0 && len(s.Candidates) > maxPool {
		return Invalidf("setup %s: %d candidates exceeds pool size %d", s.RaceID, len(s.Candidates), maxPool)
	}
	seen := make(map[string]struct{}, len(s.Candidates))
	for _, c := range s.Candidates {
		if c == "" {
			return Invalidf("setup %s: empty candidate id", s.RaceID)
		}
		if _, dup := seen[c]; dup {
			return Invalidf("setup %s: candidate %s listed twice", s.RaceID, c)
		}
		seen[c] = struct{}{}
	}
	if h := s.HeadToHead; h != nil {
		if h.RiderA == "" || h.RiderB == "" {
			return Invalidf("setup %s: head-to-head needs two riders", s.RaceID)
		}
		if h.RiderA == h.RiderB {
			return Invalidf("setup %s: head-to-head riders must differ", s.RaceID)
		}
	}
	return nil
}
