// Package scoring implements the point rules for top picks, ranked
// candidates and the head-to-head duel. Every function is pure.
package scoring

import (
	"fmt"
	"strings"
)

// RuleVariant selects how top picks earn points.
type RuleVariant string

const (
	// VariantExactOrTop3 awards 10 for an exact slot and 5 for any other
	// top-3 finish.
	VariantExactOrTop3 RuleVariant = "A_exact_or_top3"
	// VariantFinishValue awards 11 minus the finishing position for
	// riders finishing 1..10.
	VariantFinishValue RuleVariant = "B_finish_value"
)

const (
	defaultTopPicksSize = 3
	defaultPoolVariantA = 10
	defaultPoolVariantB = 5
	exactSlotPoints     = 10
	podiumPoints        = 5
	podiumPositions     = 3
	finishValueBase     = 11
	finishValueCutoff   = 10
	headToHeadWinPoints = 5
)

// rankingTable maps |predicted - actual| to points.
var rankingTable = [...]int{5, 3, 2, 1}

// ParseVariant accepts the short ("A", "B") and long enum names, case-insensitive.
func ParseVariant(s string) (RuleVariant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", strings.ToLower(string(VariantExactOrTop3)):
		return VariantExactOrTop3, nil
	case "b", strings.ToLower(string(VariantFinishValue)):
		return VariantFinishValue, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Short returns "A" or "B".
func (v RuleVariant) Short() string {
	switch v {
	case VariantExactOrTop3:
		return "A"
	case VariantFinishValue:
		return "B"
	}
	return string(v)
}

// Rules is the explicit configuration of one scoring context.
type Rules struct {
	Variant RuleVariant
	// TopPicksSize is K, the required length of a non-empty top-picks list.
	TopPicksSize int
	// CandidatePoolSize is M, the maximum ranked candidates.
	CandidatePoolSize int
}

// DefaultRules returns K=3 with M=10 for variant A and M=5 for variant B.
func DefaultRules(v RuleVariant) Rules {
	r := Rules{Variant: v, TopPicksSize: defaultTopPicksSize, CandidatePoolSize: defaultPoolVariantA}
	if v == VariantFinishValue {
		r.CandidatePoolSize = defaultPoolVariantB
	}
	return r
}

// Validate rejects unknown variants and non-positive sizes.
func (r Rules) Validate() error {
	if r.Variant != VariantExactOrTop3 && r.Variant != VariantFinishValue {
		return fmt.Errorf("%w: %q", ErrUnknownVariant, r.Variant)
	}
	if r.TopPicksSize < 1 {
		return fmt.Errorf("%w: top picks size %d", ErrInvalidRules, r.TopPicksSize)
	}
	if r.CandidatePoolSize < 1 {
		return fmt.Errorf("%w: candidate pool size %d", ErrInvalidRules, r.CandidatePoolSize)
	}
	return nil
}

// TopPickPoints scores a single top pick. found is false when the rider has
// no entry in the actual lookup.
func TopPickPoints(v RuleVariant, declared, actual int, found bool) int {
	if !found {
		return 0
	}
	switch v {
	case VariantExactOrTop3:
		if actual == declared {
			return exactSlotPoints
		}
		if actual >= 1 && actual <= podiumPositions {
			return podiumPoints
		}
	case VariantFinishValue:
		if actual >= 1 && actual <= finishValueCutoff {
			return finishValueBase - actual
		}
	}
	return 0
}

// RankingPoints scores a single ranked candidate by distance from its
// actual slot.
func RankingPoints(predicted, actual int, found bool) int {
	if !found {
		return 0
	}
	d := predicted - actual
	if d < 0 {
		d = -d
	}
	if d < len(rankingTable) {
		return rankingTable[d]
	}
	return 0
}

// HeadToHeadPoints is 5 when both sides are present and equal.
func HeadToHeadPoints(selected, winner string) int {
	if selected == "" || winner == "" || selected != winner {
		return 0
	}
	return headToHeadWinPoints
}
