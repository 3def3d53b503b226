package scoring

import (
	"fmt"
	"sort"

	"github.com/okian/velopick/internal/domain/model"
)

// Actuals are the lookup tables one race result is scored against. Build
// them once per race with ActualsFor and share across predictions.
type Actuals struct {
	TopPicks map[string]int
	Ranking  map[string]int
	Winner   string
}

// ActualsFor derives the scoring lookups of result; pool is the race's
// candidate pool (nil when none is configured).
func ActualsFor(result model.ActualResult, pool []string) Actuals {
	return Actuals{
		TopPicks: result.TopPicksLookup(),
		Ranking:  result.RankingLookup(pool),
		Winner:   result.HeadToHeadWinner,
	}
}

// ValidateTopPicks accepts an empty list or exactly K picks with distinct
// riders and distinct positions in 1..K.
func ValidateTopPicks(picks []model.Pick, rules Rules) error {
	if len(picks) == 0 {
		return nil
	}
	if len(picks) != rules.TopPicksSize {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongPickCount, len(picks), rules.TopPicksSize)
	}
	riders := make(map[string]struct{}, len(picks))
	slots := make(map[int]struct{}, len(picks))
	for _, p := range picks {
		if p.RiderID == "" {
			return ErrEmptyRider
		}
		if p.Position < 1 || p.Position > rules.TopPicksSize {
			return fmt.Errorf("%w: top pick %s at %d, want 1..%d", ErrPositionOutOfRange, p.RiderID, p.Position, rules.TopPicksSize)
		}
		if _, dup := riders[p.RiderID]; dup {
			return fmt.Errorf("%w: %s in top picks", ErrDuplicateRider, p.RiderID)
		}
		if _, dup := slots[p.Position]; dup {
			return fmt.Errorf("%w: top pick position %d", ErrDuplicatePosition, p.Position)
		}
		riders[p.RiderID] = struct{}{}
		slots[p.Position] = struct{}{}
	}
	return nil
}

// ValidateRanked accepts at most M candidates with distinct riders and
// distinct predicted positions in 1..M.
func ValidateRanked(picks []model.RankedPick, rules Rules) error {
	if len(picks) > rules.CandidatePoolSize {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManyPicks, len(picks), rules.CandidatePoolSize)
	}
	riders := make(map[string]struct{}, len(picks))
	slots := make(map[int]struct{}, len(picks))
	for _, p := range picks {
		if p.RiderID == "" {
			return ErrEmptyRider
		}
		if p.PredictedPosition < 1 || p.PredictedPosition > rules.CandidatePoolSize {
			return fmt.Errorf("%w: candidate %s at %d, want 1..%d", ErrPositionOutOfRange, p.RiderID, p.PredictedPosition, rules.CandidatePoolSize)
		}
		if _, dup := riders[p.RiderID]; dup {
			return fmt.Errorf("%w: %s in ranked candidates", ErrDuplicateRider, p.RiderID)
		}
		if _, dup := slots[p.PredictedPosition]; dup {
			return fmt.Errorf("%w: ranked position %d", ErrDuplicatePosition, p.PredictedPosition)
		}
		riders[p.RiderID] = struct{}{}
		slots[p.PredictedPosition] = struct{}{}
	}
	return nil
}

// ValidatePrediction runs both list checks.
func ValidatePrediction(p model.Prediction, rules Rules) error {
	if err := ValidateTopPicks(p.TopPicks, rules); err != nil {
		return err
	}
	return ValidateRanked(p.RankedCandidates, rules)
}

// TopPicks scores the top-picks category.
func TopPicks(picks []model.Pick, actual map[string]int, rules Rules) (int, error) {
	if err := ValidateTopPicks(picks, rules); err != nil {
		return 0, err
	}
	return sumTopPicks(topPickLines(picks, actual, rules.Variant)), nil
}

// Ranking scores the ranked-candidates category.
func Ranking(picks []model.RankedPick, actual map[string]int, rules Rules) (int, error) {
	if err := ValidateRanked(picks, rules); err != nil {
		return 0, err
	}
	return sumRanked(rankedLines(picks, actual)), nil
}

// HeadToHead scores the duel category. Missing data scores 0.
func HeadToHead(selected, winner string) int {
	return HeadToHeadPoints(selected, winner)
}

// Score computes the stored score row of one prediction. The row is the
// sum of the lines Detail would report.
func Score(p model.Prediction, actual Actuals, rules Rules) (model.Score, error) {
	b, err := Detail(p, actual, rules)
	if err != nil {
		return model.Score{}, err
	}
	return model.Score{
		UserID:          p.UserID,
		RaceID:          p.RaceID,
		TopPicksScore:   b.TopPicksScore,
		RankedScore:     b.RankedScore,
		HeadToHeadScore: b.HeadToHeadScore,
		TotalScore:      b.Total,
		Variant:         rules.Variant.Short(),
	}, nil
}

// TopPickLine explains one top pick.
type TopPickLine struct {
	RiderID          string `json:"rider_id"`
	DeclaredPosition int    `json:"declared_position"`
	ActualPosition   int    `json:"actual_position,omitempty"`
	Finished         bool   `json:"finished"`
	Points           int    `json:"points"`
}

// RankedLine explains one ranked candidate.
type RankedLine struct {
	RiderID           string `json:"rider_id"`
	PredictedPosition int    `json:"predicted_position"`
	ActualPosition    int    `json:"actual_position,omitempty"`
	Placed            bool   `json:"placed"`
	Difference        int    `json:"difference,omitempty"`
	Points            int    `json:"points"`
}

// HeadToHeadLine explains the duel.
type HeadToHeadLine struct {
	Selected string `json:"selected,omitempty"`
	Winner   string `json:"winner,omitempty"`
	Points   int    `json:"points"`
}

// Breakdown is the line-by-line justification of a score.
type Breakdown struct {
	UserID          string         `json:"user_id"`
	RaceID          string         `json:"race_id"`
	Variant         string         `json:"variant"`
	TopPicks        []TopPickLine  `json:"top_picks"`
	Ranked          []RankedLine   `json:"ranked"`
	HeadToHead      HeadToHeadLine `json:"head_to_head"`
	TopPicksScore   int            `json:"top_picks_score"`
	RankedScore     int            `json:"ranked_score"`
	HeadToHeadScore int            `json:"head_to_head_score"`
	Total           int            `json:"total"`
}

// Detail builds the breakdown of p against actual. Lines are ordered by
// declared or predicted position.
func Detail(p model.Prediction, actual Actuals, rules Rules) (Breakdown, error) {
	if err := ValidatePrediction(p, rules); err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		UserID:   p.UserID,
		RaceID:   p.RaceID,
		Variant:  rules.Variant.Short(),
		TopPicks: topPickLines(p.TopPicks, actual.TopPicks, rules.Variant),
		Ranked:   rankedLines(p.RankedCandidates, actual.Ranking),
		HeadToHead: HeadToHeadLine{
			Selected: p.HeadToHeadPick,
			Winner:   actual.Winner,
			Points:   HeadToHeadPoints(p.HeadToHeadPick, actual.Winner),
		},
	}
	b.TopPicksScore = sumTopPicks(b.TopPicks)
	b.RankedScore = sumRanked(b.Ranked)
	b.HeadToHeadScore = b.HeadToHead.Points
	b.Total = b.TopPicksScore + b.RankedScore + b.HeadToHeadScore
	return b, nil
}

// Sum adds up the line items; it always equals Total.
func (b Breakdown) Sum() int {
	return sumTopPicks(b.TopPicks) + sumRanked(b.Ranked) + b.HeadToHead.Points
}

func topPickLines(picks []model.Pick, actual map[string]int, v RuleVariant) []TopPickLine {
	lines := make([]TopPickLine, 0, len(picks))
	for _, p := range picks {
		pos, ok := actual[p.RiderID]
		lines = append(lines, TopPickLine{
			RiderID:          p.RiderID,
			DeclaredPosition: p.Position,
			ActualPosition:   pos,
			Finished:         ok,
			Points:           TopPickPoints(v, p.Position, pos, ok),
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].DeclaredPosition < lines[j].DeclaredPosition })
	return lines
}

func rankedLines(picks []model.RankedPick, actual map[string]int) []RankedLine {
	lines := make([]RankedLine, 0, len(picks))
	for _, p := range picks {
		pos, ok := actual[p.RiderID]
		line := RankedLine{
			RiderID:           p.RiderID,
			PredictedPosition: p.PredictedPosition,
			ActualPosition:    pos,
			Placed:            ok,
			Points:            RankingPoints(p.PredictedPosition, pos, ok),
		}
		if ok {
			line.Difference = abs(p.PredictedPosition - pos)
		}
		lines = append(lines, line)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].PredictedPosition < lines[j].PredictedPosition })
	return lines
}

func sumTopPicks(lines []TopPickLine) int {
	total := 0
	for _, l := range lines {
		total += l.Points
	}
	return total
}

func sumRanked(lines []RankedLine) int {
	total := 0
	for _, l := range lines {
		total += l.Points
	}
	return total
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
