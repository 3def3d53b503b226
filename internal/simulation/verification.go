package simulation

import (
	"fmt"

	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
)

// Expected computes the standings the server should report for the given
// accepted predictions, with the same scoring and leaderboard code.
func Expected(s *Scenario, accepted map[string][]Prediction, rules scoring.Rules) ([]leaderboard.Standing, error) {
	var scores []model.Score
	order := make([]string, 0, len(s.Races))
	for _, race := range s.Races {
		order = append(order, race.ID)
		actual := scoring.ActualsFor(race.Result(), race.Candidates)
		for _, p := range accepted[race.ID] {
			sc, err := scoring.Score(p.Model(race.ID), actual, rules)
			if err != nil {
				return nil, fmt.Errorf("race %s user %s: %w", race.ID, p.UserID, err)
			}
			scores = append(scores, sc)
		}
	}
	return leaderboard.BuildStandings(scores, order), nil
}

// Compare lists every difference in rank, user or total between want and
// got. Cells and display names are not compared.
func Compare(want, got []leaderboard.Standing) []string {
	var out []string
	if len(want) != len(got) {
		out = append(out, fmt.Sprintf("standings length: want %d, got %d", len(want), len(got)))
	}
	n := min(len(want), len(got))
	for i := 0; i < n; i++ {
		w, g := want[i], got[i]
		if w.UserID != g.UserID || w.Total != g.Total || w.Rank != g.Rank {
			out = append(out, fmt.Sprintf("row %d: want %s rank %d total %d, got %s rank %d total %d",
				i+1, w.UserID, w.Rank, w.Total, g.UserID, g.Rank, g.Total))
		}
	}
	return out
}
