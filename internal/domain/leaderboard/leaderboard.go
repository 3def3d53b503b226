// Package leaderboard projects stored score rows into contest standings.
// Nothing here is cached or mutated in place; every call builds a fresh view.
package leaderboard

import (
	"sort"

	"github.com/okian/velopick/internal/domain/model"
)

// Cell is one participant's score for one race. Scored=false is the
// "no score yet" marker; Points is then meaningless and zero.
type Cell struct {
	RaceID string `json:"race_id"`
	Points int    `json:"points"`
	Scored bool   `json:"scored"`
}

// Standing is one leaderboard row.
type Standing struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Total       int    `json:"total"`
	RacesScored int    `json:"races_scored"`
	Cells       []Cell `json:"cells"`
}

// BuildStandings groups scores by user and sorts by total descending, then
// user id ascending. Users without score rows do not appear. Cells follow
// raceOrder; rows for races outside raceOrder count toward the total but
// get no cell. Equal totals share a rank and the next rank skips (1,2,2,4).
func BuildStandings(scores []model.Score, raceOrder []string) []Standing {
	type acc struct {
		total  int
		races  int
		byRace map[string]int
	}
	users := make(map[string]*acc)
	for _, s := range scores {
		a, ok := users[s.UserID]
		if !ok {
			a = &acc{byRace: make(map[string]int)}
			users[s.UserID] = a
		}
		a.total += s.TotalScore
		if _, seen := a.byRace[s.RaceID]; !seen {
			a.races++
		}
		a.byRace[s.RaceID] += s.TotalScore
	}

	out := make([]Standing, 0, len(users))
	for id, a := range users {
		row := Standing{UserID: id, Total: a.total, RacesScored: a.races, Cells: make([]Cell, len(raceOrder))}
		for i, raceID := range raceOrder {
			pts, ok := a.byRace[raceID]
			row.Cells[i] = Cell{RaceID: raceID, Points: pts, Scored: ok}
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		if i > 0 && out[i].Total == out[i-1].Total {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}

// RaceOrder lists the races that have score rows, by date then id.
func RaceOrder(races []model.Race, scored map[string]bool) []string {
	picked := make([]model.Race, 0, len(races))
	for _, r := range races {
		if scored[r.ID] {
			picked = append(picked, r)
		}
	}
	sort.Slice(picked, func(i, j int) bool {
		if !picked[i].Date.Equal(picked[j].Date) {
			return picked[i].Date.Before(picked[j].Date)
		}
		return picked[i].ID < picked[j].ID
	})
	ids := make([]string, len(picked))
	for i, r := range picked {
		ids[i] = r.ID
	}
	return ids
}

// ScoredRaces returns the set of race ids present in scores.
func ScoredRaces(scores []model.Score) map[string]bool {
	out := make(map[string]bool)
	for _, s := range scores {
		out[s.RaceID] = true
	}
	return out
}

// WithDisplayNames fills DisplayName from names in place and returns the slice.
func WithDisplayNames(standings []Standing, names map[string]string) []Standing {
	for i := range standings {
		standings[i].DisplayName = names[standings[i].UserID]
	}
	return standings
}

// Top returns at most n rows; n <= 0 returns all.
func Top(standings []Standing, n int) []Standing {
	if n <= 0 || n >= len(standings) {
		return standings
	}
	return standings[:n]
}

// Cumulative returns running totals per race for each row, in cell order.
// Used for progression charts.
func Cumulative(s Standing) []int {
	out := make([]int, len(s.Cells))
	run := 0
	for i, c := range s.Cells {
		if c.Scored {
			run += c.Points
		}
		out[i] = run
	}
	return out
}
