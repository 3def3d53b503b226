package simulation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/velopick/internal/domain/model"
)

// Scenario is a complete contest: riders, participants and races with
// their predictions and results. Rider references are rider ids.
type Scenario struct {
	Name         string        `yaml:"name"`
	Riders       []string      `yaml:"riders"` // "Full Name, Team, NAT" import lines
	Participants []Participant `yaml:"participants"`
	Races        []Race        `yaml:"races"`
}

// Participant is a contest player.
type Participant struct {
	UserID      string `yaml:"user_id"`
	DisplayName string `yaml:"display_name"`
}

// Race is one contest race. Finish lists rider ids in finishing order.
type Race struct {
	ID               string       `yaml:"id"`
	Name             string       `yaml:"name"`
	Monument         bool         `yaml:"monument,omitempty"`
	Candidates       []string     `yaml:"candidates"`
	HeadToHead       []string     `yaml:"head_to_head,omitempty"`
	Predictions      []Prediction `yaml:"predictions"`
	Finish           []string     `yaml:"finish"`
	HeadToHeadWinner string       `yaml:"head_to_head_winner,omitempty"`
}

// Prediction lists top picks and the ranked pool in predicted order.
type Prediction struct {
	UserID     string   `yaml:"user_id"`
	TopPicks   []string `yaml:"top_picks,omitempty"`
	Ranked     []string `yaml:"ranked,omitempty"`
	HeadToHead string   `yaml:"head_to_head,omitempty"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the scenario as YAML.
func (s *Scenario) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal scenario: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}

// Validate checks that every race references known riders and users.
func (s *Scenario) Validate() error {
	riders := make(map[string]bool, len(s.Riders))
	for _, line := range s.Riders {
		r, err := model.ParseRiderLine(line)
		if err != nil {
			return err
		}
		riders[r.Slug()] = true
	}
	users := make(map[string]bool, len(s.Participants))
	for _, p := range s.Participants {
		users[p.UserID] = true
	}
	for _, race := range s.Races {
		refs := append(append(append([]string{}, race.Candidates...), race.HeadToHead...), race.Finish...)
		for _, id := range refs {
			if !riders[id] {
				return fmt.Errorf("%w: race %s references unknown rider %s", model.ErrValidation, race.ID, id)
			}
		}
		if len(race.HeadToHead) != 0 && len(race.HeadToHead) != 2 {
			return fmt.Errorf("%w: race %s head_to_head needs two riders", model.ErrValidation, race.ID)
		}
		for _, p := range race.Predictions {
			if !users[p.UserID] {
				return fmt.Errorf("%w: race %s has a prediction by unknown user %s", model.ErrValidation, race.ID, p.UserID)
			}
		}
	}
	return nil
}

// Setup converts the race to its setup model.
func (r Race) Setup() model.RaceSetup {
	s := model.RaceSetup{RaceID: r.ID, Candidates: r.Candidates}
	if len(r.HeadToHead) == 2 {
		s.HeadToHead = &model.HeadToHead{RiderA: r.HeadToHead[0], RiderB: r.HeadToHead[1]}
	}
	return s
}

// Result converts the finishing order to a result model.
func (r Race) Result() model.ActualResult {
	finish := make(map[string]int, len(r.Finish))
	for i, id := range r.Finish {
		finish[id] = i + 1
	}
	return model.ActualResult{RaceID: r.ID, FinishPositions: finish, HeadToHeadWinner: r.HeadToHeadWinner}
}

// Model converts the prediction for raceID.
func (p Prediction) Model(raceID string) model.Prediction {
	out := model.Prediction{UserID: p.UserID, RaceID: raceID, HeadToHeadPick: p.HeadToHead}
	for i, id := range p.TopPicks {
		out.TopPicks = append(out.TopPicks, model.Pick{RiderID: id, Position: i + 1})
	}
	for i, id := range p.Ranked {
		out.RankedCandidates = append(out.RankedCandidates, model.RankedPick{RiderID: id, PredictedPosition: i + 1})
	}
	return out
}

// importBody renders the rider list for POST /riders/import.
func (s *Scenario) importBody() string {
	return strings.Join(s.Riders, "\n") + "\n"
}
