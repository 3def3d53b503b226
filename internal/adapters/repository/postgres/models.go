// Package postgres implements repository.Store on PostgreSQL through bun.
package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/okian/velopick/internal/domain/model"
)

// Rider is the riders table.
type Rider struct {
	bun.BaseModel `bun:"table:riders,alias:rd"`

	ID          string `bun:"id,pk"`
	FirstName   string `bun:"first_name,notnull,default:''"`
	LastName    string `bun:"last_name,notnull"`
	Team        string `bun:"team,nullzero"`
	Nationality string `bun:"nationality,nullzero"`
}

// Race is the races table.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:ra"`

	ID                   string    `bun:"id,pk"`
	Name                 string    `bun:"name,notnull"`
	Date                 time.Time `bun:"date,notnull"`
	RegistrationDeadline time.Time `bun:"registration_deadline,notnull"`
	IsMonument           bool      `bun:"is_monument,notnull,default:false"`
	RuleVariant          string    `bun:"rule_variant,nullzero"`
}

// RaceSetup holds the candidate pool (ordered) and the head-to-head duel.
type RaceSetup struct {
	bun.BaseModel `bun:"table:race_setups,alias:rs"`

	RaceID     string   `bun:"race_id,pk"`
	Candidates []string `bun:"candidates,type:jsonb,notnull"`
	RiderA     string   `bun:"h2h_rider_a,nullzero"`
	RiderB     string   `bun:"h2h_rider_b,nullzero"`
}

// Prediction is unique per (race_id, user_id).
type Prediction struct {
	bun.BaseModel `bun:"table:predictions,alias:pr"`

	ID               string             `bun:"id,pk"`
	RaceID           string             `bun:"race_id,notnull,unique:predictions_race_user"`
	UserID           string             `bun:"user_id,notnull,unique:predictions_race_user"`
	TopPicks         []model.Pick       `bun:"top_picks,type:jsonb,notnull"`
	RankedCandidates []model.RankedPick `bun:"ranked_candidates,type:jsonb,notnull"`
	HeadToHeadPick   string             `bun:"head_to_head_pick,nullzero"`
	UpdatedAt        time.Time          `bun:"updated_at,notnull,default:current_timestamp"`
}

// Result is one row per race.
type Result struct {
	bun.BaseModel `bun:"table:results,alias:res"`

	RaceID           string         `bun:"race_id,pk"`
	FinishPositions  map[string]int `bun:"finish_positions,type:jsonb,notnull"`
	CandidateOrder   map[string]int `bun:"candidate_order,type:jsonb"`
	HeadToHeadWinner string         `bun:"head_to_head_winner,nullzero"`
	EnteredAt        time.Time      `bun:"entered_at,notnull,default:current_timestamp"`
}

// Score rows for a race are deleted and reinserted together.
type Score struct {
	bun.BaseModel `bun:"table:scores,alias:sc"`

	RaceID          string    `bun:"race_id,pk"`
	UserID          string    `bun:"user_id,pk"`
	TopPicksScore   int       `bun:"top_picks_score,notnull"`
	RankedScore     int       `bun:"ranked_score,notnull"`
	HeadToHeadScore int       `bun:"head_to_head_score,notnull"`
	TotalScore      int       `bun:"total_score,notnull"`
	Variant         string    `bun:"variant,notnull"`
	ComputedAt      time.Time `bun:"computed_at,notnull,default:current_timestamp"`
}

// Participant stores display names.
type Participant struct {
	bun.BaseModel `bun:"table:participants,alias:pa"`

	UserID      string `bun:"user_id,pk"`
	DisplayName string `bun:"display_name,notnull"`
}

func riderRow(r model.Rider) *Rider {
	return &Rider{ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, Team: r.Team, Nationality: r.Nationality}
}

func (r Rider) toModel() model.Rider {
	return model.Rider{ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, Team: r.Team, Nationality: r.Nationality}
}

func raceRow(r model.Race) *Race {
	return &Race{
		ID:                   r.ID,
		Name:                 r.Name,
		Date:                 r.Date.UTC(),
		RegistrationDeadline: r.RegistrationDeadline.UTC(),
		IsMonument:           r.IsMonument,
		RuleVariant:          r.RuleVariant,
	}
}

func (r Race) toModel() model.Race {
	return model.Race{
		ID:                   r.ID,
		Name:                 r.Name,
		Date:                 r.Date.UTC(),
		RegistrationDeadline: r.RegistrationDeadline.UTC(),
		IsMonument:           r.IsMonument,
		RuleVariant:          r.RuleVariant,
	}
}

func setupRow(s model.RaceSetup) *RaceSetup {
	row := &RaceSetup{RaceID: s.RaceID, Candidates: s.Candidates}
	if row.Candidates == nil {
		row.Candidates = []string{}
	}
	if s.HeadToHead != nil {
		row.RiderA, row.RiderB = s.HeadToHead.RiderA, s.HeadToHead.RiderB
	}
	return row
}

func (s RaceSetup) toModel() model.RaceSetup {
	out := model.RaceSetup{RaceID: s.RaceID, Candidates: s.Candidates}
	if s.RiderA != "" && s.RiderB != "" {
		out.HeadToHead = &model.HeadToHead{RiderA: s.RiderA, RiderB: s.RiderB}
	}
	return out
}

func predictionRow(p model.Prediction) *Prediction {
	row := &Prediction{
		ID:               p.ID,
		RaceID:           p.RaceID,
		UserID:           p.UserID,
		TopPicks:         p.TopPicks,
		RankedCandidates: p.RankedCandidates,
		HeadToHeadPick:   p.HeadToHeadPick,
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
	if row.TopPicks == nil {
		row.TopPicks = []model.Pick{}
	}
	if row.RankedCandidates == nil {
		row.RankedCandidates = []model.RankedPick{}
	}
	return row
}

func (p Prediction) toModel() model.Prediction {
	return model.Prediction{
		ID:               p.ID,
		UserID:           p.UserID,
		RaceID:           p.RaceID,
		TopPicks:         p.TopPicks,
		RankedCandidates: p.RankedCandidates,
		HeadToHeadPick:   p.HeadToHeadPick,
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
}

func resultRow(r model.ActualResult) *Result {
	row := &Result{
		RaceID:           r.RaceID,
		FinishPositions:  r.FinishPositions,
		CandidateOrder:   r.CandidateOrder,
		HeadToHeadWinner: r.HeadToHeadWinner,
		EnteredAt:        r.EnteredAt.UTC(),
	}
	if row.FinishPositions == nil {
		row.FinishPositions = map[string]int{}
	}
	return row
}

func (r Result) toModel() model.ActualResult {
	return model.ActualResult{
		RaceID:           r.RaceID,
		FinishPositions:  r.FinishPositions,
		CandidateOrder:   r.CandidateOrder,
		HeadToHeadWinner: r.HeadToHeadWinner,
		EnteredAt:        r.EnteredAt.UTC(),
	}
}

func scoreRow(s model.Score) Score {
	return Score{
		RaceID:          s.RaceID,
		UserID:          s.UserID,
		TopPicksScore:   s.TopPicksScore,
		RankedScore:     s.RankedScore,
		HeadToHeadScore: s.HeadToHeadScore,
		TotalScore:      s.TotalScore,
		Variant:         s.Variant,
		ComputedAt:      s.ComputedAt.UTC(),
	}
}

func (s Score) toModel() model.Score {
	return model.Score{
		UserID:          s.UserID,
		RaceID:          s.RaceID,
		TopPicksScore:   s.TopPicksScore,
		RankedScore:     s.RankedScore,
		HeadToHeadScore: s.HeadToHeadScore,
		TotalScore:      s.TotalScore,
		Variant:         s.Variant,
		ComputedAt:      s.ComputedAt.UTC(),
	}
}
