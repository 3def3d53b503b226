package simulation

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/velopick/internal/domain/model"
	"github.com/okian/velopick/internal/domain/scoring"
)

// Generator builds random but reproducible scenarios.
type Generator struct {
	faker *gofakeit.Faker
	rules scoring.Rules
}

// NewGenerator seeds a generator for rules.
func NewGenerator(seed int64, rules scoring.Rules) *Generator {
	return &Generator{faker: gofakeit.New(uint64(seed)), rules: rules}
}

// Generate creates a scenario with the requested sizes. Every race gets a
// full candidate pool, a duel and a complete finishing order. Some
// participants skip races or leave categories empty.
func (g *Generator) Generate(riders, races, participants int) (*Scenario, error) {
	if riders < g.rules.CandidatePoolSize || riders < g.rules.TopPicksSize || riders < 2 {
		return nil, fmt.Errorf("%w: %d riders cannot fill a pool of %d", model.ErrValidation, riders, g.rules.CandidatePoolSize)
	}
	s := &Scenario{Name: "generated " + g.faker.Word()}

	ids := make([]string, 0, riders)
	seen := make(map[string]bool, riders)
	for len(ids) < riders {
		r := model.Rider{FirstName: g.faker.FirstName(), LastName: g.faker.LastName()}
		id := r.Slug()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		team := strings.ReplaceAll(g.faker.Company(), ",", "")
		s.Riders = append(s.Riders, fmt.Sprintf("%s, %s, %s", r.FullName(), team, g.faker.CountryAbr()))
	}

	for i := 0; i < participants; i++ {
		s.Participants = append(s.Participants, Participant{
			UserID:      fmt.Sprintf("user-%03d", i+1),
			DisplayName: g.faker.Username(),
		})
	}

	for i := 0; i < races; i++ {
		s.Races = append(s.Races, g.race(i, ids, s.Participants))
	}
	return s, nil
}

func (g *Generator) race(i int, riders []string, participants []Participant) Race {
	field := g.shuffled(riders)
	pool := field[:g.rules.CandidatePoolSize]
	r := Race{
		ID:         fmt.Sprintf("race-%02d", i+1),
		Name:       g.faker.City() + " Classic",
		Monument:   g.faker.Number(0, 4) == 0,
		Candidates: append([]string(nil), pool...),
		HeadToHead: []string{pool[0], pool[1]},
		Finish:     g.shuffled(riders),
	}
	r.HeadToHeadWinner = r.HeadToHead[0]
	for _, id := range r.Finish {
		if id == r.HeadToHead[1] {
			r.HeadToHeadWinner = r.HeadToHead[1]
			break
		}
		if id == r.HeadToHead[0] {
			break
		}
	}

	for _, p := range participants {
		if g.faker.Number(0, 9) == 0 {
			continue
		}
		pred := Prediction{UserID: p.UserID}
		if g.faker.Number(0, 9) > 0 {
			pred.TopPicks = g.shuffled(riders)[:g.rules.TopPicksSize]
		}
		if g.faker.Number(0, 9) > 0 {
			pred.Ranked = g.shuffled(pool)
		}
		if g.faker.Bool() {
			pred.HeadToHead = g.faker.RandomString(r.HeadToHead)
		}
		r.Predictions = append(r.Predictions, pred)
	}
	return r
}

func (g *Generator) shuffled(ids []string) []string {
	out := append([]string(nil), ids...)
	g.faker.ShuffleAnySlice(out)
	return out
}
