// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rider is a competitor that can be picked in predictions.
type Rider struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Team        string `json:"team,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

// FullName joins first and last name.
func (r Rider) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Validate checks the fields required to store a rider.
func (r Rider) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return Invalidf("rider id is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return Invalidf("rider %s: last name is required", r.ID)
	}
	return nil
}

// ParseRiderLine parses one bulk-import line of the form
// "Full Name, Team, Nationality". Team and nationality are optional. The last
// word of the name is the last name; everything before it is the first name.
// The returned rider has no ID.
func ParseRiderLine(line string) (Rider, error) {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	name := strings.Fields(parts[0])
	if len(name) == 0 {
		return Rider{}, Invalidf("empty rider name in %q", line)
	}
	r := Rider{
		FirstName: strings.Join(name[:len(name)-1], " "),
		LastName:  name[len(name)-1],
	}
	if len(parts) > 1 {
		r.Team = parts[1]
	}
	if len(parts) > 2 {
		r.Nationality = parts[2]
	}
	return r, nil
}

// Slug derives a stable rider id from the full name: accents stripped,
// lower case, runs of other characters collapsed to a single hyphen.
func (r Rider) Slug() string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, r.FullName())
	if err != nil {
		plain = r.FullName()
	}
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(plain) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
