// Package schedule resolves registration deadlines, accepting either
// timestamps or natural-language input such as "next friday 9am".
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnrecognizedDeadline is returned when no layout or rule matches.
var ErrUnrecognizedDeadline = errors.New("unrecognized deadline")

// Clock abstracts time for deadline checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

var compactClock = regexp.MustCompile(`\b(\d{1,2})(\d{2})(am|pm)\b`)

var layouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"02/01/2006 15:04",
}

// DeadlineParser turns user input into an absolute UTC instant.
type DeadlineParser struct {
	loc   *time.Location
	clock Clock
}

// NewDeadlineParser interprets zone-less input in loc (UTC when nil).
func NewDeadlineParser(loc *time.Location, clock Clock) *DeadlineParser {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &DeadlineParser{loc: loc, clock: clock}
}

// Location returns the zone used for zone-less input.
func (p *DeadlineParser) Location() *time.Location { return p.loc }

// Parse tries RFC 3339, then fixed layouts in the parser's zone, then the
// english and common natural-language rules relative to the clock.
func (p *DeadlineParser) Parse(input string) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrUnrecognizedDeadline)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t.UTC(), nil
		}
	}

	norm := strings.ToLower(s)
	norm = compactClock.ReplaceAllString(norm, "$1:$2 $3")

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(norm, p.clock.Now().In(p.loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnrecognizedDeadline, input, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognizedDeadline, input)
	}
	return r.Time.In(p.loc).Truncate(time.Minute).UTC(), nil
}

// IsOpen reports whether deadline is still ahead of the clock.
func IsOpen(clock Clock, deadline time.Time) bool {
	return clock.Now().Before(deadline)
}
