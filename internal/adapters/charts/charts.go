// Package charts renders standings progression as PNG images.
package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
)

const (
	width         = 1000
	height        = 500
	defaultSeries = 10
)

var palette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
	drawing.ColorFromHex("e377c2"),
	drawing.ColorFromHex("7f7f7f"),
	drawing.ColorFromHex("bcbd22"),
	drawing.ColorFromHex("17becf"),
}

// Cumulative draws one line per participant (at most limit, ranked order)
// showing running totals across races in cell order. limit <= 0 uses 10.
func Cumulative(standings []leaderboard.Standing, races []model.Race, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = defaultSeries
	}
	standings = leaderboard.Top(standings, limit)
	if len(standings) == 0 || len(standings[0].Cells) == 0 {
		return placeholder("No scored races yet")
	}

	names := make(map[string]string, len(races))
	for _, r := range races {
		names[r.ID] = r.Name
	}
	cells := standings[0].Cells
	xs := make([]float64, len(cells))
	ticks := make([]chart.Tick, len(cells))
	for i, c := range cells {
		xs[i] = float64(i + 1)
		label := names[c.RaceID]
		if label == "" {
			label = c.RaceID
		}
		ticks[i] = chart.Tick{Value: xs[i], Label: label}
	}

	series := make([]chart.Series, 0, len(standings))
	top := 1.0
	for i, s := range standings {
		run := leaderboard.Cumulative(s)
		ys := make([]float64, len(run))
		for j, v := range run {
			ys[j] = float64(v)
			if ys[j] > top {
				top = ys[j]
			}
		}
		name := s.DisplayName
		if name == "" {
			name = s.UserID
		}
		color := palette[i%len(palette)]
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("%d. %s", s.Rank, name),
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
				DotColor:    color,
				DotWidth:    3,
			},
		})
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		// Explicit ranges: go-chart refuses a zero-width range, which a
		// single race or an all-zero table would produce.
		XAxis: chart.XAxis{
			Name:  "Race",
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: 0.5, Max: float64(len(cells)) + 0.5},
		},
		YAxis: chart.YAxis{
			Name:  "Points",
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render standings chart: %w", err)
	}
	return buf.Bytes(), nil
}

func placeholder(msg string) ([]byte, error) {
	graph := chart.Chart{
		Width:  400,
		Height: 200,
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(drawing.ColorBlack)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				r.Text(msg, (cb.Width()-tb.Width())/2, (cb.Height()+tb.Height())/2)
			},
		},
	}
	buf := bytes.NewBuffer(nil)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render placeholder chart: %w", err)
	}
	return buf.Bytes(), nil
}
