package sheets

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/okian/velopick/internal/domain/leaderboard"
	"github.com/okian/velopick/internal/domain/model"
)

// StandingsSheet is the name of the exported worksheet.
const StandingsSheet = "Standings"

const noScore = "-"

// ExportStandings writes one row per participant with a column per race.
// Races without a score for that participant show "-".
func ExportStandings(standings []leaderboard.Standing, races []model.Race) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StandingsSheet); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(races))
	for _, r := range races {
		names[r.ID] = r.Name
	}

	header := []interface{}{"Rank", "User", "Name", "Total", "Races"}
	if len(standings) > 0 {
		for _, c := range standings[0].Cells {
			label := names[c.RaceID]
			if label == "" {
				label = c.RaceID
			}
			header = append(header, label)
		}
	}
	if err := f.SetSheetRow(StandingsSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, s := range standings {
		row := []interface{}{s.Rank, s.UserID, s.DisplayName, s.Total, s.RacesScored}
		for _, c := range s.Cells {
			if c.Scored {
				row = append(row, c.Points)
			} else {
				row = append(row, noScore)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(StandingsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(StandingsSheet, "A1", last, bold); err != nil {
		return nil, err
	}
	if err := f.SetPanes(StandingsSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      3,
		YSplit:      1,
		TopLeftCell: "D2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write standings workbook: %w", err)
	}
	return buf.Bytes(), nil
}
