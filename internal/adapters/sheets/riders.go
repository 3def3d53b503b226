// Package sheets reads rider lists and writes standings workbooks.
package sheets

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/velopick/internal/domain/model"
)

var zipMagic = []byte("PK\x03\x04")

// ParseRiders reads a rider list. Workbooks (.xlsx) use the first sheet
// with columns Name, Team, Nationality; anything else is read as text with
// one "Full Name, Team, Nationality" line per rider. A first row whose name
// cell is "name" is treated as a header. Lines starting with # are skipped.
// Returned riders carry a slug id.
func ParseRiders(data []byte) ([]model.Rider, error) {
	var (
		rows [][]string
		err  error
	)
	if bytes.HasPrefix(data, zipMagic) {
		rows, err = workbookRows(data)
	} else {
		rows, err = textRows(data)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "name") {
		rows = rows[1:]
	}

	riders := make([]model.Rider, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		r, err := model.ParseRiderLine(strings.Join(row, ","))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		r.ID = r.Slug()
		riders = append(riders, r)
	}
	if len(riders) == 0 {
		return nil, ErrEmptyImport
	}
	return riders, nil
}

func workbookRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrBadWorkbook)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrBadWorkbook, sheets[0], err)
	}
	for i, row := range rows {
		if len(row) > 3 {
			rows[i] = row[:3]
		}
	}
	return rows, nil
}

func textRows(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, model.Invalidf("rider list: %v", err)
		}
		rows = append(rows, rec)
	}
}
