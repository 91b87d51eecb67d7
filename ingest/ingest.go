// Package ingest parses tabular files of timestamped glucose readings.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/glucolab/agp/errors"
	"github.com/glucolab/agp/glucose"
	"github.com/tealeg/xlsx/v3"
)

var (
	ErrNoHeader     = fmt.Errorf("missing time and glucose columns: %w", errors.BadRequest)
	ErrNoData       = fmt.Errorf("file contains no readings: %w", errors.BadRequest)
	ErrUnknownInput = fmt.Errorf("unsupported file type: %w", errors.BadRequest)
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04",
}

// ParseFile dispatches on the file extension.
func ParseFile(name string, data []byte) ([]glucose.Reading, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".csv"):
		return ParseCSV(strings.NewReader(string(data)))
	case strings.HasSuffix(strings.ToLower(name), ".xlsx"):
		return ParseXLSX(data)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownInput)
	}
}

func ParseCSV(r io.Reader) ([]glucose.Reading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed csv: %v: %w", err, errors.BadRequest)
		}
		rows = append(rows, record)
	}
	return parseRows(rows)
}

func ParseXLSX(data []byte) ([]glucose.Reading, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("malformed workbook: %v: %w", err, errors.BadRequest)
	}
	if len(file.Sheets) == 0 {
		return nil, ErrNoData
	}

	sheet := file.Sheets[0]
	var rows [][]string
	err = sheet.ForEachRow(func(row *xlsx.Row) error {
		var cells []string
		err := row.ForEachCell(func(cell *xlsx.Cell) error {
			cells = append(cells, cell.Value)
			return nil
		})
		if err != nil {
			return err
		}
		rows = append(rows, cells)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error reading workbook: %w", err)
	}
	return parseRows(rows)
}

type layout struct {
	timeColumn  int
	valueColumn int
	unitColumn  int
	mgdl        bool
}

func parseRows(rows [][]string) ([]glucose.Reading, error) {
	if len(rows) < 2 {
		return nil, ErrNoData
	}

	l, err := detectLayout(rows[0])
	if err != nil {
		return nil, err
	}

	var result []glucose.Reading
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		if len(row) <= l.timeColumn || len(row) <= l.valueColumn {
			return nil, fmt.Errorf("row %d: too few columns: %w", i+2, errors.BadRequest)
		}

		t, err := parseTime(row[l.timeColumn])
		if err != nil {
			return nil, fmt.Errorf("row %d: %v: %w", i+2, err, errors.BadRequest)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[l.valueColumn]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid glucose value %q: %w", i+2, row[l.valueColumn], errors.BadRequest)
		}

		mgdl := l.mgdl
		if l.unitColumn >= 0 && len(row) > l.unitColumn {
			mgdl = isMgdlUnit(row[l.unitColumn])
		}
		if mgdl {
			value = glucose.MgdLToMmolL(value)
		}

		result = append(result, glucose.Reading{Time: t.UTC(), Value: value})
	}

	if len(result) == 0 {
		return nil, ErrNoData
	}
	return result, nil
}

func detectLayout(header []string) (layout, error) {
	l := layout{timeColumn: -1, valueColumn: -1, unitColumn: -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		switch {
		case l.timeColumn < 0 && (strings.Contains(name, "time") || strings.Contains(name, "date")):
			l.timeColumn = i
		case l.valueColumn < 0 && (strings.Contains(name, "glucose") || strings.Contains(name, "value") ||
			strings.Contains(name, "mmol") || strings.Contains(name, "mg/dl")):
			l.valueColumn = i
			l.mgdl = isMgdlUnit(name)
		case l.unitColumn < 0 && strings.Contains(name, "unit"):
			l.unitColumn = i
		}
	}
	if l.timeColumn < 0 || l.valueColumn < 0 {
		return l, ErrNoHeader
	}
	return l, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, format := range timeLayouts {
		if t, err := time.Parse(format, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func isMgdlUnit(s string) bool {
	return strings.Contains(strings.ToLower(s), "mg")
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
