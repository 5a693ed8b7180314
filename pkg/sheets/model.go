package sheets

import (
	"fmt"
	"regexp"
	"strings"
)

var spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Ref points at one sheet inside a spreadsheet document.
type Ref struct {
	SpreadsheetID string `json:"spreadsheetId"`
	SheetName     string `json:"sheetName"`
}

// Table is a header row plus data rows. Rows may be ragged.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Color channels are in the 0..1 range used by the Sheets API.
type Color struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

var DefaultHighlight = Color{Red: 1, Green: 0.95, Blue: 0.6}

type WriteResult struct {
	UpdatedRange   string `json:"updatedRange"`
	UpdatedRows    int64  `json:"updatedRows"`
	UpdatedColumns int64  `json:"updatedColumns"`
	UpdatedCells   int64  `json:"updatedCells"`
}

type SheetProperties struct {
	SheetID int64  `json:"sheetId"`
	Title   string `json:"title"`
	Index   int64  `json:"index"`
}

// RowRange is a 0-based half-open row span.
type RowRange struct {
	Start int64 `json:"startRowIndex"`
	End   int64 `json:"endRowIndex"`
}

type BatchResult struct {
	SheetID int64      `json:"sheetId"`
	Ranges  []RowRange `json:"ranges"`
	Replies int        `json:"replies"`
}

// SpreadsheetIDFromURL pulls the document id out of a spreadsheet URL.
func SpreadsheetIDFromURL(u string) (string, bool) {
	m := spreadsheetURLPattern.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RowRanges converts 1-based displayed row numbers to API row ranges.
func RowRanges(rowIndices []int) ([]RowRange, error) {
	ranges := make([]RowRange, 0, len(rowIndices))
	for _, r := range rowIndices {
		if r < 1 {
			return nil, fmt.Errorf("invalid row number %d: rows start at 1", r)
		}
		ranges = append(ranges, RowRange{Start: int64(r - 1), End: int64(r)})
	}
	return ranges, nil
}

// a1 builds an A1-notation range, quoting the sheet name.
func a1(sheetName, cells string) string {
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func tableFromValues(values [][]interface{}) *Table {
	t := &Table{Headers: []string{}, Rows: [][]string{}}
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		if i == 0 {
			t.Headers = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = make([]interface{}, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}
