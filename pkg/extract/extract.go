// Package extract reads the table a user is looking at straight out of a
// rendered page snapshot, without going through the authenticated API.
package extract

import (
	"io"
	"strings"

	"sheetchat/pkg/sheets"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// MaxRows caps how many row elements are scanned.
const MaxRows = 1000

// strategy looks for something inside a selection and reports whether it
// found it.
type strategy func(*goquery.Selection) (*goquery.Selection, bool)

func bySelector(selector string) strategy {
	return func(s *goquery.Selection) (*goquery.Selection, bool) {
		found := s.Find(selector)
		return found, found.Length() > 0
	}
}

func selectors(list ...string) []strategy {
	return lo.Map(list, func(sel string, _ int) strategy { return bySelector(sel) })
}

var (
	gridStrategies = selectors(
		"#waffle-grid-container",
		".grid-container",
		"[role='grid']",
		".waffle",
		"table",
	)
	rowStrategies = selectors(
		"tr",
		"[role='row']",
		".grid-row",
	)
	cellStrategies = selectors(
		"th, td",
		"[role='gridcell']",
		".cell",
	)
)

func firstMatch(s *goquery.Selection, strategies []strategy) (*goquery.Selection, bool) {
	for _, try := range strategies {
		if found, ok := try(s); ok {
			return found, true
		}
	}
	return nil, false
}

// VisibleTable extracts the first grid on the page. It reports false when no
// grid is found or nothing but the header row survives, which tells the
// caller to ask the spreadsheet service instead.
func VisibleTable(doc *goquery.Document) (*sheets.Table, bool) {
	grid, ok := firstMatch(doc.Selection, gridStrategies)
	if !ok {
		return nil, false
	}
	grid = grid.First()

	rowEls, ok := firstMatch(grid, rowStrategies)
	if !ok {
		return nil, false
	}
	if rowEls.Length() > MaxRows {
		rowEls = rowEls.Slice(0, MaxRows)
	}

	var rows [][]string
	rowEls.Each(func(_ int, row *goquery.Selection) {
		cellEls, ok := firstMatch(row, cellStrategies)
		if !ok {
			return
		}
		cells := cellEls.Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		if lo.EveryBy(cells, func(c string) bool { return c == "" }) {
			return
		}
		rows = append(rows, cells)
	})

	if len(rows) < 2 {
		return nil, false
	}
	return &sheets.Table{Headers: rows[0], Rows: rows[1:]}, true
}

// FromHTML parses a page snapshot and extracts its visible table.
func FromHTML(r io.Reader) (*sheets.Table, bool, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, false, err
	}
	table, ok := VisibleTable(doc)
	return table, ok, nil
}
