package api

import (
	"context"
	"sync"

	"sheetchat/pkg/sheets"
)

type writeCall struct {
	Ref       sheets.Ref
	StartCell string
	Rows      [][]string
}

type highlightCall struct {
	Ref     sheets.Ref
	SheetID int64
	Rows    []int
	Color   sheets.Color
}

type mockSheets struct {
	mu sync.Mutex

	ReadSheetFunc func(ctx context.Context, spreadsheetID string) (*sheets.Table, error)
	Names         map[string]string
	SheetIDs      map[string]int64
	Err           error

	WriteCalls     []writeCall
	AppendCalls    []writeCall
	CreateCalls    []string
	HighlightCalls []highlightCall
}

func (m *mockSheets) ReadSheet(ctx context.Context, spreadsheetID string) (*sheets.Table, error) {
	return m.ReadSheetFunc(ctx, spreadsheetID)
}

func (m *mockSheets) ResolveSheetName(ctx context.Context, spreadsheetID string) (string, error) {
	if name, ok := m.Names[spreadsheetID]; ok {
		return name, nil
	}
	return "", &sheets.SheetResolutionError{SpreadsheetID: spreadsheetID, Attempted: sheets.DefaultSheetNames}
}

func (m *mockSheets) WriteRange(ctx context.Context, ref sheets.Ref, startCell string, rows [][]string) (*sheets.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.WriteCalls = append(m.WriteCalls, writeCall{Ref: ref, StartCell: startCell, Rows: rows})
	return &sheets.WriteResult{UpdatedRows: int64(len(rows))}, nil
}

func (m *mockSheets) AppendRows(ctx context.Context, ref sheets.Ref, rows [][]string) (*sheets.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = append(m.AppendCalls, writeCall{Ref: ref, Rows: rows})
	return &sheets.WriteResult{UpdatedRows: int64(len(rows))}, nil
}

func (m *mockSheets) CreateSheet(ctx context.Context, ref sheets.Ref, title string) (*sheets.SheetProperties, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls = append(m.CreateCalls, title)
	return &sheets.SheetProperties{SheetID: 9, Title: title}, nil
}

func (m *mockSheets) ResolveSheetID(ctx context.Context, ref sheets.Ref) (int64, error) {
	id, ok := m.SheetIDs[ref.SheetName]
	if !ok {
		return 0, &sheets.SheetNotFoundError{SpreadsheetID: ref.SpreadsheetID, SheetName: ref.SheetName}
	}
	return id, nil
}

func (m *mockSheets) HighlightRows(ctx context.Context, ref sheets.Ref, sheetID int64, rowIndices []int, color sheets.Color) (*sheets.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HighlightCalls = append(m.HighlightCalls, highlightCall{Ref: ref, SheetID: sheetID, Rows: rowIndices, Color: color})
	ranges, err := sheets.RowRanges(rowIndices)
	if err != nil {
		return nil, err
	}
	return &sheets.BatchResult{SheetID: sheetID, Ranges: ranges, Replies: len(ranges)}, nil
}
