package sheets

import (
	"context"
	"fmt"
	"time"

	"sheetchat/pkg/identity"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	defaultReadRange = "A1:Z1000"
	probeRange       = "A1:A1"
)

// DefaultSheetNames are the names a new spreadsheet's first tab gets in the
// locales we support, tried in this order.
var DefaultSheetNames = []string{
	"Sheet1",
	"Hoja 1",
	"Feuille 1",
	"Tabelle1",
	"Foglio1",
	"Planilha1",
	"Blad1",
	"Arkusz1",
	"Лист1",
	"シート1",
	"工作表1",
	"시트1",
}

type Config struct {
	// Endpoint overrides the Sheets API base URL.
	Endpoint string
	// ReadTimeout bounds each chained read, including the token prompt.
	ReadTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
	Candidates        []string
}

type SheetClient struct {
	tokens     identity.TokenProvider
	names      NameCache
	limiter    *rate.Limiter
	endpoint   string
	timeout    time.Duration
	candidates []string
}

func NewSheetClient(tokens identity.TokenProvider, names NameCache, cfg Config) *SheetClient {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 8 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = DefaultSheetNames
	}
	if names == nil {
		names = NewMemoryNameCache()
	}
	return &SheetClient{
		tokens:     tokens,
		names:      names,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		endpoint:   cfg.Endpoint,
		timeout:    cfg.ReadTimeout,
		candidates: cfg.Candidates,
	}
}

// Token fetches a token, prompting for consent if none is stored yet.
func (s *SheetClient) Token(ctx context.Context) (*oauth2.Token, error) {
	tok, err := s.tokens.Token(ctx, true)
	if err != nil {
		if IsAuthorization(err) {
			return nil, err
		}
		return nil, &AuthorizationError{Err: err}
	}
	return tok, nil
}

func (s *SheetClient) service(ctx context.Context) (*sheets.Service, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.serviceWith(ctx, tok)
}

func (s *SheetClient) serviceWith(ctx context.Context, tok *oauth2.Token) (*sheets.Service, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return sheets.NewService(ctx, opts...)
}

// ReadRange returns the values in rng. The first row becomes the headers.
func (s *SheetClient) ReadRange(ctx context.Context, ref Ref, rng string) (*Table, error) {
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.readWith(ctx, tok, ref, rng)
}

func (s *SheetClient) readWith(ctx context.Context, tok *oauth2.Token, ref Ref, rng string) (*Table, error) {
	srv, err := s.serviceWith(ctx, tok)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Spreadsheets.Values.Get(ref.SpreadsheetID, a1(ref.SheetName, rng)).Context(ctx).Do()
	if err != nil {
		return nil, remoteError(err)
	}
	return tableFromValues(resp.Values), nil
}

func (s *SheetClient) WriteRange(ctx context.Context, ref Ref, startCell string, rows [][]string) (*WriteResult, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Spreadsheets.Values.Update(
		ref.SpreadsheetID,
		a1(ref.SheetName, startCell),
		&sheets.ValueRange{Values: toValues(rows)},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return nil, remoteError(err)
	}
	log.Debugf("Wrote %d cells to %s", resp.UpdatedCells, resp.UpdatedRange)
	return &WriteResult{
		UpdatedRange:   resp.UpdatedRange,
		UpdatedRows:    resp.UpdatedRows,
		UpdatedColumns: resp.UpdatedColumns,
		UpdatedCells:   resp.UpdatedCells,
	}, nil
}

func (s *SheetClient) AppendRows(ctx context.Context, ref Ref, rows [][]string) (*WriteResult, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Spreadsheets.Values.Append(
		ref.SpreadsheetID,
		a1(ref.SheetName, "A:Z"),
		&sheets.ValueRange{Values: toValues(rows)},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return nil, remoteError(err)
	}
	res := &WriteResult{}
	if u := resp.Updates; u != nil {
		res.UpdatedRange = u.UpdatedRange
		res.UpdatedRows = u.UpdatedRows
		res.UpdatedColumns = u.UpdatedColumns
		res.UpdatedCells = u.UpdatedCells
	}
	log.Debugf("Appended %d rows to %s", res.UpdatedRows, ref.SheetName)
	return res, nil
}

// CreateSheet adds a new tab called title to ref's spreadsheet.
func (s *SheetClient) CreateSheet(ctx context.Context, ref Ref, title string) (*SheetProperties, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	addSheetReq := &sheets.Request{
		AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{
				Title: title,
			},
		},
	}
	resp, err := srv.Spreadsheets.BatchUpdate(ref.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{addSheetReq},
	}).Context(ctx).Do()
	if err != nil {
		return nil, remoteError(err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, fmt.Errorf("create sheet %q: empty reply", title)
	}
	p := resp.Replies[0].AddSheet.Properties
	return &SheetProperties{SheetID: p.SheetId, Title: p.Title, Index: p.Index}, nil
}

// ResolveSheetID looks up the numeric id of the tab named ref.SheetName.
func (s *SheetClient) ResolveSheetID(ctx context.Context, ref Ref) (int64, error) {
	srv, err := s.service(ctx)
	if err != nil {
		return 0, err
	}
	ss, err := srv.Spreadsheets.Get(ref.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, remoteError(err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == ref.SheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, &SheetNotFoundError{SpreadsheetID: ref.SpreadsheetID, SheetName: ref.SheetName}
}

// HighlightRows paints the background of the given 1-based rows. It only
// sets the background color field, so repeating a call changes nothing.
func (s *SheetClient) HighlightRows(ctx context.Context, ref Ref, sheetID int64, rowIndices []int, color Color) (*BatchResult, error) {
	ranges, err := RowRanges(rowIndices)
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return &BatchResult{SheetID: sheetID, Ranges: ranges}, nil
	}
	srv, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	requests := make([]*sheets.Request, 0, len(ranges))
	for _, r := range ranges {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:         sheetID,
					StartRowIndex:   r.Start,
					EndRowIndex:     r.End,
					ForceSendFields: []string{"SheetId", "StartRowIndex"},
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: &sheets.Color{
							Red:             color.Red,
							Green:           color.Green,
							Blue:            color.Blue,
							ForceSendFields: []string{"Red", "Green", "Blue"},
						},
					},
				},
				Fields: "userEnteredFormat.backgroundColor",
			},
		})
	}
	resp, err := srv.Spreadsheets.BatchUpdate(ref.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, remoteError(err)
	}
	return &BatchResult{SheetID: sheetID, Ranges: ranges, Replies: len(resp.Replies)}, nil
}

// ResolveSheetName finds a readable sheet name for spreadsheetID. The active
// tab's name is not available to us, so we try the default first-tab names
// and remember the first one that reads.
func (s *SheetClient) ResolveSheetName(ctx context.Context, spreadsheetID string) (string, error) {
	if name, ok := s.names.Get(spreadsheetID); ok {
		return name, nil
	}

	// One consent for the whole walk. The probe timers only cover the reads.
	tok, err := s.Token(ctx)
	if err != nil {
		return "", &SheetResolutionError{SpreadsheetID: spreadsheetID, Last: err}
	}

	var attempted []string
	var last error
	for _, name := range s.candidates {
		attempted = append(attempted, name)
		ref := Ref{SpreadsheetID: spreadsheetID, SheetName: name}
		_, err := withTimeout(ctx, "read "+a1(name, probeRange), s.timeout, func(ctx context.Context) (*Table, error) {
			return s.readWith(ctx, tok, ref, probeRange)
		})
		if err == nil {
			log.Infof("Resolved sheet name %q for spreadsheet %s", name, spreadsheetID)
			if err := s.names.Put(spreadsheetID, name); err != nil {
				log.Warnf("Failed to cache sheet name: %v", err)
			}
			return name, nil
		}
		log.Debugf("Sheet name %q failed: %v", name, err)
		last = err
		// Every other candidate would hit the same wall.
		if IsAuthorization(err) || ctx.Err() != nil {
			break
		}
	}
	return "", &SheetResolutionError{SpreadsheetID: spreadsheetID, Attempted: attempted, Last: last}
}

// ReadSheet reads the default range of the resolved sheet.
func (s *SheetClient) ReadSheet(ctx context.Context, spreadsheetID string) (*Table, error) {
	name, err := s.ResolveSheetName(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	tok, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	ref := Ref{SpreadsheetID: spreadsheetID, SheetName: name}
	return withTimeout(ctx, "read "+a1(name, defaultReadRange), s.timeout, func(ctx context.Context) (*Table, error) {
		return s.readWith(ctx, tok, ref, defaultReadRange)
	})
}
