package sidebar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sheetchat/pkg/api"
	"sheetchat/pkg/identity"
	"sheetchat/pkg/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const pageURL = "https://docs.google.com/spreadsheets/d/doc-1/edit"

const salesPage = `<html><body><table>
<tr><td>Region</td><td>Sales</td></tr>
<tr><td>East</td><td>100</td></tr>
<tr><td>West</td><td>200</td></tr>
</table></body></html>`

// fakeSheets records what the router asks of the adapter.
type fakeSheets struct {
	mu        sync.Mutex
	table     *sheets.Table
	readErr   error
	reads     int
	writes    []writeCall
	highlight [][]int
}

type writeCall struct {
	Ref       sheets.Ref
	StartCell string
	Rows      [][]string
}

func (f *fakeSheets) ReadSheet(ctx context.Context, id string) (*sheets.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.table, f.readErr
}

func (f *fakeSheets) ResolveSheetName(ctx context.Context, id string) (string, error) {
	return "Sheet1", nil
}

func (f *fakeSheets) WriteRange(ctx context.Context, ref sheets.Ref, startCell string, rows [][]string) (*sheets.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, writeCall{ref, startCell, rows})
	return &sheets.WriteResult{UpdatedRows: int64(len(rows))}, nil
}

func (f *fakeSheets) AppendRows(ctx context.Context, ref sheets.Ref, rows [][]string) (*sheets.WriteResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeSheets) CreateSheet(ctx context.Context, ref sheets.Ref, title string) (*sheets.SheetProperties, error) {
	return nil, errors.New("not used")
}

func (f *fakeSheets) ResolveSheetID(ctx context.Context, ref sheets.Ref) (int64, error) {
	return 0, nil
}

func (f *fakeSheets) HighlightRows(ctx context.Context, ref sheets.Ref, sheetID int64, rows []int, color sheets.Color) (*sheets.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highlight = append(f.highlight, rows)
	return &sheets.BatchResult{}, nil
}

type fakeNLP struct {
	mu   sync.Mutex
	got  []FormulaRequest
	resp *FormulaResponse
	err  error
}

func (f *fakeNLP) Formula(ctx context.Context, req FormulaRequest) (*FormulaResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	return f.resp, f.err
}

func newLocalController(svc api.SheetService, nlp Formulator, opts Options) *Controller {
	tokens := identity.StaticProvider{Tok: &oauth2.Token{AccessToken: "t"}}
	rt := api.NewRouter(svc, tokens, nil, nil, nil)
	return NewController(&api.LocalChannel{Router: rt, Timeout: time.Second}, nlp, opts)
}

func kinds(msgs []Message) []Kind {
	out := make([]Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

func TestAskRejectsEmptyQuery(t *testing.T) {
	c := newLocalController(&fakeSheets{}, &fakeNLP{}, Options{})
	turn, err := c.Ask(context.Background(), Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Nil(t, turn)
	assert.Empty(t, c.Transcript())
}

func TestAskTotalSalesByRegionAndInsert(t *testing.T) {
	var got FormulaRequest
	nlpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/formula", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"summary":"Done","structured_data":[["Region","Total"],["East",100],["West","200"]]}`))
	}))
	defer nlpSrv.Close()

	svc := &fakeSheets{}
	c := newLocalController(svc, NewNLPClient(nlpSrv.URL, "v1", time.Second), Options{})

	turn, err := c.Ask(context.Background(), Query{Text: "total sales by region", PageURL: pageURL, PageHTML: salesPage})
	require.NoError(t, err)
	assert.Equal(t, StateRendered, turn.State())
	assert.Equal(t, []State{StateIdle, StateAwaitingContext, StateAwaitingRemote, StateRendered}, turn.States())

	assert.Equal(t, "total sales by region", got.Query)
	assert.Equal(t, []string{"Region", "Sales"}, got.ColumnNames)
	assert.Equal(t, [][]string{{"East", "100"}, {"West", "200"}}, got.SheetData)
	assert.Zero(t, svc.reads, "page snapshot should have been enough")

	msgs := c.TurnMessages(turn.ID)
	assert.Equal(t, []Kind{KindText, KindText, KindTable}, kinds(msgs))
	assert.Equal(t, "Done", msgs[1].Text)
	assert.True(t, msgs[2].Insertable)

	insert := turn.Insert()
	require.NotNil(t, insert)
	_, err = insert.Activate(context.Background())
	require.NoError(t, err)

	want := [][]string{{"Region", "Total"}, {"East", "100"}, {"West", "200"}}
	require.Len(t, svc.writes, 1)
	assert.Equal(t, "A1", svc.writes[0].StartCell)
	assert.Equal(t, want, svc.writes[0].Rows)
	assert.Equal(t, sheets.Ref{SpreadsheetID: "doc-1", SheetName: "Sheet1"}, svc.writes[0].Ref)
	assert.Equal(t, StateWriteDone, turn.State())
}

func TestAskFallsBackToService(t *testing.T) {
	svc := &fakeSheets{table: &sheets.Table{Headers: []string{"A"}, Rows: [][]string{{"1"}}}}
	nlp := &fakeNLP{resp: &FormulaResponse{Summary: "ok"}}
	c := newLocalController(svc, nlp, Options{})

	turn, err := c.Ask(context.Background(), Query{Text: "sum", PageURL: pageURL, PageHTML: "<p>no grid</p>"})
	require.NoError(t, err)
	assert.Equal(t, StateRendered, turn.State())
	assert.Equal(t, 1, svc.reads)
	require.Len(t, nlp.got, 1)
	assert.Equal(t, []string{"A"}, nlp.got[0].ColumnNames)
	assert.Nil(t, turn.Insert())
}

func TestAskAuthorizationRequiredEndToEnd(t *testing.T) {
	sheetsAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	}))
	defer sheetsAPI.Close()

	tokens := identity.StaticProvider{Tok: &oauth2.Token{AccessToken: "stale"}}
	adapter := sheets.NewSheetClient(tokens, sheets.NewMemoryNameCache(), sheets.Config{Endpoint: sheetsAPI.URL + "/"})
	nlp := &fakeNLP{resp: &FormulaResponse{Summary: "should not be reached"}}
	c := newLocalController(adapter, nlp, Options{Locale: "es-MX"})

	turn, err := c.Ask(context.Background(), Query{Text: "total sales by region", PageURL: pageURL})
	require.Error(t, err)
	assert.True(t, sheets.IsAuthorization(err))
	assert.Equal(t, StateError, turn.State())
	assert.Empty(t, nlp.got)

	msgs := c.TurnMessages(turn.ID)
	last := msgs[len(msgs)-1]
	assert.Equal(t, KindError, last.Kind)
	assert.Equal(t, localize("es", textAuthRequired), last.Text)
	for _, m := range msgs {
		assert.NotEqual(t, KindThinking, m.Kind)
		assert.NotEqual(t, KindTable, m.Kind)
	}
}

func TestAskOtherFailuresShowGenericError(t *testing.T) {
	svc := &fakeSheets{readErr: &sheets.RemoteServiceError{Status: 500, Message: "backend down"}}
	c := newLocalController(svc, &fakeNLP{}, Options{})

	turn, err := c.Ask(context.Background(), Query{Text: "anything", PageURL: pageURL})
	require.Error(t, err)
	assert.False(t, sheets.IsAuthorization(err))

	msgs := c.TurnMessages(turn.ID)
	last := msgs[len(msgs)-1]
	assert.Equal(t, KindError, last.Kind)
	assert.True(t, strings.HasPrefix(last.Text, "Something went wrong:"))
	assert.Contains(t, last.Text, "backend down")
}

func TestAskNLPFailure(t *testing.T) {
	nlpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"query too vague"}`))
	}))
	defer nlpSrv.Close()

	c := newLocalController(&fakeSheets{}, NewNLPClient(nlpSrv.URL, "", time.Second), Options{})
	turn, err := c.Ask(context.Background(), Query{Text: "hm", PageURL: pageURL, PageHTML: salesPage})

	var rse *sheets.RemoteServiceError
	require.True(t, errors.As(err, &rse))
	assert.Equal(t, http.StatusUnprocessableEntity, rse.Status)
	assert.Equal(t, "query too vague", rse.Message)
	assert.Equal(t, []State{StateIdle, StateAwaitingContext, StateAwaitingRemote, StateError}, turn.States())
}

func TestAskHighlightRows(t *testing.T) {
	svc := &fakeSheets{}
	nlp := &fakeNLP{resp: &FormulaResponse{Summary: "two rows", HighlightRows: []int{2, 3}}}

	c := newLocalController(svc, nlp, Options{})
	turn, err := c.Ask(context.Background(), Query{Text: "find big ones", PageURL: pageURL, PageHTML: salesPage})
	require.NoError(t, err)
	assert.Empty(t, svc.highlight)
	msgs := c.TurnMessages(turn.ID)
	assert.Equal(t, "2 matching rows.", msgs[len(msgs)-1].Text)

	c = newLocalController(svc, nlp, Options{AutoHighlight: true})
	turn, err = c.Ask(context.Background(), Query{Text: "find big ones", PageURL: pageURL, PageHTML: salesPage})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 3}}, svc.highlight)
	msgs = c.TurnMessages(turn.ID)
	assert.Equal(t, "Highlighted 2 rows.", msgs[len(msgs)-1].Text)
}

func TestFormulaResponseRows(t *testing.T) {
	resp := FormulaResponse{StructuredData: [][]interface{}{{"a", 1.5, nil}, {true}}}
	assert.Equal(t, [][]string{{"a", "1.5", ""}, {"true"}}, resp.Rows())
}
