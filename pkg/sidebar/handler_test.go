package sidebar

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) (int, turnResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, &buf))
	var resp turnResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return rr.Code, resp
}

func TestInsertTargetsTheMessagesOwnTurn(t *testing.T) {
	svc := &fakeSheets{}
	nlp := &fakeNLP{resp: &FormulaResponse{Summary: "first", StructuredData: [][]interface{}{{"Region"}, {"East"}}}}
	c := newLocalController(svc, nlp, Options{})
	r := chi.NewRouter()
	c.Routes(r)

	code, first := postJSON(t, r, "/sidebar/ask", Query{Text: "regions", PageURL: pageURL, PageHTML: salesPage})
	require.Equal(t, http.StatusOK, code)

	nlp.mu.Lock()
	nlp.resp = &FormulaResponse{Summary: "second", StructuredData: [][]interface{}{{"Total"}, {"300"}}}
	nlp.mu.Unlock()
	code, second := postJSON(t, r, "/sidebar/ask", Query{Text: "total", PageURL: pageURL, PageHTML: salesPage})
	require.Equal(t, http.StatusOK, code)
	require.NotEqual(t, first.TurnID, second.TurnID)

	var older *Message
	for i, m := range second.Messages {
		if m.Insertable && m.TurnID == first.TurnID {
			older = &second.Messages[i]
		}
	}
	require.NotNil(t, older, "earlier answer should stay insertable in the transcript")

	code, _ = postJSON(t, r, "/sidebar/turns/"+older.TurnID+"/insert", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, svc.writes, 1)
	assert.Equal(t, [][]string{{"Region"}, {"East"}}, svc.writes[0].Rows)
}

func TestInsertUnknownTurn(t *testing.T) {
	c := newLocalController(&fakeSheets{}, &fakeNLP{}, Options{})
	r := chi.NewRouter()
	c.Routes(r)

	code, resp := postJSON(t, r, "/sidebar/turns/missing/insert", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, resp.Error)
}
