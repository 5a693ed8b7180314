package sidebar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sheetchat/pkg/sheets"
)

type FormulaRequest struct {
	Query       string     `json:"query"`
	ColumnNames []string   `json:"column_names"`
	SheetData   [][]string `json:"sheet_data"`
}

type FormulaResponse struct {
	Summary        string          `json:"summary,omitempty"`
	StructuredData [][]interface{} `json:"structured_data,omitempty"`
	HighlightRows  []int           `json:"highlight_rows,omitempty"`
}

// Rows returns the structured data with every cell as text.
func (r *FormulaResponse) Rows() [][]string {
	out := make([][]string, 0, len(r.StructuredData))
	for _, row := range r.StructuredData {
		cells := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		out = append(out, cells)
	}
	return out
}

// Formulator answers a natural-language question about a table.
type Formulator interface {
	Formula(ctx context.Context, req FormulaRequest) (*FormulaResponse, error)
}

// NLPClient talks to the remote formula endpoint.
type NLPClient struct {
	BaseURL string
	Version string
	HTTP    *http.Client
}

func NewNLPClient(baseURL, version string, timeout time.Duration) *NLPClient {
	if version == "" {
		version = "v1"
	}
	return &NLPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Version: version,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *NLPClient) endpoint() string {
	return fmt.Sprintf("%s/api/%s/formula", c.BaseURL, c.Version)
}

func (c *NLPClient) Formula(ctx context.Context, freq FormulaRequest) (*FormulaResponse, error) {
	body, err := json.Marshal(freq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("formula request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read formula response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &sheets.RemoteServiceError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}

	var out FormulaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode formula response: %w", err)
	}
	return &out, nil
}

// errorMessage prefers the message in a JSON error body.
func errorMessage(status int, body []byte) string {
	var parsed struct {
		Detail  interface{} `json:"detail"`
		Error   interface{} `json:"error"`
		Message string      `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		for _, v := range []interface{}{parsed.Message, parsed.Detail, parsed.Error} {
			switch m := v.(type) {
			case string:
				if m != "" {
					return m
				}
			case map[string]interface{}:
				if s, ok := m["message"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return http.StatusText(status)
}
