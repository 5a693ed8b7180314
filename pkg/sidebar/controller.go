// Package sidebar drives the chat loop: it gathers the table the user is
// looking at, asks the formula service about it and renders the answer.
package sidebar

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"sheetchat/pkg/api"
	"sheetchat/pkg/extract"
	"sheetchat/pkg/sheets"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type State string

const (
	StateIdle            State = "IDLE"
	StateAwaitingContext State = "AWAITING_CONTEXT"
	StateAwaitingRemote  State = "AWAITING_REMOTE_RESPONSE"
	StateRendered        State = "RENDERED"
	StateWritePending    State = "WRITE_PENDING"
	StateWriteDone       State = "WRITE_DONE"
	StateError           State = "ERROR"
)

var ErrEmptyQuery = errors.New("empty query")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Kind string

const (
	KindText     Kind = "text"
	KindThinking Kind = "thinking"
	KindError    Kind = "error"
	KindTable    Kind = "table"
)

// Message is one rendered entry of the transcript.
type Message struct {
	ID         int        `json:"id"`
	TurnID     string     `json:"turnId"`
	Role       Role       `json:"role"`
	Kind       Kind       `json:"kind"`
	Text       string     `json:"text"`
	Rows       [][]string `json:"rows,omitempty"`
	Insertable bool       `json:"insertable,omitempty"`
}

// Query is what the user typed plus a snapshot of the page they were on.
type Query struct {
	Text     string `json:"query"`
	PageURL  string `json:"pageUrl,omitempty"`
	PageHTML string `json:"pageHtml,omitempty"`
}

type Options struct {
	Locale         string
	AutoHighlight  bool
	HighlightColor *sheets.Color
	// MaxTurns bounds how many turns stay addressable for later inserts.
	MaxTurns int
}

// Controller runs user queries. Concurrent queries are neither ordered nor
// cancelled against each other; each renders whenever it finishes.
type Controller struct {
	sender api.Sender
	nlp    Formulator
	opts   Options

	mu         sync.Mutex
	transcript []Message
	nextID     int
	turns      map[string]*Turn
	order      []string
}

func NewController(sender api.Sender, nlp Formulator, opts Options) *Controller {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 50
	}
	opts.Locale = strings.ToLower(strings.SplitN(opts.Locale, "-", 2)[0])
	return &Controller{
		sender: sender,
		nlp:    nlp,
		opts:   opts,
		turns:  make(map[string]*Turn),
	}
}

// Turn is one query and everything that happened to it.
type Turn struct {
	ID    string
	Query Query

	mu       sync.Mutex
	states   []State
	err      error
	response *FormulaResponse
	insert   *InsertAction
}

func (t *Turn) to(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	log.Debugf("Turn %s: %s -> %s", t.ID, t.states[len(t.states)-1], s)
	t.states = append(t.states, s)
}

func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[len(t.states)-1]
}

// States returns every state the turn has been in, oldest first.
func (t *Turn) States() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]State(nil), t.states...)
}

func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Turn) Response() *FormulaResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.response
}

// Insert is the insert affordance, nil unless the answer carried a table.
func (t *Turn) Insert() *InsertAction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insert
}

// Ask runs one query through context gathering, the formula service and
// rendering. The returned turn is non-nil whenever the query was not empty.
func (c *Controller) Ask(ctx context.Context, q Query) (*Turn, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	turn := &Turn{ID: uuid.NewString(), Query: q, states: []State{StateIdle}}
	c.remember(turn)

	c.render(Message{TurnID: turn.ID, Role: RoleUser, Kind: KindText, Text: q.Text})
	thinking := c.render(Message{TurnID: turn.ID, Role: RoleAssistant, Kind: KindThinking, Text: c.text(textThinking)})
	defer c.remove(thinking)

	turn.to(StateAwaitingContext)
	table, err := c.gatherContext(ctx, q)
	if err != nil {
		return turn, c.fail(turn, err)
	}

	turn.to(StateAwaitingRemote)
	resp, err := c.nlp.Formula(ctx, FormulaRequest{
		Query:       q.Text,
		ColumnNames: table.Headers,
		SheetData:   table.Rows,
	})
	if err != nil {
		return turn, c.fail(turn, err)
	}

	c.renderResponse(turn, resp)
	turn.to(StateRendered)

	if len(resp.HighlightRows) > 0 && c.opts.AutoHighlight {
		c.highlight(ctx, turn, resp.HighlightRows)
	}
	return turn, nil
}

// gatherContext prefers the rendered page and only asks the service when
// the page has no usable table. Service failures are returned as-is so an
// unreadable sheet never looks like an empty one.
func (c *Controller) gatherContext(ctx context.Context, q Query) (*sheets.Table, error) {
	if q.PageHTML != "" {
		table, ok, err := extract.FromHTML(strings.NewReader(q.PageHTML))
		switch {
		case err != nil:
			log.Debugf("Page snapshot unreadable: %v", err)
		case ok:
			log.Debugf("Using %d rows from the page", len(table.Rows))
			return table, nil
		}
	}

	env, err := c.sender.Send(ctx, api.ActionMessage{Action: api.GetSheetData, SenderURL: q.PageURL})
	if err != nil {
		return nil, err
	}
	var table sheets.Table
	if err := env.Decode(&table); err != nil {
		return nil, err
	}
	return &table, nil
}

func (c *Controller) renderResponse(turn *Turn, resp *FormulaResponse) {
	turn.mu.Lock()
	turn.response = resp
	turn.mu.Unlock()

	summary := resp.Summary
	if summary == "" {
		summary = c.text(textDone)
	}
	c.render(Message{TurnID: turn.ID, Role: RoleAssistant, Kind: KindText, Text: summary})

	if rows := resp.Rows(); len(rows) > 0 {
		turn.mu.Lock()
		turn.insert = &InsertAction{c: c, turn: turn, rows: rows}
		turn.mu.Unlock()
		c.render(Message{
			TurnID:     turn.ID,
			Role:       RoleAssistant,
			Kind:       KindTable,
			Text:       c.text(textInsertReady),
			Rows:       rows,
			Insertable: true,
		})
	}

	if n := len(resp.HighlightRows); n > 0 {
		c.render(Message{TurnID: turn.ID, Role: RoleAssistant, Kind: KindText, Text: c.text(textHighlightCount, n)})
	}
}

// highlight failures are shown but leave the turn rendered.
func (c *Controller) highlight(ctx context.Context, turn *Turn, rows []int) {
	data, err := json.Marshal(api.HighlightRequest{RowIndices: rows, Color: c.opts.HighlightColor})
	if err != nil {
		c.renderError(turn, err)
		return
	}
	env, err := c.sender.Send(ctx, api.ActionMessage{Action: api.HighlightRows, SenderURL: turn.Query.PageURL, Data: data})
	if err == nil {
		err = env.Err()
	}
	if err != nil {
		log.Warnf("Highlight failed: %v", err)
		c.renderError(turn, err)
		return
	}
	c.render(Message{TurnID: turn.ID, Role: RoleAssistant, Kind: KindText, Text: c.text(textHighlighted, len(rows))})
}

func (c *Controller) fail(turn *Turn, err error) error {
	turn.mu.Lock()
	turn.err = err
	turn.mu.Unlock()
	turn.to(StateError)
	c.renderError(turn, err)
	return err
}

func (c *Controller) renderError(turn *Turn, err error) {
	text := c.text(textFailed, err.Error())
	if sheets.IsAuthorization(err) {
		text = c.text(textAuthRequired)
	}
	c.render(Message{TurnID: turn.ID, Role: RoleAssistant, Kind: KindError, Text: text})
}

func (c *Controller) text(key textKey, args ...interface{}) string {
	return localize(c.opts.Locale, key, args...)
}

func (c *Controller) render(m Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	m.ID = c.nextID
	c.transcript = append(c.transcript, m)
	return m.ID
}

func (c *Controller) remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.transcript {
		if m.ID == id {
			c.transcript = append(c.transcript[:i], c.transcript[i+1:]...)
			return
		}
	}
}

// Transcript returns a copy of everything rendered so far.
func (c *Controller) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message{}, c.transcript...)
}

// TurnMessages returns the transcript entries belonging to one turn.
func (c *Controller) TurnMessages(turnID string) []Message {
	var out []Message
	for _, m := range c.Transcript() {
		if m.TurnID == turnID {
			out = append(out, m)
		}
	}
	return out
}

func (c *Controller) remember(t *Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns[t.ID] = t
	c.order = append(c.order, t.ID)
	if len(c.order) > c.opts.MaxTurns {
		delete(c.turns, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *Controller) Turn(id string) (*Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.turns[id]
	return t, ok
}

// InsertAction writes an answer's table into the sheet, starting at A1 in
// overwrite mode. Every structured_data row is written, the header row
// included, so the sheet mirrors the table shown in the sidebar.
type InsertAction struct {
	c    *Controller
	turn *Turn
	rows [][]string
}

func (a *InsertAction) Rows() [][]string { return a.rows }

func (a *InsertAction) Activate(ctx context.Context) (*sheets.WriteResult, error) {
	a.turn.to(StateWritePending)
	data, err := json.Marshal(api.WriteRequest{Values: a.rows, StartCell: "A1", Mode: api.ModeOverwrite})
	if err != nil {
		return nil, a.c.fail(a.turn, err)
	}
	env, err := a.c.sender.Send(ctx, api.ActionMessage{Action: api.WriteSheetData, SenderURL: a.turn.Query.PageURL, Data: data})
	if err != nil {
		return nil, a.c.fail(a.turn, err)
	}
	var res sheets.WriteResult
	if err := env.Decode(&res); err != nil {
		return nil, a.c.fail(a.turn, err)
	}
	a.turn.to(StateWriteDone)
	a.c.render(Message{TurnID: a.turn.ID, Role: RoleAssistant, Kind: KindText, Text: a.c.text(textInserted, len(a.rows))})
	return &res, nil
}
