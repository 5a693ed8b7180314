package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sheetchat/pkg/identity"
	"sheetchat/pkg/inject"
	"sheetchat/pkg/sheets"

	log "github.com/sirupsen/logrus"
)

// SheetService is the part of the sheet adapter the router drives.
type SheetService interface {
	ReadSheet(ctx context.Context, spreadsheetID string) (*sheets.Table, error)
	ResolveSheetName(ctx context.Context, spreadsheetID string) (string, error)
	WriteRange(ctx context.Context, ref sheets.Ref, startCell string, rows [][]string) (*sheets.WriteResult, error)
	AppendRows(ctx context.Context, ref sheets.Ref, rows [][]string) (*sheets.WriteResult, error)
	CreateSheet(ctx context.Context, ref sheets.Ref, title string) (*sheets.SheetProperties, error)
	ResolveSheetID(ctx context.Context, ref sheets.Ref) (int64, error)
	HighlightRows(ctx context.Context, ref sheets.Ref, sheetID int64, rowIndices []int, color sheets.Color) (*sheets.BatchResult, error)
}

type handlerFunc func(ctx context.Context, msg ActionMessage) (interface{}, error)

// Router dispatches action messages to the sheet adapter. It keeps no per
// call state besides the recently seen message ids.
type Router struct {
	sheets  SheetService
	tokens  identity.TokenProvider
	sidebar *inject.Sidebar
	recent  *RecentIDs
	metrics *Metrics

	handlers map[Action]handlerFunc
}

func NewRouter(svc SheetService, tokens identity.TokenProvider, sidebar *inject.Sidebar, recent *RecentIDs, metrics *Metrics) *Router {
	if sidebar == nil {
		sidebar = &inject.Sidebar{}
	}
	if recent == nil {
		recent = NewRecentIDs(0)
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	rt := &Router{
		sheets:  svc,
		tokens:  tokens,
		sidebar: sidebar,
		recent:  recent,
		metrics: metrics,
	}
	rt.handlers = map[Action]handlerFunc{
		GetSheetData:   rt.getSheetData,
		WriteSheetData: rt.writeSheetData,
		CreateNewSheet: rt.createNewSheet,
		HighlightRows:  rt.highlightRows,
		CheckAuth:      rt.checkAuth,
		OpenSidebar:    rt.openSidebar,
	}
	return rt
}

func (rt *Router) Metrics() *Metrics { return rt.metrics }

// Dispatch handles one message and always produces exactly one envelope.
func (rt *Router) Dispatch(ctx context.Context, msg ActionMessage) (env Envelope) {
	label := msg.Action
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Handler for %s panicked: %v", msg.Action, p)
			env = failure(fmt.Errorf("internal error handling %s", msg.Action), CodeInternal)
		}
		rt.metrics.observe(label, env)
	}()

	h, ok := rt.handlers[msg.Action]
	if !ok {
		label = "unknown"
		return failure(&UnknownActionError{Action: msg.Action}, CodeUnknownAction)
	}
	// CHECK_AUTH is read-only and always answers with an AuthStatus.
	if msg.Action != CheckAuth && msg.ID != "" && !rt.recent.Add(msg.ID) {
		log.Debugf("Dropping duplicate message %s", msg.ID)
		return failure(&DuplicateMessageError{ID: msg.ID}, CodeDuplicate)
	}

	log.Debugf("Handling %s", msg.Action)
	result, err := h(ctx, msg)
	if err != nil {
		log.Warnf("%s failed: %v", msg.Action, err)
		return failure(err, codeFor(err))
	}
	return Envelope{Success: true, Result: result}
}

func failure(err error, code string) Envelope {
	return Envelope{Success: false, Error: err.Error(), Code: code}
}

func codeFor(err error) string {
	var (
		timeout  *sheets.TimeoutError
		remote   *sheets.RemoteServiceError
		notFound *sheets.SheetNotFoundError
	)
	switch {
	case sheets.IsAuthorization(err):
		return CodeAuthorization
	case errors.As(err, &timeout):
		return CodeTimeout
	case errors.As(err, &notFound):
		return CodeNotFound
	case errors.As(err, &remote):
		return CodeRemote
	}
	return ""
}

func spreadsheetID(msg ActionMessage) (string, error) {
	id, ok := sheets.SpreadsheetIDFromURL(msg.SenderURL)
	if !ok {
		return "", fmt.Errorf("no spreadsheet id in sender url %q", msg.SenderURL)
	}
	return id, nil
}

func decodeData(msg ActionMessage, v interface{}) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s requires data", msg.Action)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", msg.Action, err)
	}
	return nil
}

// ref builds a sheet reference, resolving the sheet name unless one is given.
func (rt *Router) ref(ctx context.Context, msg ActionMessage, sheetName string) (sheets.Ref, error) {
	id, err := spreadsheetID(msg)
	if err != nil {
		return sheets.Ref{}, err
	}
	if sheetName == "" {
		sheetName, err = rt.sheets.ResolveSheetName(ctx, id)
		if err != nil {
			return sheets.Ref{}, err
		}
	}
	return sheets.Ref{SpreadsheetID: id, SheetName: sheetName}, nil
}

func (rt *Router) getSheetData(ctx context.Context, msg ActionMessage) (interface{}, error) {
	id, err := spreadsheetID(msg)
	if err != nil {
		return nil, err
	}
	return rt.sheets.ReadSheet(ctx, id)
}

func (rt *Router) writeSheetData(ctx context.Context, msg ActionMessage) (interface{}, error) {
	var req WriteRequest
	if err := decodeData(msg, &req); err != nil {
		return nil, err
	}
	ref, err := rt.ref(ctx, msg, req.SheetName)
	if err != nil {
		return nil, err
	}
	switch req.Mode {
	case ModeAppend:
		return rt.sheets.AppendRows(ctx, ref, req.Values)
	case ModeOverwrite, "":
		start := req.StartCell
		if start == "" {
			start = "A1"
		}
		return rt.sheets.WriteRange(ctx, ref, start, req.Values)
	default:
		return nil, fmt.Errorf("unknown write mode %q", req.Mode)
	}
}

func (rt *Router) createNewSheet(ctx context.Context, msg ActionMessage) (interface{}, error) {
	var req CreateSheetRequest
	if err := decodeData(msg, &req); err != nil {
		return nil, err
	}
	if req.SheetTitle == "" {
		return nil, errors.New("sheetTitle is required")
	}
	id, err := spreadsheetID(msg)
	if err != nil {
		return nil, err
	}
	props, err := rt.sheets.CreateSheet(ctx, sheets.Ref{SpreadsheetID: id}, req.SheetTitle)
	if err != nil {
		return nil, err
	}
	res := &CreateSheetResult{Sheet: props}
	if len(req.Values) > 0 {
		res.Written, err = rt.sheets.WriteRange(ctx, sheets.Ref{SpreadsheetID: id, SheetName: props.Title}, "A1", req.Values)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (rt *Router) highlightRows(ctx context.Context, msg ActionMessage) (interface{}, error) {
	var req HighlightRequest
	if err := decodeData(msg, &req); err != nil {
		return nil, err
	}
	ref, err := rt.ref(ctx, msg, "")
	if err != nil {
		return nil, err
	}
	sheetID, err := rt.sheets.ResolveSheetID(ctx, ref)
	if err != nil {
		return nil, err
	}
	color := sheets.DefaultHighlight
	if req.Color != nil {
		color = *req.Color
	}
	return rt.sheets.HighlightRows(ctx, ref, sheetID, req.RowIndices, color)
}

// checkAuth never fails: any token problem is reported in the result.
func (rt *Router) checkAuth(ctx context.Context, msg ActionMessage) (interface{}, error) {
	if rt.tokens == nil {
		return AuthStatus{Authenticated: false, Error: "no identity provider configured"}, nil
	}
	if _, err := rt.tokens.Token(ctx, false); err != nil {
		return AuthStatus{Authenticated: false, Error: err.Error()}, nil
	}
	return AuthStatus{Authenticated: true}, nil
}

func (rt *Router) openSidebar(ctx context.Context, msg ActionMessage) (interface{}, error) {
	return SidebarState{Visible: rt.sidebar.Toggle()}, nil
}
