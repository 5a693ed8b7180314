package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"sheetchat/pkg/sheets"
)

type Action string

const (
	GetSheetData   Action = "GET_SHEET_DATA"
	WriteSheetData Action = "WRITE_SHEET_DATA"
	CreateNewSheet Action = "CREATE_NEW_SHEET"
	HighlightRows  Action = "HIGHLIGHT_ROWS"
	CheckAuth      Action = "CHECK_AUTH"
	OpenSidebar    Action = "OPEN_SIDEBAR"
)

// ActionMessage is a request from the sidebar to the service. SenderURL is
// the address of the page the request was made from.
type ActionMessage struct {
	ID        string          `json:"id,omitempty"`
	Action    Action          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	SenderURL string          `json:"senderUrl,omitempty"`
}

// Error codes carried next to the message so the receiving side can tell
// authorization failures apart without parsing text.
const (
	CodeAuthorization = "AUTHORIZATION"
	CodeTimeout       = "TIMEOUT"
	CodeRemote        = "REMOTE"
	CodeNotFound      = "NOT_FOUND"
	CodeUnknownAction = "UNKNOWN_ACTION"
	CodeDuplicate     = "DUPLICATE"
	CodeInternal      = "INTERNAL"
)

// Envelope is the reply to every ActionMessage.
type Envelope struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Err turns a failed envelope back into a typed error.
func (e Envelope) Err() error {
	if e.Success {
		return nil
	}
	cause := errors.New(e.Error)
	switch e.Code {
	case CodeAuthorization:
		return &sheets.AuthorizationError{Err: cause}
	default:
		return &RemoteActionError{Code: e.Code, Message: e.Error}
	}
}

// Decode unmarshals the envelope result into v. Results produced in-process
// are Go values, results that crossed HTTP are decoded JSON, so both go
// through a JSON round trip.
func (e Envelope) Decode(v interface{}) error {
	if err := e.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(e.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

type RemoteActionError struct {
	Code    string
	Message string
}

func (e *RemoteActionError) Error() string { return e.Message }

type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("Unknown action: %s", e.Action)
}

type DuplicateMessageError struct {
	ID string
}

func (e *DuplicateMessageError) Error() string {
	return fmt.Sprintf("Duplicate message: %s", e.ID)
}

type WriteMode string

const (
	ModeAppend    WriteMode = "append"
	ModeOverwrite WriteMode = "overwrite"
)

type WriteRequest struct {
	SheetName string     `json:"sheetName,omitempty"`
	Values    [][]string `json:"values"`
	StartCell string     `json:"startCell,omitempty"`
	Mode      WriteMode  `json:"mode,omitempty"`
}

type CreateSheetRequest struct {
	SheetTitle string     `json:"sheetTitle"`
	Values     [][]string `json:"values,omitempty"`
}

type HighlightRequest struct {
	RowIndices []int         `json:"rowIndices"`
	Color      *sheets.Color `json:"color,omitempty"`
}

type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

type SidebarState struct {
	Visible bool `json:"visible"`
}

type CreateSheetResult struct {
	Sheet   *sheets.SheetProperties `json:"sheet"`
	Written *sheets.WriteResult     `json:"written,omitempty"`
}
