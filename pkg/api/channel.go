package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"sheetchat/pkg/sheets"

	"github.com/google/uuid"
)

const DefaultSendTimeout = 30 * time.Second

// Sender delivers a message and waits for its single reply.
type Sender interface {
	Send(ctx context.Context, msg ActionMessage) (Envelope, error)
}

// Reply resolves at most once. Later calls to Resolve are ignored.
type Reply struct {
	once sync.Once
	ch   chan Envelope
}

func NewReply() *Reply {
	return &Reply{ch: make(chan Envelope, 1)}
}

// Resolve delivers env and reports whether it was the first reply.
func (r *Reply) Resolve(env Envelope) bool {
	first := false
	r.once.Do(func() {
		r.ch <- env
		first = true
	})
	return first
}

// Wait blocks until the reply arrives or ctx is done.
func (r *Reply) Wait(ctx context.Context) (Envelope, error) {
	select {
	case env := <-r.ch:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func stamp(msg ActionMessage) ActionMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg
}

func sendTimeout(ctx context.Context, op string, d time.Duration, wait func(context.Context) (Envelope, error)) (Envelope, error) {
	if d <= 0 {
		d = DefaultSendTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	env, err := wait(ctx)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return Envelope{}, &sheets.TimeoutError{Op: op, After: d}
	}
	return env, err
}

// LocalChannel sends messages to a Router in the same process.
type LocalChannel struct {
	Router  *Router
	Timeout time.Duration
}

func (c *LocalChannel) Send(ctx context.Context, msg ActionMessage) (Envelope, error) {
	msg = stamp(msg)
	reply := NewReply()
	go func() {
		reply.Resolve(c.Router.Dispatch(ctx, msg))
	}()
	return sendTimeout(ctx, "message "+string(msg.Action), c.Timeout, reply.Wait)
}

// Client sends messages to a Router served over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		Timeout: timeout,
	}
}

func (c *Client) Send(ctx context.Context, msg ActionMessage) (Envelope, error) {
	msg = stamp(msg)
	body, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, err
	}
	return sendTimeout(ctx, "message "+string(msg.Action), c.Timeout, func(ctx context.Context) (Envelope, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return Envelope{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return Envelope{}, fmt.Errorf("send %s: %w", msg.Action, err)
		}
		defer resp.Body.Close()

		var env Envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return Envelope{}, &sheets.RemoteServiceError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return env, nil
	})
}
