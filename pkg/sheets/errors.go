package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// AuthorizationError means no usable identity token could be obtained, or
// the service rejected the one we sent.
type AuthorizationError struct {
	Err error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization failed: %v", e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

type RemoteServiceError struct {
	Status  int
	Message string
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("remote service error %d: %s", e.Status, e.Message)
}

type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s, check whether a consent prompt is waiting for you", e.Op, e.After)
}

type SheetNotFoundError struct {
	SpreadsheetID string
	SheetName     string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("sheet %q not found in spreadsheet %s", e.SheetName, e.SpreadsheetID)
}

// SheetResolutionError reports that none of the candidate sheet names worked.
type SheetResolutionError struct {
	SpreadsheetID string
	Attempted     []string
	Last          error
}

func (e *SheetResolutionError) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("could not resolve a sheet name for %s: %v", e.SpreadsheetID, e.Last)
	}
	return fmt.Sprintf("could not resolve a sheet name for %s (tried %s): %v",
		e.SpreadsheetID, strings.Join(e.Attempted, ", "), e.Last)
}

func (e *SheetResolutionError) Unwrap() error { return e.Last }

func IsAuthorization(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

// remoteError maps a Sheets client error onto the error taxonomy.
func remoteError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		msg := gErr.Message
		if msg == "" {
			msg = http.StatusText(gErr.Code)
		}
		rse := &RemoteServiceError{Status: gErr.Code, Message: msg}
		if gErr.Code == http.StatusUnauthorized {
			return &AuthorizationError{Err: rse}
		}
		return rse
	}
	return err
}

// withTimeout races fn against a timer. fn's context is cancelled as soon as
// the timer wins, so callers acquire tokens before starting the clock.
func withTimeout[T any](ctx context.Context, op string, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return zero, &TimeoutError{Op: op, After: d}
		}
		return r.v, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{Op: op, After: d}
		}
		return zero, ctx.Err()
	}
}
