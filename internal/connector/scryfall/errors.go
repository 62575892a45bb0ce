package scryfall

import (
	"errors"
	"fmt"

	connhttp "github.com/manalake/cardsync/internal/connector/http"
)

const (
	CodeFetchFailed = "E_FETCH_FAILED"
)

// Error wraps source fetch failures with the HTTP status, when one was seen.
type Error struct {
	Code       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Code, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) CodeValue() string { return e.Code }

// IsFetchError reports whether err is a source fetch failure.
func IsFetchError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

func wrapError(status int, err error) *Error {
	return &Error{Code: CodeFetchFailed, StatusCode: status, Err: err}
}

// classifyFetchError lifts client-level failures into fetch errors, keeping
// the HTTP status when the failure carried one.
func classifyFetchError(err error) *Error {
	var httpErr *connhttp.HTTPError
	if errors.As(err, &httpErr) {
		return wrapError(httpErr.StatusCode, err)
	}
	return wrapError(0, err)
}
