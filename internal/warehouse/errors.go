package warehouse

import (
	"errors"
	"fmt"
)

const CodeLoadFailed = "E_LOAD_FAILED"

// Error wraps a warehouse append failure. ChunksCommitted and RowsCommitted
// record the durably appended prefix; there is no rollback, so a caller can
// resume with AppendFrom or accept the partial prefix.
type Error struct {
	Code            string
	ChunksCommitted int
	RowsCommitted   int64
	Err             error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s (chunks committed: %d, rows committed: %d): %v",
		e.Code, e.ChunksCommitted, e.RowsCommitted, e.Err)
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) CodeValue() string { return e.Code }

// IsLoadError reports whether err is a warehouse append failure.
func IsLoadError(err error) bool {
	var we *Error
	return errors.As(err, &we)
}

func wrapError(chunks int, rows int64, err error) *Error {
	return &Error{Code: CodeLoadFailed, ChunksCommitted: chunks, RowsCommitted: rows, Err: err}
}
