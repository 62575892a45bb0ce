package normalize

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeSchemaMissing = "E_SCHEMA_MISSING"
	CodeLiteralParse  = "E_LITERAL_PARSE"
)

// Error wraps normalization failures. The whole stage fails or succeeds:
// there is never partial output.
type Error struct {
	Code    string
	Columns []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Columns) > 0 {
		return fmt.Sprintf("%s: columns [%s]", e.Code, strings.Join(e.Columns, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) CodeValue() string { return e.Code }

// IsSchemaError reports whether err means a required source column is absent.
func IsSchemaError(err error) bool {
	var ne *Error
	return errors.As(err, &ne) && ne.Code == CodeSchemaMissing
}
