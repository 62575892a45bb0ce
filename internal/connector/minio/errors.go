package minio

import (
	"errors"
	"fmt"
)

const (
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeTimeout             = "E_TIMEOUT"
	CodeWriteFailed         = "E_OBJECT_WRITE_FAILED"
)

// Error wraps object-storage failures with retryability hints.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error         { return e.Err }
func (e *Error) CodeValue() string     { return e.Code }
func (e *Error) RetryableStatus() bool { return e.Retryable }

// IsNotFound reports whether err indicates a missing object or bucket.
func IsNotFound(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == CodeObjectNotFound || me.Code == CodeBucketNotFound
	}
	return false
}

func wrapError(code string, retryable bool, err error) *Error {
	if err == nil {
		return &Error{Code: code, Retryable: retryable}
	}
	return &Error{Code: code, Retryable: retryable, Err: err}
}
