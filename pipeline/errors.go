package pipeline

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	ValidationFailed    Kind = "ValidationFailed"
	UpstreamFetchFailed Kind = "UpstreamFetchFailed"
	RenderFailed        Kind = "RenderFailed"
	StoreUnavailable    Kind = "StoreUnavailable"
)

// HTTPStatus maps a kind onto the status code returned to clients.
func (k Kind) HTTPStatus() int {
	if k == ValidationFailed {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error is the single terminal failure of a pipeline run.
type Error struct {
	Kind   Kind
	Stage  Stage
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the human-readable text sent back to clients.
func (e *Error) Message() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

// KindOf returns the Kind of err, or "" when err is not a pipeline error.
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}

func fail(kind Kind, stage Stage, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: fmt.Sprintf(format, args...), Err: err}
}
