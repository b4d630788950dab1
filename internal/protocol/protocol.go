// Package protocol defines the result shapes returned to callers of the
// dispatcher and the launcher. They serialize to the JSON contract consumed
// by the HTTP layer and the serve loop.
package protocol

import "github.com/Iron-Ham/panedrive/internal/errors"

// ErrorBody is the client-facing form of a failure.
type ErrorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// NewErrorBody converts err into an ErrorBody. Errors without a code are
// reported as INTERNAL.
func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	return &ErrorBody{Code: errors.CodeOf(err), Message: errors.Message(err)}
}

// ActionResult is the outcome of one pane action.
type ActionResult struct {
	OK    bool       `json:"ok"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ActionFrom builds an ActionResult from the error returned by an action.
func ActionFrom(err error) ActionResult {
	if err != nil {
		return ActionResult{OK: false, Error: NewErrorBody(err)}
	}
	return ActionResult{OK: true}
}
