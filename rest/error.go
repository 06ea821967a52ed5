// Interface for dealing with HTTP errors.
package rest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error is a non-2xx response from the remote backend. Body holds the raw
// response text, which ends up as the job's error message, and Message holds
// the backend's own "message" field when the body parses as its usual error
// shape.
type Error struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func newError(statusCode int, body []byte) *Error {
	e := &Error{
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(body)),
	}
	// The backend wraps errors as {"code": 400, "message": "...", "data": {}}.
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.Message = parsed.Message
	}
	return e
}
