package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrTransport wraps failures that never produced an HTTP response.
var ErrTransport = errors.New("pipeline service unreachable")

// Error is a failure reported by the service itself: a non-2xx response or a
// 2xx response whose body says {"status": "error"}. Error returns the
// service's text verbatim so it can be shown to the user as-is.
type Error struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsServiceError reports whether err is (or wraps) an *Error.
func IsServiceError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}

// errorBody covers the failure shapes the service produces.
type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  any    `json:"detail"`
	Error   string `json:"error"`
}

func (b errorBody) text() string {
	switch {
	case b.Message != "":
		return b.Message
	case b.Error != "":
		return b.Error
	case b.Detail != nil:
		if s, ok := b.Detail.(string); ok {
			return s
		}
		raw, _ := json.Marshal(b.Detail)
		return string(raw)
	}
	return ""
}

func statusError(endpoint string, code int, body []byte) *Error {
	var eb errorBody
	msg := ""
	if json.Unmarshal(body, &eb) == nil {
		msg = eb.text()
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = fmt.Sprintf("%s: %s", endpoint, http.StatusText(code))
	}
	return &Error{Endpoint: endpoint, StatusCode: code, Message: msg}
}
