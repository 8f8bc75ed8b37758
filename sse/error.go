package sse

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fwojciec/relay"
)

// errorBody is the shape of a non-2xx response body. Providers disagree on
// where the message lives; see ErrorFromBody for the precedence.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Message string `json:"message"`
}

// ErrorFromBody builds the terminal error of a response whose status code is
// not a success. The body is parsed as a single JSON object, never as frames.
// The message is taken from error.message, then a top-level message field,
// then the raw body text.
func ErrorFromBody(status int, body []byte) relay.EventError {
	evt := relay.EventError{Code: strconv.Itoa(status)}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		var detail errorDetail
		if len(eb.Error) > 0 && json.Unmarshal(eb.Error, &detail) == nil && detail.Message != "" {
			evt.Message = detail.Message
			return evt
		}
		if eb.Message != "" {
			evt.Message = eb.Message
			return evt
		}
	}

	evt.Message = strings.TrimSpace(string(body))
	return evt
}
