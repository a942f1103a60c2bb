package transcription

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HTTPError is a non-2xx response from the service
type HTTPError struct {
	StatusCode int
	Message    string // Human readable detail extracted from the body
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d: %s", e.StatusCode, e.Message)
}

// NetworkError wraps a failure to reach the service at all
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError is a 2xx response whose body could not be decoded
type DecodeError struct {
	Err  error
	Body []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse response JSON: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// detailMessage extracts the user facing message from an error body.
// A string detail is used verbatim, a validation array is joined, anything
// else falls back to the trimmed body and finally to the status code.
func detailMessage(statusCode int, body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}

		var items []struct {
			Msg string `json:"msg"`
			Loc []any  `json:"loc"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg == "" {
					continue
				}
				if len(it.Loc) > 0 {
					msgs = append(msgs, fmt.Sprintf("%s: %s", locString(it.Loc), it.Msg))
				} else {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return trimmed
	}

	return fmt.Sprintf("HTTP %d", statusCode)
}

func locString(loc []any) string {
	parts := make([]string, 0, len(loc))
	for _, p := range loc {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ".")
}
