package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoSession is returned before any network call when no token is stored.
var ErrNoSession = errors.New("session invalid, please sign in again")

// ValidationError is a local, pre-network rejection of user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s failed with status %d", e.Method, e.Path, e.StatusCode)
}

func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsValidation reports whether err was produced by local input checks.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ExtractMessage pulls a human readable message out of an error body. The
// commerce API answers with detail/error/message keys or with per-field
// error lists depending on the endpoint.
func ExtractMessage(body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		if len(body) > 200 || body[0] == '<' {
			return ""
		}
		return string(body)
	}
	return messageFrom(v)
}

func messageFrom(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if m := messageFrom(e); m != "" {
				return m
			}
		}
	case map[string]any:
		for _, k := range []string{"detail", "error", "message", "non_field_errors"} {
			if m := messageFrom(t[k]); m != "" {
				return m
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if m := messageFrom(t[k]); m != "" {
				return k + ": " + m
			}
		}
	}
	return ""
}
