package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownShape is returned by strict decoding when a list response is not
// wrapped in the documented {"items": [...]} envelope.
var ErrUnknownShape = errors.New("unexpected response shape")

// ErrMalformedBody is returned, in every mode, for a body that is not JSON
// at all, such as a proxy error page served with 200.
var ErrMalformedBody = errors.New("response is not valid JSON")

// Malformed wraps a JSON syntax failure with ErrMalformedBody.
func Malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedBody, err)
}

// ListKeys are the wrapper keys seen on list responses, in lookup order.
var ListKeys = []string{"items", "results", "cart", "data"}

// Unwrap finds the list inside a decoded JSON value: the value itself when it
// is an array, or the first ListKeys entry holding an array. A "cart" or
// "data" object that itself wraps a list is followed one level down.
func Unwrap(v any) ([]any, bool) {
	return unwrap(v, 2)
}

func unwrap(v any, depth int) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		for _, k := range ListKeys {
			switch inner := t[k].(type) {
			case []any:
				return inner, true
			case map[string]any:
				if depth > 1 {
					if list, ok := unwrap(inner, depth-1); ok {
						return list, true
					}
				}
			}
		}
	}
	return nil, false
}

// DecodeList decodes a list response into out (a pointer to a slice).
// Lenient mode sniffs the shape with Unwrap and degrades to an empty list;
// strict mode only accepts {"items": [...]}. A body that is not JSON leaves
// out empty and returns ErrMalformedBody in both modes.
func DecodeList(body []byte, strict bool, out any) error {
	if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
		var v any
		err := json.Unmarshal(body, &v)
		json.Unmarshal([]byte("[]"), out)
		return Malformed(err)
	}
	if strict {
		var env struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(body, &env); err != nil || len(env.Items) == 0 || env.Items[0] != '[' {
			return fmt.Errorf("%w: want {\"items\": [...]}", ErrUnknownShape)
		}
		return json.Unmarshal(env.Items, out)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return json.Unmarshal([]byte("[]"), out)
	}
	list, ok := Unwrap(v)
	if !ok {
		list = []any{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		// mixed element types; keep the contract of never failing
		return json.Unmarshal([]byte("[]"), out)
	}
	return nil
}
