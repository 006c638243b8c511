package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an identifier the API sends either as a JSON string or a number.
// It always marshals back as a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", b)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }
