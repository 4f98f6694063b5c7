package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a request identifier: a string, an integer or null. The zero value
// is the null ID, which only appears in responses to requests whose ID could
// not be determined.
type ID struct {
	value any // string, int64 or nil
}

// NewStringID creates a string request identifier.
func NewStringID(s string) ID {
	return ID{value: s}
}

// NewIntID creates an integer request identifier.
func NewIntID(n int64) ID {
	return ID{value: n}
}

// IsNull reports whether the ID is the JSON null identifier.
func (id ID) IsNull() bool {
	return id.value == nil
}

// String returns a canonical text form, usable as a map key. String and
// integer identifiers cannot collide because string forms are quoted.
func (id ID) String() string {
	switch v := id.value.(type) {
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return "null"
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		id.value = nil
	case string:
		id.value = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return fmt.Errorf("message id must be an integer, a string or null, got %s", v)
		}
		id.value = n
	default:
		return fmt.Errorf("message id must be an integer, a string or null")
	}
	return nil
}
