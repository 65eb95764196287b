package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Flex is a JSON scalar that upstream may send as a string, a number, a bool
// or null. It always decodes to its string form; null decodes to "".
type Flex string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Flex(strings.TrimSpace(s))
	case '{', '[':
		// Objects and arrays are not scalars; keep nothing rather than fail the record.
		*f = ""
	default:
		*f = Flex(string(data))
	}
	return nil
}

// String returns the raw string form.
func (f Flex) String() string { return string(f) }

// Number parses the value with Number.
func (f Flex) Number() *float64 { return Number(string(f)) }

// Int returns the value as an integer, or 0 when it is not one.
func (f Flex) Int() int {
	n, err := strconv.Atoi(string(f))
	if err != nil {
		return 0
	}
	return n
}
