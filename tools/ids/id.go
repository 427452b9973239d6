package ids

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// ID is a Snowflake-style identifier. It is marshalled to JSON as a decimal string
// so browsers do not lose precision above 2^53.
type ID int64

func Parse(s string) (ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ids: parse %q: %w", s, err)
	}
	return ID(v), nil
}

func (id ID) Int64() int64 { return int64(id) }

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Time is the creation instant encoded in the ID, assuming the default Epoch.
func (id ID) Time() time.Time {
	return Epoch.Add(time.Duration(int64(id)>>timestampShift) * time.Millisecond)
}

func (id ID) Instance() int64 {
	return (int64(id) >> instanceShift) & MaxInstance
}

func (id ID) Sequence() int64 {
	return int64(id) & MaxSequence
}

func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

// UnmarshalJSON accepts both "123" and 123.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("ids: invalid json id %s: %w", s, err)
		}
		s = unq
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
