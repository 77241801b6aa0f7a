package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Columns is an insertion-ordered mapping of column name to string value.
// Order is significant: it defines display and export order. The zero value
// is ready to use.
type Columns struct {
	keys   []string
	values map[string]string
}

// NewColumns builds Columns from alternating name/value pairs.
// A trailing name without a value gets the empty string.
func NewColumns(pairs ...string) Columns {
	var c Columns
	for i := 0; i < len(pairs); i += 2 {
		v := ""
		if i+1 < len(pairs) {
			v = pairs[i+1]
		}
		c.Set(pairs[i], v)
	}
	return c
}

// Set assigns value to name. A new name is appended after existing ones;
// an existing name keeps its position.
func (c *Columns) Set(name, value string) {
	if c.values == nil {
		c.values = make(map[string]string)
	}
	if _, ok := c.values[name]; !ok {
		c.keys = append(c.keys, name)
	}
	c.values[name] = value
}

// Get returns the value for name and whether the column exists.
func (c Columns) Get(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Value returns the value for name, or the empty string.
func (c Columns) Value(name string) string {
	return c.values[name]
}

// Has reports whether name is present.
func (c Columns) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// Delete removes name. Deleting a missing name is a no-op.
func (c *Columns) Delete(name string) {
	if _, ok := c.values[name]; !ok {
		return
	}
	delete(c.values, name)
	for i, k := range c.keys {
		if k == name {
			c.keys = append(c.keys[:i:i], c.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the column names in order.
func (c Columns) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of columns.
func (c Columns) Len() int {
	return len(c.keys)
}

// Range calls fn for each column in order until fn returns false.
func (c Columns) Range(fn func(name, value string) bool) {
	for _, k := range c.keys {
		if !fn(k, c.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (c Columns) Clone() Columns {
	out := Columns{
		keys:   make([]string, len(c.keys)),
		values: make(map[string]string, len(c.values)),
	}
	copy(out.keys, c.keys)
	for k, v := range c.values {
		out.values[k] = v
	}
	return out
}

// Equal reports whether both have the same names, order and values.
func (c Columns) Equal(o Columns) bool {
	if len(c.keys) != len(o.keys) {
		return false
	}
	for i, k := range c.keys {
		if o.keys[i] != k || o.values[k] != c.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the columns as a JSON object with keys in order.
func (c Columns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(c.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order. Non-string
// scalars are stringified and null becomes the empty string, since callers
// always expect every key to carry a string.
func (c *Columns) UnmarshalJSON(data []byte) error {
	*c = Columns{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("columns: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("columns: expected key, got %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("columns: value of %q: %w", key, err)
		}
		c.Set(key, stringify(raw))
	}
	_, err = dec.Token()
	return err
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
