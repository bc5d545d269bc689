package qparser

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

// Query is the compiled query descriptor handed to a document store.
// Created fresh per parse call and never mutated afterwards.
type Query struct {
	Filter   map[string]any `json:"filter"`
	Sort     Fields         `json:"sort,omitempty"`
	Limit    *Count         `json:"limit,omitempty"`
	Skip     *Count         `json:"skip,omitempty"`
	Select   Fields         `json:"select,omitempty"`
	Populate []*Populate    `json:"populate,omitempty"`
}

// FieldOrder is one entry of a sort or select directive.
type FieldOrder struct {
	Field string
	Value int
}

// Fields keeps sort/select entries in the order they were given. Sort order
// is significant for the store, so a plain map would not do.
type Fields []FieldOrder

// Get returns the value stored for field.
func (f Fields) Get(field string) (int, bool) {
	for _, fo := range f {
		if fo.Field == field {
			return fo.Value, true
		}
	}
	return 0, false
}

// Map returns the entries as a plain map.
func (f Fields) Map() map[string]int {
	out := make(map[string]int, len(f))
	for _, fo := range f {
		out[fo.Field] = fo.Value
	}
	return out
}

// set assigns value to field; a field that is already present keeps its position.
func (f *Fields) set(field string, value int) {
	for i := range *f {
		if (*f)[i].Field == field {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, FieldOrder{Field: field, Value: value})
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, fo := range f {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(fo.Field)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, _ := json.Marshal(fo.Value)
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Populate is a relationship-expansion directive. Siblings never share a Path.
type Populate struct {
	Path     string
	Select   string
	Populate []*Populate
}

// MarshalJSON writes a single nested populate as an object and several as an array.
func (p *Populate) MarshalJSON() ([]byte, error) {
	out := struct {
		Path     string `json:"path"`
		Select   string `json:"select,omitempty"`
		Populate any    `json:"populate,omitempty"`
	}{Path: p.Path, Select: p.Select}
	switch len(p.Populate) {
	case 0:
	case 1:
		out.Populate = p.Populate[0]
	default:
		out.Populate = p.Populate
	}
	return json.Marshal(out)
}

// Count is a numeric skip or limit. A non-numeric raw value yields NaN.
type Count float64

// Valid reports whether the count is a finite number.
func (c Count) Valid() bool {
	f := float64(c)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Uint64 returns the count clamped to a non-negative integer, and false when it is not usable.
func (c Count) Uint64() (uint64, bool) {
	if !c.Valid() || c < 0 {
		return 0, false
	}
	return uint64(c), true
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(c))
}

// Regex is a compiled `/body/flags` literal. Only the case-insensitive flag is supported.
type Regex struct {
	Pattern string
	Flags   string
	re      *regexp.Regexp
}

// NewRegex compiles pattern with the given flags.
func NewRegex(pattern, flags string) (*Regex, error) {
	expr := pattern
	if strings.Contains(flags, "i") {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Regex{Pattern: pattern, Flags: flags, re: re}, nil
}

func (r *Regex) MatchString(s string) bool { return r.re.MatchString(s) }

// CaseInsensitive reports whether the `i` flag is set.
func (r *Regex) CaseInsensitive() bool { return strings.Contains(r.Flags, "i") }

func (r *Regex) String() string { return "/" + r.Pattern + "/" + r.Flags }

func (r *Regex) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$regex": r.Pattern, "$options": r.Flags})
}
