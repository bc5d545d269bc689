package qparser

import (
	"net/url"
	"sort"
	"strings"
)

// maxParams caps the number of distinct keys read from one query string.
const maxParams = 1000

// Params are the raw key/value pairs of one parse call, in first-seen key
// order. A key with an empty value is a bare flag. Repeated keys are joined
// with commas, which makes them a list value.
type Params struct {
	keys   []string
	values map[string][]string
}

// Add appends value to key.
func (p *Params) Add(key, value string) {
	if p.values == nil {
		p.values = map[string][]string{}
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
}

// Keys returns keys in first-seen order.
func (p Params) Keys() []string { return p.keys }

// Len returns the number of distinct keys.
func (p Params) Len() int { return len(p.keys) }

// Has reports whether key is present, bare flags included.
func (p Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Get returns the value of key, repeated values joined by commas.
func (p Params) Get(key string) string {
	return strings.Join(p.values[key], ",")
}

// ParseQuery tokenizes `a=1&b&c>=2`. Each pair splits at its first `=`;
// keys and values are form-decoded, falling back to the raw text when the
// percent-encoding is broken.
func ParseQuery(query string) Params {
	var p Params
	query = strings.TrimPrefix(query, "?")
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		if !p.Has(key) && p.Len() >= maxParams {
			continue
		}
		p.Add(key, unescape(value))
	}
	return p
}

// FromValues converts decoded url.Values; keys are taken in sorted order.
func FromValues(v url.Values) Params {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var p Params
	for _, k := range keys {
		vals := v[k]
		if len(vals) == 0 {
			p.Add(k, "")
		}
		for _, val := range vals {
			p.Add(k, val)
		}
	}
	return p
}

// FromMap converts a flat mapping; keys are taken in sorted order.
func FromMap(m map[string]string) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var p Params
	for _, k := range keys {
		p.Add(k, m[k])
	}
	return p
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return strings.ReplaceAll(s, "+", " ")
}
