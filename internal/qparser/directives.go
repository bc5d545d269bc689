package qparser

import (
	"math"
	"strings"
)

// signedFields parses `+a,-b,c` into ordered field/value pairs.
func signedFields(raw string, plus, minus int) Fields {
	var out Fields
	for _, item := range strings.Split(raw, ",") {
		value := plus
		switch {
		case strings.HasPrefix(item, "-"):
			value = minus
			item = item[1:]
		case strings.HasPrefix(item, "+"):
			item = item[1:]
		}
		name := strings.TrimSpace(item)
		if name == "" {
			continue
		}
		out.set(name, value)
	}
	return out
}

func compileSort(raw string) Fields {
	return signedFields(raw, 1, -1)
}

// compileSelect builds a projection. A projection cannot mix inclusion and
// exclusion except for _id, so mixed input keeps only the exclusions.
func (p *Parser) compileSelect(raw string) Fields {
	fields := signedFields(raw, 1, 0)

	seen := map[int]struct{}{}
	for _, f := range fields {
		if f.Field != "_id" {
			seen[f.Value] = struct{}{}
		}
	}
	if len(seen) <= 1 {
		return fields
	}

	kept := fields[:0]
	for _, f := range fields {
		if f.Value != 1 {
			kept = append(kept, f)
		}
	}
	return kept
}

func compileCount(raw string) Count {
	n, ok := parseNumber(raw)
	if !ok {
		return Count(math.NaN())
	}
	return Count(n)
}
