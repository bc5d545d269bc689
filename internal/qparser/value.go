package qparser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	casterCallRe   = regexp.MustCompile(`^([a-zA-Z_$][0-9a-zA-Z_$]*)\((.*)\)$`)
	regexLiteralRe = regexp.MustCompile(`^/(.*)/(i?)$`)
	zeroPaddedRe   = regexp.MustCompile(`^0[0-9]+`)
	decimalRe      = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// ISO-8601 layouts tried for the ISO8601 token. time.Parse accepts a
// fractional second after the seconds field even when the layout omits it.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15",
	"2006-01-02",
	"2006-01",
	"20060102T150405Z0700",
	"20060102",
}

// ParseValue infers the type of raw. The first matching rule wins:
// explicit caster call, caster bound to fieldKey, comma list, regex, boolean,
// null, number (zero-padded integers excluded), date, raw string.
func (p *Parser) ParseValue(raw, fieldKey string) (any, error) {
	if m := casterCallRe.FindStringSubmatch(raw); m != nil {
		if c, ok := p.casters[m[1]]; ok {
			return applyCaster(c, m[1], m[2])
		}
	}

	if fieldKey != "" {
		if name, ok := p.castParams[fieldKey]; ok {
			if c, ok := p.casters[name]; ok {
				return applyCaster(c, name, raw)
			}
		}
	}

	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		list := make([]any, 0, len(parts))
		for _, part := range parts {
			v, err := p.ParseValue(part, fieldKey)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	}

	if m := regexLiteralRe.FindStringSubmatch(raw); m != nil {
		if re, err := NewRegex(m[1], m[2]); err == nil {
			return re, nil
		}
	}

	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}

	if raw != "" && !zeroPaddedRe.MatchString(raw) {
		if n, ok := parseNumber(raw); ok {
			return n, nil
		}
	}

	if t, ok := parseDate(raw, p.dateFormats); ok {
		return t, nil
	}

	return raw, nil
}

func applyCaster(c Caster, name, raw string) (any, error) {
	v, err := c(raw)
	if err == nil {
		return v, nil
	}
	if _, ok := err.(*Error); ok {
		return nil, err
	}
	return nil, newError(KindInvalidCast, err, "caster %s failed for [%s]", name, raw)
}

func stringCaster(raw string) (any, error) { return raw, nil }

// DateCaster returns the built-in `date` caster for the given layouts.
func DateCaster(formats []string) Caster {
	return func(raw string) (any, error) {
		if t, ok := parseDate(raw, formats); ok {
			return t, nil
		}
		return nil, newError(KindInvalidDateCast, nil, "invalid date string: [%s]", raw)
	}
}

func parseDate(raw string, formats []string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, format := range formats {
		layouts := []string{format}
		if format == ISO8601 || format == "" {
			layouts = isoLayouts
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// parseNumber follows the string-to-number conversion of query string
// producers: surrounding whitespace is ignored, blank is zero, and 0x/0o/0b
// prefixes are integers. Infinity is not a number here since JSON cannot carry it.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, true
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	if !decimalRe.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
