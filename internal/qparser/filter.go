package qparser

import (
	"encoding/json"
	"strings"
	"time"
)

// clause is one raw parameter split into its structural parts.
type clause struct {
	negated bool
	field   string
	token   string
	value   string
}

// decompose splits `key=value` (or a bare `key`) into an optional `!`
// prefix, the field name, one of the six comparison tokens and the raw value.
// Punctuation inside the key is how operators arrive: `age>=18` reaches us
// as key `age>` and value `18`.
func decompose(key, value string) (clause, error) {
	s := key
	if value != "" {
		s = key + "=" + value
	}

	var c clause
	if strings.HasPrefix(s, "!") {
		c.negated = true
		s = s[1:]
	}

	i := strings.IndexAny(s, "<>!=")
	if i < 0 {
		c.field = s
	} else {
		c.field = s[:i]
	}
	if c.field == "" {
		return c, newError(KindStructuralParse, nil, "missing field name in [%s]", s)
	}
	if i < 0 {
		return c, nil
	}

	rest := s[i:]
	for _, tok := range operatorTokens {
		if strings.HasPrefix(rest, tok) {
			c.token = tok
			c.value = rest[len(tok):]
			return c, nil
		}
	}
	return c, newError(KindStructuralParse, nil, "unrecognized operator in [%s]", s)
}

// CompileFilter builds the filter expression. filter is an optional literal:
// a JSON string or an already structured map. Raw parameters are applied on
// top of it, so they win on key collision.
func (p *Parser) CompileFilter(filter any, params Params) (map[string]any, error) {
	result, err := p.baseFilter(filter)
	if err != nil {
		return nil, err
	}

	for _, key := range params.Keys() {
		c, err := decompose(key, params.Get(key))
		if err != nil {
			return nil, err
		}
		if p.Blacklisted(c.field) {
			continue
		}
		op, err := ResolveOperator(c.token)
		if err != nil {
			return nil, err
		}

		if op == OpExists {
			operatorMap(result, c.field)[string(OpExists)] = !c.negated
			continue
		}

		value, err := p.ParseValue(c.value, c.field)
		if err != nil {
			return nil, err
		}

		switch {
		case isList(value):
			if op == OpNe {
				operatorMap(result, c.field)[string(OpNin)] = value
			} else {
				operatorMap(result, c.field)[string(OpIn)] = value
			}
		case op == OpEq:
			result[c.field] = value
		case op == OpNe && isObjectValue(value):
			operatorMap(result, c.field)[string(OpNot)] = value
		default:
			operatorMap(result, c.field)[string(op)] = value
		}
	}
	return result, nil
}

func (p *Parser) baseFilter(filter any) (map[string]any, error) {
	var base map[string]any
	switch f := filter.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		if strings.TrimSpace(f) == "" {
			return map[string]any{}, nil
		}
		if err := json.Unmarshal([]byte(f), &base); err != nil {
			return nil, newError(KindMalformedLiteral, err, "invalid JSON string: %s", f)
		}
		if base == nil {
			return nil, newError(KindMalformedLiteral, nil, "invalid JSON string: %s", f)
		}
	case map[string]any:
		base, _ = deepCopy(f).(map[string]any)
	default:
		return nil, newError(KindMalformedLiteral, nil, "unsupported filter literal of type %T", filter)
	}
	p.stripBlacklisted(base)
	return base, nil
}

// stripBlacklisted removes blacklisted keys at every depth of a literal.
func (p *Parser) stripBlacklisted(node any) {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if p.Blacklisted(k) {
				delete(n, k)
				continue
			}
			p.stripBlacklisted(v)
		}
	case []any:
		for _, v := range n {
			p.stripBlacklisted(v)
		}
	}
}

// operatorMap returns the operator map of field, replacing a direct value.
func operatorMap(filter map[string]any, field string) map[string]any {
	if m, ok := filter[field].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	filter[field] = m
	return m
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

// isObjectValue reports values that need $not rather than $ne. null counts
// as an object here, scalars keep $ne.
func isObjectValue(v any) bool {
	switch v.(type) {
	case nil, *Regex, time.Time, map[string]any:
		return true
	}
	return false
}
