package qparser

import (
	"regexp"
	"sort"
	"time"
)

var placeholderRe = regexp.MustCompile(`^\$\{([a-zA-Z_$][0-9a-zA-Z_$]*)\}$`)

// Expand rewrites `${name}` placeholders in a JSON-like tree using ctx:
//
//   - a placeholder key whose value carries $exists is replaced by the
//     entries of the referenced map;
//   - a placeholder key referencing a string is renamed to that string;
//   - a placeholder string value or list element is replaced by the
//     referenced value.
//
// Regex and date values are leaves. The input and ctx are never modified;
// referenced values are copied into the result. A nil ctx returns node as is.
func Expand(node any, ctx map[string]any) (any, error) {
	if ctx == nil {
		return node, nil
	}
	return expandNode(node, ctx)
}

func expandNode(node any, ctx map[string]any) (any, error) {
	switch n := node.(type) {
	case *Regex, time.Time:
		return n, nil
	case map[string]any:
		return expandMap(n, ctx)
	case []any:
		out := make([]any, 0, len(n))
		for _, item := range n {
			v, err := expandNode(item, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case string:
		if name, ok := placeholderName(n); ok {
			return resolve(ctx, name)
		}
		return n, nil
	default:
		return n, nil
	}
}

func expandMap(m map[string]any, ctx map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, key := range keys {
		val := m[key]
		if name, ok := placeholderName(key); ok {
			ref, err := resolve(ctx, name)
			if err != nil {
				return nil, err
			}
			fragment, isMap := ref.(map[string]any)
			s, isString := ref.(string)
			switch {
			case isMap && hasExistsMarker(val):
				mergeInto(out, fragment)
				continue
			case isString:
				key = s
			default:
				return nil, newError(KindInvalidTemplateShape, nil, "invalid query string at %s", key)
			}
		}

		v, err := expandNode(val, ctx)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func placeholderName(s string) (string, bool) {
	m := placeholderRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func resolve(ctx map[string]any, name string) (any, error) {
	v, ok := ctx[name]
	if !ok {
		return nil, newError(KindUnresolvedTemplate, nil, "no predefined query found for the provided reference [%s]", name)
	}
	return deepCopy(v), nil
}

func hasExistsMarker(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[string(OpExists)]
	return ok
}

// mergeInto deep-merges src into dst; nested maps merge, anything else overwrites.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeInto(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}

// Expand applies placeholder expansion to a compiled query: the filter tree,
// sort and select field names, and populate paths and selects.
func (p *Parser) Expand(q *Query, ctx map[string]any) (*Query, error) {
	if ctx == nil || q == nil {
		return q, nil
	}
	out := *q

	f, err := expandMap(q.Filter, ctx)
	if err != nil {
		return nil, err
	}
	out.Filter = f

	if out.Sort, err = expandFields(q.Sort, ctx); err != nil {
		return nil, err
	}
	if out.Select, err = expandFields(q.Select, ctx); err != nil {
		return nil, err
	}
	if out.Populate, err = expandPopulate(q.Populate, ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

func expandFields(fields Fields, ctx map[string]any) (Fields, error) {
	if fields == nil {
		return nil, nil
	}
	out := make(Fields, 0, len(fields))
	for _, f := range fields {
		name, err := expandString(f.Field, ctx)
		if err != nil {
			return nil, err
		}
		out.set(name, f.Value)
	}
	return out, nil
}

func expandPopulate(list []*Populate, ctx map[string]any) ([]*Populate, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]*Populate, 0, len(list))
	for _, p := range list {
		path, err := expandString(p.Path, ctx)
		if err != nil {
			return nil, err
		}
		sel, err := expandString(p.Select, ctx)
		if err != nil {
			return nil, err
		}
		children, err := expandPopulate(p.Populate, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, &Populate{Path: path, Select: sel, Populate: children})
	}
	return out, nil
}

// expandString substitutes a whole-string placeholder that must resolve to a string.
func expandString(s string, ctx map[string]any) (string, error) {
	name, ok := placeholderName(s)
	if !ok {
		return s, nil
	}
	ref, err := resolve(ctx, name)
	if err != nil {
		return "", err
	}
	str, ok := ref.(string)
	if !ok {
		return "", newError(KindInvalidTemplateShape, nil, "invalid query string at %s", s)
	}
	return str, nil
}
