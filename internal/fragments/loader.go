// Package fragments loads named, server-controlled query fragments that
// requests reference with ${name} placeholders.
package fragments

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"MQueryAPI/internal/logger"

	"gopkg.in/yaml.v3"
)

// Set maps fragment names to JSON-like values (maps, lists, scalars).
type Set map[string]any

// LoadDir reads every *.yml file in dir. Each file is a mapping of fragment
// names to values; a name defined twice is an error. A missing dir yields an empty set.
func LoadDir(dir string) (Set, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	set := Set{}
	origin := map[string]string{}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		loaded, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for name, v := range loaded {
			if prev, ok := origin[name]; ok {
				return nil, fmt.Errorf("fragment %s defined in %s and %s", name, prev, path)
			}
			origin[name] = path
			set[name] = v
		}
		logger.Info("fragments_loaded", map[string]any{
			"file":  filepath.Base(path),
			"count": len(loaded),
		})
	}
	return set, nil
}

// Parse validates one fragments document on its yaml.Node form, then decodes it.
func Parse(data []byte) (Set, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if len(root.Content) == 0 {
		return Set{}, nil
	}
	if err := validateDocument(root.Content[0]); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	var raw map[string]any
	if err := root.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	set := make(Set, len(raw))
	for name, v := range raw {
		set[name] = normalize(v)
	}
	return set, nil
}

// Context returns a template context holding the fragments plus extra
// request-scoped values. Extra values win on name collision.
func (s Set) Context(extra map[string]any) map[string]any {
	ctx := make(map[string]any, len(s)+len(extra))
	for k, v := range s {
		ctx[k] = v
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx
}

// Names returns the fragment names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// normalize converts decoded YAML into the shapes JSON decoding produces:
// integers become float64 and nested maps are map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}
