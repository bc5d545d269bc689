package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"MQueryAPI/internal/qparser"

	"github.com/google/uuid"
)

// transforms are the named casters a parser config may bind. The date
// transform is built per config since it depends on the date formats.
var transforms = map[string]qparser.Caster{
	"string": func(v string) (any, error) { return v, nil },
	"int": func(v string) (any, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: [%s]", v)
		}
		return n, nil
	},
	"float": func(v string) (any, error) {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: [%s]", v)
		}
		return f, nil
	},
	"bool": func(v string) (any, error) {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid boolean: [%s]", v)
		}
		return b, nil
	},
	"lower": func(v string) (any, error) { return strings.ToLower(v), nil },
	"upper": func(v string) (any, error) { return strings.ToUpper(v), nil },
	"trim":  func(v string) (any, error) { return strings.TrimSpace(v), nil },
	"uuid": func(v string) (any, error) {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid uuid: [%s]", v)
		}
		return id.String(), nil
	},
}

func transformFor(name string, dateFormats []string) (qparser.Caster, bool) {
	if name == "date" {
		formats := dateFormats
		if len(formats) == 0 {
			formats = []string{qparser.ISO8601}
		}
		return qparser.DateCaster(formats), true
	}
	c, ok := transforms[name]
	return c, ok
}

// TransformNames lists the transforms a parser config may reference.
func TransformNames() []string {
	names := []string{"date"}
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
