package qparser

// ISO8601 stands for the ISO-8601 family of layouts in Options.DateFormat.
const ISO8601 = "ISO8601"

// Caster turns a raw string into a typed value.
type Caster func(raw string) (any, error)

// Options is the constructor-time configuration of a Parser.
type Options struct {
	// Directive key renames. Empty means the default name.
	FilterKey   string
	SelectKey   string
	PopulateKey string
	SortKey     string
	SkipKey     string
	LimitKey    string

	// Blacklist lists field paths that never reach the compiled filter.
	Blacklist []string

	// Casters are merged over the built-ins `string` and `date`; a custom
	// caster with a built-in name replaces it.
	Casters map[string]Caster

	// CastParams binds a field name to a caster name.
	CastParams map[string]string

	// DateFormat lists accepted date layouts (Go reference layouts or
	// ISO8601), tried in order. Defaults to ISO8601.
	DateFormat []string
}

type directiveKeys struct {
	filter, sel, populate, sort, skip, limit string
}

func (o Options) keys() directiveKeys {
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return directiveKeys{
		filter:   pick(o.FilterKey, "filter"),
		sel:      pick(o.SelectKey, "select"),
		populate: pick(o.PopulateKey, "populate"),
		sort:     pick(o.SortKey, "sort"),
		skip:     pick(o.SkipKey, "skip"),
		limit:    pick(o.LimitKey, "limit"),
	}
}

func (k directiveKeys) all() []string {
	return []string{k.sel, k.populate, k.sort, k.skip, k.limit, k.filter}
}
