// Package qparser compiles URL query strings into document-store query
// descriptors: a filter expression plus sort, select, skip, limit and
// populate directives.
//
//	age>18&age<65&status=active,pending&sort=-createdAt&populate=author.name
//
// compiles to
//
//	filter:   {age: {$gt: 18, $lt: 65}, status: {$in: [active, pending]}}
//	sort:     {createdAt: -1}
//	populate: [{path: author, select: name}]
//
// A Parser is immutable after New and safe for concurrent use.
package qparser

// Parser owns the configuration and drives the directive compilers.
type Parser struct {
	keys        directiveKeys
	blacklist   map[string]struct{}
	casters     map[string]Caster
	castParams  map[string]string
	dateFormats []string
}

// New builds a Parser. The blacklist is extended with every directive key
// name so directives never leak into the filter, renamed ones included.
func New(opts Options) *Parser {
	p := &Parser{
		keys:       opts.keys(),
		blacklist:  make(map[string]struct{}, len(opts.Blacklist)+6),
		casters:    make(map[string]Caster, len(opts.Casters)+2),
		castParams: make(map[string]string, len(opts.CastParams)),
	}

	p.dateFormats = append([]string(nil), opts.DateFormat...)
	if len(p.dateFormats) == 0 {
		p.dateFormats = []string{ISO8601}
	}

	p.casters["string"] = stringCaster
	p.casters["date"] = DateCaster(p.dateFormats)
	for name, c := range opts.Casters {
		if c != nil {
			p.casters[name] = c
		}
	}
	for field, caster := range opts.CastParams {
		p.castParams[field] = caster
	}

	for _, field := range opts.Blacklist {
		p.blacklist[field] = struct{}{}
	}
	for _, key := range p.keys.all() {
		p.blacklist[key] = struct{}{}
	}
	return p
}

// Blacklisted reports whether field is excluded from compiled filters.
func (p *Parser) Blacklisted(field string) bool {
	_, ok := p.blacklist[field]
	return ok
}

// Parse tokenizes a raw query string, compiles it and expands placeholders
// against ctx. A nil ctx skips expansion.
func (p *Parser) Parse(query string, ctx map[string]any) (*Query, error) {
	return p.ParseParams(ParseQuery(query), ctx)
}

// ParseParams is Parse for already tokenized parameters.
func (p *Parser) ParseParams(params Params, ctx map[string]any) (*Query, error) {
	q, err := p.Compile(params)
	if err != nil {
		return nil, err
	}
	return p.Expand(q, ctx)
}

// Compile builds the descriptor without placeholder expansion. The result
// depends only on params, so it can be cached and expanded per request.
func (p *Parser) Compile(params Params) (*Query, error) {
	return p.CompileWith(params, nil)
}

// CompileWith is Compile with a structured filter that replaces the filter
// parameter when non-nil.
func (p *Parser) CompileWith(params Params, filter map[string]any) (*Query, error) {
	q := &Query{}

	if v := params.Get(p.keys.sel); v != "" {
		q.Select = p.compileSelect(v)
	}
	if v := params.Get(p.keys.populate); v != "" {
		q.Populate = compilePopulate(v)
	}
	if v := params.Get(p.keys.sort); v != "" {
		q.Sort = compileSort(v)
	}
	if v := params.Get(p.keys.skip); v != "" {
		c := compileCount(v)
		q.Skip = &c
	}
	if v := params.Get(p.keys.limit); v != "" {
		c := compileCount(v)
		q.Limit = &c
	}

	var literal any
	if filter != nil {
		literal = filter
	} else if v := params.Get(p.keys.filter); v != "" {
		literal = v
	}
	f, err := p.CompileFilter(literal, params)
	if err != nil {
		return nil, err
	}
	q.Filter = f
	return q, nil
}
