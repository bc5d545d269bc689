package store

import (
	"strings"

	"MQueryAPI/internal/qparser"

	"github.com/Masterminds/squirrel"
)

// Table holds every collection: documents(id uuid, collection text, doc jsonb).
const Table = "documents"

// BuildFindQuery builds the SELECT for a compiled query. Populate is not
// joined; relationship expansion is left to the caller.
func BuildFindQuery(collection string, q *qparser.Query) (squirrel.SelectBuilder, error) {
	sb := squirrel.SelectBuilder{}.PlaceholderFormat(squirrel.Dollar)
	sb = sb.From(Table)

	sb = sb.Column("id::text AS id")
	proj, projArgs := projection(q.Select)
	sb = sb.Column(squirrel.Expr(proj+" AS doc", projArgs...))

	sb, err := applyWhere(sb, collection, q.Filter)
	if err != nil {
		return sb, err
	}

	for _, f := range q.Sort {
		dir := "ASC"
		if f.Value < 0 {
			dir = "DESC"
		}
		if f.Field == "_id" {
			sb = sb.OrderBy("id " + dir)
			continue
		}
		sb = sb.OrderByClause("doc #> ? "+dir, strings.Split(f.Field, "."))
	}

	if q.Limit != nil {
		if n, ok := q.Limit.Uint64(); ok && n > 0 {
			sb = sb.Limit(n)
		}
	}
	if q.Skip != nil {
		if n, ok := q.Skip.Uint64(); ok && n > 0 {
			sb = sb.Offset(n)
		}
	}
	return sb, nil
}

// BuildCountQuery builds the COUNT for a compiled query; directives other than the filter are ignored.
func BuildCountQuery(collection string, q *qparser.Query) (squirrel.SelectBuilder, error) {
	sb := squirrel.SelectBuilder{}.PlaceholderFormat(squirrel.Dollar)
	sb = sb.From(Table).Column("COUNT(*)")
	return applyWhere(sb, collection, q.Filter)
}

func applyWhere(sb squirrel.SelectBuilder, collection string, filter map[string]any) (squirrel.SelectBuilder, error) {
	sb = sb.Where(squirrel.Eq{"collection": collection})
	where, err := BuildWhereClause(filter)
	if err != nil {
		return sb, err
	}
	if where != nil {
		sb = sb.Where(where)
	}
	return sb, nil
}

// projection returns the doc column expression for a select directive.
// Inclusions build a new object keyed by field name, exclusions delete paths.
func projection(sel qparser.Fields) (string, []any) {
	var include, exclude []string
	for _, f := range sel {
		if f.Field == "_id" {
			continue
		}
		if f.Value == 1 {
			include = append(include, f.Field)
		} else {
			exclude = append(exclude, f.Field)
		}
	}

	if len(include) > 0 {
		parts := make([]string, 0, len(include))
		args := make([]any, 0, 2*len(include))
		for _, field := range include {
			parts = append(parts, "?::text, doc #> ?")
			args = append(args, field, strings.Split(field, "."))
		}
		return "jsonb_build_object(" + strings.Join(parts, ", ") + ")", args
	}

	expr := "doc"
	args := make([]any, 0, len(exclude))
	for _, field := range exclude {
		expr += " #- ?"
		args = append(args, strings.Split(field, "."))
	}
	return expr, args
}

// includeID reports whether rows keep their _id under sel.
func includeID(sel qparser.Fields) bool {
	v, ok := sel.Get("_id")
	return !ok || v != 0
}
