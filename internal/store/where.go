package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"MQueryAPI/internal/qparser"

	"github.com/Masterminds/squirrel"
)

// ErrUnsupportedOperator is returned for filter operators the adapter cannot translate.
var ErrUnsupportedOperator = errors.New("unsupported filter operator")

// ErrInvalidFilter is returned when an operator is given an operand of the wrong shape.
var ErrInvalidFilter = errors.New("invalid filter")

// target is the SQL form of a filter field: a jsonb expression and its text form.
type target struct {
	json string
	text string
	args []any
}

func fieldTarget(field string) target {
	if field == "_id" {
		return target{json: "to_jsonb(id::text)", text: "id::text"}
	}
	return target{json: "doc #> ?", text: "doc #>> ?", args: []any{strings.Split(field, ".")}}
}

func (t target) expr(format string, extra ...any) squirrel.Sqlizer {
	args := make([]any, 0, len(t.args)+len(extra))
	args = append(args, t.args...)
	args = append(args, extra...)
	return squirrel.Expr(fmt.Sprintf(format, t.json), args...)
}

func (t target) textExpr(format string, extra ...any) squirrel.Sqlizer {
	args := make([]any, 0, len(t.args)+len(extra))
	args = append(args, t.args...)
	args = append(args, extra...)
	return squirrel.Expr(fmt.Sprintf(format, t.text), args...)
}

// notExpr negates a condition; a NULL condition counts as false before negation.
type notExpr struct {
	cond squirrel.Sqlizer
}

func (n notExpr) ToSql() (string, []any, error) {
	sql, args, err := n.cond.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT COALESCE(" + sql + ", false)", args, nil
}

var (
	alwaysFalse = squirrel.Expr("false")
	alwaysTrue  = squirrel.Expr("true")
)

var comparisons = map[string]string{
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

// BuildWhereClause translates a compiled filter into a condition on the
// documents table. Keys are processed in sorted order so equal filters
// produce equal SQL. An empty filter yields nil.
func BuildWhereClause(filter map[string]any) (squirrel.Sqlizer, error) {
	exprs := make(squirrel.And, 0, len(filter))
	for _, key := range sortedKeys(filter) {
		val := filter[key]

		var (
			cond squirrel.Sqlizer
			err  error
		)
		switch {
		case key == "$and" || key == "$or" || key == "$nor":
			cond, err = buildLogical(key, val)
		case strings.HasPrefix(key, "$"):
			err = fmt.Errorf("%w: %s", ErrUnsupportedOperator, key)
		default:
			cond, err = buildField(fieldTarget(key), val)
		}
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, cond)
	}

	switch len(exprs) {
	case 0:
		return nil, nil
	case 1:
		return exprs[0], nil
	}
	return exprs, nil
}

func buildLogical(op string, val any) (squirrel.Sqlizer, error) {
	items, ok := val.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: %s expects a non-empty list", ErrInvalidFilter, op)
	}
	parts := make([]squirrel.Sqlizer, 0, len(items))
	for _, item := range items {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a list of objects", ErrInvalidFilter, op)
		}
		cond, err := BuildWhereClause(sub)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			cond = alwaysTrue
		}
		parts = append(parts, cond)
	}

	switch op {
	case "$and":
		return squirrel.And(parts), nil
	case "$or":
		return squirrel.Or(parts), nil
	default:
		return notExpr{squirrel.Or(parts)}, nil
	}
}

func buildField(t target, val any) (squirrel.Sqlizer, error) {
	switch v := val.(type) {
	case *qparser.Regex:
		return regexCond(t, v.Pattern, v.CaseInsensitive()), nil
	case map[string]any:
		if isOperatorMap(v) {
			return buildOperators(t, v)
		}
	}
	return equal(t, val)
}

func buildOperators(t target, ops map[string]any) (squirrel.Sqlizer, error) {
	exprs := make(squirrel.And, 0, len(ops))
	for _, op := range sortedKeys(ops) {
		val := ops[op]

		var (
			cond squirrel.Sqlizer
			err  error
		)
		switch op {
		case "$eq":
			cond, err = equal(t, val)
		case "$ne":
			cond, err = equal(t, val)
			cond = notExpr{cond}
		case "$gt", "$gte", "$lt", "$lte":
			cond, err = compare(t, comparisons[op], val)
		case "$in":
			cond, err = in(t, val)
		case "$nin":
			cond, err = in(t, val)
			cond = notExpr{cond}
		case "$exists":
			if truthy(val) {
				cond = t.expr("%s IS NOT NULL")
			} else {
				cond = t.expr("%s IS NULL")
			}
		case "$not":
			cond, err = buildField(t, val)
			cond = notExpr{cond}
		case "$regex":
			cond, err = regexOperator(t, val, ops["$options"])
		case "$options":
			if _, ok := ops["$regex"]; !ok {
				return nil, fmt.Errorf("%w: $options requires $regex", ErrInvalidFilter)
			}
			continue
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, cond)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return exprs, nil
}

// equal matches a value. Scalars use containment so an array field matches
// when one of its elements is equal, as document stores do.
func equal(t target, val any) (squirrel.Sqlizer, error) {
	switch val.(type) {
	case nil:
		return squirrel.Or{t.expr("%s IS NULL"), t.expr("%s = 'null'::jsonb")}, nil
	case *qparser.Regex:
		return nil, fmt.Errorf("%w: regex as equality operand", ErrUnsupportedOperator)
	}
	arg, err := jsonArg(val)
	if err != nil {
		return nil, err
	}
	switch val.(type) {
	case map[string]any, []any:
		return t.expr("%s = ?::jsonb", arg), nil
	default:
		return t.expr("%s @> ?::jsonb", arg), nil
	}
}

// compare only matches values of the operand's JSON type.
func compare(t target, op string, val any) (squirrel.Sqlizer, error) {
	typ := jsonType(val)
	if typ == "" {
		return nil, fmt.Errorf("%w: %s on %T", ErrUnsupportedOperator, op, val)
	}
	arg, err := jsonArg(val)
	if err != nil {
		return nil, err
	}
	return squirrel.And{
		t.expr("jsonb_typeof(%s) = '" + typ + "'"),
		t.expr("%s "+op+" ?::jsonb", arg),
	}, nil
}

func in(t target, val any) (squirrel.Sqlizer, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: $in/$nin expects a list, got %T", ErrInvalidFilter, val)
	}
	if len(items) == 0 {
		return alwaysFalse, nil
	}
	parts := make(squirrel.Or, 0, len(items))
	for _, item := range items {
		cond, err := buildField(t, item)
		if err != nil {
			return nil, err
		}
		parts = append(parts, cond)
	}
	return parts, nil
}

func regexOperator(t target, pattern, options any) (squirrel.Sqlizer, error) {
	if re, ok := pattern.(*qparser.Regex); ok {
		return regexCond(t, re.Pattern, re.CaseInsensitive()), nil
	}
	p, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("%w: $regex expects a string, got %T", ErrInvalidFilter, pattern)
	}
	opts, _ := options.(string)
	return regexCond(t, p, strings.Contains(opts, "i")), nil
}

func regexCond(t target, pattern string, caseInsensitive bool) squirrel.Sqlizer {
	op := "~"
	if caseInsensitive {
		op = "~*"
	}
	return t.textExpr("COALESCE(%s "+op+" ?, false)", pattern)
}

func isOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func jsonType(v any) string {
	switch v.(type) {
	case float64, float32, int, int64, int32, uint64, uint32:
		return "number"
	case string, time.Time:
		return "string"
	case bool:
		return "boolean"
	}
	return ""
}

func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode filter value: %w", err)
	}
	return string(b), nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	case float64:
		return b != 0
	case string:
		return b != ""
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
