package qparser

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, p *Parser, query string, ctx map[string]any) *Query {
	t.Helper()
	q, err := p.Parse(query, ctx)
	if err != nil {
		t.Fatalf("Parse(%q): %v", query, err)
	}
	return q
}

func TestFilterGeneralQuery(t *testing.T) {
	p := New(Options{})
	q := mustParse(t, p, "date=2016-01-01&boolean=true&integer=10&regexp=/foobar/i&null=null", nil)

	if _, ok := q.Filter["date"].(time.Time); !ok {
		t.Fatalf("date: expected time.Time, got %T", q.Filter["date"])
	}
	if q.Filter["boolean"] != true {
		t.Fatalf("boolean: %#v", q.Filter["boolean"])
	}
	if q.Filter["integer"] != float64(10) {
		t.Fatalf("integer: %#v", q.Filter["integer"])
	}
	if _, ok := q.Filter["regexp"].(*Regex); !ok {
		t.Fatalf("regexp: expected *Regex, got %T", q.Filter["regexp"])
	}
	if v, ok := q.Filter["null"]; !ok || v != nil {
		t.Fatalf("null: %#v (present=%v)", v, ok)
	}
}

func TestFilterOperators(t *testing.T) {
	p := New(Options{})

	cases := []struct {
		query string
		want  map[string]any
	}{
		{"age>18&age<65", map[string]any{"age": map[string]any{"$gt": float64(18), "$lt": float64(65)}}},
		{"age>=18&age<=65", map[string]any{"age": map[string]any{"$gte": float64(18), "$lte": float64(65)}}},
		{"name", map[string]any{"name": map[string]any{"$exists": true}}},
		{"!name", map[string]any{"name": map[string]any{"$exists": false}}},
		{"name=", map[string]any{"name": map[string]any{"$exists": true}}},
		{"count!=5", map[string]any{"count": map[string]any{"$ne": float64(5)}}},
		{"status=a,b", map[string]any{"status": map[string]any{"$in": []any{"a", "b"}}}},
		{"status!=a,b", map[string]any{"status": map[string]any{"$nin": []any{"a", "b"}}}},
		{"status=a&status=b", map[string]any{"status": map[string]any{"$in": []any{"a", "b"}}}},
		{"zip=0042", map[string]any{"zip": "0042"}},
		{"age>5&age=7", map[string]any{"age": float64(7)}},
		{"deleted=null", map[string]any{"deleted": nil}},
		{"deleted!=null", map[string]any{"deleted": map[string]any{"$not": nil}}},
	}
	for _, tc := range cases {
		q := mustParse(t, p, tc.query, nil)
		if diff := cmp.Diff(tc.want, q.Filter); diff != "" {
			t.Fatalf("%s: filter mismatch (-want +got):\n%s", tc.query, diff)
		}
	}
}

func TestFilterOperatorReplacesEarlierEquality(t *testing.T) {
	p := New(Options{})
	q := mustParse(t, p, "age=7&age>5", nil)
	want := map[string]any{"age": map[string]any{"$gt": float64(5)}}
	if diff := cmp.Diff(want, q.Filter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterNotEqualObjectUsesNot(t *testing.T) {
	p := New(Options{})
	q := mustParse(t, p, "name!=/foo/i", nil)

	m, ok := q.Filter["name"].(map[string]any)
	if !ok {
		t.Fatalf("expected operator map, got %#v", q.Filter["name"])
	}
	if _, ok := m["$not"].(*Regex); !ok {
		t.Fatalf("expected $not regex, got %#v", m)
	}
	if _, ok := m["$ne"]; ok {
		t.Fatalf("$ne must not be set next to $not: %#v", m)
	}
}

func TestFilterJSONLiteral(t *testing.T) {
	p := New(Options{})
	q := mustParse(t, p, `filter={"$or":[{"key1":"value1"},{"key2":"value2"}]}&name=Google`, nil)

	or, ok := q.Filter["$or"].([]any)
	if !ok || len(or) != 2 {
		t.Fatalf("expected $or with two items, got %#v", q.Filter["$or"])
	}
	if q.Filter["name"] != "Google" {
		t.Fatalf("name: %#v", q.Filter["name"])
	}
	if _, ok := q.Filter["filter"]; ok {
		t.Fatalf("filter key leaked into filter: %#v", q.Filter)
	}
}

func TestFilterJSONLiteralIdempotent(t *testing.T) {
	p := New(Options{})
	literal := map[string]any{
		"age":  map[string]any{"$gt": float64(3)},
		"tags": map[string]any{"$in": []any{"a", "b"}},
		"name": "x",
	}
	got, err := p.CompileFilter(literal, Params{})
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if diff := cmp.Diff(literal, got); diff != "" {
		t.Fatalf("literal changed (-want +got):\n%s", diff)
	}

	got, err = p.CompileFilter(`{"age":{"$gt":3},"tags":{"$in":["a","b"]},"name":"x"}`, Params{})
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if diff := cmp.Diff(literal, got); diff != "" {
		t.Fatalf("JSON literal changed (-want +got):\n%s", diff)
	}
}

func TestFilterStructuredLiteralNotMutated(t *testing.T) {
	p := New(Options{})
	literal := map[string]any{"age": map[string]any{"$gt": float64(3)}}
	params := ParseQuery("age<10")

	if _, err := p.CompileFilter(literal, params); err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if _, ok := literal["age"].(map[string]any)["$lt"]; ok {
		t.Fatalf("caller literal was mutated: %#v", literal)
	}
}

func TestFilterMalformedLiteral(t *testing.T) {
	p := New(Options{})
	for _, query := range []string{`filter={bad`, `filter=[1,2]`, `filter=5`, `filter=null`} {
		_, err := p.Parse(query, nil)
		if !errors.Is(err, ErrMalformedLiteral) {
			t.Fatalf("%s: expected malformed literal error, got %v", query, err)
		}
	}
}

func TestFilterBlacklist(t *testing.T) {
	p := New(Options{Blacklist: []string{"secret"}})
	q := mustParse(t, p, `secret=1&filter={"secret":2,"$or":[{"secret":3},{"a":1}],"nested":{"secret":4,"b":2}}&sort=a&limit=5&name=x`, nil)

	want := map[string]any{
		"$or":    []any{map[string]any{}, map[string]any{"a": float64(1)}},
		"nested": map[string]any{"b": float64(2)},
		"name":   "x",
	}
	if diff := cmp.Diff(want, q.Filter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterBlacklistSkipsValueParsing(t *testing.T) {
	p := New(Options{Blacklist: []string{"token"}})
	if _, err := p.Parse("token=date(garbage)", nil); err != nil {
		t.Fatalf("blacklisted keys must not be parsed: %v", err)
	}
}

func TestFilterRenamedDirectiveKeys(t *testing.T) {
	p := New(Options{SortKey: "order", FilterKey: "where"})
	q := mustParse(t, p, `order=-a&sort=x&where={"b":1}`, nil)

	if diff := cmp.Diff(Fields{{Field: "a", Value: -1}}, q.Sort); diff != "" {
		t.Fatalf("sort mismatch (-want +got):\n%s", diff)
	}
	want := map[string]any{"sort": "x", "b": float64(1)}
	if diff := cmp.Diff(want, q.Filter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterStructuralErrors(t *testing.T) {
	p := New(Options{})
	for _, query := range []string{"a!b", "!", "=5", "<3"} {
		_, err := p.Parse(query, nil)
		if !errors.Is(err, ErrStructuralParse) {
			t.Fatalf("%q: expected structural parse error, got %v", query, err)
		}
	}
}

func TestDecompose(t *testing.T) {
	cases := []struct {
		key, value string
		want       clause
	}{
		{"age>", "18", clause{field: "age", token: ">=", value: "18"}},
		{"age>18", "", clause{field: "age", token: ">", value: "18"}},
		{"name!", "x", clause{field: "name", token: "!=", value: "x"}},
		{"!name", "", clause{negated: true, field: "name"}},
		{"a.b.c", "1", clause{field: "a.b.c", token: "=", value: "1"}},
		{"expr", "a=b", clause{field: "expr", token: "=", value: "a=b"}},
	}
	for _, tc := range cases {
		got, err := decompose(tc.key, tc.value)
		if err != nil {
			t.Fatalf("decompose(%q, %q): %v", tc.key, tc.value, err)
		}
		if diff := cmp.Diff(tc.want, got, cmp.AllowUnexported(clause{})); diff != "" {
			t.Fatalf("decompose(%q, %q) mismatch (-want +got):\n%s", tc.key, tc.value, diff)
		}
	}
}

func TestResolveOperator(t *testing.T) {
	want := map[string]Operator{
		"": OpExists, "=": OpEq, "!=": OpNe, ">": OpGt, ">=": OpGte, "<": OpLt, "<=": OpLte,
	}
	for tok, op := range want {
		got, err := ResolveOperator(tok)
		if err != nil || got != op {
			t.Fatalf("ResolveOperator(%q) = %q, %v", tok, got, err)
		}
	}
	if _, err := ResolveOperator("=>"); !errors.Is(err, ErrStructuralParse) {
		t.Fatalf("expected structural parse error, got %v", err)
	}
}
