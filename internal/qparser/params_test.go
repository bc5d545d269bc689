package qparser

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseQuery(t *testing.T) {
	p := ParseQuery("?a=1&b&c>=2&a=3&&name=John+Doe&bad=%zz+x&pct=50%25")

	if diff := cmp.Diff([]string{"a", "b", "c>", "name", "bad", "pct"}, p.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	checks := map[string]string{
		"a":    "1,3",
		"b":    "",
		"c>":   "2",
		"name": "John Doe",
		"bad":  "%zz x",
		"pct":  "50%",
	}
	for k, want := range checks {
		if got := p.Get(k); got != want {
			t.Fatalf("Get(%q) = %q, want %q", k, got, want)
		}
	}
	if !p.Has("b") || p.Has("missing") {
		t.Fatalf("Has reported wrong presence")
	}
}

func TestParseQueryEmpty(t *testing.T) {
	for _, q := range []string{"", "?", "&&"} {
		if n := ParseQuery(q).Len(); n != 0 {
			t.Fatalf("ParseQuery(%q) has %d keys", q, n)
		}
	}
}

func TestParseQueryCapsKeys(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxParams+10; i++ {
		fmt.Fprintf(&b, "k%d=1&", i)
	}
	raw := b.String()
	if n := ParseQuery(raw).Len(); n != maxParams {
		t.Fatalf("expected %d keys, got %d", maxParams, n)
	}
}

func TestFromMapSortsKeys(t *testing.T) {
	p := FromMap(map[string]string{"b": "2", "a": "1", "c": ""})
	if diff := cmp.Diff([]string{"a", "b", "c"}, p.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if !p.Has("c") || p.Get("c") != "" {
		t.Fatalf("bare flag lost")
	}
}

func TestFromValues(t *testing.T) {
	p := FromValues(url.Values{"tag": {"x", "y"}, "age>": {"3"}})
	if diff := cmp.Diff([]string{"age>", "tag"}, p.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if p.Get("tag") != "x,y" {
		t.Fatalf("tag = %q", p.Get("tag"))
	}

	q, err := New(Options{}).ParseParams(p, nil)
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	want := map[string]any{
		"age": map[string]any{"$gte": float64(3)},
		"tag": map[string]any{"$in": []any{"x", "y"}},
	}
	if diff := cmp.Diff(want, q.Filter); diff != "" {
		t.Fatalf("filter mismatch (-want +got):\n%s", diff)
	}
}
