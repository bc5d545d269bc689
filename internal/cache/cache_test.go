package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"MQueryAPI/internal/qparser"
)

func compile(t *testing.T, query string) (QueryKey, *qparser.Query) {
	t.Helper()
	params := qparser.ParseQuery(query)
	key, err := NewQueryKey(params, nil)
	if err != nil {
		t.Fatalf("NewQueryKey: %v", err)
	}
	q, err := qparser.New(qparser.Options{}).Compile(params)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return key, q
}

func TestQueryKey(t *testing.T) {
	a, _ := NewQueryKey(qparser.ParseQuery("a=1&b=2"), nil)
	b, _ := NewQueryKey(qparser.ParseQuery("a=1&b=2"), nil)
	if a != b {
		t.Fatalf("equal input should give equal keys")
	}

	c, _ := NewQueryKey(qparser.ParseQuery("b=2&a=1"), nil)
	if a == c {
		t.Fatalf("parameter order is significant")
	}

	d, _ := NewQueryKey(qparser.ParseQuery("a=1&b=2"), map[string]any{})
	if a == d {
		t.Fatalf("an empty structured filter differs from none")
	}

	e, _ := NewQueryKey(qparser.Params{}, map[string]any{"x": 1.0, "y": []any{"a"}})
	f, _ := NewQueryKey(qparser.Params{}, map[string]any{"y": []any{"a"}, "x": 1.0})
	if e != f {
		t.Fatalf("filter map order must not matter")
	}
	if len(e.String()) != 16 {
		t.Fatalf("unexpected key string %q", e.String())
	}
}

func TestQueryCacheGetSet(t *testing.T) {
	c := NewQueryCache(0)
	now := time.Unix(1700000000, 0)
	key, q := compile(t, "age>18&sort=-age")

	if _, ok := c.Get(key, now); ok {
		t.Fatalf("empty cache returned a hit")
	}
	c.Set(key, q, now)
	got, ok := c.Get(key, now.Add(time.Minute))
	if !ok || got != q {
		t.Fatalf("expected cached query")
	}
	if c.Len() != 1 || c.Bytes() <= 0 {
		t.Fatalf("unexpected size: len=%d bytes=%d", c.Len(), c.Bytes())
	}

	// expired on access after the TTL since last use
	if _, ok := c.Get(key, now.Add(queryCacheTTL+2*time.Minute)); ok {
		t.Fatalf("expected expiry")
	}
	if c.Len() != 0 || c.Bytes() != 0 {
		t.Fatalf("expired entry not released: len=%d bytes=%d", c.Len(), c.Bytes())
	}
}

func TestQueryCacheByteLimit(t *testing.T) {
	now := time.Unix(1700000000, 0)
	key1, q1 := compile(t, "a=1")
	key2, q2 := compile(t, "b=2")

	c := NewQueryCache(estimateQueryBytes(key1, q1))
	c.Set(key1, q1, now)
	c.Set(key2, q2, now)
	if _, ok := c.Get(key2, now); ok {
		t.Fatalf("second entry should not fit")
	}
	if _, ok := c.Get(key1, now); !ok {
		t.Fatalf("first entry should stay")
	}

	// replacing an entry releases its old size first
	c.Set(key1, q1, now)
	if c.Len() != 1 || c.Bytes() != estimateQueryBytes(key1, q1) {
		t.Fatalf("unexpected accounting: len=%d bytes=%d", c.Len(), c.Bytes())
	}

	tiny := NewQueryCache(1)
	tiny.Set(key1, q1, now)
	if tiny.Len() != 0 {
		t.Fatalf("oversized item should be rejected")
	}
}

func TestGetOrCompile(t *testing.T) {
	c := NewQueryCache(0)
	key, q := compile(t, "a=1")
	calls := 0
	fn := func() (*qparser.Query, error) {
		calls++
		return q, nil
	}

	if _, hit, err := c.GetOrCompile(key, fn); err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	if got, hit, err := c.GetOrCompile(key, fn); err != nil || !hit || got != q {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Fatalf("compile called %d times", calls)
	}

	boom := errors.New("boom")
	other, _ := compile(t, "b=1")
	if _, _, err := c.GetOrCompile(other, func() (*qparser.Query, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected compile error, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("failed compiles must not be cached")
	}
}

func TestResultKey(t *testing.T) {
	k1, err := ResultKey("SELECT $1", []any{[]string{"a", "b"}, "x"})
	if err != nil {
		t.Fatalf("ResultKey: %v", err)
	}
	k2, _ := ResultKey("SELECT $1", []any{[]string{"a", "b"}, "x"})
	k3, _ := ResultKey("SELECT $1", []any{[]string{"a", "c"}, "x"})
	if k1 != k2 || k1 == k3 {
		t.Fatalf("keys must depend on statement and args only")
	}
	if !strings.HasPrefix(k1, resultKeyPrefix) {
		t.Fatalf("missing prefix: %s", k1)
	}
}

func TestGetOrLoadWithoutCache(t *testing.T) {
	var c *ResultCache
	if NewResultCache(nil, time.Minute) != nil {
		t.Fatalf("nil client should disable the cache")
	}
	v, hit, err := GetOrLoad(context.Background(), c, "SELECT 1", nil, func(context.Context) ([]int, error) {
		return []int{1}, nil
	})
	if err != nil || hit || len(v) != 1 {
		t.Fatalf("unexpected result: %v %v %v", v, hit, err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush on nil cache: %v", err)
	}
}
