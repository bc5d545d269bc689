//go:build integration

package itests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type findResponse struct {
	Items    []map[string]any `json:"items"`
	Populate any              `json:"populate"`
}

func find(t *testing.T, collection, query string) findResponse {
	t.Helper()
	status, b := post(t, "/api/find", map[string]any{"collection": collection, "query": query})
	if status != http.StatusOK {
		t.Fatalf("find %q: expected 200 OK, got %d. body=%s", query, status, string(b))
	}
	var out findResponse
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("invalid JSON response: %v; body=%s", err, string(b))
	}
	return out
}

func TestFindSortSkipLimitSelect(t *testing.T) {
	out := find(t, "users", "age>0&sort=-age&skip=1&limit=1&select=name,address.city,-_id")

	want := []map[string]any{{"name": "Ann", "address.city": "Paris"}}
	if diff := cmp.Diff(want, out.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestFindExclusionKeepsID(t *testing.T) {
	out := find(t, "users", "name=Bob&select=-tags,-address")
	if len(out.Items) != 1 {
		t.Fatalf("expected one document, got %d", len(out.Items))
	}
	doc := out.Items[0]
	if _, ok := doc["_id"].(string); !ok {
		t.Fatalf("missing _id: %v", doc)
	}
	if _, ok := doc["tags"]; ok {
		t.Fatalf("tags should be excluded: %v", doc)
	}
	if doc["age"] != 41.0 {
		t.Fatalf("unexpected age: %v", doc["age"])
	}
}

func TestFindByID(t *testing.T) {
	ann := find(t, "users", "name=Ann").Items[0]
	out := find(t, "users", "_id="+ann["_id"].(string))
	if len(out.Items) != 1 || out.Items[0]["name"] != "Ann" {
		t.Fatalf("lookup by _id failed: %v", out.Items)
	}
}

func TestFindReportsPopulate(t *testing.T) {
	out := find(t, "users", "name=Ann&populate=team.name,team.lead")
	want := []any{map[string]any{"path": "team", "select": "name lead"}}
	if diff := cmp.Diff(want, out.Populate); diff != "" {
		t.Fatalf("populate mismatch (-want +got):\n%s", diff)
	}
}

func TestFindRejectsBadQuery(t *testing.T) {
	status, b := post(t, "/api/find", map[string]any{"collection": "users", "query": "filter={broken"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d. body=%s", status, string(b))
	}
	status, b = post(t, "/api/find", map[string]any{"collection": "users", "filter": map[string]any{"$where": "1=1"}})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for $where, got %d. body=%s", status, string(b))
	}
}
