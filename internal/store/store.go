// Package store runs compiled queries against a PostgreSQL jsonb document table.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"MQueryAPI/internal/cache"
	"MQueryAPI/internal/logger"
	"MQueryAPI/internal/metrics"
	"MQueryAPI/internal/qparser"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db      Querier
	results *cache.ResultCache
}

// New creates a store; results may be nil to disable result caching.
func New(db Querier, results *cache.ResultCache) *Store {
	return &Store{db: db, results: results}
}

// FindResult is one page of documents plus the populate directive, which
// the caller resolves.
type FindResult struct {
	Items    []map[string]any    `json:"items"`
	Populate []*qparser.Populate `json:"populate,omitempty"`
	Cached   bool                `json:"-"`
}

func (s *Store) Find(ctx context.Context, collection string, q *qparser.Query) (*FindResult, error) {
	sb, err := BuildFindQuery(collection, q)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find SQL: %w", err)
	}
	logger.Debug("store_find", map[string]any{"collection": collection, "sql": sqlStr})

	items, hit, err := cache.GetOrLoad(ctx, s.results, sqlStr, args, func(ctx context.Context) ([]map[string]any, error) {
		return s.scanDocuments(ctx, sqlStr, args)
	})
	if err != nil {
		return nil, err
	}
	if s.results != nil {
		metrics.CacheLookup("result", hit)
	}
	if !includeID(q.Select) {
		for _, doc := range items {
			delete(doc, "_id")
		}
	}
	return &FindResult{Items: items, Populate: q.Populate, Cached: hit}, nil
}

func (s *Store) Count(ctx context.Context, collection string, q *qparser.Query) (int64, error) {
	sb, err := BuildCountQuery(collection, q)
	if err != nil {
		return 0, err
	}
	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count SQL: %w", err)
	}
	logger.Debug("store_count", map[string]any{"collection": collection, "sql": sqlStr})

	var count int64
	if err := s.db.QueryRow(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (s *Store) scanDocuments(ctx context.Context, sqlStr string, args []any) ([]map[string]any, error) {
	rows, err := s.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer rows.Close()

	items := []map[string]any{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc := map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("decode document %s: %w", id, err)
			}
		}
		doc["_id"] = id
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}
