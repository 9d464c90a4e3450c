package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Omarrvv/final-bot-sub005/internal/cache"
)

// VectorSearch ranks by cosine distance against embedding using the
// table's HNSW index. Filters are applied as a post-index predicate; if
// fewer than limit results remain, ef_search is doubled (to a ceiling of
// 400) and the search is re-issued exactly once (§4.4 Vector search).
// limit == 0 returns an empty page without touching storage or the cache
// (§8 Boundary behaviors). Vector reads consult the vector cache, keyed by
// the embedding's quantized VectorKey (§4.3/§13).
func (r *entityRepo) VectorSearch(ctx context.Context, embedding []float32, filters map[string]string, limit int) (Page, error) {
	if limit == 0 {
		return Page{}, nil
	}
	limit = clampLimit(limit)

	cacheKey := cache.VectorKey(r.table+":vector", embedding, r.vectorCacheParams(filters, limit))
	var cached Page
	if r.cache != nil && r.cache.GetByKey(ctx, cacheKey, &cached) {
		return cached, nil
	}

	page, err := r.vectorSearchOnce(ctx, embedding, filters, limit, defaultEfSearch)
	if err != nil {
		r.logger.Warn("repository vector search failed, returning empty page", "table", r.table, "error", err)
		return Page{Limit: limit}, nil
	}

	if len(page.Items) < limit {
		widened := defaultEfSearch * 2
		if widened > maxEfSearch {
			widened = maxEfSearch
		}
		if widened > defaultEfSearch {
			retried, err := r.vectorSearchOnce(ctx, embedding, filters, limit, widened)
			if err == nil && len(retried.Items) > len(page.Items) {
				page = retried
			}
		}
	}

	if r.cache != nil {
		r.cache.SetByKey(ctx, cacheKey, page, vectorCacheTTL)
	}
	return page, nil
}

// vectorCacheParams extends the filter set with limit, since it shapes the
// result set the same way a query-cache offset would.
func (r *entityRepo) vectorCacheParams(filters map[string]string, limit int) map[string]string {
	params := r.cacheKeyParams(filters)
	params["limit"] = strconv.Itoa(limit)
	return params
}

func (r *entityRepo) vectorSearchOnce(ctx context.Context, embedding []float32, filters map[string]string, limit, efSearch int) (Page, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("repository: acquiring connection for vector search: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", efSearch)); err != nil {
		return Page{}, fmt.Errorf("repository: setting ef_search: %w", err)
	}

	filterClause, filterArgs := buildFilterClause(filters, 1)
	args := append([]any{pgVector(embedding)}, filterArgs...)
	args = append(args, limit)

	sql := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $1) AS similarity FROM %s WHERE true %s ORDER BY embedding <=> $1 LIMIT $%d`,
		selectColumns, r.table, filterClause, len(args))

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var items []Record
	var scores []float64
	for rows.Next() {
		var similarity float64
		rec, err := r.scanRowWithDistance(rows, &similarity)
		if err != nil {
			r.logger.Warn("repository vector search row decode failed, skipping", "table", r.table, "error", err)
			continue
		}
		items = append(items, rec)
		scores = append(scores, similarity)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	return Page{Items: items, Scores: scores, Total: len(items), Limit: limit}, nil
}
