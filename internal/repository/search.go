package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Search performs a full-text query over the current-language name/
// description fields, falling back to the repository's default language,
// AND-composed with equality filters. Limit/offset are clamped per §4.4;
// limit == 0 returns an empty page without touching storage or the cache
// (§8 Boundary behaviors). Reads consult the tiered query cache (§4.4
// Caching) before issuing SQL. Underlying errors degrade to an empty page
// with a logged warning, not an error return.
func (r *entityRepo) Search(ctx context.Context, query string, filters map[string]string, limit, offset int, language string) (Page, error) {
	if limit == 0 {
		return Page{Limit: 0, Offset: clampOffset(offset)}, nil
	}
	limit = clampLimit(limit)
	offset = clampOffset(offset)
	if language == "" {
		language = r.defaultLanguage
	}

	cacheParams := r.searchCacheParams(query, filters, limit, offset, language)
	var cached Page
	if r.cache != nil && r.cache.Get(ctx, r.table+":search", cacheParams, &cached) {
		return cached, nil
	}

	filterClause, filterArgs := buildFilterClause(filters, 2)
	args := append([]any{language, r.defaultLanguage}, filterArgs...)

	var whereText string
	if query != "" {
		args = append(args, query)
		whereText = fmt.Sprintf(`AND to_tsvector('simple',
			coalesce(name->>$1, name->>$2, '') || ' ' || coalesce(description->>$1, description->>$2, ''))
			@@ plainto_tsquery('simple', $%d)`, len(args))
	}

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	args = append(args, limit, offset)

	sql := fmt.Sprintf(`SELECT %s FROM %s
		WHERE true %s %s
		ORDER BY ts_rank(to_tsvector('simple', coalesce(name->>$1, name->>$2, '')), plainto_tsquery('simple', coalesce($1, ''))) DESC
		LIMIT $%d OFFSET $%d`, selectColumns, r.table, filterClause, whereText, limitArg, offsetArg)

	start := time.Now()
	rows, err := r.pool.Query(ctx, sql, args...)
	predicateColumns := make([]string, 0, len(filters)+1)
	for k := range filters {
		predicateColumns = append(predicateColumns, k)
	}
	if query != "" {
		predicateColumns = append(predicateColumns, "name", "description")
	}
	r.observe("SELECT ... FROM "+r.table+" WHERE ...", predicateColumns, start)
	if err != nil {
		r.logger.Warn("repository search failed, returning empty page", "table", r.table, "error", err)
		return Page{Limit: limit, Offset: offset}, nil
	}
	defer rows.Close()

	var items []Record
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			r.logger.Warn("repository search row decode failed, skipping", "table", r.table, "error", err)
			continue
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		r.logger.Warn("repository search iteration failed, returning partial page", "table", r.table, "error", err)
	}

	page := Page{Items: items, Total: len(items), Limit: limit, Offset: offset}
	if r.cache != nil {
		r.cache.Set(ctx, r.table+":search", cacheParams, page, queryCacheTTL)
	}
	return page, nil
}

// searchCacheParams derives the query cache's key params: every filter
// plus the query text, language, limit and offset, since each distinctly
// shapes the result set.
func (r *entityRepo) searchCacheParams(query string, filters map[string]string, limit, offset int, language string) map[string]string {
	params := r.cacheKeyParams(filters)
	params["query"] = query
	params["language"] = language
	params["limit"] = strconv.Itoa(limit)
	params["offset"] = strconv.Itoa(offset)
	return params
}
