package repository

import (
	"context"
	"fmt"
	"strconv"
)

// NearbyByPoint ranks by great-circle distance from (lat, lon), ascending,
// within radiusKm (§4.4 Geospatial). limit == 0 returns an empty page
// without touching storage or the cache (§8 Boundary behaviors). Reads
// consult the tiered query cache (§4.4 Caching). Underlying errors degrade
// to an empty page with a logged warning.
func (r *entityRepo) NearbyByPoint(ctx context.Context, lat, lon, radiusKm float64, limit int) (Page, error) {
	if limit == 0 {
		return Page{}, nil
	}
	limit = clampLimit(limit)
	radiusMeters := radiusKm * 1000

	cacheParams := map[string]string{
		"lat":    strconv.FormatFloat(lat, 'g', -1, 64),
		"lon":    strconv.FormatFloat(lon, 'g', -1, 64),
		"radius": strconv.FormatFloat(radiusKm, 'g', -1, 64),
		"limit":  strconv.Itoa(limit),
	}
	var cached Page
	if r.cache != nil && r.cache.Get(ctx, r.table+":nearby", cacheParams, &cached) {
		return cached, nil
	}

	sql := fmt.Sprintf(`SELECT %s, ST_Distance(location, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography) / 1000.0 AS distance_km
		FROM %s
		WHERE location IS NOT NULL AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3)
		ORDER BY distance_km ASC
		LIMIT $4`, selectColumns, r.table)

	rows, err := r.pool.Query(ctx, sql, lat, lon, radiusMeters, limit)
	if err != nil {
		r.logger.Warn("repository nearby query failed, returning empty page", "table", r.table, "error", err)
		return Page{Limit: limit}, nil
	}
	defer rows.Close()

	var items []RankedRecord
	for rows.Next() {
		var distanceKm float64
		rec, err := r.scanRowWithDistance(rows, &distanceKm)
		if err != nil {
			r.logger.Warn("repository nearby row decode failed, skipping", "table", r.table, "error", err)
			continue
		}
		items = append(items, RankedRecord{Record: rec, Score: distanceKm})
	}
	if err := rows.Err(); err != nil {
		r.logger.Warn("repository nearby iteration failed, returning partial page", "table", r.table, "error", err)
	}

	page := Page{Total: len(items), Limit: limit}
	page.Items = make([]Record, len(items))
	page.Scores = make([]float64, len(items))
	for i, it := range items {
		page.Items[i] = it.Record
		page.Scores[i] = it.Score
	}
	if r.cache != nil {
		r.cache.Set(ctx, r.table+":nearby", cacheParams, page, queryCacheTTL)
	}
	return page, nil
}
