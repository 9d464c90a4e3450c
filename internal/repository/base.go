package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Omarrvv/final-bot-sub005/internal/batch"
	"github.com/Omarrvv/final-bot-sub005/internal/cache"
	"github.com/Omarrvv/final-bot-sub005/internal/dbcore"
)

// ErrNotFound is returned by Update when the target id does not exist.
// Delete of an absent id is not an error.
var ErrNotFound = errors.New("repository: record not found")

// knownTables allow-lists every table name a repository is constructed
// with, per dbcore's identifier allow-listing pattern (§4.2) — table
// names are compile-time constants here, never caller-supplied, but the
// allow-list still guards against a typo wiring the wrong repository.
var knownTables = dbcore.NewIdentifierAllowList(
	"attractions",
	"accommodations",
	"restaurants",
	"destinations",
	"events",
	"tour_packages",
	"faqs",
	"practical_info",
	"transportation_routes",
)

const (
	queryCacheTTL  = 30 * time.Minute
	vectorCacheTTL = time.Hour
	defaultEfSearch = 40
	maxEfSearch     = 400
)

// Repository is the typed access contract for a single knowledge entity
// kind (§4.4).
type Repository interface {
	Get(ctx context.Context, id int64) (*Record, error)
	Search(ctx context.Context, query string, filters map[string]string, limit, offset int, language string) (Page, error)
	VectorSearch(ctx context.Context, embedding []float32, filters map[string]string, limit int) (Page, error)
	NearbyByPoint(ctx context.Context, lat, lon, radiusKm float64, limit int) (Page, error)
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id int64) error
}

// entityRepo is the shared base: query building, JSON field parsing,
// error mapping, and caching hooks, specialized per entity kind only by
// table name and default language.
type entityRepo struct {
	pool            *dbcore.Pool
	cache           *cache.TieredCache
	analyzer        *batch.Analyzer
	table           string
	kind            string
	defaultLanguage string
	logger          *slog.Logger
}

// New constructs a Repository for the given table/kind pair. table must
// be one of knownTables. analyzer may be nil to skip query-timing
// observation (§4.5 Analyzer).
func New(pool *dbcore.Pool, tieredCache *cache.TieredCache, analyzer *batch.Analyzer, table, kind, defaultLanguage string, logger *slog.Logger) Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &entityRepo{
		pool:            pool,
		cache:           tieredCache,
		analyzer:        analyzer,
		table:           knownTables.MustValidate(table),
		kind:            kind,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// observe records a query sample with the analyzer, if one is wired.
func (r *entityRepo) observe(template string, predicateColumns []string, start time.Time) {
	if r.analyzer == nil {
		return
	}
	r.analyzer.Record(batch.QuerySample{
		Table:            r.table,
		Template:         template,
		PredicateColumns: predicateColumns,
		Duration:         time.Since(start),
		Timestamp:        time.Now(),
	})
}

// row mirrors the on-disk column layout for JSON (de)serialization.
type row struct {
	ID          int64
	Name        json.RawMessage
	Description json.RawMessage
	Lat         *float64
	Lon         *float64
	Embedding   []float32
	Attributes  json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r *entityRepo) toRecord(raw row) (Record, error) {
	rec := Record{
		ID:        raw.ID,
		Kind:      r.kind,
		Embedding: raw.Embedding,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	if len(raw.Name) > 0 {
		if err := json.Unmarshal(raw.Name, &rec.Name); err != nil {
			return Record{}, fmt.Errorf("repository: decoding name: %w", err)
		}
	}
	if len(raw.Description) > 0 {
		if err := json.Unmarshal(raw.Description, &rec.Description); err != nil {
			return Record{}, fmt.Errorf("repository: decoding description: %w", err)
		}
	}
	if len(raw.Attributes) > 0 {
		if err := json.Unmarshal(raw.Attributes, &rec.Attributes); err != nil {
			return Record{}, fmt.Errorf("repository: decoding attributes: %w", err)
		}
	}
	if raw.Lat != nil && raw.Lon != nil {
		rec.Location = &GeoPoint{Lat: *raw.Lat, Lon: *raw.Lon}
	}
	return rec, nil
}

func (r *entityRepo) scanRow(pgRow pgx.Row) (Record, error) {
	var raw row
	var lat, lon *float64
	if err := pgRow.Scan(&raw.ID, &raw.Name, &raw.Description, &lat, &lon, &raw.Embedding, &raw.Attributes, &raw.CreatedAt, &raw.UpdatedAt); err != nil {
		return Record{}, err
	}
	raw.Lat, raw.Lon = lat, lon
	return r.toRecord(raw)
}

const selectColumns = "id, name, description, ST_Y(location::geometry), ST_X(location::geometry), embedding, attributes, created_at, updated_at"

// scanRowWithDistance scans a row whose query appends one extra trailing
// numeric column (distance or similarity) beyond selectColumns.
func (r *entityRepo) scanRowWithDistance(pgRow pgx.Row, extra *float64) (Record, error) {
	var raw row
	var lat, lon *float64
	if err := pgRow.Scan(&raw.ID, &raw.Name, &raw.Description, &lat, &lon, &raw.Embedding, &raw.Attributes, &raw.CreatedAt, &raw.UpdatedAt, extra); err != nil {
		return Record{}, err
	}
	raw.Lat, raw.Lon = lat, lon
	return r.toRecord(raw)
}

func (r *entityRepo) cacheKeyParams(extra map[string]string) map[string]string {
	params := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// Get fetches a single record by id. A missing row is (nil, nil), not an
// error (§4.4 Failure semantics).
func (r *entityRepo) Get(ctx context.Context, id int64) (*Record, error) {
	params := map[string]string{"id": strconv.FormatInt(id, 10)}

	var cached Record
	if r.cache != nil && r.cache.Get(ctx, r.table+":get", params, &cached) {
		return &cached, nil
	}

	start := time.Now()
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectColumns, r.table)
	rec, err := r.scanRow(r.pool.QueryRow(ctx, sql, id))
	r.observe("SELECT ... FROM "+r.table+" WHERE id = ?", []string{"id"}, start)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: get %s #%d: %w", r.table, id, err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, r.table+":get", params, rec, queryCacheTTL)
	}
	return &rec, nil
}

// Create inserts rec and invalidates the table's cache namespace.
func (r *entityRepo) Create(ctx context.Context, rec *Record) error {
	name, err := json.Marshal(rec.Name)
	if err != nil {
		return fmt.Errorf("repository: encoding name: %w", err)
	}
	desc, err := json.Marshal(rec.Description)
	if err != nil {
		return fmt.Errorf("repository: encoding description: %w", err)
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("repository: encoding attributes: %w", err)
	}

	var lat, lon *float64
	if rec.Location != nil {
		lat, lon = &rec.Location.Lat, &rec.Location.Lon
	}

	sql := fmt.Sprintf(`INSERT INTO %s (name, description, location, embedding, attributes, created_at, updated_at)
		VALUES ($1, $2, CASE WHEN $3::double precision IS NULL THEN NULL ELSE ST_SetSRID(ST_MakePoint($4, $3), 4326)::geography END, $5, $6, now(), now())
		RETURNING id, created_at, updated_at`, r.table)

	row := r.pool.QueryRow(ctx, sql, name, desc, lat, lon, pgVector(rec.Embedding), attrs)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return fmt.Errorf("repository: create %s: %w", r.table, err)
	}

	if r.cache != nil {
		r.cache.InvalidateNamespace(ctx, r.table)
	}
	return nil
}

// Update overwrites rec's stored fields by id.
func (r *entityRepo) Update(ctx context.Context, rec *Record) error {
	name, err := json.Marshal(rec.Name)
	if err != nil {
		return fmt.Errorf("repository: encoding name: %w", err)
	}
	desc, err := json.Marshal(rec.Description)
	if err != nil {
		return fmt.Errorf("repository: encoding description: %w", err)
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("repository: encoding attributes: %w", err)
	}

	var lat, lon *float64
	if rec.Location != nil {
		lat, lon = &rec.Location.Lat, &rec.Location.Lon
	}

	sql := fmt.Sprintf(`UPDATE %s SET name = $1, description = $2,
		location = CASE WHEN $3::double precision IS NULL THEN NULL ELSE ST_SetSRID(ST_MakePoint($4, $3), 4326)::geography END,
		embedding = $5, attributes = $6, updated_at = now()
		WHERE id = $7`, r.table)

	tag, err := r.pool.Exec(ctx, sql, name, desc, lat, lon, pgVector(rec.Embedding), attrs, rec.ID)
	if err != nil {
		return fmt.Errorf("repository: update %s #%d: %w", r.table, rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repository: update %s #%d: %w", r.table, rec.ID, ErrNotFound)
	}

	if r.cache != nil {
		r.cache.InvalidateNamespace(ctx, r.table)
	}
	return nil
}

// Delete removes the record by id.
func (r *entityRepo) Delete(ctx context.Context, id int64) error {
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.table)
	if _, err := r.pool.Exec(ctx, sql, id); err != nil {
		return fmt.Errorf("repository: delete %s #%d: %w", r.table, id, err)
	}
	if r.cache != nil {
		r.cache.InvalidateNamespace(ctx, r.table)
	}
	return nil
}

// buildFilterClause composes AND-ed equality predicates against
// attributes->>key = value, starting its placeholders at argOffset+1.
func buildFilterClause(filters map[string]string, argOffset int) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	// deterministic ordering for stable generated SQL / cache keys
	sortStrings(keys)

	var clauses []string
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		argOffset++
		clauses = append(clauses, fmt.Sprintf("attributes->>'%s' = $%d", k, argOffset))
		args = append(args, filters[k])
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// pgVector renders an embedding as the pgvector text literal, or nil when
// absent.
func pgVector(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
