// Package repository implements the Repository Layer (§4.4): typed access
// to knowledge entities over dbcore's connection pool, fronted by the
// tiered cache.
package repository

import "time"

// MultilingualText maps a language code to the text in that language.
type MultilingualText map[string]string

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// Record is the common shape shared by every knowledge entity kind
// (attraction, accommodation, restaurant, destination, event, tour
// package, FAQ, practical-info, transportation route). Kind-specific
// fields live in Attributes.
type Record struct {
	ID          int64
	Kind        string
	Name        MultilingualText
	Description MultilingualText
	Location    *GeoPoint
	Embedding   []float32
	Attributes  map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NameIn returns the record's name in lang, falling back to
// defaultLanguage, then to any available value.
func (r *Record) NameIn(lang, defaultLanguage string) string {
	return textIn(r.Name, lang, defaultLanguage)
}

// DescriptionIn returns the record's description in lang, with the same
// fallback order as NameIn.
func (r *Record) DescriptionIn(lang, defaultLanguage string) string {
	return textIn(r.Description, lang, defaultLanguage)
}

func textIn(m MultilingualText, lang, defaultLanguage string) string {
	if v, ok := m[lang]; ok && v != "" {
		return v
	}
	if v, ok := m[defaultLanguage]; ok && v != "" {
		return v
	}
	for _, v := range m {
		return v
	}
	return ""
}

// Page is a paginated, possibly-ranked result set. Scores, when
// populated, parallels Items — cosine similarity for VectorSearch,
// distance in km for NearbyByPoint.
type Page struct {
	Items  []Record
	Scores []float64
	Total  int
	Limit  int
	Offset int
}

// RankedRecord pairs a Record with a relevance or similarity score.
type RankedRecord struct {
	Record
	Score float64
}

const (
	defaultLimit = 20
	maxLimit     = 100
	maxOffset    = 10_000
)

// clampLimit bounds limit to [1, maxLimit], promoting negative values to
// defaultLimit. limit == 0 is deliberately left unclamped: per §8 Boundary
// behaviors, a caller-supplied limit of 0 means "return empty without
// touching storage," and every call site must check for it before
// clampLimit ever runs.
func clampLimit(limit int) int {
	if limit < 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}
