// Package batch implements the Query Analyzer & Batch Executor (§4.5):
// slow-query tracking with index suggestions, and a transactional bulk
// write executor.
package batch

import (
	"sort"
	"sync"
	"time"
)

const (
	slowThreshold   = 500 * time.Millisecond
	retentionWindow = 24 * time.Hour
	maxRetained     = 100
)

// QuerySample is one observed query execution, as reported by a
// repository or the batch executor.
type QuerySample struct {
	Table            string
	Template         string
	ParamShape       string
	PredicateColumns []string
	Duration         time.Duration
	RowsAffected     int64
	Timestamp        time.Time
}

// IndexSuggestion names a (table, column) pair frequently used as a
// predicate but absent from the known index set.
type IndexSuggestion struct {
	Table       string
	Column      string
	Occurrences int
}

// Analyzer retains the slowest queries over a rolling window and derives
// index suggestions from their predicate columns (§4.5 Analyzer).
type Analyzer struct {
	mu      sync.Mutex
	samples []QuerySample
	now     func() time.Time
}

// NewAnalyzer constructs an Analyzer. now defaults to time.Now; tests may
// override it for deterministic window pruning.
func NewAnalyzer(now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{now: now}
}

// Record ingests an execution sample, retaining the slowest maxRetained
// within retentionWindow.
func (a *Analyzer) Record(sample QuerySample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = a.now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, sample)
	a.prune()
}

// prune must be called with mu held.
func (a *Analyzer) prune() {
	cutoff := a.now().Add(-retentionWindow)
	kept := a.samples[:0]
	for _, s := range a.samples {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	a.samples = kept

	if len(a.samples) <= maxRetained {
		return
	}
	sort.Slice(a.samples, func(i, j int) bool {
		return a.samples[i].Duration > a.samples[j].Duration
	})
	a.samples = append([]QuerySample(nil), a.samples[:maxRetained]...)
}

// SlowQueries returns retained samples classified as slow (>500ms),
// slowest first.
func (a *Analyzer) SlowQueries() []QuerySample {
	a.mu.Lock()
	defer a.mu.Unlock()

	var slow []QuerySample
	for _, s := range a.samples {
		if s.Duration > slowThreshold {
			slow = append(slow, s)
		}
	}
	sort.Slice(slow, func(i, j int) bool { return slow[i].Duration > slow[j].Duration })
	return slow
}

// SuggestIndexes inspects retained samples' predicate columns and returns
// (table, column) pairs absent from knownIndexes, ordered by descending
// occurrence count. knownIndexes maps table -> set of indexed columns.
func (a *Analyzer) SuggestIndexes(knownIndexes map[string]map[string]bool) []IndexSuggestion {
	a.mu.Lock()
	samples := append([]QuerySample(nil), a.samples...)
	a.mu.Unlock()

	counts := make(map[[2]string]int)
	for _, s := range samples {
		indexed := knownIndexes[s.Table]
		for _, col := range s.PredicateColumns {
			if indexed != nil && indexed[col] {
				continue
			}
			counts[[2]string{s.Table, col}]++
		}
	}

	suggestions := make([]IndexSuggestion, 0, len(counts))
	for key, n := range counts {
		suggestions = append(suggestions, IndexSuggestion{Table: key[0], Column: key[1], Occurrences: n})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Occurrences != suggestions[j].Occurrences {
			return suggestions[i].Occurrences > suggestions[j].Occurrences
		}
		if suggestions[i].Table != suggestions[j].Table {
			return suggestions[i].Table < suggestions[j].Table
		}
		return suggestions[i].Column < suggestions[j].Column
	})
	return suggestions
}
