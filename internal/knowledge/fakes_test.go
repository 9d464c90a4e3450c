package knowledge

import (
	"context"

	"github.com/Omarrvv/final-bot-sub005/internal/repository"
)

// fakeRepo is a test double implementing repository.Repository purely
// in-memory, so knowledge package tests never touch a real database.
type fakeRepo struct {
	records      []repository.Record
	searchErr    error
	vectorErr    error
	vectorScores []float64
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (*repository.Record, error) {
	for _, r := range f.records {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) Search(ctx context.Context, query string, filters map[string]string, limit, offset int, language string) (repository.Page, error) {
	if f.searchErr != nil {
		return repository.Page{}, f.searchErr
	}
	return repository.Page{Items: f.records, Total: len(f.records), Limit: limit, Offset: offset}, nil
}

func (f *fakeRepo) VectorSearch(ctx context.Context, embedding []float32, filters map[string]string, limit int) (repository.Page, error) {
	if f.vectorErr != nil {
		return repository.Page{}, f.vectorErr
	}
	return repository.Page{Items: f.records, Scores: f.vectorScores, Total: len(f.records), Limit: limit}, nil
}

func (f *fakeRepo) NearbyByPoint(ctx context.Context, lat, lon, radiusKm float64, limit int) (repository.Page, error) {
	return repository.Page{Items: f.records, Limit: limit}, nil
}

func (f *fakeRepo) Create(ctx context.Context, rec *repository.Record) error { return nil }
func (f *fakeRepo) Update(ctx context.Context, rec *repository.Record) error { return nil }
func (f *fakeRepo) Delete(ctx context.Context, id int64) error              { return nil }

// fakeEmbedder returns a fixed vector, or an error when errOnEmbed is set,
// to exercise the RAG pipeline's fall-back-to-text-search path.
type fakeEmbedder struct {
	vector      []float32
	errOnEmbed  error
}

func (e fakeEmbedder) Embed(text string) ([]float32, error) {
	if e.errOnEmbed != nil {
		return nil, e.errOnEmbed
	}
	return e.vector, nil
}

func (e fakeEmbedder) Dimension() int { return len(e.vector) }

// fakeProvider is a servicehub.Provider test double.
type fakeProvider struct {
	result any
	err    error
}

func (p fakeProvider) Execute(ctx context.Context, method string, params map[string]any) (any, error) {
	return p.result, p.err
}
