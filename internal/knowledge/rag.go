package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	applog "github.com/Omarrvv/final-bot-sub005/pkg/logger"

	"github.com/Omarrvv/final-bot-sub005/internal/nlu"
	"github.com/Omarrvv/final-bot-sub005/internal/repository"
	"github.com/Omarrvv/final-bot-sub005/internal/servicehub"
)

const (
	// vectorCandidateLimit is how many candidates each kind's vector
	// search contributes before re-ranking (§4.8 RAG pipeline step b).
	vectorCandidateLimit = 8
	// promptCandidateCount is how many top-ranked candidates are
	// assembled into the prompt (§4.8 step d).
	promptCandidateCount = 5
	// promptByteBudget bounds the assembled prompt (§4.8: "bounded to
	// 4kB").
	promptByteBudget = 4096
	// historyTurnsInPrompt is how many recent turns are included.
	historyTurnsInPrompt = 4

	vectorScoreWeight = 0.8
	recencyWeight     = 0.2

	llmService = "llm"
	llmMethod  = "complete"
)

// Base wires the Knowledge Base & RAG component (§4.8): structured lookup,
// entity resolution, and retrieval-augmented generation over the Service
// Hub's LLM provider.
type Base struct {
	registry        *repository.Registry
	hub             *servicehub.Hub
	embedder        nlu.Embedder
	resolver        *Resolver
	defaultLanguage string
	logger          *slog.Logger
}

// New constructs a Base.
func New(registry *repository.Registry, hub *servicehub.Hub, embedder nlu.Embedder, defaultLanguage string, logger *slog.Logger) *Base {
	return &Base{
		registry:        registry,
		hub:             hub,
		embedder:        embedder,
		resolver:        NewResolver(registry, defaultLanguage),
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// Resolver exposes the entity resolver for wiring into the NLU pipeline's
// EntityResolver slot.
func (b *Base) Resolver() *Resolver {
	return b.resolver
}

// Lookup is §4.8's structured Lookup(entity_kind, filters): a thin wrapper
// over Repository.Search with no full-text query, so it degrades to a
// pure filtered scan.
func (b *Base) Lookup(ctx context.Context, kind string, filters map[string]string, limit, offset int, language string) (repository.Page, error) {
	repo := b.registry.ByKind(kind)
	if repo == nil {
		return repository.Page{}, fmt.Errorf("knowledge: unknown entity kind %q", kind)
	}
	return repo.Search(ctx, "", filters, limit, offset, language)
}

// ResolveEntity is §4.8's ResolveEntity(surface_form, kind, language).
func (b *Base) ResolveEntity(ctx context.Context, surfaceForm, kind, language string) (string, bool) {
	return b.resolver.ResolveWithContext(ctx, kind, surfaceForm, language)
}

// Answer runs the full RAG pipeline for a free-form query (§4.8 Answer):
// embed, retrieve, re-rank, assemble a bounded prompt, and dispatch to the
// Service Hub's LLM provider, with graceful degradation at every stage.
func (b *Base) Answer(ctx context.Context, query string, history []HistoryTurn, language string) AnswerResult {
	log := applog.FromContext(ctx, b.logger)

	candidates := b.retrieveCandidates(ctx, query, log)
	if len(candidates) == 0 {
		return NoInformationAnswer()
	}

	b.rank(candidates)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].FinalScore > candidates[j].FinalScore })

	top := candidates
	if len(top) > promptCandidateCount {
		top = top[:promptCandidateCount]
	}

	prompt := assemblePrompt(query, top, history, language, b.defaultLanguage)

	result, err := b.hub.Execute(ctx, llmService, llmMethod, map[string]any{"prompt": prompt})
	if err != nil {
		log.Warn("rag: llm call failed, falling back to top candidate description", "error", err)
		return fallbackAnswer(top, language, b.defaultLanguage)
	}

	text := extractText(result)
	if text == "" {
		return fallbackAnswer(top, language, b.defaultLanguage)
	}

	sourceIDs := make([]int64, 0, len(top))
	for _, c := range top {
		sourceIDs = append(sourceIDs, c.Record.ID)
	}
	return AnswerResult{Answer: text, SourceIDs: sourceIDs}
}

// retrieveCandidates embeds the query and vector-searches every relevant
// kind, falling back to plain text search if the embedder or a vector
// index is unavailable (§4.8 Failure semantics: "vector index unavailable
// -> fall back to text search").
func (b *Base) retrieveCandidates(ctx context.Context, query string, log *slog.Logger) []*Candidate {
	var candidates []*Candidate

	embedding, embedErr := b.embedder.Embed(query)
	for _, kind := range RelevantKinds {
		repo := b.registry.ByKind(kind)
		if repo == nil {
			continue
		}

		var page repository.Page
		var err error
		if embedErr == nil {
			page, err = repo.VectorSearch(ctx, embedding, nil, vectorCandidateLimit)
			if err != nil {
				log.Warn("rag: vector search unavailable, falling back to text search", "kind", kind, "error", err)
				page, err = repo.Search(ctx, query, nil, vectorCandidateLimit, 0, b.defaultLanguage)
			}
		} else {
			page, err = repo.Search(ctx, query, nil, vectorCandidateLimit, 0, b.defaultLanguage)
		}
		if err != nil {
			log.Warn("rag: candidate retrieval failed", "kind", kind, "error", err)
			continue
		}

		for i, rec := range page.Items {
			score := 0.0
			if i < len(page.Scores) {
				score = page.Scores[i]
			}
			candidates = append(candidates, &Candidate{
				Kind:        kind,
				Record:      rec,
				VectorScore: score,
				Recency:     recencyScore(rec.UpdatedAt),
			})
		}
	}

	return candidates
}

// rank computes each candidate's FinalScore combining vector and recency
// scores (§4.8 step c: weights 0.8/0.2).
func (b *Base) rank(candidates []*Candidate) {
	for _, c := range candidates {
		c.FinalScore = vectorScoreWeight*c.VectorScore + recencyWeight*c.Recency
	}
}

// recencyScore decays linearly over a year, floored at 0.
func recencyScore(updatedAt time.Time) float64 {
	if updatedAt.IsZero() {
		return 0
	}
	age := time.Since(updatedAt)
	const horizon = 365 * 24 * time.Hour
	if age <= 0 {
		return 1
	}
	if age >= horizon {
		return 0
	}
	return 1 - float64(age)/float64(horizon)
}

// assemblePrompt builds the LLM prompt from the top candidates and recent
// history, bounded to promptByteBudget.
func assemblePrompt(query string, top []*Candidate, history []HistoryTurn, language, defaultLanguage string) string {
	var b strings.Builder

	if len(history) > historyTurnsInPrompt {
		history = history[len(history)-historyTurnsInPrompt:]
	}
	for _, turn := range history {
		writeBounded(&b, fmt.Sprintf("User: %s\nAssistant: %s\n", turn.Utterance, turn.Response))
	}

	writeBounded(&b, "Context:\n")
	for _, c := range top {
		name := c.Record.NameIn(language, defaultLanguage)
		desc := c.Record.DescriptionIn(language, defaultLanguage)
		writeBounded(&b, fmt.Sprintf("- %s: %s\n", name, desc))
	}

	writeBounded(&b, fmt.Sprintf("Question: %s\n", query))

	return b.String()
}

// writeBounded appends s to b only if doing so keeps b within
// promptByteBudget, truncating the final partial write to fit exactly.
func writeBounded(b *strings.Builder, s string) {
	remaining := promptByteBudget - b.Len()
	if remaining <= 0 {
		return
	}
	if len(s) > remaining {
		s = s[:remaining]
	}
	b.WriteString(s)
}

// fallbackAnswer is used when the LLM call fails or returns nothing
// usable: the highest-ranked candidate's prewritten description stands in
// for a generated answer (§4.8 Failure semantics: "LLM timeout -> fall
// back to highest-ranked candidate's prewritten description").
func fallbackAnswer(top []*Candidate, language, defaultLanguage string) AnswerResult {
	if len(top) == 0 {
		return NoInformationAnswer()
	}
	best := top[0]
	desc := best.Record.DescriptionIn(language, defaultLanguage)
	if desc == "" {
		desc = best.Record.NameIn(language, defaultLanguage)
	}
	return AnswerResult{Answer: desc, SourceIDs: []int64{best.Record.ID}}
}

func extractText(result any) string {
	m, ok := result.(map[string]any)
	if !ok {
		return ""
	}
	text, _ := m["text"].(string)
	return text
}
