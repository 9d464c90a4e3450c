package nlu

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"runtime"

	applog "github.com/Omarrvv/final-bot-sub005/pkg/logger"
)

const (
	languageConfidenceFloor = 0.8
	modelEmbedder           = "embedder"
	modelLanguageDetector   = "language-detector"
	modelEntityTagger       = "entity-tagger"
)

// Config configures the Pipeline's worker pool size and intent prototypes.
type Config struct {
	WorkerPoolSize int
	Prototypes     []IntentPrototype
}

// DefaultConfig sizes the worker pool to max(2, CPU/2) per §4.6 Concurrency.
func DefaultConfig() Config {
	size := runtime.NumCPU() / 2
	if size < 2 {
		size = 2
	}
	return Config{WorkerPoolSize: size}
}

// Pipeline transforms (text, session context) into an NLU Result across
// three lazily-loaded stages, dispatched to a bounded worker group
// (§4.6).
type Pipeline struct {
	registry   *Registry
	resolver   EntityResolver
	prototypes []IntentPrototype
	sem        chan struct{}
	logger     *slog.Logger
}

// New constructs a Pipeline, registering the default model loaders.
// resolver may be nil; entities are then left uncanonicalized.
func New(cfg Config, resolver EntityResolver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg = DefaultConfig()
	}

	registry := NewRegistry(logger)
	registry.Register(modelLanguageDetector, func() (any, error) {
		return NewScriptLanguageDetector(), nil
	})
	registry.Register(modelEmbedder, func() (any, error) {
		return NewHashEmbedder(64), nil
	})
	registry.Register(modelEntityTagger, func() (any, error) {
		return NewCapitalizedSpanTagger(), nil
	})

	return &Pipeline{
		registry:   registry,
		resolver:   resolver,
		prototypes: cfg.Prototypes,
		sem:        make(chan struct{}, cfg.WorkerPoolSize),
		logger:     logger,
	}
}

// Process runs the full pipeline for one utterance. Any stage failure
// degrades gracefully rather than surfacing (§4.6 Failure semantics):
// unknown language falls back to sessionLanguage, intent failure becomes
// FallbackIntent, entity failure yields an empty list.
func (p *Pipeline) Process(ctx context.Context, text, sessionLanguage string) Result {
	if len(text) == 0 {
		return Result{Language: sessionLanguage, Intent: FallbackIntent, UtteranceHash: hashUtterance(text)}
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return Result{Language: sessionLanguage, Intent: FallbackIntent, UtteranceHash: hashUtterance(text)}
	}

	log := applog.FromContext(ctx, p.logger)

	language := p.detectLanguage(ctx, text, sessionLanguage, log)
	embedding := p.embed(ctx, text, log)
	intent, confidence := p.classifyIntent(embedding, log)
	entities := p.extractEntities(ctx, text, language, log)

	return Result{
		Language:      language,
		Intent:        intent,
		Confidence:    confidence,
		Entities:      entities,
		UtteranceHash: hashUtterance(text),
	}
}

func (p *Pipeline) detectLanguage(_ context.Context, text, sessionLanguage string, log *slog.Logger) string {
	artifact, release, err := p.registry.Acquire(modelLanguageDetector)
	if err != nil {
		log.Warn("nlu language detection unavailable, using session language", "error", err)
		return sessionLanguage
	}
	defer release()

	detector := artifact.(LanguageDetector)
	lang, confidence := detector.Detect(text)
	if confidence < languageConfidenceFloor {
		return sessionLanguage
	}
	return lang
}

func (p *Pipeline) embed(_ context.Context, text string, log *slog.Logger) []float32 {
	artifact, release, err := p.registry.Acquire(modelEmbedder)
	if err != nil {
		log.Warn("nlu embedder unavailable, intent will fall back", "error", err)
		return nil
	}
	defer release()

	embedder := artifact.(Embedder)
	vec, err := embedder.Embed(text)
	if err != nil {
		log.Warn("nlu embedding failed, intent will fall back", "error", err)
		return nil
	}
	return vec
}

func (p *Pipeline) classifyIntent(embedding []float32, log *slog.Logger) (string, float64) {
	if embedding == nil {
		return FallbackIntent, 0
	}
	intent, confidence := ClassifyIntent(embedding, p.prototypes)
	if intent == FallbackIntent {
		log.Debug("nlu intent classification fell back", "confidence", confidence)
	}
	return intent, confidence
}

func (p *Pipeline) extractEntities(_ context.Context, text, language string, log *slog.Logger) []Entity {
	artifact, release, err := p.registry.Acquire(modelEntityTagger)
	if err != nil {
		log.Warn("nlu entity extraction unavailable", "error", err)
		return nil
	}
	defer release()

	tagger := artifact.(EntityExtractor)
	entities, err := tagger.Extract(text, language)
	if err != nil {
		log.Warn("nlu entity extraction failed", "error", err)
		return nil
	}
	return CanonicalizeEntities(entities, p.resolver, language)
}

// Shutdown releases every loaded model (process shutdown hook).
func (p *Pipeline) Shutdown() {
	p.registry.Shutdown()
}

func hashUtterance(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
