package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(entityType, surfaceForm, language string) (string, bool) {
	if surfaceForm == "Giza" {
		return "city:12", true
	}
	return "", false
}

func TestPipeline_Process_DetectsLanguageAndEntities(t *testing.T) {
	p := New(DefaultConfig(), fakeResolver{}, nil)

	result := p.Process(context.Background(), "Tell me about Giza", "en")

	assert.Equal(t, "en", result.Language)
	assert.NotEmpty(t, result.UtteranceHash)
	require.NotEmpty(t, result.Entities)

	var found bool
	for _, e := range result.Entities {
		if e.Surface == "Giza" {
			found = true
			assert.Equal(t, "city:12", e.Canonical)
		}
	}
	assert.True(t, found)
}

func TestPipeline_Process_FallsBackIntentWithNoPrototypes(t *testing.T) {
	p := New(DefaultConfig(), nil, nil)
	result := p.Process(context.Background(), "hello there", "en")
	assert.Equal(t, FallbackIntent, result.Intent)
}

func TestPipeline_Process_LowConfidenceLanguageFallsBackToSession(t *testing.T) {
	p := New(DefaultConfig(), nil, nil)
	result := p.Process(context.Background(), "123 456", "fr")
	assert.Equal(t, "fr", result.Language)
}

func TestPipeline_Process_CancelledContextReturnsFallback(t *testing.T) {
	p := New(Config{WorkerPoolSize: 1}, nil, nil)

	// Saturate the single worker slot, then issue a cancelled-context call.
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.Process(ctx, "hello", "en")
	assert.Equal(t, FallbackIntent, result.Intent)
	assert.Equal(t, "en", result.Language)
}

func TestPipeline_Process_EmptyUtteranceSkipsModels(t *testing.T) {
	p := New(DefaultConfig(), nil, nil)

	result := p.Process(context.Background(), "", "en")

	assert.Equal(t, FallbackIntent, result.Intent)
	assert.Empty(t, result.Entities)
	assert.Equal(t, "en", result.Language)
	assert.NotEmpty(t, result.UtteranceHash)

	for name, h := range p.registry.handles {
		assert.Nilf(t, h.artifact, "model %q should not have been loaded for an empty utterance", name)
	}
}

func TestPipeline_Shutdown(t *testing.T) {
	p := New(DefaultConfig(), nil, nil)
	p.Process(context.Background(), "warm up", "en")
	assert.NotPanics(t, func() { p.Shutdown() })
}
