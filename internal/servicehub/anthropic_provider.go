package servicehub

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultModel is used when params carries no "model" override.
const defaultModel = anthropic.ModelClaude3_5HaikuLatest

// defaultMaxTokens bounds a single completion when params carries no
// "max_tokens" override.
const defaultMaxTokens = 1024

// AnthropicProvider dispatches the RAG pipeline's synthesis step (§4.8
// step e) to Claude. It is registered under the "llm" service name with
// LLMServiceConfig (no retries: an LLM call is not idempotent).
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds a provider authenticated with apiKey.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Execute supports a single method, "complete": params must carry "prompt"
// (string); "system", "model", "max_tokens" are optional overrides.
func (p *AnthropicProvider) Execute(ctx context.Context, method string, params map[string]any) (any, error) {
	if method != "complete" {
		return nil, &ProviderError{StatusCode: 400, Retriable: false, Err: fmt.Errorf("anthropic provider: unsupported method %q", method)}
	}

	prompt, _ := params["prompt"].(string)
	if prompt == "" {
		return nil, &ProviderError{StatusCode: 400, Retriable: false, Err: errors.New("anthropic provider: missing prompt")}
	}

	model := defaultModel
	if m, ok := params["model"].(string); ok && m != "" {
		model = anthropic.Model(m)
	}

	maxTokens := int64(defaultMaxTokens)
	if mt, ok := params["max_tokens"].(int); ok && mt > 0 {
		maxTokens = int64(mt)
	}

	messageParams := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system, ok := params["system"].(string); ok && system != "" {
		messageParams.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := p.client.Messages.New(ctx, messageParams)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}

	var text string
	for _, block := range message.Content {
		if textBlock := block.AsText(); textBlock.Text != "" {
			text += textBlock.Text
		}
	}

	return map[string]any{
		"text":          text,
		"input_tokens":  message.Usage.InputTokens,
		"output_tokens": message.Usage.OutputTokens,
	}, nil
}

// classifyAnthropicError maps an SDK error to a ProviderError: 4xx-class
// responses (bad request, auth, not found) fail fast; 429 and 5xx-class
// responses, plus unclassified transport errors, are retriable.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		retriable := status == 429 || status >= 500
		return &ProviderError{StatusCode: status, Retriable: retriable, Err: err}
	}
	return &ProviderError{StatusCode: 0, Retriable: true, Err: err}
}
