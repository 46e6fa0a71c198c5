// Package ollama adapts a local Ollama daemon's Generate API to executor.Provider.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	llmhttp "github.com/mprcore/reviewd/internal/adapter/llm/http"
	"github.com/mprcore/reviewd/internal/config"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/executor"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 120 * time.Second // local models can be slower than hosted ones
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func encode(model, prompt string, maxTokens int, apiKey string) ([]byte, map[string]string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil, nil, err
	}
	return body, nil, nil
}

func decode(body []byte) (llmhttp.ChatResult, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llmhttp.ChatResult{}, err
	}
	if !resp.Done {
		return llmhttp.ChatResult{}, fmt.Errorf("incomplete response from ollama (done=false)")
	}
	return llmhttp.ChatResult{Text: resp.Response, TokensIn: resp.PromptEvalCount, TokensOut: resp.EvalCount, Model: resp.Model}, nil
}

// decodeError maps Ollama's flat {"error":"..."} body, distinct from the
// {"error":{"message":"..."}} shape the hosted vendors share.
func decodeError(provider string, statusCode int, body []byte) error {
	var parsed errorResponse
	message := fmt.Sprintf("HTTP %d", statusCode)
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		message = parsed.Error
	}
	if strings.Contains(message, "connection refused") {
		return &llmhttp.Error{Type: llmhttp.ErrTypeServiceUnavailable, Message: "ollama server not reachable, is it running? try: ollama serve. " + message, Provider: provider}
	}

	switch statusCode {
	case 404:
		return &llmhttp.Error{Type: llmhttp.ErrTypeModelNotFound, Message: message, StatusCode: statusCode, Provider: provider}
	case 400:
		return &llmhttp.Error{Type: llmhttp.ErrTypeInvalidRequest, Message: message, StatusCode: statusCode, Provider: provider}
	case 503, 500:
		return &llmhttp.Error{Type: llmhttp.ErrTypeServiceUnavailable, Message: message, StatusCode: statusCode, Retryable: true, Provider: provider}
	default:
		return &llmhttp.Error{Type: llmhttp.ErrTypeUnknown, Message: message, StatusCode: statusCode, Provider: provider}
	}
}

// Provider implements executor.Provider against a local Ollama daemon.
// Calls are always free; Review always reports zero cost.
type Provider struct {
	client *llmhttp.Client
}

// New builds an Ollama Provider. cfg.BaseURL overrides the default local
// address; cfg.APIKey is unused since Ollama has no auth.
func New(model string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return NewWithEndpoint(model, baseURL+"/api/generate", cfg, httpCfg)
}

// NewWithEndpoint builds a Provider against an explicit endpoint, bypassing
// cfg.BaseURL/the default local address. Exists so tests can point the
// client at a local httptest server.
func NewWithEndpoint(model, endpoint string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	timeout := llmhttp.ParseTimeout(cfg.Timeout, httpCfg.Timeout, defaultTimeout)
	retry := llmhttp.BuildRetryConfig(cfg, httpCfg)
	client := llmhttp.NewClient(providerName, model, "", endpoint, 0, timeout, retry, encode, decode, decodeError)
	return &Provider{client: client}
}

// WithObservability wires the shared logger/metrics/pricing onto the client.
func (p *Provider) WithObservability(logger llmhttp.Logger, metrics llmhttp.Metrics, pricing llmhttp.Pricing) *Provider {
	if logger != nil {
		p.client.SetLogger(logger)
	}
	if metrics != nil {
		p.client.SetMetrics(metrics)
	}
	// pricing is intentionally not wired: Ollama is local and always free.
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return providerName }

// HealthCheck issues a minimal generate call and reports whether the daemon
// is reachable and the model is pulled.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Call(ctx, "ping")
	return err
}

// Review implements executor.Provider.
func (p *Provider) Review(ctx context.Context, prompt string) (executor.Response, error) {
	result, err := p.client.Call(ctx, prompt)
	if err != nil {
		return executor.Response{}, fmt.Errorf("%s: %w", providerName, err)
	}

	summary, findings, parseErr := llmhttp.ParseReviewResponse(result.Text)
	review := domain.Review{Summary: result.Text, Findings: findings}
	if parseErr == nil {
		review.Summary = summary
	}
	review.Metrics = domain.ReviewMetrics{InputTokens: result.TokensIn, OutputTokens: result.TokensOut}

	return executor.Response{Review: review, Tokens: result.TokensIn + result.TokensOut, PricePerToken: 0}, nil
}
