// Package openai adapts the OpenAI chat-completions API to executor.Provider.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	llmhttp "github.com/mprcore/reviewd/internal/adapter/llm/http"
	"github.com/mprcore/reviewd/internal/config"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/executor"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
)

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func encode(model, prompt string, maxTokens int, apiKey string) ([]byte, map[string]string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a code review assistant. Respond with a single JSON object containing \"summary\" and \"findings\"."},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, nil, err
	}
	return body, map[string]string{"Authorization": "Bearer " + apiKey}, nil
}

func decode(body []byte) (llmhttp.ChatResult, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llmhttp.ChatResult{}, err
	}
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	return llmhttp.ChatResult{Text: text, TokensIn: resp.Usage.PromptTokens, TokensOut: resp.Usage.CompletionTokens, Model: resp.Model}, nil
}

// Provider implements executor.Provider against the OpenAI API.
type Provider struct {
	client *llmhttp.Client
}

// New builds an OpenAI Provider from configuration.
func New(model string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	return NewWithEndpoint(model, defaultBaseURL, cfg, httpCfg)
}

// NewWithEndpoint builds a Provider against an explicit endpoint, bypassing
// the default OpenAI URL. Exists so tests can point the client at a local
// httptest server.
func NewWithEndpoint(model, endpoint string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	timeout := llmhttp.ParseTimeout(cfg.Timeout, httpCfg.Timeout, 60*time.Second)
	retry := llmhttp.BuildRetryConfig(cfg, httpCfg)
	client := llmhttp.NewClient(providerName, model, cfg.APIKey, endpoint, 4096, timeout, retry, encode, decode, llmhttp.DecodeStandardError)
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
	if pricing != nil {
		p.client.SetPricing(pricing)
	}
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return providerName }

// HealthCheck issues a minimal call and reports whether the API is reachable.
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
	review.Metrics = domain.ReviewMetrics{CostUSD: result.Cost, InputTokens: result.TokensIn, OutputTokens: result.TokensOut}

	total := result.TokensIn + result.TokensOut
	var pricePerToken float64
	if total > 0 {
		pricePerToken = result.Cost / float64(total)
	}

	return executor.Response{Review: review, Tokens: total, PricePerToken: pricePerToken}, nil
}
