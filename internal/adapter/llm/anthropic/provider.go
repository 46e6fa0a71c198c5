// Package anthropic adapts Anthropic's Messages API to executor.Provider.
package anthropic

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
	providerName     = "anthropic"
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

type messagesRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func encode(model, prompt string, maxTokens int, apiKey string) ([]byte, map[string]string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     model,
		Messages:  []message{{Role: "user", Content: prompt}},
		System:    "You are a code review assistant. Analyze the code and respond with a single JSON object containing \"summary\" and \"findings\".",
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, nil, err
	}
	return body, map[string]string{"x-api-key": apiKey, "anthropic-version": anthropicVersion}, nil
}

func decode(body []byte) (llmhttp.ChatResult, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llmhttp.ChatResult{}, err
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return llmhttp.ChatResult{Text: text, TokensIn: resp.Usage.InputTokens, TokensOut: resp.Usage.OutputTokens, Model: resp.Model}, nil
}

// Provider implements executor.Provider against the Anthropic API.
type Provider struct {
	client *llmhttp.Client
}

// New builds an Anthropic Provider from configuration.
func New(model string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	return NewWithEndpoint(model, defaultBaseURL, cfg, httpCfg)
}

// NewWithEndpoint builds a Provider against an explicit endpoint, bypassing
// the default Anthropic URL. Exists so tests can point the client at a
// local httptest server.
func NewWithEndpoint(model, endpoint string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	timeout := llmhttp.ParseTimeout(cfg.Timeout, httpCfg.Timeout, 60*time.Second)
	retry := llmhttp.BuildRetryConfig(cfg, httpCfg)
	client := llmhttp.NewClient(providerName, model, cfg.APIKey, endpoint, 4096, timeout, retry, encode, decode, llmhttp.DecodeStandardError)
	return &Provider{client: client}
}

// WithObservability wires the shared logger/metrics/pricing onto the
// underlying client, matching every other vendor package in this tree.
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

// HealthCheck issues a minimal call and reports whether the API is reachable
// and the key is accepted.
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

	return executor.Response{Review: review, Tokens: result.TokensIn + result.TokensOut, PricePerToken: pricePerToken(result)}, nil
}

func pricePerToken(r llmhttp.ChatResult) float64 {
	total := r.TokensIn + r.TokensOut
	if total == 0 {
		return 0
	}
	return r.Cost / float64(total)
}
