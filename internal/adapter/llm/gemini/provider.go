// Package gemini adapts Google's Gemini generateContent API to executor.Provider.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	llmhttp "github.com/mprcore/reviewd/internal/adapter/llm/http"
	"github.com/mprcore/reviewd/internal/config"
	"github.com/mprcore/reviewd/internal/domain"
	"github.com/mprcore/reviewd/internal/executor"
)

const (
	providerName = "gemini"
	baseURLFmt   = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"
)

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func encode(model, prompt string, maxTokens int, apiKey string) ([]byte, map[string]string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{MaxOutputTokens: maxTokens},
	})
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
	var text string
	if len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	return llmhttp.ChatResult{Text: text, TokensIn: resp.UsageMetadata.PromptTokenCount, TokensOut: resp.UsageMetadata.CandidatesTokenCount}, nil
}

// Provider implements executor.Provider against the Gemini API.
type Provider struct {
	client *llmhttp.Client
	model  string
}

// New builds a Gemini Provider from configuration. The API key is baked
// into the request URL per Gemini's auth scheme, rather than a header.
func New(model string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	endpoint := fmt.Sprintf(baseURLFmt, url.PathEscape(model), url.QueryEscape(cfg.APIKey))
	return NewWithEndpoint(model, endpoint, cfg, httpCfg)
}

// NewWithEndpoint builds a Provider against an explicit endpoint, bypassing
// the default Gemini URL and its baked-in API key query parameter. Exists
// so tests can point the client at a local httptest server.
func NewWithEndpoint(model, endpoint string, cfg config.ProviderConfig, httpCfg config.HTTPConfig) *Provider {
	timeout := llmhttp.ParseTimeout(cfg.Timeout, httpCfg.Timeout, 60*time.Second)
	retry := llmhttp.BuildRetryConfig(cfg, httpCfg)
	client := llmhttp.NewClient(providerName, model, cfg.APIKey, endpoint, 4096, timeout, retry, encode, decode, llmhttp.DecodeStandardError)
	return &Provider{client: client, model: model}
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
