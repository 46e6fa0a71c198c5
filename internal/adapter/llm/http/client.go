package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatResult is the vendor-agnostic outcome of one prompt/completion call.
type ChatResult struct {
	Text      string
	TokensIn  int
	TokensOut int
	Model     string
	Cost      float64
}

// RequestEncoder builds a vendor's JSON request body and any headers beyond
// Content-Type that its API requires (Anthropic's x-api-key/anthropic-version,
// Gemini's API-key-in-URL needing no extra header, etc).
type RequestEncoder func(model, prompt string, maxTokens int, apiKey string) (body []byte, headers map[string]string, err error)

// ResponseDecoder parses a vendor's 2xx JSON body into a ChatResult.
type ResponseDecoder func(body []byte) (ChatResult, error)

// ErrorDecoder maps a vendor's non-2xx status/body into a typed *Error so
// RetryWithBackoff knows whether to retry.
type ErrorDecoder func(provider string, statusCode int, body []byte) error

// Client is a vendor-agnostic HTTP client for single-turn chat-completion
// style LLM APIs. Per-vendor packages supply the URL and the three encode/
// decode functions; everything else (retry, logging, metrics, pricing) is
// shared.
type Client struct {
	providerName string
	model        string
	apiKey       string
	url          string
	maxTokens    int
	httpClient   *http.Client
	retry        RetryConfig

	encode    RequestEncoder
	decode    ResponseDecoder
	decodeErr ErrorDecoder

	logger  Logger
	metrics Metrics
	pricing Pricing
}

// NewClient builds a Client. url is the full request URL (vendors that put
// the API key in the URL, like Gemini, bake it in here).
func NewClient(providerName, model, apiKey, url string, maxTokens int, timeout time.Duration, retry RetryConfig, encode RequestEncoder, decode ResponseDecoder, decodeErr ErrorDecoder) *Client {
	return &Client{
		providerName: providerName,
		model:        model,
		apiKey:       apiKey,
		url:          url,
		maxTokens:    maxTokens,
		httpClient:   &http.Client{Timeout: timeout},
		retry:        retry,
		encode:       encode,
		decode:       decode,
		decodeErr:    decodeErr,
	}
}

// SetLogger, SetMetrics and SetPricing wire the shared observability
// components the same way every vendor client in this codebase does.
func (c *Client) SetLogger(l Logger)   { c.logger = l }
func (c *Client) SetMetrics(m Metrics) { c.metrics = m }
func (c *Client) SetPricing(p Pricing) { c.pricing = p }

// Call sends prompt to the configured endpoint and returns the parsed result.
func (c *Client) Call(ctx context.Context, prompt string) (ChatResult, error) {
	start := time.Now()

	if c.logger != nil {
		c.logger.LogRequest(ctx, RequestLog{
			Provider: c.providerName, Model: c.model, Timestamp: start,
			PromptChars: len(prompt), APIKey: c.apiKey,
		})
	}
	if c.metrics != nil {
		c.metrics.RecordRequest(c.providerName, c.model)
	}

	body, headers, err := c.encode(c.model, prompt, c.maxTokens, c.apiKey)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%s: encode request: %w", c.providerName, err)
	}

	var resp *http.Response
	err = RetryWithBackoff(ctx, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if reqErr != nil {
			return &Error{Type: ErrTypeUnknown, Message: reqErr.Error(), Provider: c.providerName}
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		callErr := error(nil)
		resp, callErr = c.httpClient.Do(req)
		if callErr != nil {
			return &Error{Type: ErrTypeTimeout, Message: callErr.Error(), Retryable: true, Provider: c.providerName}
		}
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return c.decodeErr(c.providerName, resp.StatusCode, respBody)
		}
		return nil
	}, c.retry)

	duration := time.Since(start)

	if err != nil {
		c.logAndRecordError(ctx, duration, err)
		return ChatResult{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%s: read response: %w", c.providerName, err)
	}

	result, err := c.decode(respBody)
	if err != nil {
		return ChatResult{}, fmt.Errorf("%s: decode response: %w", c.providerName, err)
	}

	if c.pricing != nil {
		result.Cost = c.pricing.GetCost(c.providerName, c.model, result.TokensIn, result.TokensOut)
	}

	if c.logger != nil {
		c.logger.LogResponse(ctx, ResponseLog{
			Provider: c.providerName, Model: c.model, Timestamp: time.Now(),
			Duration: duration, TokensIn: result.TokensIn, TokensOut: result.TokensOut,
			Cost: result.Cost, StatusCode: resp.StatusCode,
		})
	}
	if c.metrics != nil {
		c.metrics.RecordDuration(c.providerName, c.model, duration)
		c.metrics.RecordTokens(c.providerName, c.model, result.TokensIn, result.TokensOut)
		c.metrics.RecordCost(c.providerName, c.model, result.Cost)
	}

	return result, nil
}

func (c *Client) logAndRecordError(ctx context.Context, duration time.Duration, err error) {
	var httpErr *Error
	if !errors.As(err, &httpErr) {
		return
	}
	if c.logger != nil {
		c.logger.LogError(ctx, ErrorLog{
			Provider: c.providerName, Model: c.model, Timestamp: time.Now(),
			Duration: duration, Error: err, ErrorType: httpErr.Type,
			StatusCode: httpErr.StatusCode, Retryable: httpErr.Retryable,
		})
	}
	if c.metrics != nil {
		c.metrics.RecordError(c.providerName, c.model, httpErr.Type)
	}
}

// DecodeStandardError maps the common {"error":{"message":"..."}}-shaped
// error body most of these APIs share onto a typed *Error by status code.
func DecodeStandardError(provider string, statusCode int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := fmt.Sprintf("HTTP %d", statusCode)
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{Type: ErrTypeAuthentication, Message: message, StatusCode: statusCode, Provider: provider}
	case http.StatusTooManyRequests:
		return &Error{Type: ErrTypeRateLimit, Message: message, StatusCode: statusCode, Retryable: true, Provider: provider}
	case http.StatusBadRequest:
		return &Error{Type: ErrTypeInvalidRequest, Message: message, StatusCode: statusCode, Provider: provider}
	case http.StatusNotFound:
		return &Error{Type: ErrTypeModelNotFound, Message: message, StatusCode: statusCode, Provider: provider}
	case http.StatusServiceUnavailable, http.StatusInternalServerError, 529:
		return &Error{Type: ErrTypeServiceUnavailable, Message: message, StatusCode: statusCode, Retryable: true, Provider: provider}
	default:
		return &Error{Type: ErrTypeUnknown, Message: message, StatusCode: statusCode, Provider: provider}
	}
}
