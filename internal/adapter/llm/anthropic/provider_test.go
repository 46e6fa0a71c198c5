package anthropic_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mprcore/reviewd/internal/adapter/llm/anthropic"
	"github.com/mprcore/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Review_ParsesFindings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"model": "claude-3",
			"content": [{"type": "text", "text": "{\"summary\":\"looks fine\",\"findings\":[{\"File\":\"main.go\",\"Line\":10,\"Severity\":\"major\",\"Title\":\"t\",\"Message\":\"m\"}]}"}],
			"usage": {"input_tokens": 100, "output_tokens": 50}
		}`))
	}))
	defer server.Close()

	p := anthropic.NewWithEndpoint("claude-3", server.URL, config.ProviderConfig{APIKey: "test-key"}, config.HTTPConfig{})

	resp, err := p.Review(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, "looks fine", resp.Review.Summary)
	require.Len(t, resp.Review.Findings, 1)
	assert.Equal(t, "main.go", resp.Review.Findings[0].File)
	assert.Equal(t, 150, resp.Tokens)
}

func TestProvider_HealthCheck_PropagatesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer server.Close()

	p := anthropic.NewWithEndpoint("claude-3", server.URL, config.ProviderConfig{APIKey: "bad"}, config.HTTPConfig{})

	err := p.HealthCheck(context.Background())
	assert.Error(t, err)
}

func TestProvider_Name(t *testing.T) {
	p := anthropic.New("claude-3", config.ProviderConfig{APIKey: "k"}, config.HTTPConfig{})
	assert.Equal(t, "anthropic", p.Name())
}
