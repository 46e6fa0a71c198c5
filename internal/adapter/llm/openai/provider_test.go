package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mprcore/reviewd/internal/adapter/llm/openai"
	"github.com/mprcore/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Review_ParsesFindings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"model": "gpt-4",
			"choices": [{"message": {"role": "assistant", "content": "{\"summary\":\"ok\",\"findings\":[{\"File\":\"a.go\",\"Line\":3,\"Severity\":\"minor\",\"Title\":\"t\",\"Message\":\"m\"}]}"}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 10}
		}`))
	}))
	defer server.Close()

	p := openai.NewWithEndpoint("gpt-4", server.URL, config.ProviderConfig{APIKey: "test-key"}, config.HTTPConfig{})

	resp, err := p.Review(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Review.Summary)
	require.Len(t, resp.Review.Findings, 1)
	assert.Equal(t, "a.go", resp.Review.Findings[0].File)
	assert.Equal(t, 30, resp.Tokens)
}

func TestProvider_Review_PropagatesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	retries := 0
	p := openai.NewWithEndpoint("gpt-4", server.URL, config.ProviderConfig{APIKey: "k"}, config.HTTPConfig{MaxRetries: retries})

	_, err := p.Review(context.Background(), "hi")
	assert.Error(t, err)
}

func TestProvider_Name(t *testing.T) {
	p := openai.New("gpt-4", config.ProviderConfig{APIKey: "k"}, config.HTTPConfig{})
	assert.Equal(t, "openai", p.Name())
}
