package ollama_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mprcore/reviewd/internal/adapter/llm/ollama"
	"github.com/mprcore/reviewd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Review_ParsesFindings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"model": "llama3",
			"response": "{\"summary\":\"local review\",\"findings\":[{\"File\":\"c.go\",\"Line\":2,\"Severity\":\"major\",\"Title\":\"t\",\"Message\":\"m\"}]}",
			"done": true,
			"prompt_eval_count": 15,
			"eval_count": 5
		}`))
	}))
	defer server.Close()

	p := ollama.NewWithEndpoint("llama3", server.URL, config.ProviderConfig{}, config.HTTPConfig{})

	resp, err := p.Review(context.Background(), "review this")
	require.NoError(t, err)
	assert.Equal(t, "local review", resp.Review.Summary)
	require.Len(t, resp.Review.Findings, 1)
	assert.Equal(t, 0.0, resp.PricePerToken)
}

func TestProvider_Review_IncompleteResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"model":"llama3","response":"","done":false}`))
	}))
	defer server.Close()

	p := ollama.NewWithEndpoint("llama3", server.URL, config.ProviderConfig{}, config.HTTPConfig{})

	_, err := p.Review(context.Background(), "review this")
	assert.Error(t, err)
}

func TestProvider_Review_ServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama3' not found"}`))
	}))
	defer server.Close()

	p := ollama.NewWithEndpoint("llama3", server.URL, config.ProviderConfig{}, config.HTTPConfig{})

	_, err := p.Review(context.Background(), "review this")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestProvider_Name(t *testing.T) {
	p := ollama.New("llama3", config.ProviderConfig{}, config.HTTPConfig{})
	assert.Equal(t, "ollama", p.Name())
}
