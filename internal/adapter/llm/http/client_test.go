package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	llmhttp "github.com/mprcore/reviewd/internal/adapter/llm/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoEncode(model, prompt string, maxTokens int, apiKey string) ([]byte, map[string]string, error) {
	return []byte(`{"prompt":"` + prompt + `"}`), map[string]string{"Authorization": "Bearer " + apiKey}, nil
}

func echoDecode(body []byte) (llmhttp.ChatResult, error) {
	return llmhttp.ChatResult{Text: string(body), TokensIn: 10, TokensOut: 5, Model: "test-model"}, nil
}

func TestClient_Call_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"prompt":"hello"}`))
	}))
	defer server.Close()

	c := llmhttp.NewClient("test", "test-model", "key123", server.URL, 1000, 5*time.Second,
		llmhttp.DefaultRetryConfig(), echoEncode, echoDecode, llmhttp.DecodeStandardError)

	result, err := c.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, result.Text, "hello")
	assert.Equal(t, 10, result.TokensIn)
}

func TestClient_Call_ErrorStatusReturnsTypedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	retry := llmhttp.RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}
	c := llmhttp.NewClient("test", "test-model", "bad-key", server.URL, 1000, 5*time.Second,
		retry, echoEncode, echoDecode, llmhttp.DecodeStandardError)

	_, err := c.Call(context.Background(), "hello")
	require.Error(t, err)

	var httpErr *llmhttp.Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, llmhttp.ErrTypeAuthentication, httpErr.Type)
}

func TestClient_Call_RetriesOnRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"prompt":"ok"}`))
	}))
	defer server.Close()

	retry := llmhttp.RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
	c := llmhttp.NewClient("test", "test-model", "key", server.URL, 1000, 5*time.Second,
		retry, echoEncode, echoDecode, llmhttp.DecodeStandardError)

	result, err := c.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Contains(t, result.Text, "ok")
}
