package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsift/internal/config"
	"docsift/internal/port"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(&config.LLMConfig{
		BaseURL:          url,
		APIKey:           "test-key",
		TransportRetries: retries,
		TimeoutSecs:      5,
	})
}

func TestCompleteReturnsMessageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"result\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, 0).Complete(context.Background(), port.CompletionInput{
		Model: "gpt-4o", System: "sys", User: "user",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"result":[]}`, out)
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL, 2).Complete(context.Background(), port.CompletionInput{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Complete(context.Background(), port.CompletionInput{Model: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteTruncatedOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"partial"},"finish_reason":"length"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Complete(context.Background(), port.CompletionInput{Model: "gpt-4o"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestEmbedPreservesInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		// Vectors deliberately returned out of order.
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0.2]},{"index":0,"embedding":[0.1]}]}`))
	}))
	defer srv.Close()

	vecs, err := newTestClient(srv.URL, 0).Embed(context.Background(), "text-embedding-3-small", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1}, vecs[0])
	assert.Equal(t, []float32{0.2}, vecs[1])
}

func TestEmbedVectorCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Embed(context.Background(), "", []string{"a", "b"})
	assert.Error(t, err)
}
