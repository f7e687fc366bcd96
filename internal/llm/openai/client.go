// Package openai implements the completion and embedding ports against
// the OpenAI-compatible HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"docsift/internal/config"
	"docsift/internal/llm"
	"docsift/internal/port"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements port.Completer and port.Embedder. Transport failures
// (429, 5xx, network errors) are retried here with exponential backoff;
// validation retries happen one layer up in the invoker.
type Client struct {
	apiKey         string
	baseURL        string
	embeddingModel string
	maxRetries     int
	client         *http.Client
}

// NewClient creates a Client from the LLM config section.
func NewClient(cfg *config.LLMConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		embeddingModel: cfg.EmbeddingModel,
		maxRetries:     cfg.TransportRetries,
		client:         &http.Client{Timeout: timeout},
	}
}

// Complete issues one chat completion and returns the raw message text.
func (c *Client) Complete(ctx context.Context, in port.CompletionInput) (string, error) {
	reqBody := map[string]interface{}{
		"model": in.Model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": in.System},
			{"role": "user", "content": in.User},
		},
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}
	for k, v := range in.Options {
		reqBody[k] = v
	}

	body, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling completion response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API: no choices")
	}
	if resp.Choices[0].FinishReason == "length" {
		return "", fmt.Errorf("output truncated (finish_reason: length): response exceeded output token limit")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one embedding vector per input text.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if model == "" {
		model = c.embeddingModel
	}
	reqBody := map[string]interface{}{
		"model": model,
		"input": texts,
	}

	body, err := c.post(ctx, "/embeddings", reqBody)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling embeddings response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings response index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// post sends a JSON request with transport-level retries. Retryable
// statuses are 429 and 5xx; 429 backoff honors Retry-After.
func (c *Client) post(ctx context.Context, path string, reqBody interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoffDelay(attempt, lastErr)); err != nil {
				return nil, err
			}
			log.Printf("openai.post: retrying %s (attempt %d/%d) after: %v",
				path, attempt+1, c.maxRetries+1, lastErr)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("calling openai API: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return respBody, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			baseErr := fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			lastErr = llm.NewRateLimitError("openai", baseErr, retryAfter)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
		default:
			return nil, fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
		}
	}

	return nil, lastErr
}

func backoffDelay(attempt int, lastErr error) time.Duration {
	var rle *llm.RateLimitError
	if errors.As(lastErr, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
