// Package mcp talks to the model-serving endpoint under test.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/signalnine/mcpbench/internal/config"
)

// Request is the generation payload the endpoint accepts.
type Request struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type response struct {
	Text string `json:"text"`
}

// Response is the generated text and how long the attempt that produced it
// took. Failed attempts and backoff waits are not part of Latency.
type Response struct {
	Text    string
	Latency time.Duration
}

type Client struct {
	URL     string
	Timeout time.Duration
	Retries int
	HTTP    *http.Client
	// Backoff between retries; nil means exponential with defaults.
	Backoff backoff.BackOff
}

func NewClient(cfg config.MCP) *Client {
	return &Client{
		URL:     cfg.URL,
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		HTTP:    http.DefaultClient,
	}
}

// RequestFor fills generation parameters from cfg.
func RequestFor(cfg config.MCP, prompt string) Request {
	return Request{
		Prompt:      prompt,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
}

// Generate posts req and returns the generated text. Each attempt gets its
// own Timeout; client errors (4xx) are not retried.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}
	opts := []backoff.RetryOption{backoff.WithMaxTries(uint(c.Retries) + 1)}
	if c.Backoff != nil {
		opts = append(opts, backoff.WithBackOff(c.Backoff))
	}
	opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
		slog.Debug("retrying mcp request", "url", c.URL, "err", err, "in", next)
	}))
	return backoff.Retry(ctx, func() (Response, error) {
		start := time.Now()
		text, err := c.post(ctx, body)
		if err != nil {
			return Response{}, err
		}
		return Response{Text: text, Latency: time.Since(start)}, nil
	}, opts...)
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.Text, nil
}
