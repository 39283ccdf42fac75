// Package llm implements the inference collaborator: a client for an
// Ollama-compatible completion endpoint plus the retry policy the
// orchestrator applies around it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qagen/internal/domain"
)

// Options configures the completion client.
type Options struct {
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client calls an Ollama-compatible /api/generate endpoint.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

// NewClient creates a completion client.
func NewClient(opts Options) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		httpClient:  &http.Client{},
	}
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete submits a prompt and returns the raw completion text. The
// per-call timeout from Options bounds the whole request; a timeout is
// reported as a timeout error and counts as one failed attempt against
// the retry budget.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:       c.model,
		Prompt:      prompt,
		Temperature: c.temperature,
		Stream:      false,
	})
	if err != nil {
		return "", domain.TransportError("marshal completion request", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", domain.TransportError("build completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A canceled parent context is not a unit failure; let the
		// caller observe the cancellation directly.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.TimeoutError(fmt.Sprintf("completion timed out after %s", c.timeout), err)
		}
		return "", domain.TransportError("completion request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", domain.TransportError(
			fmt.Sprintf("completion endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", domain.TransportError("decode completion response", err)
	}

	text := strings.TrimSpace(decoded.Response)
	if text == "" {
		return "", domain.FormatError("empty completion", nil)
	}
	return text, nil
}
