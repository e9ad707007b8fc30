// Package llmclient is a minimal OpenAI-style chat-completions client:
// non-streaming, bearer-authenticated, with the engine's small retry
// budget for transient failures baked in.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/e5"

	"github.com/rlmcore/rlmcore/logs"
	"github.com/rlmcore/rlmcore/nets"
	"github.com/rlmcore/rlmcore/rlmerrors"
)

type Module struct {
	dscope.Module
	Nets nets.Module
	Logs logs.Module
}

// BaseURL, APIKey, PrimaryModel and SubModel are sourced from the
// environment by rlmconfig; these providers are the defaults used when
// rlmconfig isn't wired into the scope (e.g. in package tests).
type BaseURL string
type APIKey string
type PrimaryModel string
type SubModel string

func (Module) BaseURL() BaseURL             { return "https://api.openai.com" }
func (Module) APIKey() APIKey               { return "" }
func (Module) PrimaryModel() PrimaryModel   { return "gpt-4o" }
func (Module) SubModel() SubModel           { return "gpt-4o-mini" }

var retryBackoff = []time.Duration{250 * time.Millisecond, time.Second, 4 * time.Second}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client is the callable surface RlmEngine and the sandbox's llm_query
// primitive both drive.
type Client struct {
	http     nets.HTTPClient
	base     BaseURL
	apiKey   APIKey
	primary  PrimaryModel
	sub      SubModel
	logger   logs.Logger
}

func (Module) Client(
	httpClient nets.HTTPClient,
	base BaseURL,
	apiKey APIKey,
	primary PrimaryModel,
	sub SubModel,
	logger logs.Logger,
) Client {
	return Client{
		http:    httpClient,
		base:    base,
		apiKey:  apiKey,
		primary: primary,
		sub:     sub,
		logger:  logger,
	}
}

// CompletePrimary drives one turn of the RLM loop's dialogue.
func (c Client) CompletePrimary(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	return c.complete(ctx, string(c.primary), messages, maxTokens)
}

// CompleteSub backs the sandbox's llm_query primitive: a single-shot,
// low-token-cap, toolless call to the sub-model.
func (c Client) CompleteSub(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return c.complete(ctx, string(c.sub), []Message{{Role: "user", Content: prompt}}, maxTokens)
}

func (c Client) complete(ctx context.Context, model string, messages []Message, maxTokens int) (string, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.2,
		MaxTokens:   maxTokens,
		Stream:      false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", e5.Wrap(err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryBackoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", rlmerrors.Cancelled{Reason: ctx.Err().Error()}
			case <-time.After(retryBackoff[attempt-1]):
			}
		}

		content, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		c.logger.WarnContext(ctx, "llm call failed, retrying", "attempt", attempt, "error", err)
	}

	return "", rlmerrors.LlmUnavailable{Endpoint: string(c.base), Err: lastErr}
}

func (c Client) doOnce(ctx context.Context, body []byte) (content string, retryable bool, err error) {
	url := fmt.Sprintf("%s/v1/chat/completions", c.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, e5.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+string(c.apiKey))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("%w: %v", rlmerrors.ErrRetryable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", true, fmt.Errorf("%w: read response: %v", rlmerrors.ErrRetryable, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("%w: status %d: %s", rlmerrors.ErrRetryable, resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return "", false, fmt.Errorf("llm request failed: status %d: %s", resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, e5.Wrap(err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("llm error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("llm response has no choices")
	}

	return parsed.Choices[0].Message.Content, false, nil
}
