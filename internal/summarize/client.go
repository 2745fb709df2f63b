package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const systemPrompt = "You are a medical scribe. Produce a concise, plain-language summary of a " +
	"patient's health history based on provided records. Use short paragraphs and bullet points. " +
	"Avoid PHI leakage and avoid speculation; if uncertain, say so."

// fallbackModels are tried in order when no model override is configured.
var fallbackModels = []string{"gpt-5", "gpt-5-mini", "gpt-4o-mini"}

// Client calls an OpenAI-compatible chat completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string // optional override, tried before the fallback list
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a summarization client. An empty apiKey disables API
// calls; Summarize then reports not-configured and callers fall back to the
// placeholder summary.
func NewClient(baseURL, apiKey, model string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize sends the prompt to the chat completions endpoint, trying the
// configured model first and then the fallback list. Returns the summary and
// the model that produced it.
func (c *Client) Summarize(ctx context.Context, prompt string) (summary, model string, err error) {
	if !c.Configured() {
		return "", "", fmt.Errorf("no API key configured")
	}
	models := fallbackModels
	if c.model != "" {
		models = append([]string{c.model}, fallbackModels...)
	}

	var lastErr error
	for _, m := range models {
		content, err := c.complete(ctx, m, prompt)
		if err != nil {
			lastErr = err
			c.logger.Warn("summary model failed, trying next", zap.String("model", m), zap.Error(err))
			continue
		}
		return content, m, nil
	}
	return "", "", fmt.Errorf("all summary models failed: %w", lastErr)
}

func (c *Client) complete(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   600,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
