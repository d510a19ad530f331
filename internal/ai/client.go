package ai

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

	"github.com/rs/zerolog"
)

// ErrEmptyCompletion indicates the model returned no usable choices.
var ErrEmptyCompletion = errors.New("ai: completion contained no choices")

// Suggester asks an AI collaborator for a code fix.
type Suggester interface {
	// SuggestFix returns the raw model response for a fix request. Callers
	// extract the fenced code block themselves; an absent block means the
	// suggestion is unusable.
	SuggestFix(ctx context.Context, module, errorText string) (string, error)
}

// Recommender produces a market commentary for an analysis report.
type Recommender interface {
	Recommend(ctx context.Context, briefing string) (string, error)
}

// Options parameterise the chat-completions client.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs the AI client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.deepseek.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "deepseek-chat"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "ai_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// SuggestFix requests a complete rewritten module for a recorded failure.
func (c *Client) SuggestFix(ctx context.Context, module, errorText string) (string, error) {
	prompt := fmt.Sprintf(
		"Fix the following Go error in module %q:\n%s\n\nProvide the complete fixed code for the module in a single fenced code block, followed by a short explanation of the changes.",
		module, errorText,
	)
	return c.complete(ctx, "You are an expert Go developer.", prompt, 0.3)
}

// Recommend asks for a trading commentary on a prepared market briefing.
func (c *Client) Recommend(ctx context.Context, briefing string) (string, error) {
	return c.complete(ctx, "You are a professional crypto trader. Provide detailed analysis.", briefing, 0.7)
}

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
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if c.opts.APIKey == "" {
		return "", errors.New("ai api key not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return decoded.Choices[0].Message.Content, nil
}

var (
	_ Suggester   = (*Client)(nil)
	_ Recommender = (*Client)(nil)
)
