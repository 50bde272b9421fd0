// Package gemini is a minimal client for the Gemini REST API, covering only
// what lesson plan generation needs: one availability probe and streamed
// multi-turn content generation.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 300 * time.Second
)

var (
	ErrAPIKeyRequired   = errors.New("API key is required")
	ErrModelUnavailable = errors.New("model is not available")
	ErrTurnInFlight     = errors.New("a turn is already streaming on this session")
	ErrStreamFailed     = errors.New("streaming request failed")
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	TimeoutSec int
	Verbose    bool
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	verbose    bool
}

func New(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		verbose: cfg.Verbose,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// NewSession checks that the configured model is reachable and returns a
// session bound to the given system prompt. The prompt stays attached to the
// session for its entire lifetime; no message is sent here.
func (c *Client) NewSession(ctx context.Context, systemPrompt string) (*Session, error) {
	if err := c.checkModel(ctx); err != nil {
		return nil, err
	}

	return &Session{
		client:       c,
		systemPrompt: systemPrompt,
	}, nil
}

func (c *Client) checkModel(ctx context.Context) error {
	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s (status %d): %s", ErrModelUnavailable, c.model, resp.StatusCode, apiErrorMessage(body))
	}
	return nil
}

// apiErrorMessage pulls the human-readable message out of an API error body,
// falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var wrapped struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return string(body)
}

func (c *Client) logf(format string, args ...any) {
	if !c.verbose {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
