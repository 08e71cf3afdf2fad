package coach

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
)

const (
	DefaultURL   = "https://api.openai.com/v1/chat/completions"
	DefaultModel = "gpt-4"

	systemPrompt     = "You are FinWise AI Coach. Answer concisely about personal finance. Currency is INR by default."
	emptyChoiceReply = "Sorry, I couldn't generate a reply."
	// NotConfiguredReply is returned to callers of the coach endpoint when no key is set.
	NotConfiguredReply = "AI is not configured yet. Please set OPENAI_API_KEY on the server."
)

var (
	ErrNotConfigured = errors.New("coach provider not configured")
	ErrProvider      = errors.New("coach provider error")
)

// ProviderError carries a non-2xx answer from the text-generation provider.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.Status, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return ErrProvider
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type RemoteConfig struct {
	APIKey  string
	Model   string
	URL     string
	Timeout time.Duration
}

// Remote calls an OpenAI-compatible chat completions endpoint.
type Remote struct {
	apiKey string
	model  string
	url    string
	HTTP   *http.Client
}

func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Remote{
		apiKey: strings.TrimSpace(cfg.APIKey),
		model:  cfg.Model,
		url:    cfg.URL,
		HTTP:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *Remote) Configured() bool {
	return r != nil && r.apiKey != ""
}

// Complete sends one user message and returns the first choice. It makes a
// single attempt.
func (r *Remote) Complete(ctx context.Context, userMessage string) (string, error) {
	if !r.Configured() {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
		return "", &ProviderError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return emptyChoiceReply, nil
	}
	return out.Choices[0].Message.Content, nil
}
