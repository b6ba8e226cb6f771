// Package advisory asks a chat-completion model to review a claim. Results
// are suggestions only; nothing here changes stored data.
package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are an RCM billing copilot. Review the claim context and return JSON only with keys: " +
	"summary (string), risks (array of strings), suggestedChanges (array of {field,message}), " +
	"confidence (number 0-1). If you can propose corrections or missing values, include them as suggestedChanges."

var ErrEmptyResponse = errors.New("advisory: model returned no choices")

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Suggestion struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is the normalized model answer. Confidence is clamped to [0, 1].
type Result struct {
	Summary          string       `json:"summary"`
	Risks            []string     `json:"risks"`
	SuggestedChanges []Suggestion `json:"suggestedChanges"`
	Confidence       float64      `json:"confidence"`
}

type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// Review sends input, marshalled as JSON, to the model and parses its
// JSON answer.
func (c *Client) Review(ctx context.Context, input any) (*Result, error) {
	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("advisory: encode context: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		Temperature: 0.2,
		MaxTokens:   900,
		TopP:        1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("advisory: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return Parse(resp.Choices[0].Message.Content)
}

// Parse normalizes a raw model answer. Missing lists become empty, a
// missing summary gets a default and a missing confidence becomes 0.5.
func Parse(raw string) (*Result, error) {
	var parsed struct {
		Summary          string       `json:"summary"`
		Risks            []string     `json:"risks"`
		SuggestedChanges []Suggestion `json:"suggestedChanges"`
		Confidence       *float64     `json:"confidence"`
	}
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("advisory: decode answer: %w", err)
	}

	res := &Result{
		Summary:          parsed.Summary,
		Risks:            parsed.Risks,
		SuggestedChanges: parsed.SuggestedChanges,
		Confidence:       0.5,
	}
	if res.Summary == "" {
		res.Summary = "AI review completed."
	}
	if res.Risks == nil {
		res.Risks = []string{}
	}
	if res.SuggestedChanges == nil {
		res.SuggestedChanges = []Suggestion{}
	}
	if parsed.Confidence != nil {
		res.Confidence = clamp(*parsed.Confidence)
	}
	return res, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
