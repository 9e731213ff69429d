package llm

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hazyhaar/regradar/regradar/internal/assess"
)

//go:embed prompts/classify.txt
var classifyPrompt string

//go:embed prompts/summarize.txt
var summarizePrompt string

// Config holds the OpenAI client settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // override for tests and compatible gateways
}

// OpenAI implements the classifier and summarizer against the OpenAI chat
// completions API. Responses are requested as JSON objects and parsed
// strictly; anything malformed is an error, which the pipeline treats as a
// stage failure.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates the client. Model defaults to gpt-4o-mini.
func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cc), model: cfg.Model, logger: logger}
}

func (o *OpenAI) Classify(ctx context.Context, diff string) (*assess.Classification, error) {
	raw, err := o.complete(ctx, classifyPrompt, diff)
	if err != nil {
		return nil, err
	}
	var c assess.Classification
	if err := decodeStrict(raw, &c); err != nil {
		return nil, fmt.Errorf("classify response: %w", err)
	}
	return &c, nil
}

func (o *OpenAI) Summarize(ctx context.Context, text string) (*assess.Summary, error) {
	raw, err := o.complete(ctx, summarizePrompt, text)
	if err != nil {
		return nil, err
	}
	var s assess.Summary
	if err := decodeStrict(raw, &s); err != nil {
		return nil, fmt.Errorf("summarize response: %w", err)
	}
	return &s, nil
}

// complete runs one chat completion and returns the first choice's content.
func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// decodeStrict unmarshals a JSON object, tolerating a markdown code fence
// around it but nothing else.
func decodeStrict(raw string, dst any) error {
	raw = stripFence(strings.TrimSpace(raw))
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
