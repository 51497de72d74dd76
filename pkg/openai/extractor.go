// Package openai segments recipe text into task strings with an
// OpenAI-compatible chat completion endpoint.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/korjavin/mise/pkg/logger"
)

// ErrNoResponse is returned when the endpoint answers without choices
var ErrNoResponse = errors.New("no response from OpenAI API")

// Extractor turns paragraphs into ordered task strings
type Extractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logger.Logger
}

// New creates a new extractor
func New(apiKey, apiBase, model string, timeout time.Duration) *Extractor {
	config := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		config.BaseURL = apiBase
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Extractor{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
		logger:  logger.New("openai"),
	}
}

const segmentPrompt = `You split cooking instructions into atomic tasks.
Each task is one action a cook performs, in the order they happen.
Keep durations, temperatures and ingredient names exactly as written.
Return only a JSON array of strings, no other text.
For example: ["Bring a pot of water to a boil", "Add the pasta and cook for 8 minutes", "Drain"]

Instructions:
%s
`

const ingredientsPrompt = `You are a cooking assistant. Extract all food ingredients from the following recipe.
Return only a JSON array of ingredient names without quantities, no other text.
For example: ["eggs", "milk", "tomatoes", "chicken breast"]

Recipe:
%s
`

// Segment implements segment.Segmenter
func (e *Extractor) Segment(ctx context.Context, text string) ([]string, error) {
	e.logger.Info("Segmenting %d characters of instructions", len(text))
	content, err := e.complete(ctx, fmt.Sprintf(segmentPrompt, text), 0.1)
	if err != nil {
		return nil, err
	}

	var steps []string
	if err := json.Unmarshal([]byte(content), &steps); err != nil {
		e.logger.Warn("Failed to parse response: %v, Content: %s", err, truncateString(content, 200))

		steps = extractStepsFromText(content)
		if len(steps) == 0 {
			return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
		}
		e.logger.Info("Extracted %d steps using fallback method", len(steps))
	}
	return steps, nil
}

// Ingredients extracts the ingredient names mentioned in a recipe
func (e *Extractor) Ingredients(ctx context.Context, text string) ([]string, error) {
	content, err := e.complete(ctx, fmt.Sprintf(ingredientsPrompt, text), 0.2)
	if err != nil {
		return nil, err
	}

	var ingredients []string
	if err := json.Unmarshal([]byte(content), &ingredients); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	e.logger.Info("Extracted %d ingredients", len(ingredients))
	return ingredients, nil
}

func (e *Extractor) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Debug("OpenAI prompt (first 100 chars): %s", truncateString(prompt, 100))

	resp, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a precise kitchen assistant that restructures recipes without inventing steps.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoResponse
	}

	content := resp.Choices[0].Message.Content
	e.logger.Debug("OpenAI response (first 100 chars): %s", truncateString(content, 100))
	return cleanJSONResponse(content), nil
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// cleanJSONResponse strips a markdown code fence around the payload
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		// the first line may be ```json
		if firstLineEnd := strings.Index(s, "\n"); firstLineEnd != -1 {
			s = s[firstLineEnd+1:]
		}
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}

	return s
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// extractStepsFromText reads one step per line from a numbered or bulleted
// list when the model ignored the JSON instruction
func extractStepsFromText(s string) []string {
	var steps []string
	for _, line := range strings.Split(s, "\n") {
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `",[]`)
		line = strings.TrimSpace(line)
		if len(line) <= 1 || line == "null" {
			continue
		}
		steps = append(steps, line)
	}
	return steps
}
