// Package metadata asks a chat model to describe code examples that arrive
// without an explanation or tags.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
)

// DefaultMaxTokens is the maximum code length before truncation (in tokens).
const DefaultMaxTokens = 4000

// ExampleMetadata is the model's description of one example.
type ExampleMetadata struct {
	Explanation string   `json:"explanation"`
	Tags        []string `json:"tags"`
}

// Generator produces example metadata using GPT-4o.
type Generator struct {
	client    *openai.Client
	maxTokens int
}

// NewGenerator creates a generator with the given OpenAI client.
// Optional maxTokens sets the truncation limit (defaults to DefaultMaxTokens).
func NewGenerator(client *openai.Client, maxTokens ...int) *Generator {
	max := DefaultMaxTokens
	if len(maxTokens) > 0 && maxTokens[0] > 0 {
		max = maxTokens[0]
	}
	return &Generator{
		client:    client,
		maxTokens: max,
	}
}

// DescribeExample returns a short explanation and topic tags for code.
func (g *Generator) DescribeExample(ctx context.Context, language, title, code string) (*ExampleMetadata, error) {
	prompt := fmt.Sprintf(`You are curating a knowledge base of small %s programs used to explain code to students.

Example title: %s

Code:
%s

Respond in JSON format:
{"explanation": "One or two sentences on what the code does and how", "tags": ["tag1", "tag2"]}

Tags are short lower-case topics such as recursion, pointers, sorting, loops, io.`,
		language, title, g.truncateContent(code))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModelGPT4o,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	return parseMetadata(resp.Choices[0].Message.Content)
}

func parseMetadata(content string) (*ExampleMetadata, error) {
	var meta ExampleMetadata
	if err := json.Unmarshal([]byte(content), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	tags := make([]string, 0, len(meta.Tags))
	for _, tag := range meta.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			tags = append(tags, tag)
		}
	}
	meta.Tags = tags
	meta.Explanation = strings.TrimSpace(meta.Explanation)
	return &meta, nil
}

// truncateContent truncates code to fit within token limits.
// Uses a rough estimate of 4 characters per token.
func (g *Generator) truncateContent(content string) string {
	maxChars := g.maxTokens * 4
	if len(content) <= maxChars {
		return content
	}

	slog.Warn("Truncating example code",
		"from", len(content), "to", maxChars, "tokens", g.maxTokens)

	return content[:maxChars]
}
