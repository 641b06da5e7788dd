package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0.7)
	m.ResponseMIMEType = "application/json"

	return &GeminiClient{
		client: client,
		model:  m,
	}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// GenerateIcebreakers asks for three opening lines for two freshly matched
// users.
func (c *GeminiClient) GenerateIcebreakers(ctx context.Context, interests1, interests2 []string) ([]string, error) {
	prompt := fmt.Sprintf(`
		Generate 3 creative icebreaker messages for a dating chat that just started.
		User 1 interests: %v
		User 2 interests: %v

		Focus on shared interests or interesting contrasts. Keep each under 140 characters.
		Output: JSON array of strings.
	`, interests1, interests2)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate icebreakers: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content generated")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return ParseIcebreakers(sb.String())
}

// ParseIcebreakers accepts a JSON array, optionally fenced as markdown, and
// falls back to one suggestion per non-empty line.
func ParseIcebreakers(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var icebreakers []string
	err := json.Unmarshal([]byte(text), &icebreakers)
	if err == nil {
		return icebreakers, nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "[") && !strings.HasSuffix(line, "]") {
			icebreakers = append(icebreakers, line)
		}
	}
	if len(icebreakers) == 0 {
		return nil, fmt.Errorf("failed to parse icebreakers: %w", err)
	}
	return icebreakers, nil
}
