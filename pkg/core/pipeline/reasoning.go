package pipeline

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/sherpa-ai/sherpa/pkg/core/types"
)

// Reasoner produces the assistant's next reply from the conversation history.
// The first message is always the system prompt.
type Reasoner interface {
	Reply(ctx context.Context, history []types.Message) (string, error)
}

// GeminiReasoner implements Reasoner against the Gemini API.
type GeminiReasoner struct {
	model string

	// generate is swappable for tests.
	generate func(ctx context.Context, system string, turns []types.Message) (string, error)
}

// NewGeminiReasoner creates a reasoner using the given API key and model.
func NewGeminiReasoner(ctx context.Context, apiKey, model string) (*GeminiReasoner, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	r := &GeminiReasoner{model: model}
	r.generate = func(ctx context.Context, system string, turns []types.Message) (string, error) {
		contents := chatContents(turns)
		cfg := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.9),
			MaxOutputTokens:   256,
		}
		resp, err := client.Models.GenerateContent(ctx, r.model, contents, cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return r, nil
}

// chatContents maps conversation turns onto Gemini chat contents. Assistant
// turns become model-role contents, everything else speaks as the user.
func chatContents(turns []types.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		var role genai.Role = genai.RoleUser
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// Reply implements Reasoner.
func (r *GeminiReasoner) Reply(ctx context.Context, history []types.Message) (string, error) {
	var system string
	turns := make([]types.Message, 0, len(history))
	for _, m := range history {
		if m.Role == types.RoleSystem {
			system = m.Content
			continue
		}
		turns = append(turns, m)
	}

	text, err := r.generate(ctx, system, turns)
	if err != nil {
		return "", fmt.Errorf("reasoning turn: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("reasoning turn: empty reply")
	}
	return text, nil
}
