// Package judge classifies screen observations against the user's stated task
// using Gemini vision.
package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/sherpa-ai/sherpa/pkg/core/capture"
	"github.com/sherpa-ai/sherpa/pkg/core/types"
)

// Oracle turns an observation plus task description into a Judgment.
type Oracle interface {
	// Judge never returns an error: any transport failure, empty body, or
	// unparseable payload resolves to the fail-open default Judgment
	// (on-task, low confidence, no intervention). Transient oracle trouble
	// must never force an unwanted intervention.
	Judge(ctx context.Context, obs *capture.Observation, task string) types.Judgment
}

// GeminiOracle implements Oracle against the Gemini API.
type GeminiOracle struct {
	model  string
	logger *slog.Logger

	// generate is swappable for tests.
	generate func(ctx context.Context, prompt string, imagePNG []byte) (string, error)
}

// NewGeminiOracle creates an oracle using the given API key and model.
func NewGeminiOracle(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiOracle, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	o := &GeminiOracle{model: model, logger: logger}
	o.generate = func(ctx context.Context, prompt string, imagePNG []byte) (string, error) {
		contents := []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromText(prompt),
				genai.NewPartFromBytes(imagePNG, "image/png"),
			}, genai.RoleUser),
		}
		// Low temperature keeps the JSON output shape stable.
		cfg := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.1),
			TopP:            genai.Ptr[float32](0.8),
			MaxOutputTokens: 1024,
		}
		resp, err := client.Models.GenerateContent(ctx, o.model, contents, cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return o, nil
}

// Judge implements Oracle.
func (o *GeminiOracle) Judge(ctx context.Context, obs *capture.Observation, task string) types.Judgment {
	prompt := buildPrompt(task, time.Now())

	text, err := o.generate(ctx, prompt, obs.PNG)
	if err != nil {
		o.logger.Warn("oracle call failed, using default judgment", "error", err)
		return DefaultJudgment()
	}

	text = stripCodeFence(strings.TrimSpace(text))
	if text == "" {
		o.logger.Warn("oracle returned empty response, using default judgment")
		return DefaultJudgment()
	}

	j, err := types.UnmarshalJudgment([]byte(text))
	if err != nil {
		o.logger.Warn("oracle response not parseable, using default judgment", "error", err)
		return DefaultJudgment()
	}

	j.Timestamp = time.Now()
	return j
}

// DefaultJudgment is the fail-open result used whenever analysis cannot
// complete: on-task, low confidence, no intervention.
func DefaultJudgment() types.Judgment {
	return types.Judgment{
		ActivityDescription: "Unknown",
		OnTask:              true,
		Confidence:          types.ConfidenceLow,
		Reasoning:           "Analysis failed",
		SourceApp:           "Unknown",
		NeedsIntervention:   false,
		Timestamp:           time.Now(),
	}
}

// stripCodeFence removes a surrounding fenced code block (``` or ```json)
// that models sometimes wrap structured output in.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func buildPrompt(task string, now time.Time) string {
	return fmt.Sprintf(rubricTemplate, task, now.Format("2006-01-02 15:04:05"))
}

// rubricTemplate is the fixed classification rubric sent with every
// observation. Category heuristics: coding/writing tasks are on-task only in
// matching tools; social media, shopping, entertainment, and news are always
// off-task unless the task text explicitly names that category.
const rubricTemplate = `You are Sherpa, an AI productivity mentor analyzing a user's screen.

Current Task: %q
Timestamp: %s

Analyze this screenshot and respond in JSON format:

{
    "activity_detected": "Brief description of what's visible on screen",
    "is_on_task": true/false,
    "confidence": "high/medium/low",
    "reasoning": "One sentence explaining your assessment",
    "app_or_website": "Name of primary application or website visible",
    "needs_intervention": true/false
}

Guidelines for determining if on-task:
- If the task is "No task set", mark is_on_task as true
- For task "Coding": only coding environments (IDE, terminal, GitHub, Stack Overflow, documentation) are on-task
- For task "Writing": only writing apps (docs, editors, research) are on-task
- Social media (Reddit, Twitter, Instagram, Facebook, TikTok) is ALWAYS off-task unless the task explicitly involves social media
- Shopping (Amazon, eBay, etc.) is ALWAYS off-task unless the task explicitly involves shopping
- Entertainment (YouTube, Netflix, games) is ALWAYS off-task unless the task explicitly involves entertainment
- News sites, apartment browsing, sports sites are off-task unless directly related to the stated task

Be strict:
- Browsing Reddit while the task is "Coding" means is_on_task=false, needs_intervention=true
- Browsing apartments while the task is "Coding" means is_on_task=false, needs_intervention=true
- Watching YouTube while the task is "Writing" means is_on_task=false, needs_intervention=true

Respond ONLY with valid JSON, no other text.`
