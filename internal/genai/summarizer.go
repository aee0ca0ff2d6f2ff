package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/beedev/dbnotebook/internal/index"
)

const summaryPrompt = `Summarize the following related passages into a single coherent summary of about %d words. Preserve concrete facts, names, and numbers. Write plain prose with no preamble.

%s`

const denseSummaryPrompt = `Write a dense summary of the following document in at most 300 words. Cover every major topic; prefer specifics over generalities. Write plain prose with no preamble.

%s`

const keyInsightsPrompt = `Extract the 3 to 7 most important insights from the following document. Output format: JSON array of strings, nothing else.
Example: ["First insight", "Second insight"]

%s`

const reflectionQuestionsPrompt = `Write 3 to 5 open-ended reflection questions that test understanding of the following document. Output format: JSON array of strings, nothing else.
Example: ["How does X relate to Y?"]

%s`

// Summarizer generates cluster summaries during tree builds.
type Summarizer struct {
	g         *genkit.Genkit
	modelName string
}

// NewSummarizer creates a Summarizer bound to one model.
func NewSummarizer(g *genkit.Genkit, modelName string) *Summarizer {
	return &Summarizer{g: g, modelName: modelName}
}

// Summarize condenses a cluster of passages into roughly targetWords words.
// Failures wrap index.ErrSummarizationFailed.
func (s *Summarizer) Summarize(ctx context.Context, texts []string, targetWords int) (string, error) {
	if len(texts) == 0 {
		return "", fmt.Errorf("%w: no texts to summarize", index.ErrSummarizationFailed)
	}

	joined := strings.Join(texts, "\n\n---\n\n")
	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.modelName),
		ai.WithPrompt(summaryPrompt, targetWords, joined),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", index.ErrSummarizationFailed, err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("%w: model returned empty summary", index.ErrSummarizationFailed)
	}
	return summary, nil
}

// Transformer generates the per-source study artifacts.
type Transformer struct {
	g         *genkit.Genkit
	modelName string
}

// NewTransformer creates a Transformer bound to one model.
func NewTransformer(g *genkit.Genkit, modelName string) *Transformer {
	return &Transformer{g: g, modelName: modelName}
}

// DenseSummary produces the document-level summary.
func (t *Transformer) DenseSummary(ctx context.Context, content string) (string, error) {
	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.modelName),
		ai.WithPrompt(denseSummaryPrompt, content),
	)
	if err != nil {
		return "", fmt.Errorf("generating dense summary: %w", err)
	}
	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("model returned empty summary")
	}
	return summary, nil
}

// KeyInsights produces the document's most important takeaways.
func (t *Transformer) KeyInsights(ctx context.Context, content string) ([]string, error) {
	return t.generateList(ctx, "key insights", keyInsightsPrompt, content)
}

// ReflectionQuestions produces open-ended study questions.
func (t *Transformer) ReflectionQuestions(ctx context.Context, content string) ([]string, error) {
	return t.generateList(ctx, "reflection questions", reflectionQuestionsPrompt, content)
}

func (t *Transformer) generateList(ctx context.Context, what, prompt, content string) ([]string, error) {
	resp, err := genkit.Generate(ctx, t.g,
		ai.WithModelName(t.modelName),
		ai.WithPrompt(prompt, content),
	)
	if err != nil {
		return nil, fmt.Errorf("generating %s: %w", what, err)
	}

	items, err := parseStringArray(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", what, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("model returned no %s", what)
	}
	return items, nil
}

// parseStringArray extracts a JSON string array from model output, tolerating
// markdown code fences around the payload.
func parseStringArray(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	var items []string
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("expected JSON string array: %w", err)
	}

	out := items[:0]
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
