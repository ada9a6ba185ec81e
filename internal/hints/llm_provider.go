package hints

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/llm"
)

const hintSystemPrompt = `You write hints for capture-the-flag challenges.
Give exactly one short hint of at most two sentences.
Never reveal the flag, a flag format guess or a full solution.
Later levels may be more specific than earlier ones.`

// LLMProvider asks a language model for hint text and falls back to the
// category templates when the model fails or answers with nothing.
type LLMProvider struct {
	provider llm.Provider
	fallback *TemplateProvider
	logger   *slog.Logger
}

// NewLLMProvider creates an LLM-backed provider. Wrap p in an
// llm.ResilientProvider for production use.
func NewLLMProvider(p llm.Provider, logger *slog.Logger) *LLMProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMProvider{
		provider: p,
		fallback: NewTemplateProvider(),
		logger:   logger,
	}
}

func (p *LLMProvider) TextFor(ctx context.Context, c *domain.Challenge, level int) (string, error) {
	resp, err := p.provider.Generate(ctx, &llm.Request{
		System:      hintSystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: hintPrompt(c, level)}},
		MaxTokens:   120,
		Temperature: 0.4,
	})
	if err != nil {
		p.logger.Warn("hint generation failed, using template",
			"provider", p.provider.Name(), "challenge", c.ID, "level", level, "error", err)
		return p.fallback.TextFor(ctx, c, level)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return p.fallback.TextFor(ctx, c, level)
	}
	return text, nil
}

func hintPrompt(c *domain.Challenge, level int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Challenge: %s\n", c.Title)
	fmt.Fprintf(&b, "Category: %s\n", c.Category)
	fmt.Fprintf(&b, "Difficulty: %s (%d/5)\n", c.Difficulty, c.Difficulty)
	fmt.Fprintf(&b, "Hint level: %d\n", level)
	b.WriteString("Starting point: ")
	b.WriteString(templateText(c, level))
	return b.String()
}
