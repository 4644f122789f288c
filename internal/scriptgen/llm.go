package scriptgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/pkg/provider/llm"
)

// Compile-time interface check.
var _ Generator = (*LLM)(nil)

const artieSystemPrompt = `You are Artie, the Waveform Handyman: a folksy ` +
	`repairman who fixes quantum malfunctions in ordinary households. You ` +
	`narrate short first-person repair stories in a warm, dry, matter-of-fact ` +
	`tone. Keep stories under 200 words. Separate each story beat with a ` +
	`blank line.`

const storyboardSystemPrompt = `You design storyboard panels for illustrated ` +
	`audio stories. Given a story, reply with one image-generation prompt per ` +
	`line, one line per panel, at most four panels. No numbering, no extra text.`

// LLM generates scripts through a language model backend.
type LLM struct {
	provider    llm.Provider
	temperature float64
}

// NewLLM creates an LLM-backed generator.
func NewLLM(provider llm.Provider) *LLM {
	return &LLM{provider: provider, temperature: 0.9}
}

// Script implements [Generator].
func (g *LLM) Script(ctx context.Context, book catalog.Book) (string, error) {
	prompt := fmt.Sprintf(
		"Write the narration script for %q. The malfunction: %s The fix: %s",
		book.Title, book.Problem, book.Resolution,
	)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: artieSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("scriptgen: llm script: %w", err)
	}

	script := strings.TrimSpace(resp.Content)
	if script == "" {
		return "", fmt.Errorf("scriptgen: llm returned an empty script for %q", book.ID)
	}
	return script, nil
}

// StoryboardPrompts implements [Generator]. One prompt per non-empty response
// line.
func (g *LLM) StoryboardPrompts(ctx context.Context, script string) ([]string, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: storyboardSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: script}},
		Temperature:  g.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("scriptgen: llm storyboard: %w", err)
	}

	var prompts []string
	for _, line := range strings.Split(resp.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			prompts = append(prompts, line)
		}
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("scriptgen: llm returned no storyboard prompts")
	}
	return prompts, nil
}
