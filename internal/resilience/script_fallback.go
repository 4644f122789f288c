package resilience

import (
	"context"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/scriptgen"
)

// ScriptFallback implements [scriptgen.Generator] with automatic failover, so
// an LLM-backed generator degrades to the templated generator instead of
// failing a narration request.
type ScriptFallback struct {
	group *FallbackGroup[scriptgen.Generator]
}

// Compile-time interface assertion.
var _ scriptgen.Generator = (*ScriptFallback)(nil)

// NewScriptFallback creates a [ScriptFallback] with primary as the preferred
// generator.
func NewScriptFallback(primary scriptgen.Generator, primaryName string, cfg FallbackConfig) *ScriptFallback {
	return &ScriptFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional generator as a fallback.
func (f *ScriptFallback) AddFallback(name string, g scriptgen.Generator) {
	f.group.AddFallback(name, g)
}

// Script returns a narration script from the first healthy generator.
func (f *ScriptFallback) Script(ctx context.Context, book catalog.Book) (string, error) {
	return ExecuteWithResult(f.group, func(g scriptgen.Generator) (string, error) {
		return g.Script(ctx, book)
	})
}

// StoryboardPrompts returns storyboard prompts from the first healthy
// generator.
func (f *ScriptFallback) StoryboardPrompts(ctx context.Context, script string) ([]string, error) {
	return ExecuteWithResult(f.group, func(g scriptgen.Generator) ([]string, error) {
		return g.StoryboardPrompts(ctx, script)
	})
}
