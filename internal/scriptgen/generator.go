// Package scriptgen produces narration scripts and storyboard prompts for
// catalog books, in the voice of Artie, the Waveform Handyman.
//
// Two generators exist: a templated generator composing scripts from fixed
// phrase banks (the default, fully offline) and an LLM-backed generator.
// Generated scripts separate beats with blank lines so the narration
// segmenter has real paragraph boundaries to split on.
package scriptgen

import (
	"context"

	"github.com/elfinch/waveform/internal/catalog"
)

// Generator produces narration material for a book.
//
// Implementations must be safe for concurrent use.
type Generator interface {
	// Script returns a complete narration script for the book.
	Script(ctx context.Context, book catalog.Book) (string, error)

	// StoryboardPrompts returns one image-generation prompt per storyboard
	// panel for the given script.
	StoryboardPrompts(ctx context.Context, script string) ([]string, error)
}
