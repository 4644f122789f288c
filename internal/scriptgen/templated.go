package scriptgen

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/elfinch/waveform/internal/catalog"
)

// Compile-time interface check.
var _ Generator = (*Templated)(nil)

// Phrase banks for Artie's four story beats: how the day started, what broke,
// which tool came out, and how it got fixed.
var (
	intros = []string{
		"You know, folks, another Tuesday in Observation Bay, another breach in the fabric of spacetime.",
		"I was just sitting down to my Earl Grey when the sensors went wild.",
		"The thing about quantum mechanics is, it never lets you finish your sandwich.",
		"So there I was, minding my own business, reorganizing my collection of spare event horizons.",
		"It started with a sound like a rubber duck falling down a staircase made of xylophones.",
		"Observation Bay is quiet usually, except when the laws of physics decide to take a personal day.",
	}

	connectors = []string{
		"I looked over and saw that %s",
		"Turns out, %s",
		"The diagnostics confirmed it: %s",
		"My first thought was 'Oh boy', because %s",
		"Naturally, it was because %s",
	}

	tools = []string{
		"So I grabbed my non-euclidean wrench.",
		"I dusted off the Reality Anchor.",
		"I had to recalibrate the Sonic Plunger.",
		"I reached for the probability mallet.",
		"I fired up the Heisenberg Compensator.",
		"I pulled out the old Quantum Duct Tape.",
	}

	resolutions = []string{
		"It took a steady hand, but by %s, I managed to stabilize the field.",
		"There was no other choice. I ended up %s. Works every time.",
		"With a little bit of %s, the waveform smoothed right out.",
		"A classic fix: %s. Good as new.",
		"After %s, the readings returned to normal. Mostly.",
	}
)

// Templated composes scripts from the phrase banks. It is fully offline and
// deterministic under a fixed seed, which makes it the default generator and
// the terminal fallback when an LLM backend misbehaves.
type Templated struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplated creates a generator seeded from seed. The same seed yields the
// same script for the same book.
func NewTemplated(seed uint64) *Templated {
	return &Templated{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Script implements [Generator]. The four beats are emitted as separate
// paragraphs so each one becomes its own narration segment.
func (t *Templated) Script(_ context.Context, book catalog.Book) (string, error) {
	t.mu.Lock()
	intro := intros[t.rng.IntN(len(intros))]
	connector := connectors[t.rng.IntN(len(connectors))]
	tool := tools[t.rng.IntN(len(tools))]
	resolution := resolutions[t.rng.IntN(len(resolutions))]
	t.mu.Unlock()

	paragraphs := []string{
		intro,
		fill(connector, book.Problem),
		tool,
		fill(resolution, book.Resolution),
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// StoryboardPrompts implements [Generator].
func (t *Templated) StoryboardPrompts(_ context.Context, _ string) ([]string, error) {
	return []string{
		"Scene 1: Artie holding a wrench",
		"Scene 2: Quantum sparks flying",
	}, nil
}

// fill substitutes the book detail into a phrase template, lowercased to read
// naturally mid-sentence.
func fill(template, detail string) string {
	return strings.Replace(template, "%s", strings.ToLower(detail), 1)
}
