// Package narrate implements the sequential audio-narration pipeline: a
// paragraph segmenter, a generation-tagged segment cache, a lookahead
// prefetcher, and a playback sequencer that advances through a story one
// segment at a time.
//
// Narration is synthesized per segment rather than for the whole script at
// once. The first segment starts playing as soon as it is ready while the
// prefetcher warms the cache ahead of the playhead, so time-to-first-audio
// stays low regardless of story length.
package narrate

import "strings"

// Segment splits a narration script into playable segments at paragraph
// boundaries. A paragraph break is one or more blank lines. Leading and
// trailing whitespace is trimmed from each segment; empty segments are
// dropped, so the result for a blank script is an empty slice.
func Segment(script string) []string {
	var (
		segments []string
		current  []string
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		seg := strings.TrimSpace(strings.Join(current, "\n"))
		if seg != "" {
			segments = append(segments, seg)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(script, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return segments
}
