// Package tts defines the Provider interface for speech synthesis backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a local
// Coqui instance) and turns one narration segment of text into one encoded
// audio payload. Synthesis is batch per segment rather than streaming: the
// narration sequencer prefetches upcoming segments while the current one
// plays, so per-request latency is hidden by the pipeline rather than by a
// socket protocol.
//
// Implementations must be safe for concurrent use; the prefetcher issues
// several synthesis requests in parallel.
package tts

import "context"

// Provider is the abstraction over any speech synthesis backend.
type Provider interface {
	// Synthesize renders text as encoded audio (typically MP3, possibly WAV)
	// and returns the raw payload. The caller decodes it; see the audio
	// package's tolerant Decode.
	//
	// Returns an error if the backend cannot be reached or rejects the
	// request. Callers are expected to substitute a silent placeholder
	// rather than surface synthesis errors to listeners.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
