// Package image defines the Provider interface for image generation backends.
//
// An image provider turns a storyboard prompt into one rendered illustration.
// Implementations must be safe for concurrent use; storyboard generation fans
// out one request per panel.
package image

import "context"

// Image is a single generated illustration.
type Image struct {
	// Data is the encoded image payload.
	Data []byte

	// MIME is the payload content type (e.g., "image/png").
	MIME string
}

// Provider is the abstraction over any image generation backend.
type Provider interface {
	// Generate renders an illustration for prompt. Returns an error if the
	// backend cannot be reached or rejects the prompt.
	Generate(ctx context.Context, prompt string) (*Image, error)
}
