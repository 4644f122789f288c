// Package mock provides a test double for the image.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/elfinch/waveform/pkg/provider/image"
)

// Compile-time interface assertion.
var _ image.Provider = (*Provider)(nil)

// Provider is a mock implementation of image.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned from Generate. If nil and Err is nil, a small
	// placeholder payload derived from the prompt is returned.
	Result *image.Image

	// Err, if non-nil, is returned from every Generate call.
	Err error

	// Calls records the prompt of every Generate call in order.
	Calls []string
}

// Generate records the call and returns the configured response.
func (p *Provider) Generate(_ context.Context, prompt string) (*image.Image, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, prompt)
	res := p.Result
	err := p.Err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return &image.Image{Data: []byte(prompt), MIME: "image/png"}, nil
}

// CallCount returns how many Generate calls have been made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
