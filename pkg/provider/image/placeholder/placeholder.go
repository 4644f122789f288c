// Package placeholder provides an offline image provider that renders a flat
// color swatch derived from the prompt. It stands in for a real image backend
// in development and tests, and as the degraded fallback when no backend is
// configured.
package placeholder

import (
	"bytes"
	"context"
	"hash/fnv"
	goimage "image"
	"image/color"
	"image/png"

	"github.com/elfinch/waveform/pkg/provider/image"
)

// Compile-time interface assertion.
var _ image.Provider = (*Provider)(nil)

const defaultSize = 256

// Provider implements image.Provider with deterministic local rendering.
// The same prompt always yields the same swatch.
type Provider struct {
	// Size is the square edge length in pixels. Zero means 256.
	Size int
}

// Generate renders a flat swatch whose color is a hash of the prompt.
func (p *Provider) Generate(_ context.Context, prompt string) (*image.Image, error) {
	size := p.Size
	if size <= 0 {
		size = defaultSize
	}

	h := fnv.New32a()
	h.Write([]byte(prompt))
	sum := h.Sum32()
	fill := color.NRGBA{
		R: uint8(sum),
		G: uint8(sum >> 8),
		B: uint8(sum >> 16),
		A: 255,
	}

	img := goimage.NewNRGBA(goimage.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = fill.R
		img.Pix[i+1] = fill.G
		img.Pix[i+2] = fill.B
		img.Pix[i+3] = fill.A
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &image.Image{Data: buf.Bytes(), MIME: "image/png"}, nil
}
