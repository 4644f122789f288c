// Package openai provides an image generation provider backed by the OpenAI
// Images API.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/elfinch/waveform/pkg/provider/image"
)

// Compile-time interface assertion.
var _ image.Provider = (*Provider)(nil)

// Provider implements image.Provider using the OpenAI Images API.
type Provider struct {
	client oai.Client
	model  string
	size   oai.ImageGenerateParamsSize
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
	size    oai.ImageGenerateParamsSize
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithSize sets the generated image dimensions. Defaults to 1024x1024.
func WithSize(size oai.ImageGenerateParamsSize) Option {
	return func(c *config) {
		c.size = size
	}
}

// New constructs a new OpenAI image Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{size: oai.ImageGenerateParamsSize1024x1024}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		size:   cfg.size,
	}, nil
}

// Generate implements image.Provider. The API is asked for base64 output so
// the payload comes back in one round trip instead of a follow-up URL fetch.
func (p *Provider) Generate(ctx context.Context, prompt string) (*image.Image, error) {
	if prompt == "" {
		return nil, fmt.Errorf("openai: prompt must not be empty")
	}

	res, err := p.client.Images.Generate(ctx, oai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          oai.ImageModel(p.model),
		Size:           p.size,
		ResponseFormat: oai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: generate image: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("openai: generate image: empty response")
	}

	data, err := base64.StdEncoding.DecodeString(res.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image payload: %w", err)
	}
	return &image.Image{Data: data, MIME: "image/png"}, nil
}
