package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts":   {"elevenlabs", "silence"},
	"llm":   {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"image": {"openai", "placeholder"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("image", cfg.Providers.Image.Name)

	// Provider availability warnings
	if cfg.Providers.TTS.Name == "" && len(cfg.Books) > 0 {
		slog.Warn("no TTS provider configured; narration previews will not be available")
	}
	if cfg.Providers.TTS.Name == "elevenlabs" && cfg.Providers.TTS.Voice == "" {
		errs = append(errs, errors.New("providers.tts.voice is required for elevenlabs"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; script generation will fall back to templates")
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" && len(cfg.Books) > 0 {
		slog.Warn("store.postgres_dsn is empty; assets and purchases will be held in memory only")
	}

	// Payment
	paid := slices.ContainsFunc(cfg.Books, func(b BookConfig) bool { return b.PriceCents > 0 })
	if cfg.Payment.StripeSecretKey != "" {
		if cfg.Payment.SuccessURL == "" {
			errs = append(errs, errors.New("payment.success_url is required when payment.stripe_secret_key is set"))
		}
		if cfg.Payment.CancelURL == "" {
			errs = append(errs, errors.New("payment.cancel_url is required when payment.stripe_secret_key is set"))
		}
		if cfg.Payment.StripeWebhookSecret == "" {
			slog.Warn("payment.stripe_webhook_secret is empty; webhook fulfilment will reject all deliveries")
		}
	} else if paid {
		slog.Warn("books carry prices but payment.stripe_secret_key is empty; checkout will not be available")
	}

	// Narrate
	if cfg.Narrate.PrefetchAhead < 0 || cfg.Narrate.PrefetchAhead > 8 {
		errs = append(errs, fmt.Errorf("narrate.prefetch_ahead %d is out of range [0, 8]", cfg.Narrate.PrefetchAhead))
	}

	// Book duplicate ID detection
	idsSeen := make(map[string]int, len(cfg.Books))

	// Books
	for i, b := range cfg.Books {
		prefix := fmt.Sprintf("books[%d]", i)
		if b.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := idsSeen[b.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of books[%d]", prefix, b.ID, prev))
			}
			idsSeen[b.ID] = i
		}
		if b.Title == "" {
			errs = append(errs, fmt.Errorf("%s.title is required", prefix))
		}
		if b.PriceCents <= 0 {
			errs = append(errs, fmt.Errorf("%s.price_cents %d must be positive", prefix, b.PriceCents))
		}
		if b.WordCount < 0 {
			errs = append(errs, fmt.Errorf("%s.word_count %d must not be negative", prefix, b.WordCount))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
