package config_test

import (
	"strings"
	"testing"

	"github.com/elfinch/waveform/internal/config"
)

func TestValidate_DuplicateBookIDs(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    name: silence
books:
  - id: entangled-sink
    title: The Entangled Sink
    price_cents: 199
  - id: entangled-sink
    title: The Entangled Sink Again
    price_cents: 199
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate book IDs, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_BookRequiresIDAndTitle(t *testing.T) {
	t.Parallel()
	yaml := `
books:
  - price_cents: 199
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for book without id and title, got nil")
	}
	if !strings.Contains(err.Error(), "id is required") {
		t.Errorf("error should mention missing id, got: %v", err)
	}
	if !strings.Contains(err.Error(), "title is required") {
		t.Errorf("error should mention missing title, got: %v", err)
	}
}

func TestValidate_NonPositivePrice(t *testing.T) {
	t.Parallel()
	yaml := `
books:
  - id: freebie
    title: The Free Story
    price_cents: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for non-positive price, got nil")
	}
	if !strings.Contains(err.Error(), "must be positive") {
		t.Errorf("error should mention positive price, got: %v", err)
	}
}

func TestValidate_ElevenLabsRequiresVoice(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    name: elevenlabs
    api_key: test-key
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for elevenlabs without voice, got nil")
	}
	if !strings.Contains(err.Error(), "voice is required") {
		t.Errorf("error should mention missing voice, got: %v", err)
	}
}

func TestValidate_StripeRequiresRedirectURLs(t *testing.T) {
	t.Parallel()
	yaml := `
payment:
  stripe_secret_key: sk_test_123
  stripe_webhook_secret: whsec_123
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for stripe config without redirect URLs, got nil")
	}
	if !strings.Contains(err.Error(), "success_url") {
		t.Errorf("error should mention success_url, got: %v", err)
	}
	if !strings.Contains(err.Error(), "cancel_url") {
		t.Errorf("error should mention cancel_url, got: %v", err)
	}
}

func TestValidate_PrefetchAheadRange(t *testing.T) {
	t.Parallel()
	yaml := `
narrate:
  prefetch_ahead: 20
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range prefetch_ahead, got nil")
	}
	if !strings.Contains(err.Error(), "prefetch_ahead") {
		t.Errorf("error should mention prefetch_ahead, got: %v", err)
	}
}

func TestValidate_CompleteConfigIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  tts:
    name: elevenlabs
    api_key: test-key
    voice: artie-v1
  llm:
    name: openai
    api_key: test-key
    model: gpt-4o
  image:
    name: placeholder
store:
  postgres_dsn: "postgres://localhost/waveform"
payment:
  stripe_secret_key: sk_test_123
  stripe_webhook_secret: whsec_123
  success_url: "https://example.com/success?book_id={book_id}"
  cancel_url: "https://example.com/cancel"
narrate:
  prefetch_ahead: 2
books:
  - id: entangled-sink
    title: The Entangled Sink
    problem: a sink entangled with the neighbor's bathtub
    resolution: a decoherence wrench
    price_cents: 199
    word_count: 1200
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Providers.TTS.Voice != "artie-v1" {
		t.Errorf("tts voice = %q, want artie-v1", cfg.Providers.TTS.Voice)
	}
	if len(cfg.Books) != 1 || cfg.Books[0].PriceCents != 199 {
		t.Errorf("books not parsed correctly: %+v", cfg.Books)
	}
}

func TestValidate_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  nonsense_field: true
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
books:
  - id: b1
    title: One
    price_cents: 199
  - id: b1
    title: Two
    price_cents: 199
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	ttsNames := config.ValidProviderNames["tts"]
	if len(ttsNames) == 0 {
		t.Fatal("ValidProviderNames[\"tts\"] should not be empty")
	}
	found := false
	for _, n := range ttsNames {
		if n == "elevenlabs" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"tts\"] should contain \"elevenlabs\"")
	}
}

func TestCatalog_BuildsFromBooks(t *testing.T) {
	t.Parallel()
	yaml := `
books:
  - id: entangled-sink
    title: The Entangled Sink
    price_cents: 199
  - id: superposition-toaster
    title: The Superposition Toaster
    price_cents: 199
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cat, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("catalog length = %d, want 2", cat.Len())
	}
	b, ok := cat.Get("entangled-sink")
	if !ok {
		t.Fatal("catalog missing entangled-sink")
	}
	if b.Title != "The Entangled Sink" {
		t.Errorf("title = %q, want The Entangled Sink", b.Title)
	}
}
