// Command preview narrates one catalog book on the local audio device. It is
// a development aid: the storefront server streams audio to clients and never
// opens a device itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/config"
	"github.com/elfinch/waveform/internal/content"
	"github.com/elfinch/waveform/internal/narrate"
	"github.com/elfinch/waveform/internal/scriptgen"
	"github.com/elfinch/waveform/pkg/audio"
	"github.com/elfinch/waveform/pkg/provider/tts"
	"github.com/elfinch/waveform/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	bookID := flag.String("book", "", "catalog id of the book to narrate")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		return 1
	}

	cat, err := cfg.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		return 1
	}
	if *bookID == "" {
		fmt.Fprintln(os.Stderr, "preview: -book is required; configured books:")
		for _, id := range cat.IDs() {
			fmt.Fprintf(os.Stderr, "  %s\n", id)
		}
		return 1
	}
	book, ok := cat.Get(*bookID)
	if !ok {
		fmt.Fprintf(os.Stderr, "preview: unknown book %q\n", *bookID)
		return 1
	}

	synth := buildSynth(cfg)

	player, err := audio.NewOtoPlayer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		return 1
	}

	stopLayers := startLayers(cfg, book, player)
	defer stopLayers()

	script, err := scriptgen.NewTemplated(0).Script(context.Background(), book)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		return 1
	}

	manager, err := narrate.NewManager(narrate.ManagerConfig{
		Synth:  synth,
		Player: player,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, sess, err := manager.Start(ctx, book, script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview: %v\n", err)
		return 1
	}
	defer manager.StopAll(context.Background())

	events, cancel := sess.Subscribe()
	defer cancel()

	fmt.Printf("narrating %q (%d segments)\n", book.Title, sess.Snapshot().Total)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("interrupted")
			return 0
		case ev := <-events:
			switch ev.Type {
			case narrate.EventSegment:
				fmt.Printf("  segment %d\n", ev.Segment)
			case narrate.EventError:
				fmt.Printf("  segment %d skipped: %s\n", ev.Segment, ev.Err)
			case narrate.EventState:
				if ev.State == narrate.StateComplete {
					fmt.Println("done")
					return 0
				}
			}
		}
	}
}

// startLayers loops the book's ambience and music assets when a content
// store is configured. Missing layers are skipped quietly.
func startLayers(cfg *config.Config, book catalog.Book, player *audio.OtoPlayer) (stop func()) {
	noop := func() {}
	if cfg.Store.PostgresDSN == "" {
		return noop
	}

	ctx := context.Background()
	store, err := content.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
	if err != nil {
		slog.Warn("content store unavailable, skipping audio layers", "err", err)
		return noop
	}

	var handles []audio.Handle
	for _, key := range []string{book.AmbienceKey, book.MusicKey} {
		if key == "" {
			continue
		}
		data, err := store.Asset(ctx, book.ID, key)
		if err != nil {
			slog.Warn("audio layer not stored", "book_id", book.ID, "key", key, "err", err)
			continue
		}
		h, err := player.PlayLoop(ctx, audio.Decode(data))
		if err != nil {
			slog.Warn("audio layer playback failed", "key", key, "err", err)
			continue
		}
		handles = append(handles, h)
	}

	return func() {
		for _, h := range handles {
			h.Stop()
		}
		store.Close()
	}
}

// buildSynth returns the configured TTS provider, or the silent synthesizer
// so the preview still runs without credentials.
func buildSynth(cfg *config.Config) tts.Provider {
	entry := cfg.Providers.TTS
	if entry.Name == "elevenlabs" && entry.APIKey != "" {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		p, err := elevenlabs.New(entry.APIKey, entry.Voice, opts...)
		if err == nil {
			return p
		}
		slog.Warn("elevenlabs init failed, falling back to silent audio", "err", err)
	}
	return &tts.Silence{}
}
