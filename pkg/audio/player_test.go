package audio_test

import (
	"context"
	"testing"
	"time"

	"github.com/elfinch/waveform/pkg/audio"
)

func TestClockPlayer_Completes(t *testing.T) {
	player := &audio.ClockPlayer{}
	buf := audio.Silence(20*time.Millisecond, 44100, 1)

	h, err := player.Play(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for playback to complete")
	}
}

func TestClockPlayer_StopSuppressesDone(t *testing.T) {
	player := &audio.ClockPlayer{}
	buf := audio.Silence(30*time.Millisecond, 44100, 1)

	h, err := player.Play(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Stop()

	select {
	case <-h.Done():
		t.Fatal("stopped handle must not signal Done")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClockPlayer_StopIdempotent(t *testing.T) {
	player := &audio.ClockPlayer{}
	buf := audio.Silence(10*time.Millisecond, 44100, 1)

	h, err := player.Play(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Stop()
	h.Stop()
}

func TestClockPlayer_ScaleShortensPlayback(t *testing.T) {
	player := &audio.ClockPlayer{Scale: 100}
	buf := audio.Silence(2*time.Second, 44100, 1)

	start := time.Now()
	h, err := player.Play(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("scaled playback should finish well under a second")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("scaled playback took %v, expected around 20ms", elapsed)
	}
}
