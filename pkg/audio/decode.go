package audio

import (
	"bytes"
	"io"
	"log/slog"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// silenceFallback is the length of the silent buffer substituted for payloads
// that cannot be decoded.
const silenceFallback = 250 * time.Millisecond

// Decode converts a raw synthesized audio payload into a playable PCM buffer.
//
// MP3 payloads (the synthesis collaborator's default output) are decoded via
// go-mp3; 16-bit PCM WAV payloads (the silent placeholder format) are parsed
// directly. Decoding is deliberately tolerant: empty or malformed input
// degrades to a short silent buffer instead of returning an error, so a
// placeholder payload from a failed synthesis always yields something
// playable and a decode problem never compounds into a second user-visible
// failure.
func Decode(data []byte) *Buffer {
	if len(data) == 0 {
		return Silence(silenceFallback, DefaultSampleRate, 1)
	}

	if isWAV(data) {
		if buf, err := decodeWAV(data); err == nil {
			return buf
		} else {
			slog.Debug("audio: wav decode failed, substituting silence", "error", err)
			return Silence(silenceFallback, DefaultSampleRate, 1)
		}
	}

	if buf, err := decodeMP3(data); err == nil {
		return buf
	} else {
		slog.Debug("audio: mp3 decode failed, substituting silence", "error", err)
	}
	return Silence(silenceFallback, DefaultSampleRate, 1)
}

// decodeMP3 decodes an MP3 payload into 16-bit stereo PCM at the stream's
// native sample rate.
func decodeMP3(data []byte) (*Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	// go-mp3 always emits 16-bit little-endian stereo.
	return &Buffer{
		PCM:        pcm,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}
