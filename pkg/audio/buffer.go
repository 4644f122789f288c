// Package audio provides the decoded-audio building blocks for the Waveform
// narration pipeline: PCM buffers, tolerant decoding of synthesized payloads,
// format conversion, and playback abstractions.
//
// All PCM data is 16-bit little-endian interleaved. The pipeline default is
// 44.1 kHz stereo, matching the output format requested from the speech
// synthesis collaborator.
package audio

import "time"

// DefaultSampleRate is the pipeline sample rate in Hz.
const DefaultSampleRate = 44100

// bytesPerSample is the size of one 16-bit PCM sample.
const bytesPerSample = 2

// Buffer holds decoded, playable audio for exactly one narration segment.
// A Buffer is immutable after decode; callers must not modify PCM.
type Buffer struct {
	// PCM is 16-bit little-endian interleaved sample data.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is 1 for mono or 2 for stereo.
	Channels int
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.PCM) / (bytesPerSample * b.Channels)
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.PCM) / (bytesPerSample * b.Channels)
}

// Silence returns a buffer of silent PCM with the given duration and format.
// Durations and rates that round to zero frames still yield a single frame so
// the result is always playable.
func Silence(d time.Duration, sampleRate, channels int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	frames := int(int64(sampleRate) * int64(d) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	return &Buffer{
		PCM:        make([]byte, frames*bytesPerSample*channels),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}
