package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Minimal RIFF/WAVE support, limited to what the pipeline needs: parsing
// 16-bit PCM payloads and producing silent placeholder payloads.

var errNotWAV = errors.New("audio: not a RIFF/WAVE payload")

// isWAV reports whether data starts with a RIFF/WAVE header.
func isWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

// decodeWAV parses a 16-bit PCM WAV payload. Other bit depths and compressed
// formats are rejected; the caller substitutes silence.
func decodeWAV(data []byte) (*Buffer, error) {
	if !isWAV(data) {
		return nil, errNotWAV
	}

	var (
		sampleRate int
		channels   int
		bitDepth   int
		pcm        []byte
		haveFmt    bool
	)

	// Walk the chunk list after the 12-byte RIFF header.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("audio: wav chunk %q overruns payload", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("audio: wav fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 { // PCM
				return nil, fmt.Errorf("audio: unsupported wav format tag %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return nil, errors.New("audio: wav payload missing fmt chunk")
	}
	if bitDepth != 16 {
		return nil, fmt.Errorf("audio: unsupported wav bit depth %d", bitDepth)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid wav format (%d ch, %d Hz)", channels, sampleRate)
	}
	if len(pcm) == 0 {
		// A headers-only payload (the classic silent placeholder) decodes to
		// a short run of silence rather than a zero-length buffer.
		return Silence(silenceFallback, sampleRate, channels), nil
	}

	return &Buffer{PCM: pcm, SampleRate: sampleRate, Channels: channels}, nil
}

// SilentWAV returns a complete 16-bit PCM WAV payload containing d of
// silence. It is the placeholder the synthesis layer substitutes when the
// collaborator is unreachable: byte-for-byte decodable by [Decode].
func SilentWAV(d time.Duration, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	frames := int(int64(sampleRate) * int64(d) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	const channels = 1
	dataLen := frames * bytesPerSample * channels

	out := make([]byte, 44+dataLen)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], channels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*channels*bytesPerSample))
	binary.LittleEndian.PutUint16(out[32:34], channels*bytesPerSample)
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	return out
}
