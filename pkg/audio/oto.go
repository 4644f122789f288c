package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// pollInterval is how often an otoHandle checks whether the device has
// drained its buffer.
const pollInterval = 50 * time.Millisecond

// OtoPlayer plays buffers on the local audio device via oto. It is used by
// the preview command; the server never touches a device.
//
// A single oto context is created per process (an oto requirement), so all
// buffers are conformed to the context format before playback.
type OtoPlayer struct {
	ctx    *oto.Context
	format Format
}

// NewOtoPlayer initialises the local audio device at the pipeline default
// format and blocks until the device is ready.
func NewOtoPlayer() (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   DefaultSampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audio: open device: %w", err)
	}
	<-ready
	return &OtoPlayer{
		ctx:    ctx,
		format: Format{SampleRate: DefaultSampleRate, Channels: 2},
	}, nil
}

// Play implements [Player].
func (p *OtoPlayer) Play(_ context.Context, buf *Buffer) (Handle, error) {
	conformed := buf.Conform(p.format)
	dev := p.ctx.NewPlayer(bytes.NewReader(conformed.PCM))
	dev.Play()

	h := &otoHandle{dev: dev, done: make(chan struct{})}
	go h.watch()
	return h, nil
}

// PlayLoop starts looping playback of buf (ambience and background music
// layers). The returned handle never signals Done; it plays until stopped.
func (p *OtoPlayer) PlayLoop(_ context.Context, buf *Buffer) (Handle, error) {
	conformed := buf.Conform(p.format)
	if len(conformed.PCM) == 0 {
		return nil, fmt.Errorf("audio: cannot loop an empty buffer")
	}
	dev := p.ctx.NewPlayer(&loopReader{pcm: conformed.PCM})
	dev.Play()
	// No watcher: a loop only ends via Stop.
	return &otoHandle{dev: dev, done: make(chan struct{})}, nil
}

type otoHandle struct {
	mu      sync.Mutex
	dev     *oto.Player
	stopped bool
	once    sync.Once
	done    chan struct{}
}

func (h *otoHandle) Done() <-chan struct{} { return h.done }

func (h *otoHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.dev.Close()
}

// watch polls the device until the buffer drains, then signals completion
// unless the handle was stopped first.
func (h *otoHandle) watch() {
	for {
		time.Sleep(pollInterval)
		h.mu.Lock()
		if h.stopped {
			h.mu.Unlock()
			return
		}
		if !h.dev.IsPlaying() {
			h.dev.Close()
			h.once.Do(func() { close(h.done) })
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
	}
}

// loopReader replays a PCM slice endlessly.
type loopReader struct {
	pcm []byte
	off int
}

func (r *loopReader) Read(p []byte) (int, error) {
	if len(r.pcm) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.pcm[r.off:])
	r.off += n
	if r.off >= len(r.pcm) {
		r.off = 0
	}
	return n, nil
}
