package narrate

import (
	"sync"

	"github.com/elfinch/waveform/pkg/audio"
)

// Clip is one synthesized segment held in the cache: the decoded buffer for
// the playback clock plus the encoded payload for relay over the wire.
type Clip struct {
	Buffer  *audio.Buffer
	Payload []byte
}

// Cache holds synthesized clips keyed by segment index, tagged with a
// generation token. Every playback session owns a generation; bumping the
// generation via [Cache.Reset] invalidates all in-flight prefetches from the
// previous session, so a late arrival can never leak a stale clip into a new
// playback.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	gen   uint64
	clips map[int]Clip
}

// NewCache returns an empty cache at generation 1.
func NewCache() *Cache {
	return &Cache{gen: 1, clips: make(map[int]Clip)}
}

// Generation returns the current generation token.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Reset clears all cached clips, bumps the generation, and returns the new
// token. Writers still holding the old token are rejected from then on.
func (c *Cache) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.clips = make(map[int]Clip)
	return c.gen
}

// Invalidate bumps the generation without dropping cached clips. Stopping a
// session cuts off its in-flight writers but keeps finished clips around for
// a quick restart, which resets the cache in full.
func (c *Cache) Invalidate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// Get returns the clip for segment i, if cached.
func (c *Cache) Get(i int) (Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clip, ok := c.clips[i]
	return clip, ok
}

// Put stores a clip for segment i under the given generation token. It
// reports whether the clip was accepted: writes carrying a stale token are
// dropped, and the first write for an index wins so a synchronous synthesis
// and a racing prefetch cannot double-store.
func (c *Cache) Put(gen uint64, i int, clip Clip) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	if _, exists := c.clips[i]; exists {
		return true
	}
	c.clips[i] = clip
	return true
}

// Len returns the number of cached clips.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clips)
}
