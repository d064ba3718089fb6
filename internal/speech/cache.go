package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/mirepoix/souschef/internal/logger"
)

// AudioCache is a thread-safe two-tier cache (in-memory + filesystem)
// for synthesized audio. The cache key is sha256(voice + ":" + text) so
// a voice change automatically causes misses until switched back.
//
// Step narration repeats a lot in a cooking session ("repeat", "read
// the step", going back), so even the in-memory tier alone saves most
// synthesis round-trips. The disk tier gives warm starts across runs.
type AudioCache struct {
	mu       sync.RWMutex
	entries  map[string][]byte // hash -> WAV bytes
	log      *logger.Logger
	voice    string // included in every cache key
	cacheDir string // filesystem cache directory (empty = no disk layer)
	hits     int64
	misses   int64
}

// NewAudioCache creates an audio cache. An empty cacheDir disables the
// disk tier entirely.
func NewAudioCache(voice, cacheDir string, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries:  make(map[string][]byte),
		log:      log,
		voice:    voice,
		cacheDir: cacheDir,
	}

	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			log.Error("cache: failed to create cache dir %s: %v", cacheDir, err)
			c.cacheDir = ""
		}
	}

	return c
}

// Get returns cached audio for the given text and true, or nil and
// false. It checks the in-memory map first, then the disk tier.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.hashKey(text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		c.log.Debug("cache hit (mem): %s (%d bytes)", truncate(text, 40), len(data))
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, err := os.ReadFile(c.diskPath(key)); err == nil {
			// Promote to memory for faster subsequent hits.
			c.mu.Lock()
			c.entries[key] = diskData
			c.hits++
			c.mu.Unlock()
			c.log.Debug("cache hit (disk): %s (%d bytes)", truncate(text, 40), len(diskData))
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for the given text in memory and, when the disk tier
// is enabled, on disk.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.hashKey(text)

	c.mu.Lock()
	c.entries[key] = audio
	size := len(c.entries)
	c.mu.Unlock()

	c.log.Debug("cache store: %s (%d bytes, %d entries)", truncate(text, 40), len(audio), size)

	if c.cacheDir != "" {
		if err := os.WriteFile(c.diskPath(key), audio, 0o644); err != nil {
			c.log.Error("cache: disk write failed: %v", err)
		}
	}
}

// Has reports whether audio for the text is cached (memory or disk).
func (c *AudioCache) Has(text string) bool {
	key := c.hashKey(text)

	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return true
	}

	if c.cacheDir != "" {
		if _, err := os.Stat(c.diskPath(key)); err == nil {
			return true
		}
	}
	return false
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) hashKey(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".wav")
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
