// Package cache provides a zstd-compressed disk cache for synthesized
// segments, keyed by engine, voice profile, and normalized text. A cache hit
// becomes a segment without any engine call.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const entryExt = ".seg.zst"

// Stats holds cache performance counters.
type Stats struct {
	Items  int
	Bytes  int64
	Hits   int64
	Misses int64
}

// Cache is a size-capped disk cache. Entries carry the producing engine kind
// in a one-line header so cached segments keep truthful metadata.
type Cache struct {
	dir      string
	maxBytes int64

	enc *zstd.Encoder
	dec *zstd.Decoder

	mu    sync.Mutex
	stats Stats

	log *log.Logger
}

// New opens (creating if needed) a cache directory capped at maxMB.
func New(dir string, maxMB int, logger *log.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Cache{
		dir:      dir,
		maxBytes: int64(maxMB) * 1024 * 1024,
		enc:      enc,
		dec:      dec,
		log:      logger.WithPrefix("cache"),
	}, nil
}

// Key derives the cache key for one synthesis input.
func Key(kind engine.Kind, profileID, text string) string {
	h := sha256.Sum256([]byte(string(kind) + "\x00" + profileID + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Get returns the cached audio and the engine kind that produced it.
func (c *Cache) Get(key string) (engine.Kind, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		c.stats.Misses++
		return "", nil, false
	}
	decoded, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		// Corrupt entry: drop it and treat as a miss.
		c.log.Warn("removing corrupt cache entry", "key", key, "err", err)
		os.Remove(c.path(key))
		c.stats.Misses++
		return "", nil, false
	}

	i := bytes.IndexByte(decoded, '\n')
	if i < 0 {
		os.Remove(c.path(key))
		c.stats.Misses++
		return "", nil, false
	}
	c.stats.Hits++
	return engine.Kind(decoded[:i]), decoded[i+1:], true
}

// Put stores audio bytes under key, evicting oldest entries past the cap.
// Cache errors are non-fatal to callers; they log and degrade to no-op.
func (c *Cache) Put(key string, kind engine.Kind, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := append([]byte(string(kind)+"\n"), data...)
	compressed := c.enc.EncodeAll(payload, nil)

	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit cache entry: %w", err)
	}

	return c.evict()
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), entryExt) {
			os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

// Stats returns a snapshot of the counters plus current disk usage.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return s
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), entryExt) {
			continue
		}
		s.Items++
		if info, err := e.Info(); err == nil {
			s.Bytes += info.Size()
		}
	}
	return s
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}

// evict removes oldest entries until total size fits the cap. Caller holds
// the lock.
func (c *Cache) evict() error {
	if c.maxBytes <= 0 {
		return nil
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	type entry struct {
		path  string
		size  int64
		mtime int64
	}
	var all []entry
	var total int64
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), entryExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		all = append(all, entry{
			path:  filepath.Join(c.dir, e.Name()),
			size:  info.Size(),
			mtime: info.ModTime().UnixNano(),
		})
		total += info.Size()
	}
	if total <= c.maxBytes {
		return nil
	}

	sort.Slice(all, func(i, j int) bool { return all[i].mtime < all[j].mtime })
	for _, e := range all {
		if total <= c.maxBytes {
			break
		}
		if err := os.Remove(e.path); err == nil {
			total -= e.size
			c.log.Debug("evicted cache entry", "path", filepath.Base(e.path))
		}
	}
	return nil
}
