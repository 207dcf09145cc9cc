package cache

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/charmbracelet/log"
)

func testCache(t *testing.T, maxMB int) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), maxMB, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRoundtrip(t *testing.T) {
	c := testCache(t, 10)
	key := Key(engine.KindPiper, "piper-amy", "hello world")
	data := []byte("fake audio bytes")

	if _, _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	if err := c.Put(key, engine.KindESpeak, data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	kind, got, ok := c.Get(key)
	if !ok {
		t.Fatal("miss after Put")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data = %q, want %q", got, data)
	}
	// The stored kind is the engine that actually produced the audio, which
	// can differ from the keyed (requested) kind after a fallback.
	if kind != engine.KindESpeak {
		t.Errorf("kind = %s, want espeak", kind)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Items != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestKeyDistinguishesInputs(t *testing.T) {
	base := Key(engine.KindPiper, "piper-amy", "hello")
	if Key(engine.KindESpeak, "piper-amy", "hello") == base {
		t.Error("key ignores engine kind")
	}
	if Key(engine.KindPiper, "piper-ryan", "hello") == base {
		t.Error("key ignores profile")
	}
	if Key(engine.KindPiper, "piper-amy", "goodbye") == base {
		t.Error("key ignores text")
	}
}

func TestCorruptEntryIsMiss(t *testing.T) {
	c := testCache(t, 10)
	key := Key(engine.KindMock, "mock-voice", "text")

	if err := os.WriteFile(c.path(key), []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := c.Get(key); ok {
		t.Error("corrupt entry returned as hit")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("corrupt entry was not removed")
	}
}

func TestClear(t *testing.T) {
	c := testCache(t, 10)
	for i := 0; i < 3; i++ {
		key := Key(engine.KindMock, "mock-voice", fmt.Sprintf("line %d", i))
		if err := c.Put(key, engine.KindMock, []byte("audio")); err != nil {
			t.Fatal(err)
		}
	}
	if s := c.Stats(); s.Items != 3 {
		t.Fatalf("items = %d, want 3", s.Items)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s := c.Stats(); s.Items != 0 {
		t.Errorf("items after clear = %d, want 0", s.Items)
	}
}

func TestEviction(t *testing.T) {
	c := testCache(t, 10)
	// Zstd cannot squeeze random bytes, so each entry stays near 1 MB on
	// disk and the 10 MB cap forces evictions.
	payload := make([]byte, 1<<20)
	rand.New(rand.NewSource(1)).Read(payload)

	var keys []string
	for i := 0; i < 15; i++ {
		key := Key(engine.KindMock, "mock-voice", fmt.Sprintf("line %d", i))
		keys = append(keys, key)
		if err := c.Put(key, engine.KindMock, payload); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
		// Distinct mtimes keep oldest-first eviction deterministic.
		past := time.Now().Add(time.Duration(i-20) * time.Minute)
		if err := os.Chtimes(c.path(key), past, past); err != nil && !os.IsNotExist(err) {
			t.Fatal(err)
		}
	}

	s := c.Stats()
	if s.Items >= 15 {
		t.Errorf("nothing evicted: %d items", s.Items)
	}
	if s.Bytes > 10<<20 {
		t.Errorf("cache over cap: %d bytes", s.Bytes)
	}

	// The newest entry must survive.
	if _, _, ok := c.Get(keys[len(keys)-1]); !ok {
		t.Error("newest entry was evicted")
	}
}
