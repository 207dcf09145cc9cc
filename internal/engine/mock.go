package engine

import (
	"context"
	"os"
	"sync"

	"github.com/Jai1122/ConvoCast/internal/audio"
)

// Mock is a deterministic in-process engine. It is a first-class engine
// kind: the terminal entry in the fallback order (so a run can always
// produce a placeholder-quality episode) and the workhorse of the test
// suite, with injectable availability and failure.
type Mock struct {
	kind Kind

	mu        sync.Mutex
	available bool
	failErr   error
	calls     int
}

// NewMock creates a mock engine registered under KindMock.
func NewMock() *Mock {
	return &Mock{kind: KindMock, available: true}
}

// NewMockKind creates a mock engine masquerading as another kind. Test use.
func NewMockKind(kind Kind) *Mock {
	return &Mock{kind: kind, available: true}
}

// Kind implements Engine.
func (m *Mock) Kind() Kind { return m.kind }

// Available implements Engine.
func (m *Mock) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Synthesize implements Engine. Output is silence sized from the text's
// estimated speaking time, so ordering and duration properties remain
// observable without a real backend.
func (m *Mock) Synthesize(ctx context.Context, text string, profile Profile, basePath string) (*Result, error) {
	m.mu.Lock()
	m.calls++
	failErr := m.failErr
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failErr != nil {
		return nil, failErr
	}

	rate := profile.sampleRate(22050)
	dur := audio.EstimateSpokenDuration(text)
	pcm := audio.Silence(dur, rate)

	outPath := basePath + ".wav"
	if err := os.WriteFile(outPath, audio.EncodeWAV(pcm, rate), 0o644); err != nil {
		os.Remove(outPath)
		return nil, err
	}

	return &Result{Path: outPath, Duration: dur, Engine: m.kind}, nil
}

// SetAvailable controls the availability probe result.
func (m *Mock) SetAvailable(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = v
}

// SetFailure makes every subsequent synthesis return err (nil to clear).
func (m *Mock) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Calls returns how many times Synthesize ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
