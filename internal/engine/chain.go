package engine

import (
	"context"

	"github.com/charmbracelet/log"
)

// Chain walks engines in priority order until one synthesis succeeds.
// The walk is fresh per line: a transient failure never excludes a capable
// engine from later lines. Only availability probes are cached (by the
// Registry) since capability does not change mid-run.
type Chain struct {
	registry *Registry
	log      *log.Logger
}

// NewChain creates a fallback chain over a registry.
func NewChain(registry *Registry, logger *log.Logger) *Chain {
	return &Chain{registry: registry, log: logger.WithPrefix("chain")}
}

// Candidates builds the ordered candidate list: the requested kind first
// (when specified), then the fixed fallback priority, de-duplicated.
func (c *Chain) Candidates(requested Kind) []Kind {
	seen := make(map[Kind]bool)
	var kinds []Kind
	add := func(k Kind) {
		if k == "" || seen[k] {
			return
		}
		if _, ok := c.registry.Get(k); !ok {
			return
		}
		seen[k] = true
		kinds = append(kinds, k)
	}

	add(requested)
	for _, k := range FallbackOrder {
		add(k)
	}
	return kinds
}

// Synthesize tries each candidate in order and returns the first success.
// Unavailable engines are recorded as skipped; failures are recorded and the
// walk advances. When every candidate is exhausted the aggregated per-engine
// history is returned as a *ChainError.
func (c *Chain) Synthesize(ctx context.Context, requested Kind, text string, profile Profile, basePath string) (*Result, error) {
	var attempts []Attempt

	for _, kind := range c.Candidates(requested) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !c.registry.Available(kind) {
			attempts = append(attempts, Attempt{Kind: kind, Skipped: true})
			continue
		}

		eng, _ := c.registry.Get(kind)
		result, err := eng.Synthesize(ctx, text, profile, basePath)
		if err == nil {
			if len(attempts) > 0 {
				c.log.Info("fell back", "engine", kind, "after", len(attempts))
			}
			result.Attempts = attempts
			return result, nil
		}

		c.log.Warn("engine failed", "engine", kind, "err", err)
		attempts = append(attempts, Attempt{Kind: kind, Err: err})
	}

	return nil, &ChainError{Attempts: attempts}
}
