// Package parallel splits element ranges across a bounded set of goroutines.
package parallel

import (
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/tensorcore/internal/envconfig"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig reads TENSORCORE_NUM_THREADS and TENSORCORE_MIN_CHUNK.
func DefaultConfig() Config {
	n := max(int(envconfig.NumThreads()), 1)
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: max(int(envconfig.MinChunk()), 1),
	}
}

// Range calls f on disjoint half-open ranges covering [0, n) and returns the
// first error. Every range has finished when Range returns.
func Range(n int, f func(lo, hi int) error, cfg Config) error {
	if n <= 0 {
		return nil
	}
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*cfg.MinChunkSize {
		return f(0, n)
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error { return f(lo, hi) })
	}
	return g.Wait()
}

// For executes f(i) for i in [0, n), in parallel when n is large enough.
func For(n int, f func(i int), cfg Config) {
	_ = Range(n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			f(i)
		}
		return nil
	}, cfg)
}
