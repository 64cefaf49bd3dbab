// Package parallel splits row-wise tensor work across goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls how work is split.
type Config struct {
	Workers int // maximum goroutines; <= 1 runs inline
	MinRows int // rows per goroutine below which splitting is not worth it
}

// DefaultConfig uses one worker per available CPU.
func DefaultConfig() Config {
	return Config{
		Workers: runtime.GOMAXPROCS(0),
		MinRows: 64,
	}
}

// Rows calls fn on disjoint [start, end) ranges that together cover [0, n).
// It returns after every call has finished.
func Rows(n int, cfg Config, fn func(start, end int)) {
	if cfg.Workers <= 1 || n < 2*max(cfg.MinRows, 1) {
		fn(0, n)
		return
	}

	chunk := max((n+cfg.Workers-1)/cfg.Workers, cfg.MinRows)
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}
