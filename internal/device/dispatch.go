package device

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Grid describes the 2D coordinate space of one dispatch: X units along the
// inner dimension, Y along the outer. Units within a dispatch have no
// defined execution order and must not communicate; each owns a disjoint
// output region.
type Grid struct {
	X, Y int
}

func (g Grid) Size() int {
	return g.X * g.Y
}

// Context executes kernels over a grid with CPU workers standing in for the
// GPU's compute units. A Dispatch call is a synchronous drain: it returns
// only after every unit has finished, so effects of dispatch N are visible
// to dispatch N+1 in program order.
type Context struct {
	workers int
}

func NewContext() *Context {
	return &Context{workers: runtime.NumCPU()}
}

// SetWorkers overrides the worker count. Values below 1 reset to NumCPU.
func (c *Context) SetWorkers(n int) {
	if n < 1 {
		n = runtime.NumCPU()
	}
	c.workers = n
}

// Dispatch runs kernel once per (x, y) grid coordinate and joins all units
// before returning. Invalid launch arguments are rejected with the operation
// name before any unit runs; these are programmer errors, never retried.
func (c *Context) Dispatch(op string, grid Grid, kernel func(x, y int)) error {
	if grid.X <= 0 || grid.Y <= 0 {
		return fmt.Errorf("%s: invalid dispatch grid %dx%d", op, grid.X, grid.Y)
	}

	start := time.Now()
	total := grid.Size()

	workers := c.workers
	if workers > total {
		workers = total
	}
	unitsPerWorker := (total + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * unitsPerWorker
		hi := lo + unitsPerWorker
		if lo >= total {
			break
		}
		if hi > total {
			hi = total
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for u := lo; u < hi; u++ {
				kernel(u%grid.X, u/grid.X)
			}
		}(lo, hi)
	}
	wg.Wait()

	dispatchesTotal.WithLabelValues(op).Inc()
	dispatchDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	log.Debug().
		Str("kernel", op).
		Int("grid_x", grid.X).
		Int("grid_y", grid.Y).
		Dur("elapsed", time.Since(start)).
		Msg("Dispatch complete")

	return nil
}
