// Package parallel provides the blocking collective operations used to move
// radiative data between mesh partitions. Each partition runs as one rank
// (a goroutine); every collective is a barrier-synchronized exchange, so rank
// code reads like the single-program-multiple-data loops it replaces. There
// is deliberately no asynchronous path: a collective either completes on all
// ranks or the run is broken.
package parallel

import (
	"errors"
	"fmt"
	"sync"
)

// Coordinator is the rank that owns dense matrix assembly, factorization and
// the direct solve.
const Coordinator = 0

// Comm is the communicator shared by all ranks of one run.
type Comm struct {
	np      int
	barrier *barrier
	slots   []interface{} // one deposit slot per rank, valid between barriers
}

func NewComm(np int) *Comm {
	if np < 1 {
		panic("parallel: communicator needs at least one rank")
	}
	return &Comm{
		np:      np,
		barrier: newBarrier(np),
		slots:   make([]interface{}, np),
	}
}

func (c *Comm) NumRanks() int { return c.np }

// IsCoordinator reports whether rank is the dense-solve owner.
func (c *Comm) IsCoordinator(rank int) bool { return rank == Coordinator }

// Sync is a plain barrier.
func (c *Comm) Sync() { c.barrier.await() }

// errRunBroken releases ranks stranded inside a collective after another
// rank has already failed. Run reports the originating error, never this one.
var errRunBroken = errors.New("parallel: run broken by another rank")

// Run executes fn on np ranks sharing a fresh communicator and blocks until
// all return. A rank returning an error breaks the barrier so the remaining
// ranks do not wait forever on its next collective; the originating error
// wins.
func Run(np int, fn func(rank int, c *Comm) error) error {
	var (
		c    = NewComm(np)
		wg   sync.WaitGroup
		errs = make([]error, np)
	)
	wg.Add(np)
	for rank := 0; rank < np; rank++ {
		go func(rank int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok || !errors.Is(err, errRunBroken) {
						panic(r)
					}
					errs[rank] = err
				}
			}()
			if errs[rank] = fn(rank, c); errs[rank] != nil {
				c.barrier.breakAll()
			}
		}(rank)
	}
	wg.Wait()
	for rank, err := range errs {
		if err != nil && !errors.Is(err, errRunBroken) {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
	}
	return nil
}

// deposit/collect implement the two-phase exchange every collective is built
// from: all ranks deposit, barrier, all ranks read, barrier (so slots can be
// reused by the next collective).
func (c *Comm) deposit(rank int, v interface{}) {
	c.slots[rank] = v
	c.barrier.await()
}

func (c *Comm) collect(rank int) []interface{} {
	out := make([]interface{}, c.np)
	copy(out, c.slots)
	c.barrier.await()
	return out
}

// AllGather returns every rank's slice, indexed by rank, on every rank.
// This is the gatherList+scatterList pair of the exchange layer.
func AllGather[T any](c *Comm, rank int, local []T) (all [][]T) {
	c.deposit(rank, local)
	raw := c.collect(rank)
	all = make([][]T, c.np)
	for r, v := range raw {
		all[r] = v.([]T)
	}
	return
}

// Gather returns every rank's slice on the coordinator only; other ranks
// receive nil. Use when the data is only ever consumed coordinator-side.
func Gather[T any](c *Comm, rank int, local []T) (all [][]T) {
	c.deposit(rank, local)
	raw := c.collect(rank)
	if rank != Coordinator {
		return nil
	}
	all = make([][]T, c.np)
	for r, v := range raw {
		all[r] = v.([]T)
	}
	return
}

// Scatter hands each rank its slice of all (provided by the coordinator).
func Scatter[T any](c *Comm, rank int, all [][]T) (local []T) {
	if rank == Coordinator {
		c.deposit(rank, all)
	} else {
		c.deposit(rank, [][]T(nil))
	}
	raw := c.collect(rank)
	local = raw[Coordinator].([][]T)[rank]
	return
}

// Broadcast distributes the coordinator's value to all ranks.
func Broadcast[T any](c *Comm, rank int, v T) T {
	c.deposit(rank, v)
	raw := c.collect(rank)
	return raw[Coordinator].(T)
}

// Reduce folds every rank's value with op; all ranks receive the result.
func Reduce[T any](c *Comm, rank int, v T, op func(a, b T) T) T {
	c.deposit(rank, v)
	raw := c.collect(rank)
	acc := raw[0].(T)
	for r := 1; r < c.np; r++ {
		acc = op(acc, raw[r].(T))
	}
	return acc
}

// CombineAll element-wise folds equal-length slices from all ranks (the
// listCombine gather/scatter pattern). Every rank receives the combined
// slice. Slice lengths must agree across ranks.
func CombineAll[T any](c *Comm, rank int, vals []T, op func(a, b T) T) (out []T) {
	all := AllGather(c, rank, vals)
	out = make([]T, len(vals))
	copy(out, all[0])
	for r := 1; r < c.np; r++ {
		if len(all[r]) != len(out) {
			panic(fmt.Sprintf("parallel: CombineAll length mismatch: rank %d has %d, rank 0 has %d",
				r, len(all[r]), len(out)))
		}
		for i, v := range all[r] {
			out[i] = op(out[i], v)
		}
	}
	return
}

func SumInt(a, b int) int { return a + b }

func MaxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func MinVec3(a, b [3]float64) [3]float64 {
	for d := 0; d < 3; d++ {
		if b[d] < a[d] {
			a[d] = b[d]
		}
	}
	return a
}

func MaxVec3(a, b [3]float64) [3]float64 {
	for d := 0; d < 3; d++ {
		if b[d] > a[d] {
			a[d] = b[d]
		}
	}
	return a
}

// barrier is a cyclic barrier for np goroutines. A broken barrier panics
// every current and future await with errRunBroken instead of blocking.
type barrier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	np     int
	count  int
	round  int
	broken bool
}

func newBarrier(np int) (b *barrier) {
	b = &barrier{np: np}
	b.cond = sync.NewCond(&b.mu)
	return
}

func (b *barrier) breakAll() {
	b.mu.Lock()
	b.broken = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *barrier) await() {
	b.mu.Lock()
	defer b.mu.Unlock()
	round := b.round
	b.count++
	if b.count == b.np {
		b.count = 0
		b.round++
		b.cond.Broadcast()
	} else {
		for round == b.round && !b.broken {
			b.cond.Wait()
		}
	}
	if b.broken {
		panic(errRunBroken)
	}
}
