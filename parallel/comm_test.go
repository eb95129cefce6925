package parallel

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalIndex(t *testing.T) {
	g := NewGlobalIndex([]int{3, 0, 5, 2})
	assert.Equal(t, 10, g.TotalSize())
	assert.Equal(t, 4, g.NumRanks())
	assert.Equal(t, 0, g.ToGlobal(0, 0))
	assert.Equal(t, 3, g.ToGlobal(2, 0))
	assert.Equal(t, 8, g.ToGlobal(3, 0))
	assert.Equal(t, 5, g.LocalSize(2))
	assert.Equal(t, 0, g.LocalSize(1))

	for global := 0; global < g.TotalSize(); global++ {
		rank, local := g.ToLocal(global)
		assert.Equal(t, global, g.ToGlobal(rank, local))
		assert.True(t, g.IsLocal(rank, global))
	}
	assert.Panics(t, func() { g.ToLocal(10) })
}

func TestCollectives(t *testing.T) {
	const np = 4
	err := Run(np, func(rank int, c *Comm) error {
		// AllGather: every rank sees every rank's data in rank order
		local := []int{rank, rank * 10}
		all := AllGather(c, rank, local)
		require.Len(t, all, np)
		for r := 0; r < np; r++ {
			assert.Equal(t, []int{r, r * 10}, all[r])
		}

		// Gather delivers to the coordinator only
		gathered := Gather(c, rank, []int{rank})
		if c.IsCoordinator(rank) {
			require.Len(t, gathered, np)
			assert.Equal(t, []int{2}, gathered[2])
		} else {
			assert.Nil(t, gathered)
		}

		// Scatter from the coordinator
		var all2 [][]float64
		if c.IsCoordinator(rank) {
			all2 = [][]float64{{0}, {1}, {2}, {3}}
		}
		mine := Scatter(c, rank, all2)
		assert.Equal(t, []float64{float64(rank)}, mine)

		// Reduce(sum) has the same value everywhere
		total := Reduce(c, rank, rank+1, SumInt)
		assert.Equal(t, 1+2+3+4, total)

		// Broadcast
		v := Broadcast(c, rank, rank+100)
		assert.Equal(t, 100, v)

		// CombineAll with max: each rank contributes one owned entry
		vals := make([]float64, np)
		vals[rank] = float64(rank + 1)
		combined := CombineAll(c, rank, vals, MaxFloat)
		assert.Equal(t, []float64{1, 2, 3, 4}, combined)
		return nil
	})
	require.NoError(t, err)
}

func TestCollectivesBackToBack(t *testing.T) {
	// Reusing the same communicator for many successive collectives must not
	// cross phases between rounds.
	const np = 8
	err := Run(np, func(rank int, c *Comm) error {
		for round := 0; round < 100; round++ {
			sum := Reduce(c, rank, rank, SumInt)
			if sum != np*(np-1)/2 {
				t.Errorf("round %d: got %d", round, sum)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRunFailingRankReleasesTheOthers(t *testing.T) {
	// A rank erroring out before its first collective must not leave the
	// remaining ranks blocked inside theirs.
	boom := errors.New("bad partition")
	done := make(chan error, 1)
	go func() {
		done <- Run(2, func(rank int, c *Comm) error {
			if rank == 1 {
				return boom
			}
			AllGather(c, rank, []int{rank})
			return nil
		})
	}()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "rank 1")
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a rank failed")
	}
}

func TestBarrierCyclic(t *testing.T) {
	var (
		b       = newBarrier(3)
		mu      sync.Mutex
		counter int
		wg      sync.WaitGroup
	)
	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				mu.Lock()
				counter++
				mu.Unlock()
				b.await()
				mu.Lock()
				if counter%3 != 0 {
					t.Error("barrier released before all arrived")
				}
				mu.Unlock()
				b.await()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 150, counter)
}
