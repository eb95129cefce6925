package parallel

import "fmt"

// GlobalIndex maps a per-rank local numbering onto one flat index space, in
// rank order. It plays the role the coarse-face global numbering plays in the
// exchange of view-factor rows and coupling coefficients.
type GlobalIndex struct {
	offsets []int // offsets[rank] is the first global index owned by rank
	total   int
}

// NewGlobalIndex builds the numbering from every rank's local element count.
func NewGlobalIndex(localSizes []int) (g *GlobalIndex) {
	g = &GlobalIndex{
		offsets: make([]int, len(localSizes)),
	}
	for rank, n := range localSizes {
		g.offsets[rank] = g.total
		g.total += n
	}
	return
}

func (g *GlobalIndex) NumRanks() int { return len(g.offsets) }

func (g *GlobalIndex) TotalSize() int { return g.total }

func (g *GlobalIndex) LocalSize(rank int) int {
	if rank == len(g.offsets)-1 {
		return g.total - g.offsets[rank]
	}
	return g.offsets[rank+1] - g.offsets[rank]
}

func (g *GlobalIndex) ToGlobal(rank, local int) int {
	return g.offsets[rank] + local
}

// ToLocal inverts ToGlobal. It panics on an out-of-range index, which is
// always a programming error in the exchange layer.
func (g *GlobalIndex) ToLocal(global int) (rank, local int) {
	if global < 0 || global >= g.total {
		panic(fmt.Sprintf("global index %d out of range [0,%d)", global, g.total))
	}
	for rank = len(g.offsets) - 1; rank >= 0; rank-- {
		if global >= g.offsets[rank] {
			local = global - g.offsets[rank]
			return
		}
	}
	return
}

// IsLocal reports whether rank owns the global index.
func (g *GlobalIndex) IsLocal(rank, global int) bool {
	r, _ := g.ToLocal(global)
	return r == rank
}
