// Package radiosity assembles the global view-factor matrix from the
// per-partition fragments and solves the coupled long-wave and short-wave
// exchange systems on the coordinator.
package radiosity

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/trace"
)

// AssembleF builds the dense global view-factor matrix from the fragments
// of all partitions, fragment r supplying the rows owned by rank r.
func AssembleF(gi *parallel.GlobalIndex, frags []*trace.FFragment) (*mat.Dense, error) {
	if len(frags) != gi.NumRanks() {
		return nil, fmt.Errorf("have %d fragments for %d ranks", len(frags), gi.NumRanks())
	}
	var (
		n = gi.TotalSize()
		F = mat.NewDense(n, n, nil)
	)
	for rank, fr := range frags {
		if fr.NRows != gi.LocalSize(rank) || fr.NCols != n {
			return nil, fmt.Errorf("fragment %d is %dx%d, want %dx%d",
				rank, fr.NRows, fr.NCols, gi.LocalSize(rank), n)
		}
		for k, v := range fr.Vals {
			F.Set(gi.ToGlobal(rank, fr.Rows[k]), fr.Cols[k], v)
		}
	}
	return F, nil
}

// Smooth renormalizes every row of F toward unit sum, compensating the
// defect of the point-approximation view factors. Rows far from closed
// (small sums, e.g. elements seeing mostly sky) are corrected
// proportionally.
func Smooth(F *mat.Dense) {
	n, _ := F.Dims()
	for i := 0; i < n; i++ {
		var sumF float64
		for j := 0; j < n; j++ {
			sumF += F.At(i, j)
		}
		delta := sumF - 1.0
		for j := 0; j < n; j++ {
			F.Set(i, j, F.At(i, j)*(1.0-delta/(sumF+0.001)))
		}
	}
}
