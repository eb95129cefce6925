package radiosity

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/properties"
	"github.com/uclimate/gorad/solar"
	"github.com/uclimate/gorad/trace"
)

// fragment builds a one-row view-factor fragment from a dense row.
func fragment(row []float64, nCols int) *trace.FFragment {
	fr := &trace.FFragment{NRows: 1, NCols: nCols}
	for j, v := range row {
		if v != 0 {
			fr.Rows = append(fr.Rows, 0)
			fr.Cols = append(fr.Cols, j)
			fr.Vals = append(fr.Vals, v)
		}
	}
	return fr
}

// cavityFragments is the two-element closed enclosure: each element sees
// only the other, with unit view factor.
func cavityFragments() []*trace.FFragment {
	return []*trace.FFragment{
		fragment([]float64{0, 1}, 2),
		fragment([]float64{1, 0}, 2),
	}
}

func TestAssembleF(t *testing.T) {
	var (
		gi     = parallel.NewGlobalIndex([]int{1, 1})
		F, err = AssembleF(gi, cavityFragments())
	)
	require.NoError(t, err)
	assert.Equal(t, 0., F.At(0, 0))
	assert.Equal(t, 1., F.At(0, 1))
	assert.Equal(t, 1., F.At(1, 0))

	// A fragment with the wrong column count is rejected.
	_, err = AssembleF(gi, []*trace.FFragment{
		fragment([]float64{0, 1}, 2),
		fragment([]float64{1}, 1),
	})
	assert.Error(t, err)
}

func TestSmoothRowSums(t *testing.T) {
	F := mat.NewDense(2, 2, []float64{
		0.3, 0.5, // row sum 0.8
		0.7, 0.5, // row sum 1.2
	})
	Smooth(F)
	for i := 0; i < 2; i++ {
		sum := F.At(i, 0) + F.At(i, 1)
		assert.InDelta(t, 1.0, sum, 1e-2, "row %d", i)
	}
}

func TestLongWaveIsothermalEnclosure(t *testing.T) {
	var (
		gi       = parallel.NewGlobalIndex([]int{1, 1})
		sys, err = NewSystem(properties.DefaultRadiationProperties(), gi, cavityFragments())
	)
	require.NoError(t, err)

	// Black isothermal enclosure exchanges nothing net.
	var (
		T4 = []float64{300 * 300 * 300 * 300, 300 * 300 * 300 * 300}
		E  = []float64{1, 1}
	)
	q, err := sys.SolveLongWave(T4, E, []float64{0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0, q[0], 1e-9)
	assert.InDelta(t, 0, q[1], 1e-9)
}

func TestLongWaveHotColdPair(t *testing.T) {
	var (
		gi       = parallel.NewGlobalIndex([]int{2})
		sys, err = NewSystem(properties.DefaultRadiationProperties(), gi,
			[]*trace.FFragment{{
				NRows: 2, NCols: 2,
				Rows: []int{0, 1}, Cols: []int{1, 0}, Vals: []float64{1, 1},
			}})
	)
	require.NoError(t, err)

	// With unit emissivities the exchange matrix is the identity, so the
	// flux is the plain radiosity balance sigma*(T4_other - T4_own).
	var (
		T4     = []float64{math.Pow(400, 4), math.Pow(300, 4)}
		E      = []float64{1, 1}
		q, qerr = sys.SolveLongWave(T4, E, []float64{0, 0})
	)
	require.NoError(t, qerr)
	want := Sigma * (T4[1] - T4[0])
	assert.InDelta(t, want, q[0], math.Abs(want)*1e-12)
	assert.InDelta(t, -want, q[1], math.Abs(want)*1e-12)
	assert.Less(t, q[0], 0.0, "the hot face loses heat")
}

func TestShortWaveAbsorbedFraction(t *testing.T) {
	var (
		gi       = parallel.NewGlobalIndex([]int{1})
		sys, err = NewSystem(properties.DefaultRadiationProperties(), gi,
			[]*trace.FFragment{{NRows: 1, NCols: 1}})
	)
	require.NoError(t, err)

	// An isolated face absorbs (1-A) of the incident load.
	q, err := sys.SolveShortWave([]float64{100}, []float64{0.2}, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 80, q[0], 1e-12)
}

func TestFactorizationCache(t *testing.T) {
	var (
		dir   = t.TempDir()
		props = properties.DefaultRadiationProperties()
		gi    = parallel.NewGlobalIndex([]int{1, 1})
		T4    = []float64{math.Pow(350, 4), math.Pow(290, 4)}
		E     = []float64{0.9, 0.9}
	)
	props.ConstantEmissivity = true
	props.CacheDir = dir

	sys, err := NewSystem(props, gi, cavityFragments())
	require.NoError(t, err)
	q1, err := sys.SolveLongWave(T4, E, []float64{0, 0})
	require.NoError(t, err)

	path := filepath.Join(dir, "CLU_qr")
	_, err = os.Stat(path)
	require.NoError(t, err, "factorization cache written")

	// A fresh system picks the cache up and reproduces the solution.
	sys2, err := NewSystem(props, gi, cavityFragments())
	require.NoError(t, err)
	q2, err := sys2.SolveLongWave(T4, E, []float64{0, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, q1, q2, 1e-12)

	// A cache for a different element count is discarded.
	_, ok := LoadLU(path, 5)
	assert.False(t, ok)
	lu, ok := LoadLU(path, 2)
	require.True(t, ok)
	assert.Equal(t, 2, lu.N)
}

// unitSquare returns a unit square face at height z, normal flipped when
// facing down.
func unitSquare(z float64, down bool) mesh.Face {
	pts := []geometry.Vec{
		{0, 0, z}, {1, 0, z}, {1, 1, z}, {0, 1, z},
	}
	if down {
		pts[1], pts[3] = pts[3], pts[1]
	}
	return mesh.NewFace(pts)
}

func testTables(t *testing.T) *solar.Tables {
	t.Helper()
	var (
		times = []float64{0, 3600}
		sun   = must2(solar.NewVectorTable(times,
			[]geometry.Vec{{0, 0, -1}, {0, 0, -1}}))
		idn  = must2(solar.NewScalarTable(times, []float64{500, 500}))
		idif = must2(solar.NewScalarTable(times, []float64{100, 100}))
		ta   = must2(solar.NewScalarTable(times, []float64{293.15, 293.15}))
	)
	return &solar.Tables{SunPos: sun, IDN: idn, Idif: idif, Tambient: ta}
}

func must2[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestExchangeIsothermalLongWave(t *testing.T) {
	var (
		frags  = cavityFragments()
		gi     = parallel.NewGlobalIndex([]int{1, 1})
		tables = testTables(t)
		qr     = make([][]float64, 2)
	)
	err := parallel.Run(2, func(rank int, c *parallel.Comm) error {
		b := &mesh.Boundary{Patches: []mesh.Patch{{
			Name:  "floor",
			Type:  "wall",
			Faces: []mesh.Face{unitSquare(float64(rank), rank == 1)},
		}}}
		fields := mesh.NewWallFields(1)
		fields.T[0] = 300
		fields.Emissivity[0] = 1

		part := &Partition{B: b, A: mesh.Identity(b), Fields: fields}

		var sys *System
		if c.IsCoordinator(rank) {
			var err error
			if sys, err = NewSystem(properties.DefaultRadiationProperties(), gi, frags); err != nil {
				return err
			}
		}
		ex := NewExchange(rank, c, gi, part, sys, tables)
		q, err := ex.UpdateLongWave(0)
		if err != nil {
			return err
		}
		qr[rank] = q
		return nil
	})
	require.NoError(t, err)
	for rank := 0; rank < 2; rank++ {
		require.Len(t, qr[rank], 1)
		assert.InDelta(t, 0, qr[rank][0], 1e-9, "rank %d", rank)
	}
}

func TestExchangeShortWaveFineCorrection(t *testing.T) {
	var (
		gi     = parallel.NewGlobalIndex([]int{1})
		tables = testTables(t)
		got    []float64
	)
	err := parallel.Run(1, func(rank int, c *parallel.Comm) error {
		b := &mesh.Boundary{Patches: []mesh.Patch{{
			Name:  "floor",
			Type:  "wall",
			Faces: []mesh.Face{unitSquare(0, false)},
		}}}
		fields := mesh.NewWallFields(1)
		fields.Albedo[0] = 0.2

		// Coarse sun view 100, traced fine load 160: the correction swaps
		// the element-uniform direct share for the per-face one.
		part := &Partition{
			B: b, A: mesh.Identity(b), Fields: fields,
			Solar: &trace.SolarCoeffs{
				Times:         []float64{0, 3600},
				SunView:       [][]float64{{100}, {100}},
				SkyView:       [][]float64{{0}, {0}},
				SolarLoadFine: [][]float64{{160}, {160}},
			},
		}
		sys, err := NewSystem(properties.DefaultRadiationProperties(), gi,
			[]*trace.FFragment{{NRows: 1, NCols: 1}})
		if err != nil {
			return err
		}
		ex := NewExchange(rank, c, gi, part, sys, tables)
		got, err = ex.UpdateShortWave(0, nil)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	// Element solve gives 100*(1-A)=80; the fine recovery removes it and
	// applies 160*(1-A)=128 instead.
	assert.InDelta(t, 128, got[0], 1e-9)
}
