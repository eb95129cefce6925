package trace

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/solar"
)

// squareFace builds a unit square at height z. up selects whether the
// normal points toward +z or -z.
func squareFace(x0, y0, z float64, up bool) mesh.Face {
	pts := []geometry.Vec{
		{x0, y0, z}, {x0 + 1, y0, z}, {x0 + 1, y0 + 1, z}, {x0, y0 + 1, z},
	}
	if !up {
		pts[1], pts[3] = pts[3], pts[1]
	}
	return mesh.NewFace(pts)
}

func wallBoundary(faces ...mesh.Face) *mesh.Boundary {
	return &mesh.Boundary{Patches: []mesh.Patch{
		{Name: "walls", Type: "wall", Faces: faces},
	}}
}

func constTables(t *testing.T, sunDir geometry.Vec, idn, idif float64) *solar.Tables {
	t.Helper()
	var (
		err error
		tb  solar.Tables
	)
	tb.SunPos, err = solar.NewVectorTable([]float64{0, 3600},
		[]geometry.Vec{sunDir, sunDir})
	require.NoError(t, err)
	tb.IDN, err = solar.NewScalarTable([]float64{0, 3600}, []float64{idn, idn})
	require.NoError(t, err)
	tb.Idif, err = solar.NewScalarTable([]float64{0, 3600}, []float64{idif, idif})
	require.NoError(t, err)
	tb.Tambient, err = solar.NewScalarTable([]float64{0, 3600}, []float64{293, 293})
	require.NoError(t, err)
	return &tb
}

func TestTriangulateQuads(t *testing.T) {
	b := wallBoundary(squareFace(0, 0, 0, true), squareFace(2, 0, 0, true))
	a := mesh.Identity(b)
	tris := Triangulate(b, a, 10)
	require.Len(t, tris, 4)
	assert.Equal(t, 10, tris[0].Agglom)
	assert.Equal(t, 11, tris[2].Agglom)
}

func TestViewFactorsFacingSquares(t *testing.T) {
	var (
		d = 5.
		b = wallBoundary(
			squareFace(0, 0, 0, true), // looks up
			squareFace(0, 0, d, false), // looks down
		)
		a    = mesh.Identity(b)
		gi   = parallel.NewGlobalIndex([]int{2})
		surf = geometry.NewTriSurface(Triangulate(b, a, 0), []string{"walls"})
		F    = ViewFactors(0, gi, a.Elements, a.Elements, surf)
	)
	want := 1. / (math.Pi * d * d)
	assert.InDelta(t, want, F.At(0, 1), 1.e-12)
	assert.InDelta(t, want, F.At(1, 0), 1.e-12)
	assert.Equal(t, 0., F.At(0, 0))
}

func TestViewFactorsObstructedPairIsZero(t *testing.T) {
	// A slab halfway between the facing squares blocks the ray.
	var (
		b = wallBoundary(
			squareFace(0, 0, 0, true),
			squareFace(0, 0, 4, false),
			mesh.NewFace([]geometry.Vec{
				{-2, -2, 2}, {-2, 3, 2}, {3, 3, 2}, {3, -2, 2},
			}),
		)
		a    = mesh.Identity(b)
		gi   = parallel.NewGlobalIndex([]int{3})
		surf = geometry.NewTriSurface(Triangulate(b, a, 0), []string{"walls"})
		F    = ViewFactors(0, gi, a.Elements, a.Elements, surf)
	)
	assert.Equal(t, 0., F.At(0, 1))
	assert.Equal(t, 0., F.At(1, 0))
	// The lower square still sees the underside of the slab.
	assert.Greater(t, F.At(0, 2), 0.)
}

func TestViewFactorsBackFacingIsZero(t *testing.T) {
	// Both squares look up: the upper one is behind the lower one's view.
	var (
		b = wallBoundary(
			squareFace(0, 0, 0, true),
			squareFace(0, 0, 5, true),
		)
		a    = mesh.Identity(b)
		gi   = parallel.NewGlobalIndex([]int{2})
		surf = geometry.NewTriSurface(Triangulate(b, a, 0), []string{"walls"})
		F    = ViewFactors(0, gi, a.Elements, a.Elements, surf)
	)
	assert.Equal(t, 0., F.At(0, 1))
	assert.Equal(t, 0., F.At(1, 0))
}

func TestComputeSolarOverheadSun(t *testing.T) {
	var (
		b      = wallBoundary(squareFace(0, 0, 0, true))
		a      = mesh.Identity(b)
		surf   = geometry.NewTriSurface(Triangulate(b, a, 0), []string{"walls"})
		domain = geometry.BBox{Min: geometry.Vec{-10, -10, -1}, Max: geometry.Vec{10, 10, 10}}
		tb     = constTables(t, geometry.Vec{0, 0, 1}, 800, 100)
	)
	sc, err := ComputeSolar(b, a, surf, domain, tb, geometry.Vec{0, 0, 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 800., sc.SunView[0][0], 1.e-9)
	assert.InDelta(t, 100., sc.SkyView[0][0], 1.e-9)
	assert.InDelta(t, 800., sc.SolarLoadFine[0][0], 1.e-9)
}

func TestComputeSolarShadowAndCanopy(t *testing.T) {
	var (
		// Ground square shadowed by a slab above it.
		b = wallBoundary(
			squareFace(0, 0, 0, true),
			mesh.NewFace([]geometry.Vec{
				{-2, -2, 3}, {3, -2, 3}, {3, 3, 3}, {-2, 3, 3},
			}),
		)
		a      = mesh.Identity(b)
		surf   = geometry.NewTriSurface(Triangulate(b, a, 0), []string{"walls"})
		domain = geometry.BBox{Min: geometry.Vec{-10, -10, -1}, Max: geometry.Vec{10, 10, 10}}
		tb     = constTables(t, geometry.Vec{0, 0, 1}, 800, 0)
	)
	sc, err := ComputeSolar(b, a, surf, domain, tb, geometry.Vec{0, 0, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0., sc.SunView[0][0])
	assert.Equal(t, 0., sc.SolarLoadFine[0][0])

	// With a canopy LAI on the ground element the shadowed share recovers
	// the Beer-Lambert transmitted irradiance.
	kcLAI := [][]float64{{1.5, 0}, {1.5, 0}}
	sc, err = ComputeSolar(b, a, surf, domain, tb, geometry.Vec{0, 0, 1}, kcLAI)
	require.NoError(t, err)
	want := 800 * math.Exp(-1.5)
	assert.InDelta(t, want, sc.SunView[0][0], 1.e-9)
	assert.InDelta(t, want, sc.SolarLoadFine[0][0], 1.e-9)
}

func TestSkyCoefficientFoldsAboutHorizon(t *testing.T) {
	var (
		up       = squareFace(0, 0, 0, true)
		down     = squareFace(3, 0, 0, false)
		vertical = mesh.NewFace([]geometry.Vec{
			{6, 0, 0}, {6, 1, 0}, {6, 1, 1}, {6, 0, 1},
		})
		b      = wallBoundary(up, down, vertical)
		a      = mesh.Identity(b)
		surf   = geometry.NewTriSurface(nil, nil)
		domain = geometry.BBox{Min: geometry.Vec{-10, -10, -10}, Max: geometry.Vec{10, 10, 10}}
		tb     = constTables(t, geometry.Vec{0, 0, 1}, 0, 200)
	)
	sc, err := ComputeSolar(b, a, surf, domain, tb, geometry.Vec{0, 0, 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 200., sc.SkyView[0][0], 1.e-9) // horizontal up
	assert.InDelta(t, 200., sc.SkyView[0][1], 1.e-9) // folded about the horizon: as up
	assert.InDelta(t, 100., sc.SkyView[0][2], 1.e-9) // vertical
}

func TestInterpolateRowExactAtTimestamp(t *testing.T) {
	sc := &SolarCoeffs{
		Times:   []float64{0, 3600},
		SunView: [][]float64{{10, 20}, {30, 40}},
	}
	row, err := sc.InterpolateRow(sc.SunView, 3600)
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 40}, row)

	row, err = sc.InterpolateRow(sc.SunView, 1800)
	require.NoError(t, err)
	assert.InDelta(t, 20., row[0], 1.e-12)
}

func TestArtifactsRoundTrip(t *testing.T) {
	var (
		b    = wallBoundary(squareFace(0, 0, 0, true), squareFace(0, 0, 5, false))
		a    = mesh.Identity(b)
		gi   = parallel.NewGlobalIndex([]int{2})
		surf = geometry.NewTriSurface(Triangulate(b, a, 0), []string{"walls"})
		F    = ViewFactors(0, gi, a.Elements, a.Elements, surf)
		art  = &Artifacts{
			F: NewFFragment(F),
			Solar: &SolarCoeffs{
				Times:   []float64{0},
				SunView: [][]float64{{1, 2}},
			},
		}
		path = filepath.Join(t.TempDir(), "trace.bin")
	)
	require.NoError(t, art.Save(path))
	back, err := LoadArtifacts(path)
	require.NoError(t, err)

	G := back.F.ToDOK()
	assert.Equal(t, F.At(0, 1), G.At(0, 1))
	assert.Equal(t, art.Solar.SunView, back.Solar.SunView)
}
