// Package vegetation implements the canopy radiation pre-pass and the
// vegetation and grass energy-balance models. The pre-pass integrates leaf
// area density along each sun direction on a Cartesian grid rotated so the
// sun maps to the vertical, yielding per-cell leaf area index, the
// divergence of the transmitted short-wave flux, and the canopy optical
// depth seen by each boundary element.
package vegetation

import (
	"math"

	"github.com/ctessum/sparse"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/solar"
)

// ladEps separates vegetated from clear cells.
const ladEps = 1.e-12

// gridPad is the number of grid spacings the interpolation grids extend
// beyond the vegetation bounding box on every side.
const gridPad = 5

// Grid is a uniform Cartesian scalar grid with trilinear sampling. Values
// are stored z-major: index (k, j, i) for (z, y, x).
type Grid struct {
	Min        geometry.Vec
	Dp         float64
	Nx, Ny, Nz int
	Vals       *sparse.DenseArray
}

func NewGrid(min geometry.Vec, dp float64, nx, ny, nz int) *Grid {
	return &Grid{
		Min: min, Dp: dp, Nx: nx, Ny: ny, Nz: nz,
		Vals: sparse.ZerosDense(nz, ny, nx),
	}
}

// Node returns the coordinate of grid node (i, j, k).
func (g *Grid) Node(i, j, k int) geometry.Vec {
	return geometry.Vec{
		g.Min[0] + float64(i)*g.Dp,
		g.Min[1] + float64(j)*g.Dp,
		g.Min[2] + float64(k)*g.Dp,
	}
}

// Max returns the coordinate of the last grid node.
func (g *Grid) Max() geometry.Vec {
	return g.Node(g.Nx-1, g.Ny-1, g.Nz-1)
}

// Bounds returns the grid extent as a box.
func (g *Grid) Bounds() geometry.BBox {
	return geometry.BBox{Min: g.Min, Max: g.Max()}
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Interp trilinearly samples the grid at p. Lookups at the grid boundary
// clamp to the outermost node layer.
func (g *Grid) Interp(p geometry.Vec) float64 {
	var (
		i0 = clampIdx(int(math.Floor((p[0]-g.Min[0])/g.Dp)), g.Nx-2)
		j0 = clampIdx(int(math.Floor((p[1]-g.Min[1])/g.Dp)), g.Ny-2)
		k0 = clampIdx(int(math.Floor((p[2]-g.Min[2])/g.Dp)), g.Nz-2)

		xd = (p[0] - (g.Min[0] + float64(i0)*g.Dp)) / g.Dp
		yd = (p[1] - (g.Min[1] + float64(j0)*g.Dp)) / g.Dp
		zd = (p[2] - (g.Min[2] + float64(k0)*g.Dp)) / g.Dp

		c00 = g.Vals.Get(k0, j0, i0)*(1-xd) + g.Vals.Get(k0, j0, i0+1)*xd
		c10 = g.Vals.Get(k0, j0+1, i0)*(1-xd) + g.Vals.Get(k0, j0+1, i0+1)*xd
		c01 = g.Vals.Get(k0+1, j0, i0)*(1-xd) + g.Vals.Get(k0+1, j0, i0+1)*xd
		c11 = g.Vals.Get(k0+1, j0+1, i0)*(1-xd) + g.Vals.Get(k0+1, j0+1, i0+1)*xd
	)
	c0 := c00*(1-yd) + c10*yd
	c1 := c01*(1-yd) + c11*yd
	return c0*(1-zd) + c1*zd
}

// VegBounds returns the bounding box of the vegetated cell centers across
// the given regions. ok is false when no cell carries vegetation.
func VegBounds(regions []*mesh.VolumeRegion) (box geometry.BBox, ok bool) {
	box = geometry.EmptyBBox()
	for _, vr := range regions {
		for ci, lad := range vr.LAD {
			if lad > 10*ladEps {
				box.Extend(vr.CellCenters[ci])
				ok = true
			}
		}
	}
	return
}

// vegBoundsRotated is VegBounds in the sun-aligned frame.
func vegBoundsRotated(regions []*mesh.VolumeRegion, T geometry.Tensor) (box geometry.BBox, meshMinZ float64) {
	box = geometry.EmptyBBox()
	meshMinZ = math.Inf(1)
	for _, vr := range regions {
		for ci, lad := range vr.LAD {
			p := T.Transform(vr.CellCenters[ci])
			if p[2] < meshMinZ {
				meshMinZ = p[2]
			}
			if lad > 10*ladEps {
				box.Extend(p)
			}
		}
	}
	return
}

// BuildLADGrid samples the leaf area density of all regions onto a uniform
// grid over the padded vegetation box. A grid node takes the LAD of the cell
// whose cube (half-width half the cube root of the cell volume) contains it.
func BuildLADGrid(vegBox geometry.BBox, dp float64, regions []*mesh.VolumeRegion) *Grid {
	var (
		min = vegBox.Min.Sub(geometry.Vec{gridPad * dp, gridPad * dp, gridPad * dp})
		max = vegBox.Max.Add(geometry.Vec{gridPad * dp, gridPad * dp, gridPad * dp})
		nx  = int(math.Ceil((max[0]-min[0])/dp)) + 1
		ny  = int(math.Ceil((max[1]-min[1])/dp)) + 1
		nz  = int(math.Ceil((max[2]-min[2])/dp)) + 1
		g   = NewGrid(min, dp, nx, ny, nz)
	)
	for _, vr := range regions {
		for ci, lad := range vr.LAD {
			if lad <= 0 {
				continue
			}
			var (
				c = vr.CellCenters[ci]
				h = 0.5 * math.Cbrt(vr.CellVolumes[ci])

				iLo = clampIdx(int(math.Ceil((c[0]-h-min[0])/dp)), nx-1)
				iHi = clampIdx(int(math.Floor((c[0]+h-min[0])/dp)), nx-1)
				jLo = clampIdx(int(math.Ceil((c[1]-h-min[1])/dp)), ny-1)
				jHi = clampIdx(int(math.Floor((c[1]+h-min[1])/dp)), ny-1)
				kLo = clampIdx(int(math.Ceil((c[2]-h-min[2])/dp)), nz-1)
				kHi = clampIdx(int(math.Floor((c[2]+h-min[2])/dp)), nz-1)
			)
			for k := kLo; k <= kHi; k++ {
				for j := jLo; j <= jHi; j++ {
					for i := iLo; i <= iHi; i++ {
						g.Vals.Set(lad, k, j, i)
					}
				}
			}
		}
	}
	return g
}

// rotateGrid resamples the LAD grid onto a grid over the padded rotated
// vegetation box. Tinv maps rotated-frame points back to the original frame.
func rotateGrid(lad *Grid, vegBoxRot geometry.BBox, Tinv geometry.Tensor) *Grid {
	var (
		dp  = lad.Dp
		min = vegBoxRot.Min.Sub(geometry.Vec{gridPad * dp, gridPad * dp, gridPad * dp})
		max = vegBoxRot.Max.Add(geometry.Vec{gridPad * dp, gridPad * dp, gridPad * dp})
		nx  = int(math.Ceil((max[0]-min[0])/dp)) + 1
		ny  = int(math.Ceil((max[1]-min[1])/dp)) + 1
		nz  = int(math.Ceil((max[2]-min[2])/dp)) + 1
		g   = NewGrid(min, dp, nx, ny, nz)
		src = lad.Bounds()
	)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				p := Tinv.Transform(g.Node(i, j, k))
				if src.Contains(p) {
					g.Vals.Set(lad.Interp(p), k, j, i)
				}
			}
		}
	}
	return g
}

// integrateLAI accumulates leaf area index top-down along z by trapezoidal
// integration of the rotated LAD grid.
func integrateLAI(ladRot *Grid) *Grid {
	g := NewGrid(ladRot.Min, ladRot.Dp, ladRot.Nx, ladRot.Ny, ladRot.Nz)
	for i := 0; i < g.Nx; i++ {
		for j := 0; j < g.Ny; j++ {
			for k := g.Nz - 2; k >= 0; k-- {
				v := g.Vals.Get(k+1, j, i) +
					0.5*(ladRot.Vals.Get(k, j, i)+ladRot.Vals.Get(k+1, j, i))*g.Dp
				g.Vals.Set(v, k, j, i)
			}
		}
	}
	return g
}

// divergence returns the vertical forward-difference divergence of the
// transmitted short-wave flux qrsw = IDN*exp(-kc*LAI) on the rotated grid.
func divergence(laiRot *Grid, idn, kc float64) *Grid {
	g := NewGrid(laiRot.Min, laiRot.Dp, laiRot.Nx, laiRot.Ny, laiRot.Nz)
	qrsw := func(k, j, i int) float64 {
		return idn * math.Exp(-kc*laiRot.Vals.Get(k, j, i))
	}
	for k := 0; k < g.Nz-1; k++ {
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				g.Vals.Set(-(qrsw(k+1, j, i)-qrsw(k, j, i))/g.Dp, k, j, i)
			}
		}
	}
	return g
}

// shadowLAI marks a cell hidden from the sun by a building: the optical
// depth is forced large enough that the transmitted flux vanishes.
const shadowLAI = 1000

// PassConfig tunes the LAI pre-pass.
type PassConfig struct {
	Kc                float64      // Beer-Lambert extinction coefficient
	MinCellSizeFactor float64      // grid spacing over smallest cell edge
	Up                geometry.Vec // vertical direction
}

// PassResult is the pre-pass output for one partition, indexed by sun-table
// timestamp. KcLAIBoundary rows align with the partition's coarse elements;
// LAI and DivQrsw rows with its cells.
type PassResult struct {
	Times         []float64
	LAI           [][]float64
	DivQrsw       [][]float64
	KcLAIBoundary [][]float64
}

// ComputeLAI runs the canopy pre-pass for all partitions at once, on the
// coordinating rank: the leaf-area-density grid is stamped, rotated and
// integrated once per sun direction, and every partition's cells and coarse
// elements sample the shared grids. regions[pi] and elements[pi] are
// partition pi's volume region and coarse elements; the returned results
// align the same way. The surface is the gathered obstruction surface and
// domain its bounding box.
func ComputeLAI(regions []*mesh.VolumeRegion, elements [][]mesh.CoarseElement,
	surf *geometry.TriSurface, domain geometry.BBox,
	tb *solar.Tables, cfg PassConfig) ([]*PassResult, error) {

	var (
		times = tb.SunPos.Times()
		np    = len(regions)
		out   = make([]*PassResult, np)
		up    = cfg.Up.Normalize()
	)
	for pi := 0; pi < np; pi++ {
		res := &PassResult{
			Times:         times,
			LAI:           make([][]float64, len(times)),
			DivQrsw:       make([][]float64, len(times)),
			KcLAIBoundary: make([][]float64, len(times)),
		}
		for ti := range times {
			res.LAI[ti] = make([]float64, len(regions[pi].CellCenters))
			res.DivQrsw[ti] = make([]float64, len(regions[pi].CellCenters))
			res.KcLAIBoundary[ti] = make([]float64, len(elements[pi]))
		}
		out[pi] = res
	}

	vegBox, any := VegBounds(regions)
	if !any {
		return out, nil
	}

	minCellV := math.Inf(1)
	for _, vr := range regions {
		if v := vr.MinCellVolume(); v > 0 && v < minCellV {
			minCellV = v
		}
	}
	var (
		dp  = math.Cbrt(minCellV) * cfg.MinCellSizeFactor
		lad = BuildLADGrid(vegBox, dp, regions)
	)

	for ti, tm := range times {
		env, err := tb.At(tm)
		if err != nil {
			return nil, err
		}
		sunDir := env.SunDir
		if sunDir.Dot(up) <= 0 {
			// Sun below the horizon: no canopy radiation.
			continue
		}
		var (
			// T rotates the sun direction onto the vertical; integration
			// then runs top-down along the rotated z axis.
			T    = geometry.RotationTensor(sunDir, up)
			Tinv = geometry.RotationTensor(up, sunDir)
		)
		vegBoxRot, meshMinZRot := vegBoundsRotated(regions, T)
		var (
			ladRot = rotateGrid(lad, vegBoxRot, Tinv)
			laiRot = integrateLAI(ladRot)
			divRot = divergence(laiRot, env.IDN, cfg.Kc)
			rotBox = ladRot.Bounds()
		)

		for pi := 0; pi < np; pi++ {
			var (
				vr  = regions[pi]
				res = out[pi]
			)
			for ci, c := range vr.CellCenters {
				p := T.Transform(c)
				if p[0] < vegBoxRot.Min[0] || p[0] > vegBoxRot.Max[0] ||
					p[1] < vegBoxRot.Min[1] || p[1] > vegBoxRot.Max[1] ||
					p[2] < meshMinZRot || p[2] > vegBoxRot.Max[2] {
					continue
				}
				if sunBlocked(surf, domain, c, sunDir) {
					if vr.LAD[ci] > 10*ladEps {
						res.LAI[ti][ci] = shadowLAI
					}
					continue
				}
				if rotBox.Contains(p) {
					res.LAI[ti][ci] = laiRot.Interp(p)
					if vr.LAD[ci] > 10*ladEps {
						res.DivQrsw[ti][ci] = divRot.Interp(p)
					}
				}
			}

			for ei := range elements[pi] {
				var (
					cf = elements[pi][ei].Cf
					p  = T.Transform(cf)
				)
				if p[0] < vegBoxRot.Min[0] || p[0] > vegBoxRot.Max[0] ||
					p[1] < vegBoxRot.Min[1] || p[1] > vegBoxRot.Max[1] ||
					p[2] > vegBoxRot.Max[2] {
					continue
				}
				if sunBlocked(surf, domain, cf, sunDir) {
					res.KcLAIBoundary[ti][ei] = shadowLAI
				} else if rotBox.Contains(p) {
					res.KcLAIBoundary[ti][ei] = cfg.Kc * laiRot.Interp(p)
				}
			}
		}
	}
	return out, nil
}

// sunBlocked shoots a ray from p toward the sun up to the domain boundary.
func sunBlocked(surf *geometry.TriSurface, domain geometry.BBox, p, sunDir geometry.Vec) bool {
	end := domain.Exit(p, sunDir)
	start := p.Add(end.Sub(p).Scale(0.001))
	_, hit := surf.FindNearestHit(start, end)
	return hit
}
