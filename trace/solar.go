package trace

import (
	"math"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/solar"
)

// SolarCoeffs are the precomputed time-resolved solar couplings of one
// partition. First index is the timestamp of the sun table, second the local
// coarse element (SunView, SkyView) or local fine wall face (SolarLoadFine).
type SolarCoeffs struct {
	Times         []float64
	SunView       [][]float64
	SkyView       [][]float64
	SolarLoadFine [][]float64
}

// ComputeSolar traces sun visibility and evaluates the sun and sky coupling
// coefficients of the partition at every timestamp of the sun table.
//
// For each fine wall face a ray is shot from just above the face center
// toward the sun until it exits the domain box; a hit on the gathered
// surface shadows the face. The coarse sun coefficient weights the fine
// visibilities by area, and when a per-element kc*LAI field is supplied the
// shadowed fraction recovers the Beer-Lambert transmitted share
// exp(-kc*LAI). Sky coupling needs no rays: the factor falls linearly from 1
// at an upward-facing element to 0.5 at a vertical one, folding the angle
// about the horizon for downward-facing elements.
func ComputeSolar(b *mesh.Boundary, a *mesh.Agglomeration,
	surf *geometry.TriSurface, domain geometry.BBox,
	tb *solar.Tables, skyPos geometry.Vec,
	kcLAI [][]float64) (*SolarCoeffs, error) {

	var (
		faces, _ = b.RadiationFaces()
		times    = tb.SunPos.Times()
		sc       = &SolarCoeffs{
			Times:         times,
			SunView:       make([][]float64, len(times)),
			SkyView:       make([][]float64, len(times)),
			SolarLoadFine: make([][]float64, len(times)),
		}
		zenith = skyPos.Normalize()
	)
	for ti, tm := range times {
		env, err := tb.At(tm)
		if err != nil {
			return nil, err
		}
		var (
			sunDir  = env.SunDir
			visFine = make([]bool, len(faces))
			load    = make([]float64, len(faces))
			sun     = make([]float64, len(a.Elements))
			sky     = make([]float64, len(a.Elements))
		)
		// One ray per sunward fine face, shot as a batch to the domain exit.
		var (
			starts, ends []geometry.Vec
			rayFace      []int
		)
		for fi, f := range faces {
			if f.Normal().Dot(sunDir) <= 0 {
				continue
			}
			start := f.Cf.Add(f.Normal().Scale(rayEps * math.Sqrt(f.MagSf)))
			starts = append(starts, start)
			ends = append(ends, domain.Exit(start, sunDir))
			rayFace = append(rayFace, fi)
		}
		hits, _ := surf.FindLine(starts, ends)
		for k, fi := range rayFace {
			if hits[k] {
				continue
			}
			visFine[fi] = true
			load[fi] = faces[fi].Normal().Dot(sunDir) * env.IDN
		}
		for ci := range a.Elements {
			var (
				e       = &a.Elements[ci]
				n       = e.Normal()
				visFrac float64
			)
			for _, fi := range e.Fine {
				if visFine[fi] {
					visFrac += faces[fi].MagSf / e.Area
				}
			}
			cosPhi := n.Dot(sunDir)
			sun[ci] = visFrac * math.Abs(cosPhi) * env.IDN

			if kcLAI != nil && kcLAI[ti][ci] > 1.e-12 && cosPhi > 0 {
				// The shadowed share of a sunward element recovers the
				// canopy-transmitted irradiance.
				trans := math.Exp(-kcLAI[ti][ci])
				sun[ci] += (1 - visFrac) * cosPhi * env.IDN * trans
				for _, fi := range e.Fine {
					if !visFine[fi] {
						load[fi] = math.Abs(faces[fi].Normal().Dot(sunDir)) *
							env.IDN * trans
					}
				}
			}

			cosSky := n.Dot(zenith)
			deg := math.Acos(math.Min(math.Max(cosSky, -1), 1)) * 180 / math.Pi
			if deg > 90 {
				deg = 180 - deg
			}
			sky[ci] = (1 - 0.5*deg/90) * env.Idif
		}
		sc.SunView[ti] = sun
		sc.SkyView[ti] = sky
		sc.SolarLoadFine[ti] = load
	}
	return sc, nil
}

// Bracket locates tm within the stored timestamps. The returned context is
// computed once per radiation update and reused for every coefficient table.
func (sc *SolarCoeffs) Bracket(tm float64) (solar.Context, error) {
	return solar.BracketTimes(sc.Times, tm)
}

// RowAt linearly interpolates a coefficient table at a bracketed time,
// reproducing stored rows exactly at their timestamps.
func (sc *SolarCoeffs) RowAt(table [][]float64, ctx solar.Context) []float64 {
	var (
		lo  = table[ctx.Lo]
		hi  = table[ctx.Hi]
		out = make([]float64, len(lo))
	)
	for i := range out {
		out[i] = (1-ctx.Frac)*lo[i] + ctx.Frac*hi[i]
	}
	return out
}

// InterpolateRow brackets tm and interpolates a single table.
func (sc *SolarCoeffs) InterpolateRow(table [][]float64, tm float64) ([]float64, error) {
	ctx, err := sc.Bracket(tm)
	if err != nil {
		return nil, err
	}
	return sc.RowAt(table, ctx), nil
}
