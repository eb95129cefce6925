package vegetation

import (
	"fmt"
	"math"

	"github.com/uclimate/gorad/properties"
)

// GrassInput is the near-wall state of the grass-covered faces of one patch,
// one value per face.
type GrassInput struct {
	Tc          []float64 // adjacent cell air temperature, K
	Wc          []float64 // adjacent cell specific humidity, kg/kg
	MagU        []float64 // adjacent cell velocity magnitude, m/s
	Ts          []float64 // substrate surface temperature, K
	Qs          []float64 // incident short-wave flux, W/m2
	Qr          []float64 // incident long-wave flux, W/m2
	DeltaCoeffs []float64 // inverse wall distance of the adjacent cell, 1/m
}

// GrassResult carries the grass layer temperature and the near-wall source
// terms, one value per face.
type GrassResult struct {
	Tg []float64 // grass leaf temperature, K
	Sh []float64 // sensible heat source, W/m3
	Sw []float64 // humidity source, kg/(m3 s)
	Cf []float64 // drag coefficient, 1/m
}

// GrassModel resolves the energy balance of a thin grass layer on selected
// ground patches.
type GrassModel interface {
	Calculate(in GrassInput) (*GrassResult, error)
	Patches() []string
}

// NewGrassModel builds the grass model named in the properties.
func NewGrassModel(p properties.GrassProperties) (GrassModel, error) {
	switch p.Model {
	case "none", "":
		return noGrass{}, nil
	case "simple":
		return &simpleGrass{p: p}, nil
	default:
		return nil, fmt.Errorf("unknown grass model %q", p.Model)
	}
}

type noGrass struct{}

func (noGrass) Calculate(in GrassInput) (*GrassResult, error) {
	n := len(in.Tc)
	return &GrassResult{
		Tg: make([]float64, n),
		Sh: make([]float64, n),
		Sw: make([]float64, n),
		Cf: make([]float64, n),
	}, nil
}

func (noGrass) Patches() []string { return nil }

// simpleGrass balances absorbed short-wave, long-wave exchange with the
// surroundings and the substrate, transpiration and convection, iterating
// the grass temperature to a fixed point.
type simpleGrass struct {
	p  properties.GrassProperties
	tg []float64 // persists between calls as the iteration start
}

func (g *simpleGrass) Patches() []string { return g.p.GrassPatches }

func (g *simpleGrass) Calculate(in GrassInput) (*GrassResult, error) {
	var (
		p = g.p
		n = len(in.Tc)
	)
	if len(g.tg) != n {
		g.tg = make([]float64, n)
	}
	var (
		ra    = make([]float64, n)
		hch   = make([]float64, n)
		hcm   = make([]float64, n)
		pv    = make([]float64, n)
		qsAbs = make([]float64, n)
		e     = make([]float64, n)
		tg    = make([]float64, n)
	)
	copy(tg, g.tg)
	for i := 0; i < n; i++ {
		if p.Ra >= 0 {
			ra[i] = p.Ra
		} else {
			u := math.Max(in.MagU[i], 1e-15)
			ra[i] = 131.035 * math.Sqrt(p.L/u)
		}
		hch[i] = 2 * rhoAir * cpAir / ra[i]
		hcm[i] = rhoAir * rAir / (pAtm * rVap * (ra[i] + p.Rs))
		pv[i] = pAtm * in.Wc[i] / (rAir/rVap + in.Wc[i])
		// Short-wave absorbed by the grass layer: direct interception plus
		// the share reflected back by the soil.
		ext := math.Exp(-p.Beta * p.LAI)
		qsAbs[i] = in.Qs[i] * (1 - ext + p.AlbedoSoil*ext)
	}

	const maxIter = 100
	for iter := 1; iter <= maxIter; iter++ {
		var (
			bounded bool
			maxErr  float64
			maxAbs  float64
		)
		for i := 0; i < n; i++ {
			if iter == 1 && tg[i] < 1e-12 {
				tg[i] = in.Tc[i]
			}
			e[i] = 0
			if qsAbs[i] > 1e-12 {
				e[i] = p.NEvapSides * hcm[i] * (evsat(tg[i]) - pv[i])
			}
			var (
				qlat = lambda * e[i] * p.LAI
				// Thermal radiation between the grass layer and the
				// substrate, after Malys et al 2014.
				qrSub = 6 * (in.Ts[i] - tg[i])
				tNew  = in.Tc[i] + (in.Qr[i]+qrSub+qsAbs[i]-qlat)/(hch[i]*p.LAI)
			)
			if tNew < tempMin || tNew > tempMax {
				bounded = true
				tNew = math.Min(math.Max(tNew, tempMin), tempMax)
			}
			if d := math.Abs(tNew - tg[i]); d > maxErr {
				maxErr = d
			}
			if a := math.Abs(tNew); a > maxAbs {
				maxAbs = a
			}
			tg[i] = (1-p.TgRelax)*tg[i] + p.TgRelax*tNew
		}
		if bounded {
			Log.Warn("bounding grass temperature")
		}
		if maxAbs > 0 && maxErr/maxAbs < p.TgResidual {
			break
		}
	}
	copy(g.tg, tg)

	res := &GrassResult{
		Tg: tg,
		Sh: make([]float64, n),
		Sw: make([]float64, n),
		Cf: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		// Scale the per-area layer exchange into the adjacent cell volume.
		layer := p.LAI * in.DeltaCoeffs[i] / 2
		res.Sh[i] = hch[i] * (tg[i] - in.Tc[i]) * layer
		res.Sw[i] = e[i] * layer
		res.Cf[i] = p.Cd * layer
	}
	return res, nil
}
