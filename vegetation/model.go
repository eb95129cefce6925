package vegetation

import (
	"fmt"
	"math"

	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/properties"
	"github.com/uclimate/gorad/solar"
)

// Physical constants of moist air.
const (
	pAtm   = 101325.  // Pa
	rhoAir = 1.225    // kg/m3
	cpAir  = 1003.5   // J/(kg K)
	rAir   = 287.042  // J/(kg K)
	rVap   = 461.524  // J/(kg K)
	lambda = 2.5e6    // latent heat of vaporization, J/kg
	uMin   = 0.1      // velocity floor for resistance, m/s
)

// evsat is the ASHRAE saturated vapor pressure over liquid water.
func evsat(T float64) float64 {
	return math.Exp(-5.8002206e3/T +
		1.3914993 -
		4.8640239e-2*T +
		4.1764768e-5*T*T -
		1.4452093e-8*T*T*T +
		6.5459673*math.Log(T))
}

// CalcInput is the flow state a vegetation model consumes: one value per
// cell of the partition's volume region.
type CalcInput struct {
	Time float64
	MagU []float64 // velocity magnitude, m/s
	T    []float64 // air temperature, K
	Q    []float64 // specific humidity, kg/kg
	// QrVegIntegral is the long-wave flux integrated over the
	// vegetation-coupled boundary, W.
	QrVegIntegral float64
}

// Model is a vegetation energy-balance model producing the volumetric
// source terms the flow solver consumes.
type Model interface {
	// Calculate updates the leaf energy balance for the given flow state.
	Calculate(in CalcInput) error
	// Sh is the sensible heat source, W/m3.
	Sh() []float64
	// Sq is the specific humidity source, kg/(m3 s).
	Sq() []float64
	// Cf is the canopy drag coefficient field, 1/m.
	Cf() []float64
	// LeafTemp is the leaf temperature field, K.
	LeafTemp() []float64
}

// NewModel builds the vegetation model named in the properties.
func NewModel(p properties.VegetationProperties, vr *mesh.VolumeRegion, pre *PassResult) (Model, error) {
	switch p.Model {
	case "none", "":
		return noneModel{n: len(vr.LAD)}, nil
	case "simplified":
		return newSimplified(p, vr, pre), nil
	default:
		return nil, fmt.Errorf("unknown vegetation model %q", p.Model)
	}
}

// noneModel contributes nothing.
type noneModel struct{ n int }

func (m noneModel) Calculate(CalcInput) error { return nil }
func (m noneModel) Sh() []float64             { return make([]float64, m.n) }
func (m noneModel) Sq() []float64             { return make([]float64, m.n) }
func (m noneModel) Cf() []float64             { return make([]float64, m.n) }
func (m noneModel) LeafTemp() []float64       { return make([]float64, m.n) }

// simplified is the single-leaf-layer energy balance: net radiation from the
// pre-pass divergence field balances sensible and latent exchange with the
// air, iterated to a fixed point in leaf temperature.
type simplified struct {
	p   properties.VegetationProperties
	vr  *mesh.VolumeRegion
	pre *PassResult

	vegVolume float64

	ra, rs   []float64
	rn, rg   []float64
	tl       []float64
	e, qlat  []float64
	qsen     []float64
}

func newSimplified(p properties.VegetationProperties, vr *mesh.VolumeRegion, pre *PassResult) *simplified {
	n := len(vr.LAD)
	m := &simplified{
		p: p, vr: vr, pre: pre,
		ra: make([]float64, n), rs: make([]float64, n),
		rn: make([]float64, n), rg: make([]float64, n),
		tl: make([]float64, n),
		e:  make([]float64, n), qlat: make([]float64, n),
		qsen: make([]float64, n),
	}
	for ci, lad := range vr.LAD {
		if lad > 10*ladEps {
			m.vegVolume += vr.CellVolumes[ci]
		}
	}
	return m
}

// radiation interpolates the pre-pass flux divergence at the given time and
// distributes the boundary long-wave integral over the canopy volume.
func (m *simplified) radiation(tm, qrIntegral float64) error {
	ctx, err := solar.BracketTimes(m.pre.Times, tm)
	if err != nil {
		return err
	}
	var (
		lo = m.pre.DivQrsw[ctx.Lo]
		hi = m.pre.DivQrsw[ctx.Hi]
	)
	for ci, lad := range m.vr.LAD {
		if lad <= 10*ladEps {
			continue
		}
		divq := (1-ctx.Frac)*lo[ci] + ctx.Frac*hi[ci]
		m.rn[ci] = -divq + qrIntegral/m.vegVolume // W/m3
		m.rg[ci] = -divq / lad                    // W/m2
	}
	return nil
}

// resistance updates the aerodynamic and stomatal resistances.
func (m *simplified) resistance(in CalcInput) {
	c := m.p.Simplified
	for ci, lad := range m.vr.LAD {
		if lad <= 10*ladEps {
			continue
		}
		u := math.Max(in.MagU[ci], uMin)
		m.ra[ci] = c.C * math.Sqrt(c.L/u)

		var (
			ev  = pAtm * in.Q[ci] / (0.621945 + in.Q[ci])
			vpd = evsat(in.T[ci]) - ev
			f1  = 7.119*math.Exp(-0.05004*m.rg[ci]) +
				0.6174*math.Exp(0.0006336*m.rg[ci])
			f2 = 0.4372
		)
		if vpd >= 0 {
			f2 = 0.4372 * math.Pow(vpd+1, 0.204)
		}
		m.rs[ci] = c.RsMin * f1 * f2
	}
}

func (m *simplified) Calculate(in CalcInput) error {
	if err := m.radiation(in.Time, in.QrVegIntegral); err != nil {
		return err
	}
	var (
		c     = m.p.Simplified
		newTl = make([]float64, len(m.tl))
	)
	copy(newTl, m.tl)

	var maxRelErr float64
	for iter := 1; iter <= c.TlMaxIter; iter++ {
		m.resistance(in)

		var (
			bounded bool
			maxAbs  float64
			maxErr  float64
		)
		for ci, lad := range m.vr.LAD {
			if lad <= 10*ladEps {
				continue
			}
			if m.tl[ci] < 1e-12 {
				m.tl[ci] = in.T[ci]
			}
			var (
				es   = evsat(m.tl[ci])
				qsat = 0.621945 * es / (pAtm - es)
			)
			m.e[ci] = 0
			if m.rg[ci] > 1e-12 {
				// No transpiration at night.
				m.e[ci] = c.NEvapSides * lad * rhoAir *
					(qsat - in.Q[ci]) / (m.ra[ci] + m.rs[ci])
			}
			m.qlat[ci] = lambda * m.e[ci]
			t := in.T[ci] + (m.rn[ci]-m.qlat[ci])*
				m.ra[ci]/(2*rhoAir*cpAir*lad)
			if t < tempMin || t > tempMax {
				bounded = true
				t = math.Min(math.Max(t, tempMin), tempMax)
			}
			newTl[ci] = t
			if d := math.Abs(t - m.tl[ci]); d > maxErr {
				maxErr = d
			}
			if a := math.Abs(t); a > maxAbs {
				maxAbs = a
			}
		}
		if bounded {
			Log.Warn("bounding leaf temperature")
		}
		if maxAbs > 0 {
			maxRelErr = maxErr / maxAbs
		} else {
			maxRelErr = 0
		}
		for ci := range m.tl {
			m.tl[ci] = (1-c.TlRelax)*m.tl[ci] + c.TlRelax*newTl[ci]
		}
		if maxRelErr < c.TlResidual {
			break
		}
	}
	Log.WithField("residual", maxRelErr).Debug("leaf temperature solved")

	m.resistance(in)
	for ci, lad := range m.vr.LAD {
		if lad <= 10*ladEps {
			continue
		}
		var (
			es   = evsat(m.tl[ci])
			qsat = 0.621945 * es / (pAtm - es)
		)
		m.e[ci] = 0
		if m.rg[ci] > 1e-12 {
			m.e[ci] = c.NEvapSides * lad * rhoAir *
				(qsat - in.Q[ci]) / (m.ra[ci] + m.rs[ci])
		}
		m.qlat[ci] = lambda * m.e[ci]
		m.qsen[ci] = 2 * rhoAir * cpAir * lad * (m.tl[ci] - in.T[ci]) / m.ra[ci]
	}
	return nil
}

// Leaf temperature bounds, K.
const (
	tempMin = 250.
	tempMax = 400.
)

func (m *simplified) Sh() []float64 { return m.qsen }
func (m *simplified) Sq() []float64 { return m.e }

func (m *simplified) Cf() []float64 {
	cf := make([]float64, len(m.vr.LAD))
	for ci, lad := range m.vr.LAD {
		cf[ci] = m.p.Simplified.Cd * lad
	}
	return cf
}

func (m *simplified) LeafTemp() []float64 { return m.tl }
