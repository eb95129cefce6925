package radiosity

import (
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/solar"
	"github.com/uclimate/gorad/trace"
)

// Partition bundles one rank's share of the radiation problem.
type Partition struct {
	B      *mesh.Boundary
	A      *mesh.Agglomeration
	Fields *mesh.WallFields
	Solar  *trace.SolarCoeffs

	// GrassTg holds the grass layer temperature for faces covered by
	// grass; GrassFace marks them. Long-wave exchange then radiates at the
	// grass temperature instead of the substrate temperature.
	GrassTg   []float64
	GrassFace []bool
}

// Exchange drives one rank of the distributed radiation update. All ranks
// compute their coarse averages and gather them; the coordinator owns the
// dense solve; the resulting element fluxes are broadcast and expanded onto
// the fine faces.
type Exchange struct {
	rank   int
	c      *parallel.Comm
	gi     *parallel.GlobalIndex
	part   *Partition
	sys    *System // coordinator only, nil elsewhere
	tables *solar.Tables
}

// NewExchange wires one rank into the exchange. sys must be non-nil exactly
// on the coordinator.
func NewExchange(rank int, c *parallel.Comm, gi *parallel.GlobalIndex,
	part *Partition, sys *System, tables *solar.Tables) *Exchange {
	return &Exchange{rank: rank, c: c, gi: gi, part: part, sys: sys, tables: tables}
}

// coarseAverages reduces the fine radiative fields of the partition onto its
// coarse elements: fourth-power temperature (sky faces at the Swinbank sky
// temperature, grass faces at the grass temperature), emissivity, albedo and
// external fluxes, all area weighted.
func (e *Exchange) coarseAverages(tm float64) (T4, E, A, qrExt []float64, err error) {
	var (
		p           = e.part
		faces, pids = p.B.RadiationFaces()
		nc          = len(p.A.Elements)
	)
	env, err := e.tables.At(tm)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	tSky := solar.SkyTemperature(env.Tambient, env.CloudCover)

	T4 = make([]float64, nc)
	E = make([]float64, nc)
	A = make([]float64, nc)
	qrExt = make([]float64, nc)
	for ci := range p.A.Elements {
		el := &p.A.Elements[ci]
		for _, fi := range el.Fine {
			w := faces[fi].MagSf / el.Area
			var T float64
			switch {
			case !p.B.Patches[pids[fi]].IsWall():
				T = tSky
			case p.GrassFace != nil && p.GrassFace[fi]:
				T = p.GrassTg[fi]
			default:
				T = p.Fields.T[fi]
			}
			T4[ci] += T * T * T * T * w
			E[ci] += p.Fields.Emissivity[fi] * w
			A[ci] += p.Fields.Albedo[fi] * w
			qrExt[ci] += p.Fields.QrExt[fi] * w
		}
	}
	return
}

// gatherGlobal concatenates per-rank slices in rank order.
func gatherGlobal(c *parallel.Comm, rank int, local []float64) []float64 {
	var (
		parts  = parallel.AllGather(c, rank, local)
		global []float64
	)
	for _, p := range parts {
		global = append(global, p...)
	}
	return global
}

// UpdateLongWave computes the net long-wave flux on every fine radiative
// face of the partition at time tm.
func (e *Exchange) UpdateLongWave(tm float64) ([]float64, error) {
	T4, E, _, qrExt, err := e.coarseAverages(tm)
	if err != nil {
		return nil, err
	}
	var (
		gT4    = gatherGlobal(e.c, e.rank, T4)
		gE     = gatherGlobal(e.c, e.rank, E)
		gQrExt = gatherGlobal(e.c, e.rank, qrExt)

		q []float64
	)
	if e.c.IsCoordinator(e.rank) {
		q, err = e.sys.SolveLongWave(gT4, gE, gQrExt)
	}
	if err = e.broadcastErr(err); err != nil {
		return nil, err
	}
	q = parallel.Broadcast(e.c, e.rank, q)

	qr := make([]float64, e.part.B.NRadiationFaces())
	for ci := range e.part.A.Elements {
		g := e.gi.ToGlobal(e.rank, ci)
		for _, fi := range e.part.A.Elements[ci].Fine {
			qr[fi] = q[g]
		}
	}
	return qr, nil
}

// UpdateShortWave computes the net short-wave flux on every fine radiative
// face of the partition at time tm, recovering the fine-grained direct
// solar distribution on wall faces.
func (e *Exchange) UpdateShortWave(tm float64, qsExt []float64) ([]float64, error) {
	_, _, A, _, err := e.coarseAverages(tm)
	if err != nil {
		return nil, err
	}
	p := e.part
	ctx, err := p.Solar.Bracket(tm)
	if err != nil {
		return nil, err
	}
	var (
		sun      = p.Solar.RowAt(p.Solar.SunView, ctx)
		sky      = p.Solar.RowAt(p.Solar.SkyView, ctx)
		loadFine = p.Solar.RowAt(p.Solar.SolarLoadFine, ctx)
	)
	isol := make([]float64, len(sun))
	for i := range isol {
		isol[i] = sun[i] + sky[i]
	}
	if qsExt == nil {
		qsExt = make([]float64, len(p.A.Elements))
	}

	var (
		gIsol  = gatherGlobal(e.c, e.rank, isol)
		gA     = gatherGlobal(e.c, e.rank, A)
		gSun   = gatherGlobal(e.c, e.rank, sun)
		gQsExt = gatherGlobal(e.c, e.rank, qsExt)

		q []float64
	)
	if e.c.IsCoordinator(e.rank) {
		q, err = e.sys.SolveShortWave(gIsol, gA, gQsExt)
	}
	if err = e.broadcastErr(err); err != nil {
		return nil, err
	}
	q = parallel.Broadcast(e.c, e.rank, q)

	var (
		_, pids = p.B.RadiationFaces()
		qs      = make([]float64, p.B.NRadiationFaces())
	)
	for ci := range p.A.Elements {
		g := e.gi.ToGlobal(e.rank, ci)
		for _, fi := range p.A.Elements[ci].Fine {
			qs[fi] = q[g]
			if p.B.Patches[pids[fi]].IsWall() {
				// Replace the element-uniform direct share with the
				// per-face traced solar load.
				qs[fi] -= gSun[g] * (1 - gA[g])
				qs[fi] += loadFine[fi] * (1 - gA[g])
			}
		}
	}
	return qs, nil
}

// broadcastErr propagates a coordinator-side solve failure to all ranks so
// every goroutine returns instead of deadlocking on the next collective.
func (e *Exchange) broadcastErr(err error) error {
	type box struct{ err error }
	b := parallel.Broadcast(e.c, e.rank, box{err})
	if e.c.IsCoordinator(e.rank) {
		return err
	}
	return b.err
}
