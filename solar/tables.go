// Package solar provides the time-dependent boundary data of the radiation
// solvers: sun position, direct and diffuse irradiance, ambient temperature
// and cloud cover, all read from csv tables and interpolated linearly in
// time.
package solar

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"github.com/uclimate/gorad/geometry"
)

// ScalarSample is one row of a scalar time table.
type ScalarSample struct {
	Time  float64 `csv:"time"`
	Value float64 `csv:"value"`
}

// VectorSample is one row of a vector time table.
type VectorSample struct {
	Time float64 `csv:"time"`
	X    float64 `csv:"x"`
	Y    float64 `csv:"y"`
	Z    float64 `csv:"z"`
}

// Context is a bracketing of a query time within a table: the sample indices
// Lo and Hi with Time[Lo] <= t <= Time[Hi], and the fractional position Frac
// of t between them. At a stored timestamp Lo == Hi and Frac == 0, so
// interpolation reproduces the stored value exactly.
type Context struct {
	Lo, Hi int
	Frac   float64
}

// BracketTimes locates the query time t within a strictly increasing
// timestamp slice.
func BracketTimes(times []float64, t float64) (Context, error) {
	return bracket(times, t)
}

func bracket(times []float64, t float64) (ctx Context, err error) {
	n := len(times)
	if n == 0 {
		err = fmt.Errorf("empty time table")
		return
	}
	if t < times[0] || t > times[n-1] {
		err = fmt.Errorf("time %g outside table range [%g, %g]",
			t, times[0], times[n-1])
		return
	}
	hi := sort.SearchFloat64s(times, t)
	if hi < n && times[hi] == t {
		ctx = Context{Lo: hi, Hi: hi}
		return
	}
	lo := hi - 1
	ctx = Context{
		Lo:   lo,
		Hi:   hi,
		Frac: (t - times[lo]) / (times[hi] - times[lo]),
	}
	return
}

// ScalarTable interpolates a scalar quantity in time.
type ScalarTable struct {
	times  []float64
	values []float64
}

// NewScalarTable builds a table from in-memory samples.
func NewScalarTable(times, values []float64) (*ScalarTable, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("table has %d times but %d values", len(times), len(values))
	}
	if err := checkMonotone(times, "<memory>"); err != nil {
		return nil, err
	}
	return &ScalarTable{times: times, values: values}, nil
}

// NewVectorTable builds a table from in-memory samples.
func NewVectorTable(times []float64, vectors []geometry.Vec) (*VectorTable, error) {
	if len(times) != len(vectors) {
		return nil, fmt.Errorf("table has %d times but %d vectors", len(times), len(vectors))
	}
	if err := checkMonotone(times, "<memory>"); err != nil {
		return nil, err
	}
	return &VectorTable{times: times, vectors: vectors}, nil
}

func LoadScalarTable(path string) (t *ScalarTable, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scalar table %s: %w", path, err)
	}
	defer f.Close()
	var rows []ScalarSample
	if err = gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing scalar table %s: %w", path, err)
	}
	t = &ScalarTable{}
	for _, r := range rows {
		t.times = append(t.times, r.Time)
		t.values = append(t.values, r.Value)
	}
	if err = checkMonotone(t.times, path); err != nil {
		return nil, err
	}
	return
}

// At returns the linearly interpolated value at time tm.
func (t *ScalarTable) At(tm float64) (v float64, err error) {
	ctx, err := bracket(t.times, tm)
	if err != nil {
		return
	}
	v = (1-ctx.Frac)*t.values[ctx.Lo] + ctx.Frac*t.values[ctx.Hi]
	return
}

// VectorTable interpolates a vector quantity in time. Interpolated vectors
// are not renormalized; callers needing a direction normalize themselves.
type VectorTable struct {
	times   []float64
	vectors []geometry.Vec
}

func LoadVectorTable(path string) (t *VectorTable, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vector table %s: %w", path, err)
	}
	defer f.Close()
	var rows []VectorSample
	if err = gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing vector table %s: %w", path, err)
	}
	t = &VectorTable{}
	for _, r := range rows {
		t.times = append(t.times, r.Time)
		t.vectors = append(t.vectors, geometry.Vec{r.X, r.Y, r.Z})
	}
	if err = checkMonotone(t.times, path); err != nil {
		return nil, err
	}
	return
}

func (t *VectorTable) At(tm float64) (v geometry.Vec, err error) {
	ctx, err := bracket(t.times, tm)
	if err != nil {
		return
	}
	lo, hi := t.vectors[ctx.Lo], t.vectors[ctx.Hi]
	v = lo.Scale(1 - ctx.Frac).Add(hi.Scale(ctx.Frac))
	return
}

// Times returns the stored timestamps.
func (t *VectorTable) Times() []float64 { return t.times }

func checkMonotone(times []float64, path string) error {
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fmt.Errorf("table %s: times not strictly increasing at row %d", path, i)
		}
	}
	return nil
}

// Environment is the complete solar boundary state at one instant.
type Environment struct {
	SunDir     geometry.Vec // unit vector from surfaces toward the sun
	IDN        float64      // direct normal irradiance, W/m2
	Idif       float64      // diffuse horizontal irradiance, W/m2
	Tambient   float64      // ambient air temperature, K
	CloudCover float64      // fraction in [0,1]
}

// Tables bundles the per-quantity time tables of a case.
type Tables struct {
	SunPos     *VectorTable
	IDN        *ScalarTable
	Idif       *ScalarTable
	Tambient   *ScalarTable
	CloudCover *ScalarTable
}

// At evaluates all tables at time tm. The sun position vector is normalized
// to a direction.
func (tb *Tables) At(tm float64) (env Environment, err error) {
	if env.SunDir, err = tb.SunPos.At(tm); err != nil {
		return
	}
	env.SunDir = env.SunDir.Normalize()
	if env.IDN, err = tb.IDN.At(tm); err != nil {
		return
	}
	if env.Idif, err = tb.Idif.At(tm); err != nil {
		return
	}
	if env.Tambient, err = tb.Tambient.At(tm); err != nil {
		return
	}
	if tb.CloudCover != nil {
		if env.CloudCover, err = tb.CloudCover.At(tm); err != nil {
			return
		}
	}
	return
}

// SkyTemperature returns the effective sky radiant temperature after
// Swinbank, corrected for cloud cover cc in [0,1], given the ambient air
// temperature Ta in Kelvin.
func SkyTemperature(Ta, cc float64) float64 {
	ec := (1-0.84*cc)*(0.527+0.161*math.Exp(8.45*(1-273./Ta))) + 0.84*cc
	return math.Pow(9.365574e-6*(1-cc)*math.Pow(Ta, 6)+
		math.Pow(Ta, 4)*cc*ec, 0.25)
}
