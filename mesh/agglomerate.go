package mesh

import (
	"fmt"
	"math"

	"github.com/uclimate/gorad/geometry"
)

// CoarseElement is one agglomerated radiation element: a group of fine wall
// faces exchanging radiation as a single surface.
type CoarseElement struct {
	// Cf is the representative point: the area-weighted centroid of the
	// fine faces, snapped to the nearest fine face center so it is
	// guaranteed to lie on the surface.
	Cf geometry.Vec
	// Sf is the summed area vector of the fine faces.
	Sf    geometry.Vec
	Area  float64 // scalar fine-face area sum, not |Sf|
	Patch int     // patch index of the fine faces
	Fine  []int   // local fine wall-face indices
}

// Normal returns the unit normal of the summed area vector.
func (e *CoarseElement) Normal() geometry.Vec { return e.Sf.Normalize() }

// Agglomeration maps the partition's fine wall faces onto coarse radiation
// elements.
type Agglomeration struct {
	Elements     []CoarseElement
	FineToCoarse []int // per fine wall face
}

// Agglomerate builds the coarse elements from a fine-to-coarse assignment
// over the wall faces of b. Every coarse index in [0, nCoarse) must receive
// at least one fine face; an empty element would produce a zero-area row in
// the view-factor system and is rejected.
func Agglomerate(b *Boundary, fineToCoarse []int, nCoarse int) (*Agglomeration, error) {
	faces, patchID := b.RadiationFaces()
	if len(fineToCoarse) != len(faces) {
		return nil, fmt.Errorf("agglomeration maps %d faces, boundary has %d wall faces",
			len(fineToCoarse), len(faces))
	}
	a := &Agglomeration{
		Elements:     make([]CoarseElement, nCoarse),
		FineToCoarse: fineToCoarse,
	}
	for i := range a.Elements {
		a.Elements[i].Patch = -1
	}
	for fi, ci := range fineToCoarse {
		if ci < 0 || ci >= nCoarse {
			return nil, fmt.Errorf("fine face %d assigned to coarse index %d, want [0,%d)",
				fi, ci, nCoarse)
		}
		e := &a.Elements[ci]
		if e.Patch == -1 {
			e.Patch = patchID[fi]
		} else if e.Patch != patchID[fi] {
			return nil, fmt.Errorf("coarse element %d spans patches %d and %d",
				ci, e.Patch, patchID[fi])
		}
		e.Fine = append(e.Fine, fi)
		e.Sf = e.Sf.Add(faces[fi].Sf)
		e.Area += faces[fi].MagSf
		e.Cf = e.Cf.Add(faces[fi].Cf.Scale(faces[fi].MagSf))
	}
	for ci := range a.Elements {
		e := &a.Elements[ci]
		if len(e.Fine) == 0 {
			return nil, fmt.Errorf("coarse element %d received no fine faces", ci)
		}
		e.Cf = e.Cf.Scale(1. / e.Area)
		// Snap to the nearest member face center.
		var (
			best     = -1
			bestDist = math.MaxFloat64
		)
		for _, fi := range e.Fine {
			if d := faces[fi].Cf.Sub(e.Cf).Mag(); d < bestDist {
				bestDist, best = d, fi
			}
		}
		e.Cf = faces[best].Cf
	}
	return a, nil
}

// Identity returns the trivial one-face-per-element agglomeration.
func Identity(b *Boundary) *Agglomeration {
	faces, _ := b.RadiationFaces()
	f2c := make([]int, len(faces))
	for i := range f2c {
		f2c[i] = i
	}
	a, err := Agglomerate(b, f2c, len(faces))
	if err != nil {
		// Cannot fail: every element gets exactly one face.
		panic(err)
	}
	return a
}

// CoarseAverage area-averages a fine wall-face field onto the coarse
// elements.
func (a *Agglomeration) CoarseAverage(b *Boundary, fine []float64) ([]float64, error) {
	faces, _ := b.RadiationFaces()
	if len(fine) != len(faces) {
		return nil, fmt.Errorf("field has %d values, boundary has %d wall faces",
			len(fine), len(faces))
	}
	coarse := make([]float64, len(a.Elements))
	for ci := range a.Elements {
		e := &a.Elements[ci]
		var sum float64
		for _, fi := range e.Fine {
			sum += fine[fi] * faces[fi].MagSf
		}
		coarse[ci] = sum / e.Area
	}
	return coarse, nil
}
