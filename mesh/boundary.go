// Package mesh holds the partition-local boundary mesh: patches of polygonal
// faces with precomputed centers, area vectors and areas, the volume region
// used by the vegetation pre-pass, and the fine-to-coarse agglomeration the
// view-factor machinery runs on.
package mesh

import (
	"fmt"

	"github.com/uclimate/gorad/geometry"
)

// Face is one polygonal boundary face.
type Face struct {
	Points []geometry.Vec
	Cf     geometry.Vec // face center
	Sf     geometry.Vec // outward area vector, |Sf| == MagSf
	MagSf  float64
}

// NewFace computes the center and area vector of a planar polygon by fan
// decomposition about the point average. Matches the usual finite-volume
// convention: for warped quads the centroid is area-weighted over the fan
// triangles.
func NewFace(points []geometry.Vec) (f Face) {
	f.Points = points
	n := len(points)
	if n == 3 {
		f.Cf = points[0].Add(points[1]).Add(points[2]).Scale(1. / 3.)
		f.Sf = points[1].Sub(points[0]).Cross(points[2].Sub(points[0])).Scale(0.5)
		f.MagSf = f.Sf.Mag()
		return
	}
	var cEst geometry.Vec
	for _, p := range points {
		cEst = cEst.Add(p)
	}
	cEst = cEst.Scale(1. / float64(n))
	var (
		sumA  float64
		sumAc geometry.Vec
	)
	for i := 0; i < n; i++ {
		var (
			p0 = points[i]
			p1 = points[(i+1)%n]
			ni = p1.Sub(p0).Cross(cEst.Sub(p0)).Scale(0.5)
			a  = ni.Mag()
			c  = p0.Add(p1).Add(cEst).Scale(1. / 3.)
		)
		f.Sf = f.Sf.Add(ni)
		sumA += a
		sumAc = sumAc.Add(c.Scale(a))
	}
	if sumA > 0 {
		f.Cf = sumAc.Scale(1. / sumA)
	} else {
		f.Cf = cEst
	}
	f.MagSf = f.Sf.Mag()
	return
}

// Normal returns the unit outward normal.
func (f Face) Normal() geometry.Vec {
	return f.Sf.Normalize()
}

// Patch groups the faces of one named boundary region.
type Patch struct {
	Name  string
	Type  string // "wall" patches participate in radiation exchange
	Faces []Face
}

// IsWall reports whether the patch is a solid wall.
func (p *Patch) IsWall() bool { return p.Type == "wall" }

// IsRadiative reports whether the patch takes part in radiative exchange.
// Sky patches exchange long-wave radiation at the effective sky temperature
// but are not solid obstructions.
func (p *Patch) IsRadiative() bool { return p.Type == "wall" || p.Type == "sky" }

// Boundary is the partition-local boundary mesh.
type Boundary struct {
	Patches []Patch
}

// NRadiationFaces counts the fine faces on radiative patches.
func (b *Boundary) NRadiationFaces() (n int) {
	for i := range b.Patches {
		if b.Patches[i].IsRadiative() {
			n += len(b.Patches[i].Faces)
		}
	}
	return
}

// RadiationFaces returns the fine radiative faces in patch order together
// with the patch index of each.
func (b *Boundary) RadiationFaces() (faces []Face, patchID []int) {
	for i := range b.Patches {
		if !b.Patches[i].IsRadiative() {
			continue
		}
		for _, f := range b.Patches[i].Faces {
			faces = append(faces, f)
			patchID = append(patchID, i)
		}
	}
	return
}

// FindPatch returns the patch with the given name.
func (b *Boundary) FindPatch(name string) (*Patch, error) {
	for i := range b.Patches {
		if b.Patches[i].Name == name {
			return &b.Patches[i], nil
		}
	}
	return nil, fmt.Errorf("patch %q not found", name)
}

// Bounds returns the bounding box of all boundary points.
func (b *Boundary) Bounds() geometry.BBox {
	box := geometry.EmptyBBox()
	for i := range b.Patches {
		for _, f := range b.Patches[i].Faces {
			for _, p := range f.Points {
				box.Extend(p)
			}
		}
	}
	return box
}

// VolumeRegion is the cell-level data the vegetation pre-pass interpolates
// from: cell centers, volumes and the leaf area density field.
type VolumeRegion struct {
	CellCenters []geometry.Vec
	CellVolumes []float64
	LAD         []float64 // leaf area density per cell, m2/m3
}

// MinCellVolume returns the smallest cell volume, used to size the Cartesian
// interpolation grid.
func (r *VolumeRegion) MinCellVolume() float64 {
	if len(r.CellVolumes) == 0 {
		return 0
	}
	min := r.CellVolumes[0]
	for _, v := range r.CellVolumes[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
