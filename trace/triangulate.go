// Package trace builds the geometric inputs of the radiosity system: a
// triangulated obstruction surface, the coarse-to-coarse view-factor
// fragments of each partition, and the time-resolved sun and sky coupling
// coefficients.
package trace

import (
	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
)

// Triangulate fan-triangulates the wall faces of a partition boundary. Each
// triangle is tagged with its patch index and the global coarse element it
// belongs to, offset by coarseOffset so triangles gathered from all
// partitions carry globally unique element ids.
// Sky patches are radiative but not solid, so they contribute no triangles.
func Triangulate(b *mesh.Boundary, a *mesh.Agglomeration, coarseOffset int) (tris []geometry.Triangle) {
	faces, patchID := b.RadiationFaces()
	for fi, f := range faces {
		if !b.Patches[patchID[fi]].IsWall() {
			continue
		}
		var (
			agglom = coarseOffset + a.FineToCoarse[fi]
			n      = len(f.Points)
		)
		for k := 1; k+1 < n; k++ {
			tris = append(tris, geometry.Triangle{
				P0:     f.Points[0],
				P1:     f.Points[k],
				P2:     f.Points[k+1],
				Patch:  patchID[fi],
				Agglom: agglom,
			})
		}
	}
	return
}
