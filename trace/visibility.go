package trace

import (
	"math"

	"github.com/james-bowman/sparse"

	"github.com/uclimate/gorad/geometry"
	"github.com/uclimate/gorad/mesh"
	"github.com/uclimate/gorad/parallel"
)

// rayEps is the fraction of a ray's length its endpoints are pulled inward
// so a ray never reports its own start or end face as an obstruction.
const rayEps = 1.e-4

// ViewFactors computes one partition's rows of the global view-factor
// matrix: for every local coarse element i and every global coarse element j,
// F[i][j] is the point-approximation view factor
//
//	F_ij = cos(theta_i) cos(theta_j) A_j / (pi r^2)
//
// zeroed whenever j is behind i (or vice versa) or the connecting ray is
// obstructed by the gathered surface. The result is a local-rows by
// global-columns sparse fragment.
func ViewFactors(rank int, gi *parallel.GlobalIndex,
	local, global []mesh.CoarseElement, surf *geometry.TriSurface) *sparse.DOK {

	F := sparse.NewDOK(len(local), len(global))
	for li := range local {
		var (
			i  = gi.ToGlobal(rank, li)
			ni = local[li].Normal()
			ci = local[li].Cf
		)
		for j := range global {
			if j == i {
				continue
			}
			var (
				d = global[j].Cf.Sub(ci)
				r = d.Mag()
			)
			if r == 0 {
				continue
			}
			var (
				dir  = d.Scale(1. / r)
				cosI = ni.Dot(dir)
				cosJ = -global[j].Normal().Dot(dir)
			)
			if cosI <= 0 || cosJ <= 0 {
				continue
			}
			var (
				start = ci.Add(dir.Scale(rayEps * r))
				end   = global[j].Cf.Sub(dir.Scale(rayEps * r))
			)
			if _, hit := surf.FindNearestHit(start, end); hit {
				continue
			}
			F.Set(li, j, cosI*cosJ*global[j].Area/(math.Pi*r*r))
		}
	}
	return F
}
