package geometry

import "sort"

// Hit is the result of a nearest-intersection query.
type Hit struct {
	Triangle int // index into TriSurface.Tris
	Dist     float64
}

// TriSurface is a triangulated obstruction surface with a median-split BVH
// for nearest-hit ray queries. PatchNames tags each patch index used by the
// triangles.
type TriSurface struct {
	Tris       []Triangle
	PatchNames []string

	nodes []bvhNode
	order []int // triangle visit order referenced by leaves
}

type bvhNode struct {
	bounds      BBox
	left, right int // child node indices; -1 for leaves
	start, n    int // leaf range into order
}

const bvhLeafSize = 4

// NewTriSurface builds the acceleration structure over tris.
func NewTriSurface(tris []Triangle, patchNames []string) (s *TriSurface) {
	s = &TriSurface{
		Tris:       tris,
		PatchNames: patchNames,
		order:      make([]int, len(tris)),
	}
	for i := range s.order {
		s.order[i] = i
	}
	if len(tris) > 0 {
		s.build(0, len(tris))
	}
	return
}

func (s *TriSurface) build(start, end int) (nodeID int) {
	var (
		node = bvhNode{bounds: EmptyBBox(), left: -1, right: -1}
	)
	for _, ti := range s.order[start:end] {
		node.bounds.ExtendBox(s.Tris[ti].Bounds())
	}
	nodeID = len(s.nodes)
	s.nodes = append(s.nodes, node)
	if end-start <= bvhLeafSize {
		s.nodes[nodeID].start, s.nodes[nodeID].n = start, end-start
		return
	}
	// Split on the widest axis at the median centroid
	var (
		ext  = node.bounds.Max.Sub(node.bounds.Min)
		axis = 0
	)
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	seg := s.order[start:end]
	sort.Slice(seg, func(i, j int) bool {
		return s.Tris[seg[i]].Centroid()[axis] < s.Tris[seg[j]].Centroid()[axis]
	})
	mid := start + (end-start)/2
	left := s.build(start, mid)
	right := s.build(mid, end)
	s.nodes[nodeID].left, s.nodes[nodeID].right = left, right
	return
}

// FindNearestHit returns the closest obstruction between start and end,
// if any. The segment endpoints are used as-is; callers offset them to avoid
// self-intersection.
func (s *TriSurface) FindNearestHit(start, end Vec) (h Hit, ok bool) {
	if len(s.Tris) == 0 {
		return
	}
	var (
		dir    = end.Sub(start)
		segLen = dir.Mag()
	)
	if segLen == 0 {
		return
	}
	dir = dir.Scale(1. / segLen)
	var (
		invDir Vec
		best   = segLen
	)
	for d := 0; d < 3; d++ {
		if dir[d] != 0 {
			invDir[d] = 1. / dir[d]
		} else {
			invDir[d] = 1e300
		}
	}
	var walk func(int)
	walk = func(n int) {
		node := s.nodes[n]
		if !node.bounds.intersectRay(start, invDir, best) {
			return
		}
		if node.left == -1 {
			for _, ti := range s.order[node.start : node.start+node.n] {
				if dist, hit := s.Tris[ti].Intersect(start, dir); hit && dist < best {
					best = dist
					h = Hit{Triangle: ti, Dist: dist}
					ok = true
				}
			}
			return
		}
		walk(node.left)
		walk(node.right)
	}
	walk(0)
	return
}

// FindLine answers a batch of segment queries; hits[i] reports whether
// segment i is obstructed. The result slices are sized to the input.
func (s *TriSurface) FindLine(starts, ends []Vec) (hits []bool, results []Hit) {
	hits = make([]bool, len(starts))
	results = make([]Hit, len(starts))
	for i := range starts {
		results[i], hits[i] = s.FindNearestHit(starts[i], ends[i])
	}
	return
}

// Bounds returns the bounding box of the whole surface.
func (s *TriSurface) Bounds() BBox {
	if len(s.nodes) == 0 {
		return EmptyBBox()
	}
	return s.nodes[0].bounds
}
