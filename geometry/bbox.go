package geometry

import "math"

// BBox is an axis-aligned bounding box.
type BBox struct {
	Min, Max Vec
}

// EmptyBBox returns a box that any Extend call will overwrite.
func EmptyBBox() BBox {
	var (
		inf = math.Inf(1)
	)
	return BBox{
		Min: Vec{inf, inf, inf},
		Max: Vec{-inf, -inf, -inf},
	}
}

func (b *BBox) Extend(p Vec) {
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

func (b *BBox) ExtendBox(o BBox) {
	b.Min = b.Min.Min(o.Min)
	b.Max = b.Max.Max(o.Max)
}

func (b BBox) Contains(p Vec) bool {
	for d := 0; d < 3; d++ {
		if p[d] < b.Min[d] || p[d] > b.Max[d] {
			return false
		}
	}
	return true
}

func (b BBox) Center() Vec {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Exit returns the point where a ray leaving start along dir crosses the box
// boundary. Start must lie inside the box; dir need not be normalized.
func (b BBox) Exit(start, dir Vec) Vec {
	var (
		tMin = math.Inf(1)
	)
	for d := 0; d < 3; d++ {
		var t float64
		switch {
		case dir[d] > 0:
			t = (b.Max[d] - start[d]) / dir[d]
		case dir[d] < 0:
			t = (b.Min[d] - start[d]) / dir[d]
		default:
			continue
		}
		if t < tMin {
			tMin = t
		}
	}
	return start.Add(dir.Scale(tMin))
}

// intersectRay is the slab test used during BVH traversal. It reports whether
// the ray segment [0,tMax] overlaps the box.
func (b BBox) intersectRay(orig, invDir Vec, tMax float64) bool {
	var (
		t0 = 0.
		t1 = tMax
	)
	for d := 0; d < 3; d++ {
		tNear := (b.Min[d] - orig[d]) * invDir[d]
		tFar := (b.Max[d] - orig[d]) * invDir[d]
		if tNear > tFar {
			tNear, tFar = tFar, tNear
		}
		if tNear > t0 {
			t0 = tNear
		}
		if tFar < t1 {
			t1 = tFar
		}
		if t0 > t1 {
			return false
		}
	}
	return true
}
