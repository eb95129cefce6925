package geometry

// Triangle is one facet of the obstruction surface. Patch identifies the
// originating boundary patch; Agglom is the global index of the coarse
// radiative element the facet belongs to.
type Triangle struct {
	P0, P1, P2 Vec
	Patch      int
	Agglom     int
}

func (t Triangle) Bounds() (b BBox) {
	b = EmptyBBox()
	b.Extend(t.P0)
	b.Extend(t.P1)
	b.Extend(t.P2)
	return
}

func (t Triangle) Centroid() Vec {
	return t.P0.Add(t.P1).Add(t.P2).Scale(1. / 3.)
}

// Intersect runs the Moller-Trumbore ray/triangle test. It returns the ray
// parameter of the hit; ok is false when the ray misses or is parallel to the
// triangle plane.
func (t Triangle) Intersect(orig, dir Vec) (dist float64, ok bool) {
	const eps = 1e-12
	var (
		e1 = t.P1.Sub(t.P0)
		e2 = t.P2.Sub(t.P0)
		p  = dir.Cross(e2)
		d  = e1.Dot(p)
	)
	if d > -eps && d < eps {
		return
	}
	var (
		inv  float64
		s, q Vec
		u, v float64
	)
	inv = 1. / d
	s = orig.Sub(t.P0)
	u = s.Dot(p) * inv
	if u < 0 || u > 1 {
		return
	}
	q = s.Cross(e1)
	v = dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return
	}
	dist = e2.Dot(q) * inv
	if dist < eps {
		return
	}
	ok = true
	return
}
