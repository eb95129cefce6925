package geometry

import "math"

// Vec is a point or direction in R3.
type Vec [3]float64

func (v Vec) X() float64 { return v[0] }
func (v Vec) Y() float64 { return v[1] }
func (v Vec) Z() float64 { return v[2] }

func (v Vec) Add(a Vec) Vec { return Vec{v[0] + a[0], v[1] + a[1], v[2] + a[2]} }
func (v Vec) Sub(a Vec) Vec { return Vec{v[0] - a[0], v[1] - a[1], v[2] - a[2]} }

func (v Vec) Scale(s float64) Vec { return Vec{s * v[0], s * v[1], s * v[2]} }

func (v Vec) Dot(a Vec) float64 { return v[0]*a[0] + v[1]*a[1] + v[2]*a[2] }

func (v Vec) Cross(a Vec) Vec {
	return Vec{
		v[1]*a[2] - v[2]*a[1],
		v[2]*a[0] - v[0]*a[2],
		v[0]*a[1] - v[1]*a[0],
	}
}

func (v Vec) Mag() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns the unit vector along v. A zero vector is returned
// unchanged rather than producing NaNs.
func (v Vec) Normalize() Vec {
	var (
		m = v.Mag()
	)
	if m == 0 {
		return v
	}
	return v.Scale(1. / m)
}

func (v Vec) Min(a Vec) Vec {
	return Vec{math.Min(v[0], a[0]), math.Min(v[1], a[1]), math.Min(v[2], a[2])}
}

func (v Vec) Max(a Vec) Vec {
	return Vec{math.Max(v[0], a[0]), math.Max(v[1], a[1]), math.Max(v[2], a[2])}
}

// CosAngle returns the cosine of the angle between v and a, with a small
// denominator guard so degenerate area vectors do not divide by zero.
func (v Vec) CosAngle(a Vec) float64 {
	const small = 1e-30
	return v.Dot(a) / (v.Mag()*a.Mag() + small)
}
