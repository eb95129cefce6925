package geometry

// Tensor is a 3x3 rotation/transformation matrix in row-major order.
type Tensor [3][3]float64

// Identity returns the identity tensor.
func Identity() (T Tensor) {
	T[0][0], T[1][1], T[2][2] = 1, 1, 1
	return
}

// RotationTensor returns the rotation mapping unit vector n1 onto unit vector
// n2 (Rodrigues construction). Antiparallel inputs rotate by pi about an
// arbitrary axis perpendicular to n1.
func RotationTensor(n1, n2 Vec) (T Tensor) {
	var (
		a = n1.Normalize()
		b = n2.Normalize()
		v = a.Cross(b)
		c = a.Dot(b)
	)
	if c < -1+1e-12 {
		// 180 degree turn: pick any axis perpendicular to a
		perp := Vec{1, 0, 0}
		if a[0]*a[0] > 0.9 {
			perp = Vec{0, 1, 0}
		}
		axis := a.Cross(perp).Normalize()
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				T[i][j] = 2*axis[i]*axis[j] - kron(i, j)
			}
		}
		return
	}
	var (
		k = 1. / (1. + c)
	)
	T[0][0] = c + v[0]*v[0]*k
	T[0][1] = -v[2] + v[0]*v[1]*k
	T[0][2] = v[1] + v[0]*v[2]*k
	T[1][0] = v[2] + v[1]*v[0]*k
	T[1][1] = c + v[1]*v[1]*k
	T[1][2] = -v[0] + v[1]*v[2]*k
	T[2][0] = -v[1] + v[2]*v[0]*k
	T[2][1] = v[0] + v[2]*v[1]*k
	T[2][2] = c + v[2]*v[2]*k
	return
}

func kron(i, j int) float64 {
	if i == j {
		return 1
	}
	return 0
}

// Transform applies the tensor to a point.
func (T Tensor) Transform(p Vec) Vec {
	return Vec{
		T[0][0]*p[0] + T[0][1]*p[1] + T[0][2]*p[2],
		T[1][0]*p[0] + T[1][1]*p[1] + T[1][2]*p[2],
		T[2][0]*p[0] + T[2][1]*p[1] + T[2][2]*p[2],
	}
}

// TransformAll applies the tensor to a point list.
func (T Tensor) TransformAll(pts []Vec) (out []Vec) {
	out = make([]Vec, len(pts))
	for i, p := range pts {
		out[i] = T.Transform(p)
	}
	return
}
