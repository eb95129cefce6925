package radiosity

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/uclimate/gorad/parallel"
	"github.com/uclimate/gorad/properties"
	"github.com/uclimate/gorad/trace"
)

// Stefan-Boltzmann constant, W/(m2 K4).
const Sigma = 5.670374419e-8

// System is the coordinator-side dense radiosity solver over the global
// coarse elements. With constant emissivity or albedo the factorized
// exchange matrices are cached on disk keyed by the system size.
type System struct {
	props properties.RadiationProperties
	n     int
	F     *mat.Dense

	luLW, luSW *LU
}

// NewSystem assembles and, if configured, smooths the global view-factor
// matrix from the gathered partition fragments.
func NewSystem(props properties.RadiationProperties, gi *parallel.GlobalIndex,
	frags []*trace.FFragment) (*System, error) {

	F, err := AssembleF(gi, frags)
	if err != nil {
		return nil, err
	}
	if props.Smoothing {
		Log.Debug("smoothing the view factor matrix")
		Smooth(F)
	}
	return &System{props: props, n: gi.TotalSize(), F: F}, nil
}

// N returns the number of coarse elements in the system.
func (s *System) N() int { return s.n }

// F returns the assembled view-factor matrix.
func (s *System) Matrix() *mat.Dense { return s.F }

func (s *System) cachePath(name string) string {
	return filepath.Join(s.props.CacheDir, name)
}

// longWaveMatrix builds the long-wave exchange matrix for per-element
// emissivities E.
func (s *System) longWaveMatrix(E []float64) []float64 {
	C := make([]float64, s.n*s.n)
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			invEj := 1.0 / E[j]
			if i == j {
				C[i*s.n+j] = invEj - (invEj-1.0)*s.F.At(i, j)
			} else {
				C[i*s.n+j] = (1.0 - invEj) * s.F.At(i, j)
			}
		}
	}
	return C
}

// SolveLongWave returns the net long-wave radiative flux per coarse element
// given the fourth powers of the element temperatures, the emissivities and
// the externally prescribed fluxes. Negative flux enters the fluid.
func (s *System) SolveLongWave(T4, E, qrExt []float64) ([]float64, error) {
	if len(T4) != s.n || len(E) != s.n || len(qrExt) != s.n {
		return nil, fmt.Errorf("field sizes %d/%d/%d do not match system size %d",
			len(T4), len(E), len(qrExt), s.n)
	}
	q := make([]float64, s.n)
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			sigmaT4 := Sigma * T4[j]
			if i == j {
				q[i] += (s.F.At(i, j)-1.0)*sigmaT4 - qrExt[j]
			} else {
				q[i] += s.F.At(i, j) * sigmaT4
			}
		}
	}

	if !s.props.ConstantEmissivity {
		lu, err := Factorize(s.longWaveMatrix(E), s.n)
		if err != nil {
			return nil, err
		}
		lu.Solve(q)
		return q, nil
	}

	if s.luLW == nil {
		path := s.cachePath("CLU_qr")
		if lu, ok := LoadLU(path, s.n); ok {
			s.luLW = lu
		} else {
			Log.Info("decomposing long-wave exchange matrix")
			lu, err := Factorize(s.longWaveMatrix(E), s.n)
			if err != nil {
				return nil, err
			}
			if err := lu.Save(path); err != nil {
				Log.WithError(err).Warn("could not persist factorization cache")
			}
			s.luLW = lu
		}
	}
	s.luLW.Solve(q)
	return q, nil
}

// shortWaveMatrix builds the short-wave exchange matrix for per-element
// albedos A.
func (s *System) shortWaveMatrix(A []float64) []float64 {
	C := make([]float64, s.n*s.n)
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			r := A[j] / (1.0 - A[j])
			if i == j {
				C[i*s.n+j] = 1.0/(1.0-A[j]) - r*s.F.At(i, j)
			} else {
				C[i*s.n+j] = -r * s.F.At(i, j)
			}
		}
	}
	return C
}

// SolveShortWave returns the net short-wave flux per coarse element. Isol is
// the incident solar load (sun plus sky coefficients interpolated to the
// current time), A the albedos and qsExt externally prescribed fluxes.
func (s *System) SolveShortWave(Isol, A, qsExt []float64) ([]float64, error) {
	if len(Isol) != s.n || len(A) != s.n || len(qsExt) != s.n {
		return nil, fmt.Errorf("field sizes %d/%d/%d do not match system size %d",
			len(Isol), len(A), len(qsExt), s.n)
	}
	q := make([]float64, s.n)
	for i := 0; i < s.n; i++ {
		q[i] = Isol[i] - qsExt[i]
	}

	if !s.props.ConstantAlbedo {
		lu, err := Factorize(s.shortWaveMatrix(A), s.n)
		if err != nil {
			return nil, err
		}
		lu.Solve(q)
		return q, nil
	}

	if s.luSW == nil {
		path := s.cachePath("CLU_qs")
		if lu, ok := LoadLU(path, s.n); ok {
			s.luSW = lu
		} else {
			Log.Info("decomposing short-wave exchange matrix")
			lu, err := Factorize(s.shortWaveMatrix(A), s.n)
			if err != nil {
				return nil, err
			}
			if err := lu.Save(path); err != nil {
				Log.WithError(err).Warn("could not persist factorization cache")
			}
			s.luSW = lu
		}
	}
	s.luSW.Solve(q)
	return q, nil
}
