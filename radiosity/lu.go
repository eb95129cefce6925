package radiosity

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
)

// LU is a cached dense LU factorization with partial pivoting. The factor
// storage and pivot slice serialize directly, so a decomposition done once
// on the coordinator can be reused across runs.
type LU struct {
	N       int
	Factors []float64 // row-major N x N, L and U packed
	Pivots  []int
}

// Factorize decomposes the row-major n x n matrix a. a is overwritten with
// the factors.
func Factorize(a []float64, n int) (*LU, error) {
	lu := &LU{
		N:       n,
		Factors: a,
		Pivots:  make([]int, n),
	}
	m := blas64.General{Rows: n, Cols: n, Stride: n, Data: a}
	if ok := lapack64.Getrf(m, lu.Pivots); !ok {
		return nil, fmt.Errorf("radiosity matrix is singular")
	}
	return lu, nil
}

// Solve overwrites b with the solution of the factorized system.
func (lu *LU) Solve(b []float64) {
	rhs := blas64.General{Rows: lu.N, Cols: 1, Stride: 1, Data: b}
	m := blas64.General{Rows: lu.N, Cols: lu.N, Stride: lu.N, Data: lu.Factors}
	lapack64.Getrs(blas.NoTrans, m, rhs, lu.Pivots)
}

// Save persists the factorization with gob.
func (lu *LU) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing factorization cache %s: %w", path, err)
	}
	defer f.Close()
	if err = gob.NewEncoder(f).Encode(lu); err != nil {
		return fmt.Errorf("encoding factorization cache %s: %w", path, err)
	}
	return nil
}

// LoadLU reads a cached factorization if it exists and matches the expected
// system size. A mismatching cache is discarded with a warning: it belongs
// to a different agglomeration.
func LoadLU(path string, wantN int) (*LU, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()
	lu := new(LU)
	if err = gob.NewDecoder(f).Decode(lu); err != nil {
		Log.WithField("path", path).Warn("discarding unreadable factorization cache")
		return nil, false
	}
	if lu.N != wantN {
		Log.WithFields(logrus.Fields{
			"path": path, "cached": lu.N, "want": wantN,
		}).Warn("factorization cache does not match system size, will decompose again")
		return nil, false
	}
	Log.WithField("path", path).Info("read decomposed matrix from cache")
	return lu, true
}
