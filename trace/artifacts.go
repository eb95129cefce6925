package trace

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/james-bowman/sparse"
)

// FFragment is the serializable triplet form of a partition's view-factor
// rows: NRows local elements by NCols global elements.
type FFragment struct {
	NRows, NCols int
	Rows, Cols   []int
	Vals         []float64
}

// NewFFragment flattens a DOK fragment to triplets.
func NewFFragment(F *sparse.DOK) *FFragment {
	r, c := F.Dims()
	fr := &FFragment{NRows: r, NCols: c}
	F.DoNonZero(func(i, j int, v float64) {
		fr.Rows = append(fr.Rows, i)
		fr.Cols = append(fr.Cols, j)
		fr.Vals = append(fr.Vals, v)
	})
	return fr
}

// ToDOK rebuilds the sparse fragment.
func (fr *FFragment) ToDOK() *sparse.DOK {
	F := sparse.NewDOK(fr.NRows, fr.NCols)
	for k, v := range fr.Vals {
		F.Set(fr.Rows[k], fr.Cols[k], v)
	}
	return F
}

// Artifacts is everything the tracing pre-pass hands to the radiosity
// solver, persisted per partition.
type Artifacts struct {
	F     *FFragment
	Solar *SolarCoeffs
}

// Save writes the artifacts with gob.
func (a *Artifacts) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing trace artifacts %s: %w", path, err)
	}
	defer f.Close()
	if err = gob.NewEncoder(f).Encode(a); err != nil {
		return fmt.Errorf("encoding trace artifacts %s: %w", path, err)
	}
	return nil
}

// LoadArtifacts reads a partition's artifacts back.
func LoadArtifacts(path string) (*Artifacts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace artifacts %s: %w", path, err)
	}
	defer f.Close()
	a := new(Artifacts)
	if err = gob.NewDecoder(f).Decode(a); err != nil {
		return nil, fmt.Errorf("decoding trace artifacts %s: %w", path, err)
	}
	return a, nil
}
