package mesh

import "fmt"

// WallFields carries the per-fine-face radiative surface properties and
// state of one partition, in wall-face order.
type WallFields struct {
	Emissivity []float64
	Albedo     []float64
	T          []float64 // surface temperature, K
	QrExt      []float64 // externally prescribed long-wave flux, W/m2
}

// NewWallFields allocates fields for n wall faces with physically neutral
// defaults.
func NewWallFields(n int) *WallFields {
	wf := &WallFields{
		Emissivity: make([]float64, n),
		Albedo:     make([]float64, n),
		T:          make([]float64, n),
		QrExt:      make([]float64, n),
	}
	for i := 0; i < n; i++ {
		wf.Emissivity[i] = 0.9
		wf.Albedo[i] = 0.2
		wf.T[i] = 293.15
	}
	return wf
}

// SetPatchUniform assigns a uniform value to all wall faces of the named
// patch.
func (wf *WallFields) SetPatchUniform(b *Boundary, patch string, field string, v float64) error {
	p, err := b.FindPatch(patch)
	if err != nil {
		return err
	}
	if !p.IsRadiative() {
		return fmt.Errorf("patch %q does not take part in radiation", patch)
	}
	var dst []float64
	switch field {
	case "emissivity":
		dst = wf.Emissivity
	case "albedo":
		dst = wf.Albedo
	case "T":
		dst = wf.T
	case "qrExt":
		dst = wf.QrExt
	default:
		return fmt.Errorf("unknown wall field %q", field)
	}
	_, patchID := b.RadiationFaces()
	pi := -1
	for i := range b.Patches {
		if &b.Patches[i] == p {
			pi = i
		}
	}
	for fi, id := range patchID {
		if id == pi {
			dst[fi] = v
		}
	}
	return nil
}
