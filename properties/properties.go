// Package properties holds the yaml-backed case property files that select
// and tune the radiation, vegetation and grass sub-models.
package properties

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

// RadiationProperties controls the view-factor radiosity solvers.
type RadiationProperties struct {
	// SkyPosVector is the fixed zenith direction used for diffuse sky
	// coupling.
	SkyPosVector [3]float64 `json:"skyPosVector"`
	// Smoothing renormalizes each view-factor matrix row to sum to one.
	Smoothing bool `json:"smoothing"`
	// ConstantEmissivity/ConstantAlbedo enable the cached-factorization path
	// for the long-wave and short-wave systems respectively.
	ConstantEmissivity bool `json:"constantEmissivity"`
	ConstantAlbedo     bool `json:"constantAlbedo"`
	// UpdateInterval is the number of flow-solver steps between radiation
	// updates.
	UpdateInterval int `json:"updateInterval"`
	// CacheDir is where factorization caches are written (coordinator only).
	CacheDir string `json:"cacheDir"`
}

func DefaultRadiationProperties() RadiationProperties {
	return RadiationProperties{
		SkyPosVector:   [3]float64{0, 0, 1},
		Smoothing:      true,
		UpdateInterval: 1,
		CacheDir:       ".",
	}
}

// VegetationProperties selects the vegetation energy-balance model and tunes
// the LAI pre-pass.
type VegetationProperties struct {
	Model string `json:"vegetationModel"` // "simplified" or "none"
	// Kc is the Beer-Lambert extinction coefficient.
	Kc float64 `json:"kc"`
	// MinCellSizeFactor scales the Cartesian interpolation grid spacing
	// relative to the smallest mesh cell edge.
	MinCellSizeFactor float64 `json:"minCellSizeFactor"`

	Simplified SimplifiedCoeffs `json:"simplifiedCoeffs"`
}

// SimplifiedCoeffs are the empirical constants of the simplified vegetation
// energy balance.
type SimplifiedCoeffs struct {
	C          float64 `json:"C"`  // aerodynamic resistance constant, s^(1/2)/m
	L          float64 `json:"l"`  // characteristic leaf length, m
	RsMin      float64 `json:"rsMin"`
	NEvapSides float64 `json:"nEvapSides"`
	Cd         float64 `json:"Cd"` // canopy drag coefficient
	// Leaf temperature iteration controls
	TlRelax    float64 `json:"TlRelax"`
	TlResidual float64 `json:"TlResidual"`
	TlMaxIter  int     `json:"TlMaxIter"`
}

func DefaultVegetationProperties() VegetationProperties {
	return VegetationProperties{
		Model:             "none",
		Kc:                0.5,
		MinCellSizeFactor: 10,
		Simplified: SimplifiedCoeffs{
			C:          130,
			L:          0.1,
			RsMin:      150,
			NEvapSides: 1,
			Cd:         0.2,
			TlRelax:    0.5,
			TlResidual: 1e-8,
			TlMaxIter:  100,
		},
	}
}

// GrassProperties selects the grass surface model.
type GrassProperties struct {
	Model        string   `json:"grassModel"` // "simple" or "none"
	GrassPatches []string `json:"grassPatches"`

	NEvapSides     float64 `json:"nEvapSides"`
	Cd             float64 `json:"Cd"`
	Beta           float64 `json:"beta"`   // short-wave extinction
	BetaLW         float64 `json:"betaLW"` // long-wave extinction
	LAI            float64 `json:"LAI"`    // grass layer leaf area index
	L              float64 `json:"l"`      // characteristic leaf length, m
	AlbedoSoil     float64 `json:"albedoSoil"`
	EmissivitySoil float64 `json:"emissivitySoil"`
	Rs             float64 `json:"rs"`
	// Ra < 0 selects velocity-dependent aerodynamic resistance.
	Ra         float64 `json:"ra"`
	TgRelax    float64 `json:"TgRelax"`
	TgResidual float64 `json:"TgResidual"`
}

func DefaultGrassProperties() GrassProperties {
	return GrassProperties{
		Model:          "none",
		NEvapSides:     1,
		Cd:             0.2,
		Beta:           0.78,
		BetaLW:         0.83,
		LAI:            2,
		L:              0.1,
		AlbedoSoil:     0.2366,
		EmissivitySoil: 0.95,
		Rs:             200,
		Ra:             -1,
		TgRelax:        0.5,
		TgResidual:     1e-8,
	}
}

func (p *RadiationProperties) Parse(data []byte) error {
	return yaml.Unmarshal(data, p)
}

func (p *VegetationProperties) Parse(data []byte) error {
	return yaml.Unmarshal(data, p)
}

func (p *GrassProperties) Parse(data []byte) error {
	return yaml.Unmarshal(data, p)
}

// LoadRadiation reads a RadiationProperties file over the defaults.
func LoadRadiation(path string) (p RadiationProperties, err error) {
	p = DefaultRadiationProperties()
	err = loadInto(path, &p)
	return
}

// LoadVegetation reads a VegetationProperties file over the defaults.
func LoadVegetation(path string) (p VegetationProperties, err error) {
	p = DefaultVegetationProperties()
	err = loadInto(path, &p)
	return
}

// LoadGrass reads a GrassProperties file over the defaults. A missing file is
// not an error: it selects the "none" model.
func LoadGrass(path string) (p GrassProperties, err error) {
	p = DefaultGrassProperties()
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return
	}
	err = loadInto(path, &p)
	return
}

type parser interface{ Parse([]byte) error }

func loadInto(path string, p parser) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading properties file %s: %w", path, err)
	}
	if err = p.Parse(data); err != nil {
		return fmt.Errorf("parsing properties file %s: %w", path, err)
	}
	return nil
}
