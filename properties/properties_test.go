package properties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadiationPropertiesParse(t *testing.T) {
	var (
		data = []byte(`
skyPosVector: [0, 0, 1]
smoothing: true
constantEmissivity: true
updateInterval: 60
`)
		p = DefaultRadiationProperties()
	)
	require.NoError(t, p.Parse(data))
	assert.True(t, p.Smoothing)
	assert.True(t, p.ConstantEmissivity)
	assert.False(t, p.ConstantAlbedo)
	assert.Equal(t, 60, p.UpdateInterval)
	assert.Equal(t, [3]float64{0, 0, 1}, p.SkyPosVector)
}

func TestVegetationPropertiesDefaultsSurviveParse(t *testing.T) {
	var (
		data = []byte(`
vegetationModel: simplified
kc: 0.6
simplifiedCoeffs:
  rsMin: 200
`)
		p = DefaultVegetationProperties()
	)
	require.NoError(t, p.Parse(data))
	assert.Equal(t, "simplified", p.Model)
	assert.Equal(t, 0.6, p.Kc)
	// Overridden inside the nested block
	assert.Equal(t, 200., p.Simplified.RsMin)
	// Untouched nested defaults survive
	assert.Equal(t, 130., p.Simplified.C)
	assert.Equal(t, 100, p.Simplified.TlMaxIter)
	assert.Equal(t, 10., p.MinCellSizeFactor)
}

func TestGrassPropertiesParse(t *testing.T) {
	var (
		data = []byte(`
grassModel: simple
grassPatches: [ground]
rs: 180
`)
		p = DefaultGrassProperties()
	)
	require.NoError(t, p.Parse(data))
	assert.Equal(t, "simple", p.Model)
	assert.Equal(t, []string{"ground"}, p.GrassPatches)
	assert.Equal(t, 180., p.Rs)
	assert.Equal(t, 0.78, p.Beta)
}

func TestLoadGrassMissingFileSelectsNone(t *testing.T) {
	p, err := LoadGrass("nonexistent/grassProperties.yaml")
	require.NoError(t, err)
	assert.Equal(t, "none", p.Model)
}
