package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMesh = `
patches:
  - name: ground
    type: wall
    faces:
      - [[0, 0, 0], [1, 0, 0], [1, 1, 0], [0, 1, 0]]
      - [[1, 0, 0], [2, 0, 0], [2, 1, 0], [1, 1, 0]]
  - name: top
    type: sky
    faces:
      - [[0, 0, 2], [0, 1, 2], [2, 1, 2], [2, 0, 2]]
volume:
  cellCenters: [[0.5, 0.5, 0.5]]
  cellVolumes: [1.0]
  LAD: [0.3]
`

const testAgglom = `
nCoarse: 2
fineToCoarse: [0, 0, 1]
`

func writeCase(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "solar"), 0755))
	var (
		files = map[string]string{
			"mesh.yaml":           testMesh,
			"agglomeration.yaml":  testAgglom,
			"wallFields.yaml":     "- patch: ground\n  emissivity: 0.85\n  T: 300\n",
			"solar/sunPos.csv":    "time,x,y,z\n0,0,0,-1\n3600,0.5,0,-0.5\n",
			"solar/IDN.csv":       "time,value\n0,500\n3600,400\n",
			"solar/Idif.csv":      "time,value\n0,100\n3600,80\n",
			"solar/Tambient.csv":  "time,value\n0,293.15\n3600,294.15\n",
			"solar/cloudCover.csv": "time,value\n0,0.2\n3600,0.4\n",
		}
	)
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return
}

func TestLoadPartition(t *testing.T) {
	var (
		dir    = writeCase(t)
		p, err = loadPartition(dir, 0, 1)
	)
	require.NoError(t, err)
	assert.Len(t, p.B.Patches, 2)
	assert.Equal(t, 3, p.B.NRadiationFaces())
	assert.Len(t, p.Agg.Elements, 2)
	assert.Equal(t, []int{0, 0, 1}, p.Agg.FineToCoarse)
	assert.Len(t, p.VR.CellCenters, 1)
}

func TestLoadPartitionIdentityFallback(t *testing.T) {
	dir := writeCase(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "agglomeration.yaml")))
	p, err := loadPartition(dir, 0, 1)
	require.NoError(t, err)
	// Without an agglomeration file every fine face is its own element.
	assert.Len(t, p.Agg.Elements, 3)
}

func TestLoadWallFields(t *testing.T) {
	var (
		dir    = writeCase(t)
		p, err = loadPartition(dir, 0, 1)
	)
	require.NoError(t, err)
	wf, err := loadWallFields(dir, 0, 1, p.B)
	require.NoError(t, err)
	// Ground faces take the override, sky faces keep the defaults.
	assert.Equal(t, 0.85, wf.Emissivity[0])
	assert.Equal(t, 300., wf.T[1])
	assert.Equal(t, 0.9, wf.Emissivity[2])
	// Albedo was not overridden anywhere.
	assert.Equal(t, 0.2, wf.Albedo[0])
}

func TestLoadTables(t *testing.T) {
	var (
		dir     = writeCase(t)
		tb, err = loadTables(dir)
	)
	require.NoError(t, err)
	env, err := tb.At(1800)
	require.NoError(t, err)
	assert.InDelta(t, 450, env.IDN, 1e-12)
	assert.InDelta(t, 0.3, env.CloudCover, 1e-12)
	assert.InDelta(t, 1, env.SunDir.Mag(), 1e-12)
	assert.Less(t, env.SunDir[2], 0.0)
}

func TestLoadTablesCloudCoverOptional(t *testing.T) {
	dir := writeCase(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "solar", "cloudCover.csv")))
	tb, err := loadTables(dir)
	require.NoError(t, err)
	env, err := tb.At(0)
	require.NoError(t, err)
	assert.Zero(t, env.CloudCover)
}

func TestPartitionDir(t *testing.T) {
	assert.Equal(t, "case", partitionDir("case", 0, 1))
	assert.Equal(t, filepath.Join("case", "processor1"), partitionDir("case", 1, 4))
}
