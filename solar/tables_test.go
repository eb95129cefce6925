package solar

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestScalarTableExactAndInterpolated(t *testing.T) {
	path := writeTable(t, "idn.csv", "time,value\n0,0\n3600,800\n7200,400\n")
	tab, err := LoadScalarTable(path)
	require.NoError(t, err)

	// A stored timestamp must reproduce the stored value exactly.
	v, err := tab.At(3600)
	require.NoError(t, err)
	assert.Equal(t, 800., v)

	v, err = tab.At(1800)
	require.NoError(t, err)
	assert.InDelta(t, 400., v, 1.e-12)

	_, err = tab.At(7201)
	assert.Error(t, err)
	_, err = tab.At(-1)
	assert.Error(t, err)
}

func TestScalarTableRejectsNonMonotone(t *testing.T) {
	path := writeTable(t, "bad.csv", "time,value\n0,0\n100,1\n100,2\n")
	_, err := LoadScalarTable(path)
	assert.Error(t, err)
}

func TestVectorTableSunDirection(t *testing.T) {
	sun := writeTable(t, "sun.csv",
		"time,x,y,z\n0,1,0,0\n3600,0,0,1\n")
	idn := writeTable(t, "idn.csv", "time,value\n0,0\n3600,800\n")
	idif := writeTable(t, "idif.csv", "time,value\n0,0\n3600,100\n")
	ta := writeTable(t, "ta.csv", "time,value\n0,290\n3600,300\n")

	var (
		tb  Tables
		err error
	)
	tb.SunPos, err = LoadVectorTable(sun)
	require.NoError(t, err)
	tb.IDN, err = LoadScalarTable(idn)
	require.NoError(t, err)
	tb.Idif, err = LoadScalarTable(idif)
	require.NoError(t, err)
	tb.Tambient, err = LoadScalarTable(ta)
	require.NoError(t, err)

	env, err := tb.At(1800)
	require.NoError(t, err)
	assert.InDelta(t, 1., env.SunDir.Mag(), 1.e-12)
	assert.InDelta(t, 400., env.IDN, 1.e-12)
	assert.InDelta(t, 295., env.Tambient, 1.e-12)
	assert.Equal(t, 0., env.CloudCover)
}

func TestSkyTemperature(t *testing.T) {
	// Clear sky is colder than the air; full overcast approaches air
	// temperature.
	Ta := 293.15
	clear := SkyTemperature(Ta, 0)
	overcast := SkyTemperature(Ta, 1)
	assert.Less(t, clear, Ta)
	assert.Greater(t, overcast, clear)
	assert.InDelta(t, Ta, overcast, 8)
	assert.False(t, math.IsNaN(clear))
}
