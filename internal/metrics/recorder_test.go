package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SetHeights(t *testing.T) {
	r := NewRecorder()
	r.SetHeights(100, 500)

	assert.Equal(t, float64(100), testutil.ToFloat64(r.localHeight))
	assert.Equal(t, float64(500), testutil.ToFloat64(r.remoteHeight))
	assert.Equal(t, float64(400), testutil.ToFloat64(r.heightDelta))
}

func TestRecorder_Flags(t *testing.T) {
	r := NewRecorder()

	r.SetHealthy(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.healthy))
	r.SetHealthy(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(r.healthy))

	r.SetCoolingDown(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.coolingDown))

	r.IncRemediations()
	assert.Equal(t, float64(1), testutil.ToFloat64(r.remediations))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.SetHeights(100, 500)
	r.SetHealthy(false)
	r.IncRemediations()

	path := filepath.Join(t.TempDir(), "syncvisor.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "syncvisor_local_height 100")
	assert.Contains(t, content, "syncvisor_remote_height 500")
	assert.Contains(t, content, "syncvisor_height_delta 400")
	assert.Contains(t, content, "syncvisor_remediations_total 1")

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
