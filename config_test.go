package diffmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nozzle/diffmap/nn"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diffmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
n_neighbors: 12
knn: false
method: umap
n_comps: 8
weights: [distances]
row_cache_size: 256
`)
	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 12, config.NNeighbors)
	assert.False(t, config.KNN)
	assert.Equal(t, nn.MethodApprox, config.Method)
	assert.Equal(t, 8, config.NComps)
	assert.Equal(t, []string{WeightDistances}, config.Weights)
	assert.Equal(t, 256, config.RowCacheSize)

	// Absent fields keep their defaults.
	defaults := DefaultConfig()
	assert.Equal(t, defaults.Alpha, config.Alpha)
	assert.Equal(t, defaults.Flavor, config.Flavor)
	assert.Equal(t, defaults.ExactThreshold, config.ExactThreshold)
	assert.Equal(t, defaults.DenseDerivedThreshold, config.DenseDerivedThreshold)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"method", "method: hnsw\n"},
		{"flavor", "flavor: gauss\n"},
		{"weights", "weights: [connectivities]\n"},
		{"n_neighbors", "n_neighbors: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
