package grid_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/gridenc/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGridKind(t *testing.T) {
	k, err := grid.ParseGridKind("tiled")
	require.NoError(t, err)
	assert.Equal(t, grid.Tiled, k)

	k, err = grid.ParseGridKind(" Hash ")
	require.NoError(t, err)
	assert.Equal(t, grid.Hash, k)

	_, err = grid.ParseGridKind("dense")
	require.ErrorIs(t, err, grid.ErrUnknownKind)
}

func TestGridKind_JSON(t *testing.T) {
	data, err := json.Marshal(grid.Tiled)
	require.NoError(t, err)
	assert.JSONEq(t, `"tiled"`, string(data))

	var k grid.GridKind
	require.NoError(t, json.Unmarshal([]byte(`"hash"`), &k))
	assert.Equal(t, grid.Hash, k)
	require.Error(t, json.Unmarshal([]byte(`"octree"`), &k))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.json")
	body := `{"input_dim": 2, "num_levels": 8, "grid_type": "tiled", "align_corners": true}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := grid.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.InputDim)
	assert.Equal(t, 8, cfg.NumLevels)
	assert.Equal(t, grid.Tiled, cfg.Kind)
	assert.True(t, cfg.AlignCorners)
	// Unset fields keep their defaults.
	assert.Equal(t, 2, cfg.LevelDim)
	assert.Equal(t, 19, cfg.Log2HashmapSize)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := grid.LoadConfig(filepath.Join(dir, "grid.yaml"))
	require.Error(t, err)

	_, err = grid.LoadConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"input_dim": 9}`), 0o600))
	_, err = grid.LoadConfig(bad)
	require.ErrorIs(t, err, grid.ErrInvalidConfig)
}

func TestConfig_UsesHalfPrecision(t *testing.T) {
	cfg := grid.DefaultConfig()
	assert.False(t, cfg.UsesHalfPrecision())

	cfg.HalfPrecision = true
	assert.True(t, cfg.UsesHalfPrecision())

	cfg.LevelDim = 3
	assert.False(t, cfg.UsesHalfPrecision(), "odd level dim stays float32")
}
