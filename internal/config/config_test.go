package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb/tigerWMS_Current/MapServer", cfg.Service.BaseURL)
	assert.Equal(t, "censusgeo/1.0", cfg.Service.UserAgent)
	assert.Equal(t, 30, cfg.Service.TimeoutSecs)
	assert.Equal(t, 100, cfg.Service.PageSize)
	assert.Equal(t, 100, cfg.Service.ChunkSize)
	assert.Equal(t, 2, cfg.Service.PageRetries)
	assert.Equal(t, 20, cfg.Service.RatePerSecond)
	assert.Equal(t, "4236", cfg.Service.OutSR)
	assert.Equal(t, 6, cfg.Service.GeomPrecision)
	assert.Equal(t, "https://api.census.gov/data/2022/acs/acs5/geography.json", cfg.Geography.DefinitionsURL)
	assert.Equal(t, "https://www2.census.gov/geo/tiger/GENZ2020/shp/cb_2020_us_nation_5m.zip", cfg.Nation.ShapefileURL)
	assert.InDelta(t, 0.8, cfg.Match.ScoreCutoff, 0.001)
	assert.Equal(t, 20, cfg.Match.Shortlist)
	assert.InDelta(t, 0.001, cfg.Spatial.AreaThreshold, 1e-9)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
service:
  page_size: 50
  rate_per_second: 5
spatial:
  area_threshold: 0.5
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Service.PageSize)
	assert.Equal(t, 5, cfg.Service.RatePerSecond)
	assert.InDelta(t, 0.5, cfg.Spatial.AreaThreshold, 1e-9)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 2, cfg.Service.PageRetries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CENSUSGEO_LOG_LEVEL", "warn")
	t.Setenv("CENSUSGEO_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
