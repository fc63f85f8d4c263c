package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4326, cfg.CRS.Source)
	assert.Equal(t, 3857, cfg.CRS.Target)
	assert.InDelta(t, 0.015, cfg.Partition.DensityFactor, 1e-9)
	assert.InDelta(t, 0.005, cfg.Partition.Buffer, 1e-9)
	assert.Equal(t, uint64(2020), cfg.Partition.Seed)
	assert.Equal(t, 10, cfg.Partition.Restarts)
	assert.Equal(t, 500, cfg.Partition.MaxIterations)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.URL)
	assert.Equal(t, 30, cfg.Overpass.TimeoutSecs)
	assert.Equal(t, 5, cfg.Overpass.MaxTries)
	assert.Equal(t, 3000, cfg.Overpass.BackoffMs)
	assert.Equal(t, "abort", cfg.Overpass.OnFailure)
	assert.Equal(t, []string{"amenity", "shop", "building", "leisure", "sport", "historic", "tourism", "man_made"}, cfg.Overpass.Keys)
	assert.Equal(t, 10, cfg.Match.K)
	assert.InDelta(t, 0.65, cfg.Match.Threshold, 1e-9)
	assert.InDelta(t, 0.6, cfg.Match.NameWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Match.TagWeight, 1e-9)
	assert.Equal(t, 4, cfg.Match.Workers)
	assert.Equal(t, "data/el.yml", cfg.Lexicon.Path)
	assert.Equal(t, "el.geocoder.search_osm_nominatim.prefix", cfg.Lexicon.Prefix)
	assert.Equal(t, "poi_id", cfg.Dataset.IDColumn)
	assert.Equal(t, "subclass_n", cfg.Dataset.SubclassCol)
	assert.Equal(t, "csv", cfg.Output.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: runs.db
log:
  level: debug
  format: console
match:
  k: 5
  threshold: 0.7
overpass:
  on_failure: skip
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "runs.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Match.K)
	assert.InDelta(t, 0.7, cfg.Match.Threshold, 1e-9)
	assert.Equal(t, "skip", cfg.Overpass.OnFailure)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Overpass.MaxTries)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INTERLINK_STORE_DRIVER", "postgres")
	t.Setenv("INTERLINK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("INTERLINK_MATCH_K", "3")
	t.Setenv("INTERLINK_OVERPASS_URL", "http://localhost:12345/api")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Match.K)
	assert.Equal(t, "http://localhost:12345/api", cfg.Overpass.URL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("match: [\n"), 0644))

	_, err := Load()
	assert.Error(t, err)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.CRS.Source = 4326
	cfg.CRS.Target = 3857
	cfg.Partition.DensityFactor = 0.015
	cfg.Partition.Buffer = 0.005
	cfg.Overpass.MaxTries = 5
	cfg.Overpass.OnFailure = "abort"
	cfg.Match.K = 10
	cfg.Match.Threshold = 0.65
	cfg.Match.NameWeight = 0.6
	cfg.Match.TagWeight = 0.4
	cfg.Output.Format = "csv"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_CRS(t *testing.T) {
	cfg := validDefaults()
	cfg.CRS.Source = 2100
	assert.NoError(t, cfg.Validate())

	cfg = validDefaults()
	cfg.CRS.Source = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EPSG:0")

	cfg = validDefaults()
	cfg.CRS.Target = -1
	assert.ErrorContains(t, cfg.Validate(), "target crs")
}

func TestValidate_WeightsOutOfRange(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.NameWeight = 1.2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.name_weight")

	cfg = validDefaults()
	cfg.Match.Threshold = -0.1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match.threshold")
}

func TestValidate_WeightSum(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.NameWeight = 0.8
	cfg.Match.TagWeight = 0.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed 1")

	cfg = validDefaults()
	cfg.Match.NameWeight = 0.7
	cfg.Match.TagWeight = 0.3
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.K = 0
	assert.ErrorContains(t, cfg.Validate(), "match.k")

	cfg = validDefaults()
	cfg.Overpass.MaxTries = 0
	assert.ErrorContains(t, cfg.Validate(), "max_tries")

	cfg = validDefaults()
	cfg.Partition.DensityFactor = 0
	assert.ErrorContains(t, cfg.Validate(), "density_factor")

	cfg = validDefaults()
	cfg.Partition.Buffer = -1
	assert.ErrorContains(t, cfg.Validate(), "buffer")
}

func TestValidate_Enums(t *testing.T) {
	cfg := validDefaults()
	cfg.Overpass.OnFailure = "retry"
	assert.ErrorContains(t, cfg.Validate(), "on_failure")

	cfg = validDefaults()
	cfg.Output.Format = "parquet"
	assert.ErrorContains(t, cfg.Validate(), "output.format")

	cfg = validDefaults()
	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "store driver")

	cfg = validDefaults()
	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate())
}
