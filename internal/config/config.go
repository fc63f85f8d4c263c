package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	CRS       CRSConfig       `yaml:"crs" mapstructure:"crs"`
	Partition PartitionConfig `yaml:"partition" mapstructure:"partition"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Lexicon   LexiconConfig   `yaml:"lexicon" mapstructure:"lexicon"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DatasetConfig describes the primary POI dataset columns.
type DatasetConfig struct {
	Format        string `yaml:"format" mapstructure:"format"` // auto, csv, xlsx, shp
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
	IDColumn      string `yaml:"id_column" mapstructure:"id_column"`
	NameColumn    string `yaml:"name_column" mapstructure:"name_column"`
	ThemeColumn   string `yaml:"theme_column" mapstructure:"theme_column"`
	ClassColumn   string `yaml:"class_column" mapstructure:"class_column"`
	SubclassCol   string `yaml:"subclass_column" mapstructure:"subclass_column"`
	XColumn       string `yaml:"x_column" mapstructure:"x_column"`
	YColumn       string `yaml:"y_column" mapstructure:"y_column"`
	SkipBadCoords bool   `yaml:"skip_bad_coords" mapstructure:"skip_bad_coords"`
}

// CRSConfig holds the EPSG codes of the input dataset and of the matching space.
type CRSConfig struct {
	Source int `yaml:"source" mapstructure:"source"`
	Target int `yaml:"target" mapstructure:"target"`
}

// PartitionConfig configures density-based tiling of the dataset extent.
type PartitionConfig struct {
	DensityFactor float64 `yaml:"density_factor" mapstructure:"density_factor"`
	Buffer        float64 `yaml:"buffer" mapstructure:"buffer"`
	Seed          uint64  `yaml:"seed" mapstructure:"seed"`
	Restarts      int     `yaml:"restarts" mapstructure:"restarts"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations"`
	MaxTileArea   float64 `yaml:"max_tile_area" mapstructure:"max_tile_area"`
}

// OverpassConfig configures feature acquisition.
type OverpassConfig struct {
	URL              string   `yaml:"url" mapstructure:"url"`
	UserAgent        string   `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTries         int      `yaml:"max_tries" mapstructure:"max_tries"`
	BackoffMs        int      `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	RatePerSec       float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Concurrency      int      `yaml:"concurrency" mapstructure:"concurrency"`
	StagingDir       string   `yaml:"staging_dir" mapstructure:"staging_dir"`
	OnFailure        string   `yaml:"on_failure" mapstructure:"on_failure"` // abort, skip
	BreakerThreshold int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	Keys             []string `yaml:"keys" mapstructure:"keys"`
	WayExcludedKeys  []string `yaml:"way_excluded_keys" mapstructure:"way_excluded_keys"`
	Exclusions       []string `yaml:"exclusions" mapstructure:"exclusions"`
}

// MatchConfig configures candidate retrieval and scoring.
type MatchConfig struct {
	K          int     `yaml:"k" mapstructure:"k"`
	Threshold  float64 `yaml:"threshold" mapstructure:"threshold"`
	NameWeight float64 `yaml:"name_weight" mapstructure:"name_weight"`
	TagWeight  float64 `yaml:"tag_weight" mapstructure:"tag_weight"`
	Metric     string  `yaml:"metric" mapstructure:"metric"`
	Workers    int     `yaml:"workers" mapstructure:"workers"`
}

// LexiconConfig locates the tag lexicon.
type LexiconConfig struct {
	Path   string `yaml:"path" mapstructure:"path"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// OutputConfig configures written artifacts.
type OutputConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	Format        string `yaml:"format" mapstructure:"format"` // csv, xlsx
	PairsFile     string `yaml:"pairs_file" mapstructure:"pairs_file"`
	UnmatchedFile string `yaml:"unmatched_file" mapstructure:"unmatched_file"`
	FeaturesFile  string `yaml:"features_file" mapstructure:"features_file"`
}

// StoreConfig configures the optional run store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "", sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTERLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("dataset.format", "auto")
	v.SetDefault("dataset.id_column", "poi_id")
	v.SetDefault("dataset.name_column", "name")
	v.SetDefault("dataset.theme_column", "theme")
	v.SetDefault("dataset.class_column", "class_name")
	v.SetDefault("dataset.subclass_column", "subclass_n")
	v.SetDefault("dataset.x_column", "x")
	v.SetDefault("dataset.y_column", "y")

	v.SetDefault("crs.source", 4326)
	v.SetDefault("crs.target", 3857)

	v.SetDefault("partition.density_factor", 0.015)
	v.SetDefault("partition.buffer", 0.005)
	v.SetDefault("partition.seed", 2020)
	v.SetDefault("partition.restarts", 10)
	v.SetDefault("partition.max_iterations", 500)
	v.SetDefault("partition.max_tile_area", 0.25)

	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.user_agent", "poi-interlink/1.0")
	v.SetDefault("overpass.timeout_secs", 30)
	v.SetDefault("overpass.max_tries", 5)
	v.SetDefault("overpass.backoff_ms", 3000)
	v.SetDefault("overpass.rate_per_sec", 1.0)
	v.SetDefault("overpass.concurrency", 1)
	v.SetDefault("overpass.staging_dir", "output")
	v.SetDefault("overpass.on_failure", "abort")
	v.SetDefault("overpass.breaker_threshold", 3)
	v.SetDefault("overpass.keys", []string{"amenity", "shop", "building", "leisure", "sport", "historic", "tourism", "man_made"})
	v.SetDefault("overpass.way_excluded_keys", []string{"building"})
	v.SetDefault("overpass.exclusions", []string{"access=private", "amenity=bench"})

	v.SetDefault("match.k", 10)
	v.SetDefault("match.threshold", 0.65)
	v.SetDefault("match.name_weight", 0.6)
	v.SetDefault("match.tag_weight", 0.4)
	v.SetDefault("match.metric", "")
	v.SetDefault("match.workers", 4)

	v.SetDefault("lexicon.path", "data/el.yml")
	v.SetDefault("lexicon.prefix", "el.geocoder.search_osm_nominatim.prefix")

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.pairs_file", "pois_dataset_pairs")
	v.SetDefault("output.unmatched_file", "unmatched_ids")
	v.SetDefault("output.features_file", "osm_polys")
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.CRS.Source <= 0 {
		return eris.Errorf("config: invalid source crs EPSG:%d", c.CRS.Source)
	}
	if c.CRS.Target <= 0 {
		return eris.Errorf("config: invalid target crs EPSG:%d", c.CRS.Target)
	}
	if c.Partition.DensityFactor <= 0 {
		return eris.New("config: partition.density_factor must be positive")
	}
	if c.Partition.Buffer < 0 {
		return eris.New("config: partition.buffer must not be negative")
	}
	if c.Overpass.MaxTries < 1 {
		return eris.New("config: overpass.max_tries must be at least 1")
	}
	switch c.Overpass.OnFailure {
	case "abort", "skip":
	default:
		return eris.Errorf("config: overpass.on_failure must be abort or skip, got %q", c.Overpass.OnFailure)
	}
	if c.Match.K < 1 {
		return eris.New("config: match.k must be at least 1")
	}
	for name, w := range map[string]float64{
		"match.threshold":   c.Match.Threshold,
		"match.name_weight": c.Match.NameWeight,
		"match.tag_weight":  c.Match.TagWeight,
	} {
		if w < 0 || w > 1 {
			return eris.Errorf("config: %s must be within [0, 1], got %v", name, w)
		}
	}
	if sum := c.Match.NameWeight + c.Match.TagWeight; sum > 1+1e-9 {
		return eris.Errorf("config: match.name_weight + match.tag_weight must not exceed 1, got %v", sum)
	}
	switch c.Output.Format {
	case "csv", "xlsx":
	default:
		return eris.Errorf("config: output.format must be csv or xlsx, got %q", c.Output.Format)
	}
	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
