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
	Service   ServiceConfig   `yaml:"service" mapstructure:"service"`
	Geography GeographyConfig `yaml:"geography" mapstructure:"geography"`
	Nation    NationConfig    `yaml:"nation" mapstructure:"nation"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Spatial   SpatialConfig   `yaml:"spatial" mapstructure:"spatial"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServiceConfig configures the remote map service client.
type ServiceConfig struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PageSize       int    `yaml:"page_size" mapstructure:"page_size"`
	ChunkSize      int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	PageRetries    int    `yaml:"page_retries" mapstructure:"page_retries"`
	RatePerSecond  int    `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	OutSR          string `yaml:"out_sr" mapstructure:"out_sr"`
	GeomPrecision  int    `yaml:"geometry_precision" mapstructure:"geometry_precision"`
	RetrySleepSecs int    `yaml:"retry_sleep_secs" mapstructure:"retry_sleep_secs"`
}

// GeographyConfig configures the statistics-API geography definitions.
type GeographyConfig struct {
	DefinitionsURL string `yaml:"definitions_url" mapstructure:"definitions_url"`
}

// NationConfig configures the national cartographic boundary source.
type NationConfig struct {
	ShapefileURL string `yaml:"shapefile_url" mapstructure:"shapefile_url"`
}

// MatchConfig configures fuzzy name resolution.
type MatchConfig struct {
	ScoreCutoff float64 `yaml:"score_cutoff" mapstructure:"score_cutoff"`
	Shortlist   int     `yaml:"shortlist" mapstructure:"shortlist"`
}

// SpatialConfig configures spatial containment filtering.
type SpatialConfig struct {
	AreaThreshold float64 `yaml:"area_threshold" mapstructure:"area_threshold"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("CENSUSGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("service.base_url", "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb/tigerWMS_Current/MapServer")
	v.SetDefault("service.user_agent", "censusgeo/1.0")
	v.SetDefault("service.timeout_secs", 30)
	v.SetDefault("service.page_size", 100)
	v.SetDefault("service.chunk_size", 100)
	v.SetDefault("service.page_retries", 2)
	v.SetDefault("service.rate_per_second", 20)
	v.SetDefault("service.out_sr", "4236")
	v.SetDefault("service.geometry_precision", 6)
	v.SetDefault("service.retry_sleep_secs", 2)
	v.SetDefault("geography.definitions_url", "https://api.census.gov/data/2022/acs/acs5/geography.json")
	v.SetDefault("nation.shapefile_url", "https://www2.census.gov/geo/tiger/GENZ2020/shp/cb_2020_us_nation_5m.zip")
	v.SetDefault("match.score_cutoff", 0.8)
	v.SetDefault("match.shortlist", 20)
	v.SetDefault("spatial.area_threshold", 0.001)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
