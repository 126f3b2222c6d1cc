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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Validate ValidateConfig `yaml:"validate" mapstructure:"validate"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the SQLite database backing the geocode cache
// and the session checkpoints.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// GeocodeConfig configures the geocoding providers.
type GeocodeConfig struct {
	NominatimBaseURL string  `yaml:"nominatim_base_url" mapstructure:"nominatim_base_url"`
	NominatimRPS     float64 `yaml:"nominatim_rps" mapstructure:"nominatim_rps"`
	ORSBaseURL       string  `yaml:"ors_base_url" mapstructure:"ors_base_url"`
	ORSKey           string  `yaml:"ors_key" mapstructure:"ors_key"`
	Country          string  `yaml:"country" mapstructure:"country"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BatchConfig configures batch partitioning and parallelism.
type BatchConfig struct {
	Size        int `yaml:"size" mapstructure:"size"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ValidateConfig configures the dual-provider reconciliation policy.
type ValidateConfig struct {
	MaxDisagreement float64 `yaml:"max_disagreement" mapstructure:"max_disagreement"`
	MaxDistanceKM   float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
	RoadFactor      float64 `yaml:"road_factor" mapstructure:"road_factor"`
}

// ServerConfig configures the inspection HTTP server.
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
	v.SetEnvPrefix("DISTANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", ".cache/distance.db")
	v.SetDefault("geocode.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.nominatim_rps", 1.0)
	v.SetDefault("geocode.ors_base_url", "https://api.openrouteservice.org")
	v.SetDefault("geocode.country", "France")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("batch.size", 50)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("validate.max_disagreement", 0.10)
	v.SetDefault("validate.max_distance_km", 300)
	v.SetDefault("validate.road_factor", 1.3)
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
