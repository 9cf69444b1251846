package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the global application configuration
var Config AppConfig

// DefaultPaths are tried in order when no path is given.
var DefaultPaths = []string{"config.yml", "./config/config.yml"}

// LoadAppConfig loads the configuration into Config. path may be empty.
func LoadAppConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

// Load reads, overrides, validates and completes the configuration. The file is path,
// else $TRANSITMAP_CONFIG, else the first of DefaultPaths that exists. An explicit file
// must exist; when no default file exists the configuration comes from defaults and the
// environment alone.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		path = os.Getenv("TRANSITMAP_CONFIG")
	}
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		data = b
	} else {
		for _, p := range DefaultPaths {
			b, err := os.ReadFile(p)
			if err == nil {
				data, path = b, p
				break
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("read config %s: %w", p, err)
			}
		}
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// applyEnv overrides secrets and connection strings from the environment.
func applyEnv(cfg *AppConfig) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Geocoding.Token, "MAPBOX_TOKEN")
	set(&cfg.Transit.OBA.APIKey, "OBA_API_KEY")
	set(&cfg.Cache.RedisURL, "REDIS_URL")
	set(&cfg.Store.DSN, "DATABASE_URL")
	if cfg.Store.Driver == "" && strings.HasPrefix(cfg.Store.DSN, "postgres") {
		cfg.Store.Driver = "postgres"
	}
	set(&cfg.Logging.Level, "LOG_LEVEL")
	set(&cfg.Logging.Format, "LOG_FORMAT")
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 16181
	}
	if cfg.Transit.TimeoutMS == 0 {
		cfg.Transit.TimeoutMS = 10000
	}
	if cfg.Transit.VehiclePollMS == 0 {
		cfg.Transit.VehiclePollMS = 30000
	}
	if cfg.Geocoding.TimeoutMS == 0 {
		cfg.Geocoding.TimeoutMS = 5000
	}
	if cfg.Geocoding.Language == "" {
		cfg.Geocoding.Language = "en"
	}
	if cfg.OSM.TimeoutMS == 0 {
		cfg.OSM.TimeoutMS = 15000
	}
	if cfg.OSM.NearbyRadiusM == 0 {
		cfg.OSM.NearbyRadiusM = 250
	}
	if cfg.OSM.MaxNearby == 0 {
		cfg.OSM.MaxNearby = 10
	}
	if cfg.Photos.TimeoutMS == 0 {
		cfg.Photos.TimeoutMS = 10000
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 24 * 3600
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = "transitmap.db"
	}
	if cfg.Camera.DebounceMS == 0 {
		cfg.Camera.DebounceMS = 100
	}
	if cfg.Camera.FlyTimeoutMS == 0 {
		cfg.Camera.FlyTimeoutMS = 5000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// SelectFeed chooses a feed by name; fallback to first; ok is false when no feed is
// configured.
func SelectFeed(cfg TransitConfig, name string) (Feed, bool) {
	if name != "" {
		for _, f := range cfg.Feeds {
			if f.Name == name {
				return f, true
			}
		}
	}
	if len(cfg.Feeds) > 0 {
		return cfg.Feeds[0], true
	}
	return Feed{}, false
}

// Millis converts a millisecond setting to a duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
