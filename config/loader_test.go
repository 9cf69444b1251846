package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "")
	path := writeConfig(t, `
server:
  port: 8080
transit:
  backend: gtfs
  feed: metro
  feeds:
    - name: metro
      gtfs:
        staticURL: https://example.com/gtfs.zip
      gtfsrt:
        vehiclePositionsURL: https://example.com/vp.pb
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30000, cfg.Transit.VehiclePollMS)
	assert.Equal(t, 100, cfg.Camera.DebounceMS)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "transitmap.db", cfg.Store.DSN)
	assert.Equal(t, "info", cfg.Logging.Level)

	feed, ok := SelectFeed(cfg.Transit, "metro")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/vp.pb", feed.GTFSRT.VehiclePositionsURL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", "pk.secret")
	t.Setenv("OBA_API_KEY", "oba-key")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/transitmap")
	path := writeConfig(t, "transit:\n  backend: oba\n  oba:\n    baseURL: https://api.pugetsound.onebusaway.org\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pk.secret", cfg.Geocoding.Token)
	assert.Equal(t, "oba-key", cfg.Transit.OBA.APIKey)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://u:p@localhost/transitmap", cfg.Store.DSN)
}

func TestLoadFromEnvironmentPath(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("TRANSITMAP_CONFIG", path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "transit:\n  backend: soap\n"},
		{"bad feed url", "transit:\n  feeds:\n    - name: x\n      gtfs:\n        staticURL: not a url\n"},
		{"unnamed feed", "transit:\n  feeds:\n    - gtfs: {}\n"},
		{"bad store driver", "store:\n  driver: mongo\n"},
		{"bad yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadAppConfigSetsGlobal(t *testing.T) {
	require.NoError(t, LoadAppConfig(writeConfig(t, "server:\n  port: 7000\n")))
	assert.Equal(t, 7000, Config.Server.Port)
}

func TestSelectFeedFallsBack(t *testing.T) {
	tc := TransitConfig{Feeds: []Feed{{Name: "a"}, {Name: "b"}}}
	f, ok := SelectFeed(tc, "b")
	assert.True(t, ok)
	assert.Equal(t, "b", f.Name)
	f, _ = SelectFeed(tc, "zzz")
	assert.Equal(t, "a", f.Name)
	_, ok = SelectFeed(TransitConfig{}, "a")
	assert.False(t, ok)
	assert.Equal(t, 1500*time.Millisecond, Millis(1500))
}
