package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"documentName": "Op Alpha",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, "Op Alpha", GetString("documentName"))
	assert.Equal(t, "host=10.0.0.1 port=5433 user=postgres password=postgres dbname=sitac sslmode=disable", PostgresDSN())
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", GetString("logLevel"))
	assert.Equal(t, "./sitaclogs", GetString("logsDir"))
	assert.Equal(t, false, GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", GetString("graylog.address"))

	e := GetEngineConfig()
	assert.Equal(t, EngineConfig{
		Renderer:          "object",
		HistoryLimit:      50,
		SnapshotLimit:     4,
		MinLineLength:     10,
		CloseRadius:       10,
		SimplifyTolerance: 5e-5,
		SDFRadius:         12,
	}, e)

	m := GetMapConfig()
	assert.Equal(t, MapConfig{Lng: 2.35, Lat: 48.85, Zoom: 12, TileSize: 512, Width: 1280, Height: 800}, m)

	in := GetInfluxConfig()
	assert.False(t, in.Enabled)
	assert.Equal(t, "http://localhost:8086", in.URL)
	assert.Equal(t, 10*time.Second, in.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("SITAC_STORAGE_TYPE", "sqlite")
	t.Setenv("SITAC_ENGINE_RENDERER", "declarative")

	require.NoError(t, Load(writeConfig(t, `{"storage": {"type": "file"}}`)))

	assert.Equal(t, "sqlite", GetStorageConfig().Type)
	assert.Equal(t, "declarative", GetEngineConfig().Renderer)
}

func TestLoadDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	LoadDefaults()
	assert.Equal(t, 4, GetInt("engine.snapshotLimit"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "file", cfg.Type)
	assert.Equal(t, "./sitac.geojson.gz", cfg.File.Path)
	assert.True(t, cfg.File.Compress)
	assert.Equal(t, "", cfg.SQLite.Path)
	assert.Equal(t, "./sitac.db", cfg.SQLite.DumpPath)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := writeConfig(t, `{
		"storage": {
			"type": "websocket",
			"file": { "path": "/tmp/doc.geojson", "compress": false },
			"sqlite": { "dumpInterval": "10m" },
			"websocket": { "url": "ws://viewer:5000/share", "secret": "s3cret" }
		}
	}`)
	require.NoError(t, Load(dir))

	sc := GetStorageConfig()
	assert.Equal(t, "websocket", sc.Type)
	assert.Equal(t, "/tmp/doc.geojson", sc.File.Path)
	assert.False(t, sc.File.Compress)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "ws://viewer:5000/share", sc.WebSocket.URL)
	assert.Equal(t, "s3cret", sc.WebSocket.Secret)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "sitac", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4318",
			"insecure": false
		}
	}`)
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4318", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetShareAndInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := writeConfig(t, `{
		"share": {"url": "https://share.example.com", "apiKey": "k"},
		"influx": {"enabled": true, "host": "influx", "port": "9999", "interval": "1m"}
	}`)
	require.NoError(t, Load(dir))

	sc := GetShareConfig()
	assert.Equal(t, "https://share.example.com", sc.URL)
	assert.Equal(t, "k", sc.APIKey)

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "http://influx:9999", ic.URL)
	assert.Equal(t, "sitac-metrics", ic.Org)
	assert.Equal(t, "engine", ic.Bucket)
	assert.Equal(t, time.Minute, ic.Interval)
}
