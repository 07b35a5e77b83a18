// Package config loads sitac.cfg.json through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "sitac.cfg.json"

// FileConfig holds settings for the JSON document file backend
type FileConfig struct {
	Path     string `json:"path" mapstructure:"path"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// SQLiteConfig holds settings for the SQLite backend. An empty Path keeps the
// database in memory and dumps it to DumpPath every DumpInterval.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds settings for the share backend
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the document backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	File      FileConfig      `json:"file" mapstructure:"file"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// EngineConfig holds drawing and history settings
type EngineConfig struct {
	Renderer          string
	HistoryLimit      int
	SnapshotLimit     int
	MinLineLength     float64
	CloseRadius       float64
	SimplifyTolerance float64
	SDFRadius         float64
	Catalog           string
}

// MapConfig describes the initial camera
type MapConfig struct {
	Lng, Lat      float64
	Zoom          float64
	TileSize      float64
	Width, Height float64
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// ShareConfig addresses the share server used by publish and, when no
// websocket url is set, by the websocket backend
type ShareConfig struct {
	URL    string
	APIKey string
}

// InfluxConfig holds the metrics sink settings
type InfluxConfig struct {
	Enabled  bool
	URL      string
	Token    string
	Org      string
	Bucket   string
	Interval time.Duration
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./sitaclogs")
	viper.SetDefault("documentName", "sitac")

	viper.SetDefault("map.center.lng", 2.35)
	viper.SetDefault("map.center.lat", 48.85)
	viper.SetDefault("map.zoom", 12)
	viper.SetDefault("map.tileSize", 512)
	viper.SetDefault("map.width", 1280)
	viper.SetDefault("map.height", 800)

	viper.SetDefault("engine.renderer", "object")
	viper.SetDefault("engine.historyLimit", 50)
	viper.SetDefault("engine.snapshotLimit", 4)
	viper.SetDefault("engine.minLineLength", 10)
	viper.SetDefault("engine.closeRadius", 10)
	viper.SetDefault("engine.simplifyTolerance", 5e-5)
	viper.SetDefault("engine.sdfRadius", 12)
	viper.SetDefault("engine.catalog", "")

	viper.SetDefault("storage.type", "file")
	viper.SetDefault("storage.file.path", "./sitac.geojson.gz")
	viper.SetDefault("storage.file.compress", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./sitac.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "sitac")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "sitac-metrics")
	viper.SetDefault("influx.bucket", "engine")
	viper.SetDefault("influx.interval", "10s")

	viper.SetDefault("share.url", "")
	viper.SetDefault("share.apiKey", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "sitac")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load sets defaults and reads sitac.cfg.json from configDir. SITAC_*
// environment variables override file values (SITAC_STORAGE_TYPE for
// storage.type).
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("sitac")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// LoadDefaults sets defaults without reading a file, for tools that run
// without a config directory.
func LoadDefaults() {
	setDefaults()
	viper.SetEnvPrefix("sitac")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		File: FileConfig{
			Path:     viper.GetString("storage.file.path"),
			Compress: viper.GetBool("storage.file.compress"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetEngineConfig returns the engine section.
func GetEngineConfig() EngineConfig {
	return EngineConfig{
		Renderer:          viper.GetString("engine.renderer"),
		HistoryLimit:      viper.GetInt("engine.historyLimit"),
		SnapshotLimit:     viper.GetInt("engine.snapshotLimit"),
		MinLineLength:     viper.GetFloat64("engine.minLineLength"),
		CloseRadius:       viper.GetFloat64("engine.closeRadius"),
		SimplifyTolerance: viper.GetFloat64("engine.simplifyTolerance"),
		SDFRadius:         viper.GetFloat64("engine.sdfRadius"),
		Catalog:           viper.GetString("engine.catalog"),
	}
}

// GetMapConfig returns the map section.
func GetMapConfig() MapConfig {
	return MapConfig{
		Lng:      viper.GetFloat64("map.center.lng"),
		Lat:      viper.GetFloat64("map.center.lat"),
		Zoom:     viper.GetFloat64("map.zoom"),
		TileSize: viper.GetFloat64("map.tileSize"),
		Width:    viper.GetFloat64("map.width"),
		Height:   viper.GetFloat64("map.height"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetShareConfig returns the share section.
func GetShareConfig() ShareConfig {
	return ShareConfig{
		URL:    viper.GetString("share.url"),
		APIKey: viper.GetString("share.apiKey"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
		Interval: viper.GetDuration("influx.interval"),
	}
}

// PostgresDSN builds the connection string from the db section.
func PostgresDSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		viper.GetString("db.host"),
		viper.GetString("db.port"),
		viper.GetString("db.username"),
		viper.GetString("db.password"),
		viper.GetString("db.database"),
	)
}
