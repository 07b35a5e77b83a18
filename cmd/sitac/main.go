// Command sitac inspects and edits SITAC annotation documents from the
// command line.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/OCAP2/sitac/internal/config"
	"github.com/OCAP2/sitac/internal/engine"
	"github.com/OCAP2/sitac/internal/logging"
	intOtel "github.com/OCAP2/sitac/internal/otel"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "sitac"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger is used by storage, database and metrics code
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File

	SessionStartTime time.Time = time.Now()

	// activeEngine is the engine of a running session, read by log records
	activeEngine atomic.Pointer[engine.Engine]

	closers []io.Closer
)

func loadConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	dir := os.Getenv("SITAC_CONFIG_DIR")
	if dir == "" {
		dir = "."
	}
	if err := config.Load(dir); err != nil {
		config.LoadDefaults()
		if !strings.Contains(err.Error(), "Not Found") {
			fmt.Fprintf(os.Stderr, "Failed to load config, using defaults: %v\n", err)
		}
	}
}

func setupLogging() {
	level := config.GetString("logLevel")
	SlogManager = logging.NewSlogManager()

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logs dir: %v\n", err)
	}
	LogFilePath = logging.LogFilePath(logsDir, config.GetString("documentName"), SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log file %s: %v\n", LogFilePath, err)
		LogFile = nil
	}

	var logWriter io.Writer = io.Discard
	if LogFile != nil {
		logWriter = LogFile
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(context.Background(), intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logWriter,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize OTel provider: %v\n", err)
		}
	}

	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		h, closer, err := logging.NewGraylogHandler(config.GetString("graylog.address"), level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to Graylog: %v\n", err)
		} else {
			extra = append(extra, h)
			closers = append(closers, closer)
		}
	}

	var provider *sdklog.LoggerProvider
	if OTelProvider != nil {
		provider = OTelProvider.LoggerProvider()
	}
	SlogManager.SetContext(logging.EngineContext(
		func() string {
			if e := activeEngine.Load(); e != nil {
				return e.Name()
			}
			return ""
		},
		func() string {
			if e := activeEngine.Load(); e != nil {
				return string(e.Mode())
			}
			return ""
		},
	))
	// command output owns stdout, so logs only go to the file
	SlogManager.Setup(logWriter, level, provider, extra...)
	Logger = SlogManager.Logger()
	ZLogger = logging.NewZerolog(logWriter, level, false).With().Str("app", AppName).Logger()

	Logger.Info("Starting up", "version", CurrentVersion, "buildDate", BuildDate, "log", LogFilePath)
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	for _, c := range closers {
		_ = c.Close()
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `usage: %s <command> [args]

commands:
  info [name]                  summarize a stored document
  list                         list stored documents
  delete <name>                delete a stored document
  export <out|-> [name]        write the feature collection as GeoJSON
  import <in> [name]           replace a document's features from GeoJSON
  prune [name]                 drop invalid features and save
  layers [name]                print the map style and expanded source
  sdf <in> <out.png> [color]   build a signed distance field for an icon
  session [name]               edit a document from stdin
  publish [name]               upload a document to the share server
  version                      print the version
`, filepath.Base(os.Args[0]))
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(args[0])
	if cmd == "version" {
		fmt.Printf("%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
		return
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		usage(os.Stdout)
		return
	}

	loadConfig()
	setupLogging()
	defer shutdown()

	if err := run(context.Background(), cmd, args[1:], os.Stdin, os.Stdout); err != nil {
		Logger.Error("Command failed", "command", cmd, "error", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		shutdown()
		os.Exit(1)
	}
}
