package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/OCAP2/sitac/internal/assets"
	"github.com/OCAP2/sitac/internal/config"
	"github.com/OCAP2/sitac/internal/dispatcher"
	"github.com/OCAP2/sitac/internal/engine"
	"github.com/OCAP2/sitac/internal/geo"
	"github.com/OCAP2/sitac/internal/influx"
	"github.com/OCAP2/sitac/internal/logging"
	"github.com/OCAP2/sitac/internal/mode"
	"github.com/OCAP2/sitac/internal/monitor"
	"github.com/OCAP2/sitac/internal/storage"
	"github.com/OCAP2/sitac/internal/store"
	"github.com/OCAP2/sitac/internal/viewport"
	"github.com/OCAP2/sitac/pkg/core"
)

var errQuit = errors.New("quit")

// actionCheckpoint saves the document in the background while the session
// keeps accepting input.
const actionCheckpoint = "checkpoint"

// newEngine builds an engine over a headless viewport showing doc.
func newEngine(doc core.Document) (*engine.Engine, *viewport.Viewport, error) {
	mc := config.GetMapConfig()
	ec := config.GetEngineConfig()

	center := core.LngLat{Lng: mc.Lng, Lat: mc.Lat}
	zoom := mc.Zoom
	if doc.View.Zoom > 0 && doc.View.Center.Finite() {
		center, zoom = doc.View.Center, doc.View.Zoom
	}
	vp := viewport.New(viewport.Options{
		Center:   center,
		Zoom:     zoom,
		Width:    mc.Width,
		Height:   mc.Height,
		TileSize: mc.TileSize,
	})

	mcfg := mode.DefaultConfig()
	if ec.MinLineLength > 0 {
		mcfg.MinLineLength = ec.MinLineLength
	}
	if ec.CloseRadius > 0 {
		mcfg.CloseRadius = ec.CloseRadius
	}
	if ec.SimplifyTolerance > 0 {
		mcfg.SimplifyTolerance = ec.SimplifyTolerance
	}

	e, err := engine.New(vp, engine.Options{
		Name:     doc.Name,
		Mode:     mcfg,
		Renderer: engine.RendererKind(ec.Renderer),
		TileSize: mc.TileSize,
		Store: store.Options{
			HistoryLimit:  ec.HistoryLimit,
			SnapshotLimit: ec.SnapshotLimit,
		},
		Loader:       assets.NewLoader(assets.LoaderOptions{SDFRadius: ec.SDFRadius, Logger: Logger}),
		Logger:       Logger,
		ActionLogger: logging.NewDispatcherLogger(ZLogger),
	})
	if err != nil {
		return nil, nil, err
	}
	e.Restore(doc)
	return e, vp, nil
}

// startMonitor samples the engine into the logs directory and, when enabled,
// into influx. The returned func stops it.
func startMonitor(ctx context.Context, e *engine.Engine) func() {
	logsDir := config.GetString("logsDir")
	deps := monitor.Dependencies{
		Document:   e.Name,
		Stats:      e.Stats,
		StatusPath: filepath.Join(logsDir, "status.json"),
		Log:        ZLogger,
	}

	var manager *influx.Manager
	icfg := config.GetInfluxConfig()
	if icfg.Enabled {
		manager = influx.NewManager(icfg, filepath.Join(logsDir, "influx_backup.log.gz"), ZLogger)
		if err := manager.Connect(ctx); err != nil {
			Logger.Warn("InfluxDB unavailable, metrics not recorded", "error", err)
			manager = nil
		} else {
			deps.Writer = manager
			deps.Interval = icfg.Interval
		}
	}

	svc := monitor.NewService(deps)
	svc.Start()
	return func() {
		svc.Stop()
		if manager != nil {
			if err := manager.Close(); err != nil {
				Logger.Warn("Failed to close InfluxDB manager", "error", err)
			}
		}
	}
}

func sessionCommand(ctx context.Context, backend storage.Backend, name string, in io.Reader, out io.Writer) error {
	doc, err := loadOrEmpty(ctx, backend, name)
	if err != nil {
		return err
	}
	e, vp, err := newEngine(doc)
	if err != nil {
		return err
	}
	defer e.Close()
	activeEngine.Store(e)
	defer activeEngine.Store(nil)

	var catalog *assets.Catalog
	if path := config.GetEngineConfig().Catalog; path != "" {
		if catalog, err = assets.LoadCatalog(path); err != nil {
			return err
		}
	}

	stop := startMonitor(ctx, e)
	defer stop()

	s := &session{e: e, vp: vp, backend: backend, catalog: catalog, out: out}
	s.registerActions(ctx)
	return s.run(ctx, in)
}

// session is a line-oriented host for one engine.
type session struct {
	e       *engine.Engine
	vp      *viewport.Viewport
	backend storage.Backend
	catalog *assets.Catalog
	out     io.Writer

	dirty atomic.Bool
}

// registerActions adds the session's own actions to the engine dispatcher.
func (s *session) registerActions(ctx context.Context) {
	s.e.Actions().Register(actionCheckpoint, func(dispatcher.Action) (any, error) {
		doc := s.e.Document()
		if err := s.backend.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
		Logger.Info("Checkpoint saved", "features", doc.Features.Len())
		return nil, nil
	}, dispatcher.Buffered(1), dispatcher.Blocking(), dispatcher.Logged())
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	unsubscribe := s.e.Store().Subscribe(func(c store.Change) {
		if c.Kind != store.ChangeSelect {
			s.dirty.Store(true)
		}
	})
	defer unsubscribe()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := s.exec(ctx, strings.Fields(line))
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		s.e.Pump()
	}
	s.e.Actions().Wait()
	if err := scanner.Err(); err != nil {
		return err
	}
	if s.dirty.Load() {
		return s.save(ctx)
	}
	return nil
}

func (s *session) save(ctx context.Context) error {
	s.e.Actions().Wait()
	s.e.Wait()
	doc := s.e.Document()
	if err := s.backend.Save(ctx, doc); err != nil {
		return err
	}
	s.dirty.Store(false)
	Logger.Info("Document saved", "features", doc.Features.Len())
	return nil
}

func (s *session) print(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s\n", data)
}

func point(args []string) (core.Point, error) {
	if len(args) < 2 {
		return core.Point{}, fmt.Errorf("%w: expected x y", errUsage)
	}
	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return core.Point{}, err
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return core.Point{}, err
	}
	return core.Point{X: x, Y: y}, nil
}

func (s *session) asset(id string) (core.Asset, error) {
	if s.catalog == nil {
		return core.Asset{}, errors.New("no symbol catalog configured")
	}
	return s.catalog.Get(id)
}

// exec runs one session line: an input event, a host command, or an action.
func (s *session) exec(ctx context.Context, fields []string) error {
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	pointer := map[string]func(core.Point) mode.Event{
		"down":     func(p core.Point) mode.Event { return mode.PointerDown{At: p} },
		"move":     func(p core.Point) mode.Event { return mode.PointerMove{At: p} },
		"up":       func(p core.Point) mode.Event { return mode.PointerUp{At: p} },
		"click":    func(p core.Point) mode.Event { return mode.Click{At: p} },
		"dblclick": func(p core.Point) mode.Event { return mode.DoubleClick{At: p} },
	}
	if mk, ok := pointer[cmd]; ok {
		p, err := point(args)
		if err != nil {
			return err
		}
		s.e.Handle(mk(p))
		return nil
	}

	switch cmd {
	case "quit", "exit":
		return errQuit
	case "key":
		if len(args) < 1 {
			return fmt.Errorf("%w: key <name>", errUsage)
		}
		s.e.Handle(mode.KeyDown{Key: args[0]})
	case "text":
		s.e.Handle(mode.TextChanged{Content: strings.Join(args, " ")})
	case "blur":
		s.e.Handle(mode.TextBlur{})
	case "symbol":
		if len(args) < 1 {
			return fmt.Errorf("%w: symbol <asset>", errUsage)
		}
		a, err := s.asset(args[0])
		if err != nil {
			return err
		}
		s.e.Handle(mode.SetActiveSymbol{Asset: a})
	case "drop":
		if len(args) < 3 {
			return fmt.Errorf("%w: drop <asset> x y", errUsage)
		}
		a, err := s.asset(args[0])
		if err != nil {
			return err
		}
		p, err := point(args[1:])
		if err != nil {
			return err
		}
		s.e.Handle(mode.Drop{At: p, Asset: a})
	case "pan":
		d, err := point(args)
		if err != nil {
			return err
		}
		s.e.View(func(engine.Map) { s.vp.Pan(d.X, d.Y) })
	case "zoom":
		if len(args) < 1 {
			return fmt.Errorf("%w: zoom <delta> [x y]", errUsage)
		}
		delta, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		w, h := s.vp.Size()
		at := core.Point{X: w / 2, Y: h / 2}
		if len(args) >= 3 {
			if at, err = point(args[1:]); err != nil {
				return err
			}
		}
		s.e.View(func(engine.Map) { s.vp.ZoomAround(at, delta) })
	case "goto":
		if len(args) < 1 {
			return fmt.Errorf("%w: goto <lng,lat> [zoom]", errUsage)
		}
		center, err := geo.ParseLngLat(args[0])
		if err != nil {
			return err
		}
		zoom := s.vp.Zoom()
		if len(args) > 1 {
			if zoom, err = strconv.ParseFloat(args[1], 64); err != nil {
				return err
			}
		}
		s.e.View(func(m engine.Map) { m.JumpTo(center, zoom) })
		c := s.vp.Center()
		fmt.Fprintf(s.out, "view %.6f,%.6f z%.2f\n", c.Lng, c.Lat, s.vp.Zoom())
	case "wait":
		fmt.Fprintf(s.out, "placed %d\n", s.e.Wait())
	case "save":
		if err := s.save(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "saved")
	case "stats":
		s.print(s.e.Stats())
	case "props":
		p, ok := s.e.SelectedProperties()
		if !ok {
			return engine.ErrNoSelection
		}
		s.print(p)
	case "draft":
		d, ok := s.e.Draft()
		if !ok {
			fmt.Fprintln(s.out, "no draft")
			return nil
		}
		s.print(d)
	default:
		result, err := s.e.Dispatch(cmd, args...)
		if err != nil {
			return err
		}
		s.print(result)
	}
	return nil
}
