// Package engine wires the drawing-mode machine, the feature store and a
// rendering backend into one annotation engine. Every call is serialized;
// asynchronous symbol loads complete through Pump.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/sitac/internal/assets"
	"github.com/OCAP2/sitac/internal/canvas"
	"github.com/OCAP2/sitac/internal/dispatcher"
	"github.com/OCAP2/sitac/internal/layers"
	"github.com/OCAP2/sitac/internal/mode"
	"github.com/OCAP2/sitac/internal/queue"
	"github.com/OCAP2/sitac/internal/store"
	"github.com/OCAP2/sitac/pkg/core"
)

// Map is the map handle the engine drives.
type Map interface {
	canvas.Map
	JumpTo(center core.LngLat, zoom float64)
}

// Options configures an Engine.
type Options struct {
	Name     string
	Mode     mode.Config
	Renderer RendererKind
	TileSize float64
	Store    store.Options
	// Loader loads symbol icons; without one symbols are placed unloaded
	Loader *assets.Loader
	Logger *slog.Logger
	// ActionLogger receives action traces; defaults to Logger
	ActionLogger dispatcher.Logger
}

// placement is a symbol load that finished and waits for Pump.
type placement struct {
	ctx    context.Context
	effect mode.PlaceSymbol
	icon   *assets.Icon
	err    error
}

// Engine is the annotation engine for one document.
type Engine struct {
	mu sync.Mutex

	name     atomic.Value
	store    *store.Store
	m        Map
	machine  *mode.Machine
	renderer Renderer
	loader   *assets.Loader
	actions  *dispatcher.Dispatcher
	logger   *slog.Logger

	// ctx is bound to the lifetime of the current mode
	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup
	placed *queue.Queue[placement]

	draft    *mode.Draft
	textEdit *mode.BeginTextEdit
}

// New creates an engine over the map m.
func New(m Map, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Mode == (mode.Config{}) {
		opts.Mode = mode.DefaultConfig()
	}
	if opts.Renderer == "" {
		opts.Renderer = ObjectRendering
	}
	if opts.Store.Logger == nil {
		opts.Store.Logger = opts.Logger
	}

	e := &Engine{
		store:  store.New(opts.Store),
		m:      m,
		loader: opts.Loader,
		logger: opts.Logger,
		placed: queue.New[placement](),
	}
	e.name.Store(opts.Name)
	e.ctx, e.cancel = context.WithCancel(context.Background())

	switch opts.Renderer {
	case ObjectRendering:
		e.renderer = ObjectRenderer{canvas.New(e.store, m, opts.Loader, opts.Logger)}
	case DeclarativeRendering:
		lr := layers.New(layers.Options{TileSize: opts.TileSize, Logger: opts.Logger})
		e.renderer = NewDeclarativeRenderer(lr, e.store, m)
	default:
		return nil, fmt.Errorf("unknown renderer: %s", opts.Renderer)
	}
	e.machine = mode.NewMachine(env{e}, opts.Mode, opts.Logger)

	if opts.ActionLogger == nil {
		opts.ActionLogger = opts.Logger
	}
	actions, err := dispatcher.New(opts.ActionLogger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	e.actions = actions
	e.registerActions()

	return e, nil
}

// Close cancels pending loads and detaches the renderer.
func (e *Engine) Close() {
	e.mu.Lock()
	e.cancel()
	e.renderer.Close()
	e.mu.Unlock()
	e.loads.Wait()
}

// Name returns the document name. It does not take the engine lock, so log
// handlers may call it.
func (e *Engine) Name() string {
	return e.name.Load().(string)
}

// Store returns the document store.
func (e *Engine) Store() *store.Store { return e.store }

// Renderer returns the active rendering backend.
func (e *Engine) Renderer() Renderer { return e.renderer }

// Actions returns the action dispatcher. Hosts may register extra actions.
func (e *Engine) Actions() *dispatcher.Dispatcher { return e.actions }

// Mode returns the active mode.
func (e *Engine) Mode() mode.Mode { return e.machine.Mode() }

// Draft returns the in-progress drawing, if any.
func (e *Engine) Draft() (mode.Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return mode.Draft{}, false
	}
	return *e.draft, true
}

// TextEdit returns where the host should show a text editor, if anywhere.
func (e *Engine) TextEdit() (mode.BeginTextEdit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.textEdit == nil {
		return mode.BeginTextEdit{}, false
	}
	return *e.textEdit, true
}

// View runs fn with the map under the engine lock. Hosts use it to pan or
// zoom so that view-change handlers never interleave with other calls.
func (e *Engine) View(fn func(Map)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.m)
}

// Handle feeds one input event to the mode machine and applies the effects.
func (e *Engine) Handle(ev mode.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, eff := range e.machine.Handle(ev) {
		e.apply(eff)
	}
}

func (e *Engine) apply(eff mode.Effect) {
	switch v := eff.(type) {
	case mode.SetNavigation:
		e.m.SetInteractive(v.Enabled)
	case mode.ShowDraft:
		d := v.Draft
		e.draft = &d
		e.renderer.ShowDraft(d)
	case mode.ClearDraft:
		e.draft = nil
		e.renderer.ClearDraft()
	case mode.Commit:
		e.textEdit = nil
		if e.renderer.Commit(v.Feature) {
			e.store.Select(v.Feature.ID)
		} else {
			e.logger.Warn("Failed to commit feature", "id", v.Feature.ID, "type", v.Feature.Type())
		}
	case mode.SelectFeature:
		e.store.Select(v.ID)
	case mode.Transform:
		e.renderer.Apply(v)
	case mode.EraseAt:
		if hit, ok := e.renderer.Pick(v.At); ok {
			e.renderer.Remove(hit.ID)
		}
	case mode.DeleteSelected:
		if id := e.store.Selected(); id != "" {
			e.renderer.Remove(id)
		}
	case mode.BeginTextEdit:
		te := v
		e.textEdit = &te
	case mode.EditText:
		e.renderer.SetText(v.ID, v.Content, v.Final)
		if v.Final {
			e.textEdit = nil
		}
	case mode.PlaceSymbol:
		e.place(v)
	case mode.CancelTasks:
		e.cancel()
		e.ctx, e.cancel = context.WithCancel(context.Background())
		e.textEdit = nil
	default:
		e.logger.Warn("Unhandled effect", "effect", fmt.Sprintf("%T", eff))
	}
}

// place starts loading the asset of a symbol placement. The symbol becomes
// live in Pump once its icon is ready, so rapid placements may commit out of
// click order.
func (e *Engine) place(p mode.PlaceSymbol) {
	ctx := e.ctx
	if e.loader == nil {
		e.placed.Push(placement{ctx: ctx, effect: p})
		return
	}
	e.loads.Add(1)
	go func() {
		defer e.loads.Done()
		icon, err := e.loader.Load(ctx, p.Asset)
		if ctx.Err() != nil {
			return
		}
		e.placed.Push(placement{ctx: ctx, effect: p, icon: icon, err: err})
	}()
}

// Pump commits the symbol placements whose loads have completed and returns
// how many were committed.
func (e *Engine) Pump() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, p := range e.placed.Drain() {
		if p.ctx.Err() != nil {
			continue
		}
		if p.err != nil {
			e.logger.Warn("Failed to load symbol", "asset", p.effect.Asset.ID, "error", p.err)
			continue
		}
		a := p.effect.Asset
		colorizable := a.Colorizable
		if p.icon != nil {
			colorizable = p.icon.Colorizable()
		}
		style := p.effect.Style
		if !colorizable {
			// the icon keeps its own colors
			style.Color = ""
		}
		f := core.Feature{
			ID:     core.NewID(),
			Anchor: p.effect.Anchor,
			Style:  style,
			Shape:  &core.Symbol{IconName: a.ID, URL: a.URL, Colorizable: colorizable, ScaleX: 1, ScaleY: 1},
		}
		if !e.renderer.Commit(f) {
			e.logger.Warn("Failed to place symbol", "asset", a.ID)
			continue
		}
		e.store.Select(f.ID)
		n++
	}
	return n
}

// Wait blocks until in-flight symbol loads finish, then pumps them.
func (e *Engine) Wait() int {
	e.loads.Wait()
	return e.Pump()
}

// Pending returns the number of completed loads waiting for Pump.
func (e *Engine) Pending() int {
	return e.placed.Len()
}

// Ready signals that completed loads are waiting for Pump.
func (e *Engine) Ready() <-chan struct{} {
	return e.placed.Ready()
}

// Collection returns the current feature collection.
func (e *Engine) Collection() core.FeatureCollection {
	return e.store.Collection()
}

// Document snapshots the persisted state.
func (e *Engine) Document() core.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return core.Document{
		Name:      e.Name(),
		Features:  e.store.Collection(),
		Snapshots: e.store.Snapshots(),
		View:      core.View{Center: e.m.Center(), Zoom: e.m.Zoom()},
		SavedAt:   time.Now().UTC(),
	}
}

// Restore replaces the document, resetting history, and moves the map to the
// saved view.
func (e *Engine) Restore(doc core.Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if doc.Name != "" {
		e.name.Store(doc.Name)
	}
	e.store.SetSnapshots(doc.Snapshots)
	if doc.View.Zoom > 0 && doc.View.Center.Finite() {
		e.m.JumpTo(doc.View.Center, doc.View.Zoom)
	}
	e.store.SetCollection(doc.Features, false)
}

// Stats is a point-in-time summary of the engine.
type Stats struct {
	Mode      mode.Mode
	Renderer  RendererKind
	Features  int
	History   int
	Redo      int
	Snapshots int
	Pending   int
	Zoom      float64
}

// Stats samples the engine.
func (e *Engine) Stats() Stats {
	return Stats{
		Mode:      e.machine.Mode(),
		Renderer:  e.renderer.Kind(),
		Features:  e.store.Collection().Len(),
		History:   e.store.HistoryLen(),
		Redo:      e.store.RedoLen(),
		Snapshots: len(e.store.Snapshots()),
		Pending:   e.placed.Len(),
		Zoom:      e.m.Zoom(),
	}
}

// env answers the machine's read-only questions. It is only called while the
// engine lock is held.
type env struct{ e *Engine }

func (v env) Project(ll core.LngLat) core.Point   { return v.e.m.Project(ll) }
func (v env) Unproject(p core.Point) core.LngLat { return v.e.m.Unproject(p) }
func (v env) Zoom() float64                      { return v.e.m.Zoom() }
func (v env) Pick(p core.Point) (mode.Hit, bool) { return v.e.renderer.Pick(p) }
