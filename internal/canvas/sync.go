package canvas

import (
	"context"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/OCAP2/sitac/internal/assets"
	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/internal/mode"
	"github.com/OCAP2/sitac/internal/store"
	"github.com/OCAP2/sitac/internal/viewport"
	"github.com/OCAP2/sitac/pkg/core"
	"go.opentelemetry.io/otel/metric"
)

// iconLoadTimeout bounds icon loads done while rehydrating
const iconLoadTimeout = 10 * time.Second

// Map is the map handle the surface is layered over
type Map interface {
	Project(core.LngLat) core.Point
	Unproject(core.Point) core.LngLat
	Zoom() float64
	Center() core.LngLat
	OnViewChange(func(viewport.ChangeKind)) func()
	SetInteractive(bool)
}

// Synchronizer owns the live objects. It is not safe for concurrent use;
// callers serialize access (the engine holds its lock around every call).
type Synchronizer struct {
	store  *store.Store
	m      Map
	loader *assets.Loader
	logger *slog.Logger

	objects     []*Object
	lastWritten core.FeatureCollection

	// saving suppresses store->objects rebuilds caused by our own write;
	// rebuilding suppresses objects->store writes while objects are recreated
	saving     bool
	rebuilding bool

	resyncDuration metric.Float64Histogram
	unsubscribe    []func()
}

// New creates a Synchronizer, rehydrates it from the store and subscribes to
// store changes and map view changes. loader may be nil.
func New(st *store.Store, m Map, loader *assets.Loader, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synchronizer{store: st, m: m, loader: loader, logger: logger}

	hist, err := meter().Float64Histogram(
		"canvas.resync.duration",
		metric.WithDescription("Time spent re-projecting live objects after a view change"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		logger.Warn("Failed to create resync histogram", "error", err)
	}
	s.resyncDuration = hist

	s.Rebuild()
	s.unsubscribe = append(s.unsubscribe,
		st.Subscribe(s.onStoreChange),
		m.OnViewChange(func(viewport.ChangeKind) { s.Resync() }),
	)
	return s
}

// Close detaches the synchronizer from the store and the map.
func (s *Synchronizer) Close() {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.unsubscribe = nil
}

// Objects returns the live objects in z-order.
func (s *Synchronizer) Objects() []*Object {
	return append([]*Object(nil), s.objects...)
}

// Object returns the live object with the given id.
func (s *Synchronizer) Object(id string) (*Object, bool) {
	for _, o := range s.objects {
		if o.ID() == id {
			return o, true
		}
	}
	return nil, false
}

// Resync re-projects every object onto the current view. Objects whose
// projection is not finite keep their previous position until the next call.
func (s *Synchronizer) Resync() {
	start := time.Now()
	zoom := s.m.Zoom()
	for _, o := range s.objects {
		s.place(o, zoom)
	}
	if s.resyncDuration != nil {
		s.resyncDuration.Record(context.Background(), float64(time.Since(start).Microseconds())/1000)
	}
}

func (s *Synchronizer) place(o *Object, zoom float64) bool {
	p := s.m.Project(o.GeoPosition)
	if !p.Finite() {
		s.logger.Debug("Skipped resync of object", "id", o.ID())
		return false
	}
	zs := math.Exp2(zoom-o.BaseZoom) * o.Stretch
	o.ScaleX = o.BaseScaleX * zs
	o.ScaleY = o.BaseScaleY * zs
	o.Center = p.Add(o.Offset)
	return true
}

// Collection serializes the live objects.
func (s *Synchronizer) Collection() core.FeatureCollection {
	fc := core.FeatureCollection{Features: make([]core.Feature, 0, len(s.objects))}
	for _, o := range s.objects {
		fc.Features = append(fc.Features, o.feature())
	}
	return fc
}

// Save writes the live objects to the store when they differ from what was
// last written. Each write is one undoable history entry.
func (s *Synchronizer) Save() bool {
	if s.rebuilding || s.saving {
		return false
	}
	fc := s.Collection()
	if codec.Equal(fc, s.lastWritten) {
		return false
	}

	s.saving = true
	s.store.SetCollection(fc, true)
	s.saving = false
	s.lastWritten = fc
	return true
}

func (s *Synchronizer) onStoreChange(c store.Change) {
	if s.saving || !c.Kind.Rebuilds() {
		return
	}
	s.Rebuild()
}

// Rebuild discards the live objects and recreates them from the store.
func (s *Synchronizer) Rebuild() {
	if s.rebuilding {
		return
	}
	s.rebuilding = true
	defer func() { s.rebuilding = false }()

	fc := s.store.Collection()
	zoom := s.m.Zoom()
	objects := make([]*Object, 0, fc.Len())
	for _, f := range fc.Features {
		o := newObject(f, s.icon(f))
		s.place(o, zoom)
		objects = append(objects, o)
	}
	s.objects = objects
	s.lastWritten = fc
}

// icon returns the icon of a symbol feature, loading it if necessary.
func (s *Synchronizer) icon(f core.Feature) *assets.Icon {
	sym, ok := f.Shape.(*core.Symbol)
	if !ok || s.loader == nil {
		return nil
	}
	a := core.Asset{ID: sym.IconName, URL: sym.URL, Colorizable: sym.Colorizable}
	if icon, ok := s.loader.Cached(a); ok {
		return icon
	}
	ctx, cancel := context.WithTimeout(context.Background(), iconLoadTimeout)
	defer cancel()
	icon, err := s.loader.Load(ctx, a)
	if err != nil {
		s.logger.Warn("Failed to load symbol icon", "id", f.ID, "icon", sym.IconName, "error", err)
		return nil
	}
	return icon
}

// Image returns the bitmap to draw for a symbol object, tinted with the
// feature color when the icon is recolorable.
func (s *Synchronizer) Image(o *Object) image.Image {
	sym, ok := o.Feature.Shape.(*core.Symbol)
	if !ok || o.Icon == nil || s.loader == nil {
		return nil
	}
	if !sym.Colorizable && !o.Icon.Monochrome {
		return o.Icon.Image
	}
	return s.loader.Render(o.Icon, o.Feature.Style.Color)
}

// Commit adds a finished feature as a live object and saves.
func (s *Synchronizer) Commit(f core.Feature) bool {
	if _, exists := s.Object(f.ID); exists {
		return false
	}
	o := newObject(f, s.icon(f))
	s.place(o, s.m.Zoom())
	s.objects = append(s.objects, o)
	return s.Save()
}

// Remove deletes a live object and saves.
func (s *Synchronizer) Remove(id string) bool {
	for i, o := range s.objects {
		if o.ID() == id {
			s.objects = append(s.objects[:i:i], s.objects[i+1:]...)
			return s.Save()
		}
	}
	return false
}

// Apply performs an incremental manipulation. The final step of a gesture
// re-commits the object's position, zoom and scale and saves.
func (s *Synchronizer) Apply(t mode.Transform) bool {
	o, ok := s.Object(t.ID)
	if !ok {
		return false
	}
	switch t.Kind {
	case mode.TransformMove:
		o.Offset = o.Offset.Add(t.Delta)
		o.Center = o.Center.Add(t.Delta)
	case mode.TransformResize:
		if t.Scale > 0 && !math.IsInf(t.Scale, 0) {
			o.Stretch *= t.Scale
			o.ScaleX *= t.Scale
			o.ScaleY *= t.Scale
		}
	case mode.TransformRotate:
		o.Angle += t.Angle
	}
	if !t.Final {
		return false
	}
	return s.recommit(o)
}

func (s *Synchronizer) recommit(o *Object) bool {
	anchor := s.m.Unproject(o.Center)
	if !anchor.Finite() {
		s.logger.Warn("Discarded re-commit with non-finite position", "id", o.ID())
		o.Offset, o.Stretch = core.Point{}, 1
		s.place(o, s.m.Zoom())
		return false
	}
	o.fold(anchor, s.m.Zoom())
	return s.Save()
}

// SetText updates the content of a live text object. Final edits are saved.
func (s *Synchronizer) SetText(id, content string, final bool) bool {
	o, ok := s.Object(id)
	if !ok {
		return false
	}
	text, ok := o.Feature.Shape.(*core.Text)
	if !ok {
		return false
	}
	text.Content = content
	if !final {
		return false
	}
	return s.Save()
}

// Pick hit-tests the objects top-most first. The selected object also
// exposes its resize and rotate handles.
func (s *Synchronizer) Pick(p core.Point) (mode.Hit, bool) {
	selected := s.store.Selected()
	for i := len(s.objects) - 1; i >= 0; i-- {
		o := s.objects[i]
		hit := mode.Hit{ID: o.ID(), Type: o.Feature.Type(), Center: o.Center}
		if o.ID() == selected {
			switch {
			case o.onRotateHandle(p):
				hit.Handle = mode.HandleRotate
				return hit, true
			case o.onResizeHandle(p):
				hit.Handle = mode.HandleResize
				return hit, true
			}
		}
		if o.contains(p) {
			hit.Handle = mode.HandleBody
			return hit, true
		}
	}
	return mode.Hit{}, false
}
