package engine

import (
	"math"
	"sync"

	"github.com/OCAP2/sitac/internal/canvas"
	"github.com/OCAP2/sitac/internal/geo"
	"github.com/OCAP2/sitac/internal/layers"
	"github.com/OCAP2/sitac/internal/mode"
	"github.com/OCAP2/sitac/internal/store"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
)

// RendererKind names a rendering backend
type RendererKind string

const (
	// ObjectRendering edits live objects layered over the map
	ObjectRendering RendererKind = "object"
	// DeclarativeRendering draws the collection through map style layers
	DeclarativeRendering RendererKind = "declarative"
)

// Renderer is the backend the mode machine drives. Both backends persist
// through the same store, so undo/redo and selection behave identically.
type Renderer interface {
	Kind() RendererKind
	Pick(core.Point) (mode.Hit, bool)
	Commit(core.Feature) bool
	Remove(id string) bool
	Apply(mode.Transform) bool
	SetText(id, content string, final bool) bool
	ShowDraft(mode.Draft)
	ClearDraft()
	Close()
}

// ObjectRenderer adapts the canvas synchronizer.
type ObjectRenderer struct {
	*canvas.Synchronizer
}

// Kind implements Renderer.
func (ObjectRenderer) Kind() RendererKind { return ObjectRendering }

// ShowDraft implements Renderer. The host reads drafts from the engine.
func (ObjectRenderer) ShowDraft(mode.Draft) {}

// ClearDraft implements Renderer.
func (ObjectRenderer) ClearDraft() {}

// pending accumulates an in-progress manipulation on the declarative path.
type pending struct {
	delta core.Point
	scale float64
	angle float64
}

// DeclarativeRenderer drives a layers.Renderer from the store. Manipulations
// are accumulated and written to the store when the gesture ends.
type DeclarativeRenderer struct {
	layers *layers.Renderer
	store  *store.Store
	m      canvas.Map

	mu      sync.Mutex
	pending map[string]*pending

	unsubscribe func()
}

// NewDeclarativeRenderer binds r to the store and pushes the current collection.
func NewDeclarativeRenderer(r *layers.Renderer, st *store.Store, m canvas.Map) *DeclarativeRenderer {
	d := &DeclarativeRenderer{layers: r, store: st, m: m, pending: map[string]*pending{}}
	r.SetCollection(st.Collection())
	r.SetSelected(st.Selected())
	d.unsubscribe = st.Subscribe(d.onStoreChange)
	return d
}

func (d *DeclarativeRenderer) onStoreChange(c store.Change) {
	switch {
	case c.Kind == store.ChangeSelect:
		d.layers.SetSelected(c.Selected)
	case c.Kind.Rebuilds():
		d.layers.SetCollection(d.store.Collection())
		d.layers.SetSelected(d.store.Selected())
	}
}

// Kind implements Renderer.
func (*DeclarativeRenderer) Kind() RendererKind { return DeclarativeRendering }

// Layers returns the underlying layer renderer.
func (d *DeclarativeRenderer) Layers() *layers.Renderer { return d.layers }

// Close implements Renderer.
func (d *DeclarativeRenderer) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
}

// Pick implements Renderer. Layer picking only grabs bodies.
func (d *DeclarativeRenderer) Pick(p core.Point) (mode.Hit, bool) {
	ll := d.m.Unproject(p)
	next := d.m.Unproject(core.Point{X: p.X + 1, Y: p.Y})
	degPerPx := math.Hypot(next.Lng-ll.Lng, next.Lat-ll.Lat)

	id, typ, ok := d.layers.Pick(ll, degPerPx)
	if !ok {
		return mode.Hit{}, false
	}
	f, ok := d.store.Feature(id)
	if !ok {
		return mode.Hit{}, false
	}
	return mode.Hit{ID: id, Type: typ, Handle: mode.HandleBody, Center: d.m.Project(f.Anchor)}, true
}

// Commit implements Renderer.
func (d *DeclarativeRenderer) Commit(f core.Feature) bool {
	return d.store.AddFeature(f) == nil
}

// Remove implements Renderer.
func (d *DeclarativeRenderer) Remove(id string) bool {
	return d.store.DeleteFeature(id)
}

// Apply implements Renderer.
func (d *DeclarativeRenderer) Apply(t mode.Transform) bool {
	d.mu.Lock()
	p, ok := d.pending[t.ID]
	if !ok {
		p = &pending{scale: 1}
		d.pending[t.ID] = p
	}
	switch t.Kind {
	case mode.TransformMove:
		p.delta = p.delta.Add(t.Delta)
	case mode.TransformResize:
		if t.Scale > 0 && !math.IsInf(t.Scale, 0) {
			p.scale *= t.Scale
		}
	case mode.TransformRotate:
		p.angle += t.Angle
	}
	if !t.Final {
		snapshot := *p
		d.mu.Unlock()
		d.preview(t.ID, snapshot)
		return false
	}
	delete(d.pending, t.ID)
	d.mu.Unlock()
	d.layers.ClearDraft()

	f, ok := d.store.Feature(t.ID)
	if !ok {
		return false
	}
	anchor := d.m.Unproject(d.m.Project(f.Anchor).Add(p.delta))
	if !anchor.Finite() {
		return false
	}
	return d.store.UpdateFeature(t.ID, func(f *core.Feature) {
		f.Anchor = anchor
		f.Style.Rotation += p.angle
		scaleShape(f.Shape, p.scale)
	})
}

// preview outlines the feature as the gesture would leave it, on the draft
// source. Rotation and scale pivot on the outline's centroid.
func (d *DeclarativeRenderer) preview(id string, p pending) {
	f, ok := d.store.Feature(id)
	if !ok {
		return
	}
	g := layers.Geometry(f, d.layers.TileSize())
	if g == nil {
		return
	}
	to := d.m.Unproject(d.m.Project(f.Anchor).Add(p.delta))
	if !to.Finite() {
		return
	}
	g = geo.Translate(g, to.Lng-f.Anchor.Lng, to.Lat-f.Anchor.Lat)
	// screen rotation is clockwise, lng/lat is y-up
	g = geo.Rotate(g, -p.angle)
	g = geo.Scale(g, p.scale)
	d.layers.SetDraft(outline(g))
}

// outline picks the path drawn for a previewed geometry: a polygon's outer
// ring or an arrow's shaft. Points have none.
func outline(g orb.Geometry) []core.LngLat {
	var pts []orb.Point
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			pts = v[0]
		}
	case orb.LineString:
		pts = v
	case orb.MultiLineString:
		if len(v) > 0 {
			pts = v[0]
		}
	}
	out := make([]core.LngLat, len(pts))
	for i, p := range pts {
		out[i] = core.LngLat{Lng: p[0], Lat: p[1]}
	}
	return out
}

// SetText implements Renderer. Intermediate edits are not rendered on this path.
func (d *DeclarativeRenderer) SetText(id, content string, final bool) bool {
	if !final {
		return false
	}
	return d.store.UpdateFeature(id, func(f *core.Feature) {
		if t, ok := f.Shape.(*core.Text); ok {
			t.Content = content
		}
	})
}

// ShowDraft implements Renderer by feeding the draft source.
func (d *DeclarativeRenderer) ShowDraft(dr mode.Draft) {
	var pts []core.Point
	switch dr.Kind {
	case core.TypePolygon:
		pts = append(append(pts, dr.Points...), dr.Current)
	case core.TypeFreehand:
		pts = dr.Points
	case core.TypeLine, core.TypeArrow, core.TypeCircle:
		pts = []core.Point{dr.Start, dr.Current}
	case core.TypeRect:
		o := dr.Origin
		pts = []core.Point{o, {X: o.X + dr.Width, Y: o.Y}, {X: o.X + dr.Width, Y: o.Y + dr.Height}, {X: o.X, Y: o.Y + dr.Height}, o}
	}
	coords := make([]core.LngLat, len(pts))
	for i, p := range pts {
		coords[i] = d.m.Unproject(p)
	}
	d.layers.SetDraft(coords)
}

// ClearDraft implements Renderer.
func (d *DeclarativeRenderer) ClearDraft() {
	d.layers.ClearDraft()
}

// scaleShape multiplies the dimensions of a shape by k.
func scaleShape(s core.Shape, k float64) {
	if k == 1 {
		return
	}
	switch v := s.(type) {
	case *core.Symbol:
		v.ScaleX *= k
		v.ScaleY *= k
	case *core.Freehand:
		v.ScaleX *= k
		v.ScaleY *= k
	case *core.Line:
		v.Length *= k
	case *core.Arrow:
		v.Length *= k
	case *core.Rect:
		v.Width *= k
		v.Height *= k
	case *core.Circle:
		v.Radius *= k
	case *core.Text:
		v.Size *= k
	case *core.Polygon:
		for i := range v.Points {
			v.Points[i].X *= k
			v.Points[i].Y *= k
		}
	}
}
