package engine

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/OCAP2/sitac/internal/assets"
	"github.com/OCAP2/sitac/internal/layers"
	"github.com/OCAP2/sitac/internal/mode"
	"github.com/OCAP2/sitac/internal/viewport"
	"github.com/OCAP2/sitac/pkg/core"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paris = core.LngLat{Lng: 2.35, Lat: 48.85}

var backends = []RendererKind{ObjectRendering, DeclarativeRendering}

func newEngine(t *testing.T, kind RendererKind, loader *assets.Loader) (*Engine, *viewport.Viewport) {
	t.Helper()
	vp := viewport.New(viewport.Options{Center: paris, Zoom: 12, Width: 800, Height: 600})
	e, err := New(vp, Options{Name: "test", Renderer: kind, Loader: loader})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, vp
}

func drag(e *Engine, from, to core.Point) {
	e.Handle(mode.PointerDown{At: from})
	e.Handle(mode.PointerMove{At: to})
	e.Handle(mode.PointerUp{At: to})
}

func drawRect(e *Engine, from, to core.Point) {
	e.Handle(mode.SetMode{Mode: mode.DrawRect})
	drag(e, from, to)
}

func writePNG(t *testing.T, name string, col color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	for y := 6; y < 18; y++ {
		for x := 6; x < 18; x++ {
			img.SetNRGBA(x, y, col)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestNew_UnknownRenderer(t *testing.T) {
	vp := viewport.New(viewport.Options{Center: paris, Zoom: 12, Width: 800, Height: 600})
	_, err := New(vp, Options{Renderer: "webgl"})
	assert.Error(t, err)
}

func TestDrawCommitUndoRedo(t *testing.T) {
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			e, vp := newEngine(t, kind, nil)

			e.Handle(mode.SetMode{Mode: mode.DrawRect})
			assert.False(t, vp.Interactive(), "drawing disables navigation")

			drag(e, core.Point{X: 100, Y: 100}, core.Point{X: 140, Y: 130})

			fc := e.Collection()
			require.Equal(t, 1, fc.Len())
			rect, ok := fc.Features[0].Shape.(*core.Rect)
			require.True(t, ok)
			assert.InDelta(t, 40.0, rect.Width, 1e-9)
			assert.InDelta(t, 30.0, rect.Height, 1e-9)
			assert.Equal(t, fc.Features[0].ID, e.Store().Selected())
			assert.Equal(t, mode.Select, e.Mode())
			assert.True(t, vp.Interactive())

			_, err := e.Dispatch(ActionUndo)
			require.NoError(t, err)
			assert.Equal(t, 0, e.Collection().Len())

			_, err = e.Dispatch(ActionRedo)
			require.NoError(t, err)
			assert.Equal(t, 1, e.Collection().Len())
		})
	}
}

func TestMoveSelected(t *testing.T) {
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			e, vp := newEngine(t, kind, nil)
			drawRect(e, core.Point{X: 380, Y: 280}, core.Point{X: 420, Y: 320})
			require.Equal(t, 1, e.Collection().Len())
			history := e.Store().HistoryLen()

			drag(e, core.Point{X: 400, Y: 300}, core.Point{X: 500, Y: 300})

			f := e.Collection().Features[0]
			want := vp.Unproject(core.Point{X: 500, Y: 300})
			assert.InDelta(t, want.Lng, f.Anchor.Lng, 1e-7)
			assert.InDelta(t, want.Lat, f.Anchor.Lat, 1e-7)
			assert.Equal(t, history+1, e.Store().HistoryLen(), "one entry per gesture")
		})
	}
}

func TestEraseTopMost(t *testing.T) {
	for _, kind := range backends {
		t.Run(string(kind), func(t *testing.T) {
			e, _ := newEngine(t, kind, nil)
			drawRect(e, core.Point{X: 300, Y: 200}, core.Point{X: 500, Y: 400})
			drawRect(e, core.Point{X: 390, Y: 290}, core.Point{X: 410, Y: 310})
			bottom := e.Collection().Features[0].ID

			e.Handle(mode.SetMode{Mode: mode.Erase})
			e.Handle(mode.Click{At: core.Point{X: 400, Y: 300}})

			fc := e.Collection()
			require.Equal(t, 1, fc.Len())
			assert.Equal(t, bottom, fc.Features[0].ID)

			e.Handle(mode.Click{At: core.Point{X: 700, Y: 550}})
			assert.Equal(t, 1, e.Collection().Len(), "a miss erases nothing")
		})
	}
}

func TestModeSwitchDiscardsDraft(t *testing.T) {
	e, _ := newEngine(t, ObjectRendering, nil)
	e.Handle(mode.SetMode{Mode: mode.DrawLine})
	e.Handle(mode.PointerDown{At: core.Point{X: 10, Y: 10}})
	e.Handle(mode.PointerMove{At: core.Point{X: 200, Y: 10}})
	_, ok := e.Draft()
	require.True(t, ok)

	e.Handle(mode.SetMode{Mode: mode.View})

	_, ok = e.Draft()
	assert.False(t, ok)
	assert.Equal(t, 0, e.Collection().Len())
	assert.Equal(t, 1, e.Store().HistoryLen())
}

func TestDeclarativeDraftSource(t *testing.T) {
	e, _ := newEngine(t, DeclarativeRendering, nil)
	lr := e.Renderer().(*DeclarativeRenderer).Layers()

	e.Handle(mode.SetMode{Mode: mode.DrawPolygon})
	e.Handle(mode.Click{At: core.Point{X: 100, Y: 100}})
	e.Handle(mode.Click{At: core.Point{X: 200, Y: 100}})
	e.Handle(mode.PointerMove{At: core.Point{X: 200, Y: 200}})

	require.Len(t, lr.Draft().Features, 1)
	pushes := lr.Pushes()

	e.Handle(mode.KeyDown{Key: "Escape"})
	assert.Empty(t, lr.Draft().Features)
	assert.Equal(t, pushes, lr.Pushes(), "drafts never reach the annotation source")
	assert.Equal(t, 0, e.Collection().Len())
}

func TestDeclarativeSelectionHighlight(t *testing.T) {
	e, _ := newEngine(t, DeclarativeRendering, nil)
	lr := e.Renderer().(*DeclarativeRenderer).Layers()
	drawRect(e, core.Point{X: 380, Y: 280}, core.Point{X: 420, Y: 320})
	id := e.Collection().Features[0].ID
	pushes := lr.Pushes()

	assert.Equal(t, id, lr.Selected())
	e.Handle(mode.PointerDown{At: core.Point{X: 10, Y: 10}})
	e.Handle(mode.PointerUp{At: core.Point{X: 10, Y: 10}})

	assert.Equal(t, "", lr.Selected())
	assert.Equal(t, pushes, lr.Pushes())
	for _, l := range lr.Layers() {
		if l.ID == layers.HighlightDot {
			assert.Equal(t, "", l.Filter[1].([]any)[2])
		}
	}
}

func TestDeclarativeGesturePreview(t *testing.T) {
	e, vp := newEngine(t, DeclarativeRendering, nil)
	lr := e.Renderer().(*DeclarativeRenderer).Layers()
	drawRect(e, core.Point{X: 380, Y: 280}, core.Point{X: 420, Y: 320})
	pushes := lr.Pushes()

	e.Handle(mode.PointerDown{At: core.Point{X: 400, Y: 300}})
	e.Handle(mode.PointerMove{At: core.Point{X: 500, Y: 300}})

	require.Len(t, lr.Draft().Features, 1)
	ring, ok := lr.Draft().Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	require.Len(t, ring, 5)
	var lng float64
	for _, p := range ring[:4] {
		lng += p[0]
	}
	want := vp.Unproject(core.Point{X: 500, Y: 300})
	assert.InDelta(t, want.Lng, lng/4, 1e-7, "outline follows the drag")
	assert.Equal(t, pushes, lr.Pushes(), "previews never reach the annotation source")

	e.Handle(mode.PointerUp{At: core.Point{X: 500, Y: 300}})
	assert.Empty(t, lr.Draft().Features)
	assert.InDelta(t, want.Lng, e.Collection().Features[0].Anchor.Lng, 1e-7)
}

// Scenario C: color changes follow colorizable symbols only.
func TestSymbolColorization(t *testing.T) {
	loader := assets.NewLoader(assets.LoaderOptions{})
	e, _ := newEngine(t, ObjectRendering, loader)
	surface := e.Renderer().(ObjectRenderer)

	stencil := core.Asset{ID: "stencil", URL: writePNG(t, "stencil.png", color.NRGBA{A: 255})}
	photo := core.Asset{ID: "photo", URL: writePNG(t, "photo.png", color.NRGBA{R: 255, A: 255})}

	place := func(a core.Asset, at core.Point) core.Feature {
		e.Handle(mode.SetActiveSymbol{Asset: a})
		e.Handle(mode.SetMode{Mode: mode.DrawSymbol})
		e.Handle(mode.Click{At: at})
		require.Equal(t, 1, e.Wait())
		f, ok := e.Store().Feature(e.Store().Selected())
		require.True(t, ok)
		return f
	}

	f := place(stencil, core.Point{X: 300, Y: 300})
	assert.True(t, f.Shape.(*core.Symbol).Colorizable)
	_, err := e.Dispatch(ActionSetColor, "#00FF00")
	require.NoError(t, err)

	f, _ = e.Store().Feature(f.ID)
	assert.Equal(t, "#00ff00", f.Style.Color)
	assert.True(t, f.Shape.(*core.Symbol).Colorizable)
	o, ok := surface.Object(f.ID)
	require.True(t, ok)
	img := surface.Image(o).(*image.NRGBA)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, img.NRGBAAt(12, 12))

	g := place(photo, core.Point{X: 500, Y: 300})
	assert.False(t, g.Shape.(*core.Symbol).Colorizable)
	o, _ = surface.Object(g.ID)
	before := surface.Image(o)
	_, err = e.Dispatch(ActionSetColor, "#00ff00")
	require.NoError(t, err)

	g, _ = e.Store().Feature(g.ID)
	assert.Equal(t, "#00ff00", g.Style.Color)
	o, _ = surface.Object(g.ID)
	assert.Same(t, before, surface.Image(o), "non-colorizable icons are drawn as they are")
}

func TestPlacedSymbolInheritsColorOnlyWhenColorizable(t *testing.T) {
	loader := assets.NewLoader(assets.LoaderOptions{})
	e, _ := newEngine(t, ObjectRendering, loader)

	style := core.DefaultStyle
	style.Color = "#123456"
	e.Handle(mode.SetStyle{Style: style})

	stencil := core.Asset{ID: "stencil", URL: writePNG(t, "stencil.png", color.NRGBA{A: 255})}
	photo := core.Asset{ID: "photo", URL: writePNG(t, "photo.png", color.NRGBA{R: 255, A: 255})}

	for _, tt := range []struct {
		asset core.Asset
		at    core.Point
		want  string
	}{
		{photo, core.Point{X: 300, Y: 300}, ""},
		{stencil, core.Point{X: 500, Y: 300}, "#123456"},
	} {
		e.Handle(mode.SetActiveSymbol{Asset: tt.asset})
		e.Handle(mode.SetMode{Mode: mode.DrawSymbol})
		e.Handle(mode.Click{At: tt.at})
		require.Equal(t, 1, e.Wait())

		f, ok := e.Store().Feature(e.Store().Selected())
		require.True(t, ok)
		assert.Equal(t, tt.want, f.Style.Color, tt.asset.ID)
	}
}

func TestPlacementCanceledByModeSwitch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	loader := assets.NewLoader(assets.LoaderOptions{})
	e, _ := newEngine(t, ObjectRendering, loader)

	e.Handle(mode.SetActiveSymbol{Asset: core.Asset{ID: "slow", URL: srv.URL + "/slow.png"}})
	e.Handle(mode.SetMode{Mode: mode.DrawSymbol})
	e.Handle(mode.Click{At: core.Point{X: 300, Y: 300}})
	e.Handle(mode.SetMode{Mode: mode.View})

	assert.Equal(t, 0, e.Wait())
	assert.Equal(t, 0, e.Collection().Len())
}

func TestPlacementWithoutLoader(t *testing.T) {
	e, vp := newEngine(t, DeclarativeRendering, nil)
	e.Handle(mode.SetActiveSymbol{Asset: core.Asset{ID: "inf", Colorizable: true}})
	e.Handle(mode.SetMode{Mode: mode.DrawSymbol})
	e.Handle(mode.Click{At: core.Point{X: 400, Y: 300}})

	assert.Equal(t, 1, e.Pending())
	select {
	case <-e.Ready():
	default:
		t.Fatal("expected a ready signal")
	}
	assert.Equal(t, 1, e.Pump())

	f := e.Collection().Features[0]
	sym := f.Shape.(*core.Symbol)
	assert.Equal(t, "inf", sym.IconName)
	assert.True(t, sym.Colorizable)
	assert.Equal(t, 12.0, f.Style.BaseZoom)
	assert.InDelta(t, vp.Center().Lng, f.Anchor.Lng, 1e-7)
}

func TestActions(t *testing.T) {
	e, _ := newEngine(t, ObjectRendering, nil)

	_, err := e.Dispatch(ActionDeleteSelected)
	assert.ErrorIs(t, err, ErrNoSelection)

	// no selection: the style applies to the next drawing
	_, err = e.Dispatch(ActionSetColor, "#0000ff")
	require.NoError(t, err)
	_, err = e.Dispatch(ActionSetLineStyle, "dashed")
	require.NoError(t, err)
	drawRect(e, core.Point{X: 380, Y: 280}, core.Point{X: 420, Y: 320})
	f := e.Collection().Features[0]
	assert.Equal(t, "#0000ff", f.Style.Color)
	assert.Equal(t, core.LineDashed, f.Style.LineStyle)

	_, err = e.Dispatch(ActionSetStrokeWidth, "-2")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.Dispatch(ActionSetLineStyle, "wavy")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.Dispatch(ActionSetColor, "blue")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = e.Dispatch(ActionMode, "paint")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.Dispatch(ActionSetStrokeWidth, "6")
	require.NoError(t, err)
	_, err = e.Dispatch(ActionSetRotation, "-90")
	require.NoError(t, err)
	f, _ = e.Store().Feature(f.ID)
	assert.Equal(t, 6.0, f.Style.StrokeWidth)
	assert.Equal(t, 270.0, f.Style.Rotation)

	res, err := e.Dispatch(ActionDuplicateSelected)
	require.NoError(t, err)
	clone := res.(string)
	assert.NotEqual(t, f.ID, clone)
	assert.Equal(t, clone, e.Store().Selected())
	assert.Equal(t, 2, e.Collection().Len())

	_, err = e.Dispatch(ActionDeleteSelected)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Collection().Len())

	_, err = e.Dispatch(ActionClear)
	require.NoError(t, err)
	assert.Equal(t, 0, e.Collection().Len())

	res, err = e.Dispatch(ActionMode, "draw_line")
	require.NoError(t, err)
	assert.Equal(t, "draw_line", res)
	assert.Equal(t, mode.DrawLine, e.Mode())
}

func TestTextActions(t *testing.T) {
	e, _ := newEngine(t, ObjectRendering, nil)
	e.Handle(mode.SetMode{Mode: mode.DrawText})
	e.Handle(mode.Click{At: core.Point{X: 400, Y: 300}})
	edit, ok := e.TextEdit()
	require.True(t, ok)
	assert.Equal(t, core.Point{X: 400, Y: 300}, edit.At)

	e.Handle(mode.TextChanged{Content: "Objective"})
	e.Handle(mode.TextBlur{})
	require.Equal(t, 1, e.Collection().Len())
	_, ok = e.TextEdit()
	assert.False(t, ok)

	_, err := e.Dispatch(ActionSetText, "Objective", "B")
	require.NoError(t, err)
	_, err = e.Dispatch(ActionSetTextSize, "24")
	require.NoError(t, err)

	props, ok := e.SelectedProperties()
	require.True(t, ok)
	assert.Equal(t, core.TypeText, props.Type)
	assert.Equal(t, "Objective B", props.TextContent)
	assert.Equal(t, 24.0, props.TextSize)
}

func TestBookmarks(t *testing.T) {
	e, vp := newEngine(t, ObjectRendering, nil)

	res, err := e.Dispatch(ActionBookmark)
	require.NoError(t, err)
	snap := res.(core.Snapshot)

	vp.JumpTo(core.LngLat{Lng: 10, Lat: 50}, 8)
	_, err = e.Dispatch(ActionGotoBookmark, snap.ID)
	require.NoError(t, err)
	assert.InDelta(t, paris.Lng, vp.Center().Lng, 1e-9)
	assert.Equal(t, 12.0, vp.Zoom())

	_, err = e.Dispatch(ActionGotoBookmark, "nope")
	assert.ErrorIs(t, err, ErrUnknownBookmark)

	for i := 0; i < 5; i++ {
		_, err = e.Dispatch(ActionBookmark)
		require.NoError(t, err)
	}
	assert.Len(t, e.Store().Snapshots(), 4)

	_, err = e.Dispatch(ActionRemoveBookmark, snap.ID)
	assert.ErrorIs(t, err, ErrUnknownBookmark, "the first bookmark was evicted")
}

func TestDocumentRestore(t *testing.T) {
	e, _ := newEngine(t, ObjectRendering, nil)
	drawRect(e, core.Point{X: 380, Y: 280}, core.Point{X: 420, Y: 320})
	_, err := e.Dispatch(ActionBookmark)
	require.NoError(t, err)
	doc := e.Document()
	assert.Equal(t, "test", doc.Name)

	other, vp := newEngine(t, DeclarativeRendering, nil)
	vp.JumpTo(core.LngLat{Lng: 0, Lat: 0}, 3)
	other.Restore(doc)

	assert.Equal(t, 1, other.Collection().Len())
	assert.Equal(t, 1, other.Store().HistoryLen())
	assert.Len(t, other.Store().Snapshots(), 1)
	assert.Equal(t, 12.0, vp.Zoom())
	assert.Len(t, other.Renderer().(*DeclarativeRenderer).Layers().Source().Features, 1)

	stats := other.Stats()
	assert.Equal(t, 1, stats.Features)
	assert.Equal(t, DeclarativeRendering, stats.Renderer)
}

func TestView_SerializesMapAccess(t *testing.T) {
	e, _ := newEngine(t, ObjectRendering, nil)
	drawRect(e, core.Point{X: 380, Y: 280}, core.Point{X: 420, Y: 320})
	o := e.Renderer().(ObjectRenderer).Objects()[0]

	e.View(func(m Map) { m.JumpTo(m.Center(), 13) })

	w, _ := o.Size()
	assert.InDelta(t, 80.0, w, 1e-6)
}
