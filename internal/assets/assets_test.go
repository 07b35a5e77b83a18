package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/OCAP2/sitac/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, col color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	for y := 6; y < 18; y++ {
		for x := 6; x < 18; x++ {
			img.SetNRGBA(x, y, col)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, dir, name string, col color.NRGBA) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, encodePNG(t, col), 0o644))
	return path
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(
		core.Asset{ID: "inf", Label: "Infantry"},
		core.Asset{ID: "arm", Label: "Armor"},
		core.Asset{ID: "inf", Label: "Infantry (new)"},
	)

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Infantry (new)", all[0].Label)

	_, err := c.Get("hq")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestLoadCatalog_ResolvesRelativeURLs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"inf","label":"Infantry","url":"icons/inf.png"},
		{"id":"flag","label":"Flag","url":"https://example.org/flag.png","colorizable":true}
	]`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	inf, err := c.Get("inf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "icons", "inf.png"), inf.URL)

	flag, err := c.Get("flag")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/flag.png", flag.URL)
	assert.True(t, flag.Colorizable)
}

func TestLoader_MonochromeIconGetsSDF(t *testing.T) {
	path := writePNG(t, t.TempDir(), "black.png", color.NRGBA{A: 255})
	l := NewLoader(LoaderOptions{})

	icon, err := l.Load(context.Background(), core.Asset{ID: "black", URL: path})
	require.NoError(t, err)

	assert.True(t, icon.Monochrome)
	assert.True(t, icon.Colorizable())
	require.NotNil(t, icon.SDF)
	w, h := icon.Size()
	assert.Equal(t, 24, w)
	assert.Equal(t, 24, h)

	tinted := l.Render(icon, "#00ff00")
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, tinted.(*image.NRGBA).NRGBAAt(12, 12))
	assert.Same(t, tinted, l.Render(icon, "#00ff00"), "tinted bitmaps are cached")
}

func TestLoader_ColoredIconKeepsRaster(t *testing.T) {
	path := writePNG(t, t.TempDir(), "red.png", color.NRGBA{R: 255, A: 255})
	l := NewLoader(LoaderOptions{})

	icon, err := l.Load(context.Background(), core.Asset{ID: "red", URL: "file://" + path})
	require.NoError(t, err)

	assert.False(t, icon.Colorizable())
	assert.Nil(t, icon.SDF)
	assert.Same(t, icon.Image, l.Render(icon, "#00ff00"))
}

func TestLoader_ColorizableFlagForcesSDF(t *testing.T) {
	path := writePNG(t, t.TempDir(), "red.png", color.NRGBA{R: 255, A: 255})
	l := NewLoader(LoaderOptions{})

	icon, err := l.Load(context.Background(), core.Asset{ID: "red", URL: path, Colorizable: true})
	require.NoError(t, err)

	assert.False(t, icon.Monochrome)
	assert.True(t, icon.Colorizable())
	assert.NotNil(t, icon.SDF)
}

func TestLoader_CachesByIdentity(t *testing.T) {
	var hits atomic.Int32
	body := encodePNG(t, color.NRGBA{A: 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	l := NewLoader(LoaderOptions{HTTPClient: srv.Client()})
	a := core.Asset{ID: "remote", URL: srv.URL + "/icon.png"}

	_, ok := l.Cached(a)
	assert.False(t, ok)

	first, err := l.Load(context.Background(), a)
	require.NoError(t, err)
	second, err := l.Load(context.Background(), a)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	cached, ok := l.Cached(a)
	assert.True(t, ok)
	assert.Same(t, first, cached)
}

func TestLoader_Errors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	l := NewLoader(LoaderOptions{HTTPClient: srv.Client()})

	_, err := l.Load(context.Background(), core.Asset{ID: "missing", URL: srv.URL + "/nope.png"})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = l.Load(context.Background(), core.Asset{ID: "bad", URL: bad})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writePNG(t, t.TempDir(), "ok.png", color.NRGBA{A: 255})
	_, err = l.Load(ctx, core.Asset{ID: "canceled", URL: path})
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := l.Cached(core.Asset{ID: "canceled"})
	assert.False(t, ok)
}

func TestLoader_RenderInvalidColorFallsBack(t *testing.T) {
	path := writePNG(t, t.TempDir(), "black.png", color.NRGBA{A: 255})
	l := NewLoader(LoaderOptions{})
	icon, err := l.Load(context.Background(), core.Asset{ID: "black", URL: path})
	require.NoError(t, err)

	assert.Same(t, icon.Image, l.Render(icon, "not-a-color"))
}
