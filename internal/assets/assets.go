// Package assets holds the symbol catalog and loads icons for placement.
// Each icon is decoded, checked for monochrome, and (when recolorable)
// converted to a signed distance field exactly once per asset identity.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/OCAP2/sitac/internal/cache"
	"github.com/OCAP2/sitac/internal/raster"
	"github.com/OCAP2/sitac/internal/util"
	"github.com/OCAP2/sitac/pkg/core"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnknownAsset is returned when an asset id is not in the catalog
var ErrUnknownAsset = errors.New("unknown asset")

// Catalog is the ordered palette of placeable symbols
type Catalog struct {
	assets []core.Asset
	byID   map[string]int
}

// NewCatalog builds a catalog; later duplicates of an id replace earlier ones.
func NewCatalog(assets ...core.Asset) *Catalog {
	c := &Catalog{byID: make(map[string]int)}
	for _, a := range assets {
		if i, ok := c.byID[a.ID]; ok {
			c.assets[i] = a
			continue
		}
		c.byID[a.ID] = len(c.assets)
		c.assets = append(c.assets, a)
	}
	return c
}

// LoadCatalog reads a JSON array of assets. Relative urls are resolved
// against the catalog file's directory.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var list []core.Asset
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	dir := filepath.Dir(path)
	for i := range list {
		if !isRemote(list[i].URL) && !filepath.IsAbs(list[i].URL) {
			list[i].URL = filepath.Join(dir, strings.TrimPrefix(list[i].URL, "file://"))
		}
	}
	return NewCatalog(list...), nil
}

// Get returns the asset with the given id.
func (c *Catalog) Get(id string) (core.Asset, error) {
	i, ok := c.byID[id]
	if !ok {
		return core.Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, id)
	}
	return c.assets[i], nil
}

// All returns the catalog entries in palette order.
func (c *Catalog) All() []core.Asset {
	return append([]core.Asset(nil), c.assets...)
}

// Icon is a decoded, analysed symbol image
type Icon struct {
	Asset      core.Asset
	Image      *image.NRGBA
	Monochrome bool
	// SDF is set for recolorable icons only
	SDF *image.NRGBA
}

// Colorizable reports whether the icon follows the drawing color.
func (i *Icon) Colorizable() bool {
	return i.Asset.Colorizable || i.Monochrome
}

// Size returns the native pixel size of the icon.
func (i *Icon) Size() (w, h int) {
	b := i.Image.Bounds()
	return b.Dx(), b.Dy()
}

// LoaderOptions configures a Loader
type LoaderOptions struct {
	SDFRadius  float64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Loader fetches and caches icons by asset identity
type Loader struct {
	icons  *cache.Cache[*Icon]
	tinted *cache.Cache[*image.NRGBA]
	radius float64
	client *http.Client
	logger *slog.Logger
}

// NewLoader creates a Loader
func NewLoader(opts LoaderOptions) *Loader {
	if opts.SDFRadius <= 0 {
		opts.SDFRadius = raster.DefaultSDFRadius
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{
		icons:  cache.New[*Icon](),
		tinted: cache.New[*image.NRGBA](),
		radius: opts.SDFRadius,
		client: opts.HTTPClient,
		logger: opts.Logger,
	}
}

// key identifies an asset in the caches
func key(a core.Asset) string {
	if a.ID != "" {
		return a.ID
	}
	return a.URL
}

// Cached returns an already loaded icon without blocking.
func (l *Loader) Cached(a core.Asset) (*Icon, bool) {
	return l.icons.Get(key(a))
}

// Load returns the icon for an asset, fetching and analysing it on first use.
// A canceled ctx aborts the load and nothing is cached.
func (l *Loader) Load(ctx context.Context, a core.Asset) (*Icon, error) {
	if icon, ok := l.icons.Get(key(a)); ok {
		return icon, nil
	}

	rc, err := l.open(ctx, a.URL)
	if err != nil {
		return nil, fmt.Errorf("open asset %s: %w", key(a), err)
	}
	defer rc.Close()

	img, format, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", key(a), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	icon := &Icon{
		Asset:      a,
		Image:      raster.Downscale(img, max(img.Bounds().Dx(), img.Bounds().Dy())),
		Monochrome: raster.IsMonochrome(img),
	}
	if icon.Colorizable() {
		icon.SDF = raster.BuildSDF(icon.Image, l.radius)
	}

	l.logger.Debug("Loaded asset", "asset", key(a), "format", format, "monochrome", icon.Monochrome)
	l.icons.Set(key(a), icon)
	return icon, nil
}

// Render returns the bitmap to draw for icon in the given color. Colorizable
// icons are tinted from their SDF; all others are returned unchanged.
func (l *Loader) Render(icon *Icon, hex string) image.Image {
	if !icon.Colorizable() || icon.SDF == nil {
		return icon.Image
	}
	col, err := util.ParseHexColor(hex)
	if err != nil {
		l.logger.Warn("Invalid icon color, using raster", "asset", key(icon.Asset), "color", hex)
		return icon.Image
	}
	k := key(icon.Asset) + "|" + hex
	if out, ok := l.tinted.Get(k); ok {
		return out
	}
	out := raster.Tint(icon.SDF, col, l.radius)
	l.tinted.Set(k, out)
	return out
}

func (l *Loader) open(ctx context.Context, url string) (io.ReadCloser, error) {
	if isRemote(url) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(strings.TrimPrefix(url, "file://"))
}

func isRemote(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
