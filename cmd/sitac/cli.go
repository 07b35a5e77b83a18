package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/OCAP2/sitac/internal/api"
	"github.com/OCAP2/sitac/internal/assets"
	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/internal/config"
	"github.com/OCAP2/sitac/internal/layers"
	"github.com/OCAP2/sitac/internal/logging"
	"github.com/OCAP2/sitac/internal/raster"
	"github.com/OCAP2/sitac/internal/storage"
	filestorage "github.com/OCAP2/sitac/internal/storage/file"
	"github.com/OCAP2/sitac/pkg/core"
)

// errUsage marks bad command lines
var errUsage = errors.New("usage")

// run executes one command against the configured storage.
func run(ctx context.Context, cmd string, args []string, in io.Reader, out io.Writer) error {
	if cmd == "sdf" {
		return sdfCommand(ctx, args)
	}

	backend, err := openStorage(ctx, config.GetStorageConfig(), ZLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Warn("Failed to close storage", "error", err)
		}
	}()

	switch cmd {
	case "info":
		return infoCommand(ctx, backend, docName(args, 0), out)
	case "list":
		return listCommand(ctx, backend, out)
	case "delete":
		if len(args) < 1 {
			return fmt.Errorf("%w: delete <name>", errUsage)
		}
		return deleteCommand(ctx, backend, args[0])
	case "export":
		if len(args) < 1 {
			return fmt.Errorf("%w: export <out|-> [name]", errUsage)
		}
		return exportCommand(ctx, backend, docName(args, 1), args[0], out)
	case "import":
		if len(args) < 1 {
			return fmt.Errorf("%w: import <in> [name]", errUsage)
		}
		return importCommand(ctx, backend, docName(args, 1), args[0], out)
	case "prune":
		return pruneCommand(ctx, backend, docName(args, 0), out)
	case "layers":
		return layersCommand(ctx, backend, docName(args, 0), out)
	case "session":
		return sessionCommand(ctx, backend, docName(args, 0), in, out)
	case "publish":
		return publishCommand(ctx, backend, docName(args, 0), out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// docName returns args[i] or the configured document name.
func docName(args []string, i int) string {
	if i < len(args) && args[i] != "" {
		return args[i]
	}
	return config.GetString("documentName")
}

// loadOrEmpty loads name, starting an empty document when nothing is stored.
func loadOrEmpty(ctx context.Context, backend storage.Backend, name string) (core.Document, error) {
	doc, dropped, err := backend.Load(ctx, name)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrUnsupported):
		m := config.GetMapConfig()
		return core.Document{
			Name: name,
			View: core.View{Center: core.LngLat{Lng: m.Lng, Lat: m.Lat}, Zoom: m.Zoom},
		}, nil
	case err != nil:
		return core.Document{}, err
	}
	for _, e := range dropped {
		Logger.Warn("Dropped invalid feature", "document", name, "error", e)
	}
	return doc, nil
}

func infoCommand(ctx context.Context, backend storage.Backend, name string, out io.Writer) error {
	doc, dropped, err := backend.Load(ctx, name)
	if err != nil {
		return err
	}

	counts := map[core.FeatureType]int{}
	for _, f := range doc.Features.Features {
		counts[f.Type()]++
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "name\t%s\n", doc.Name)
	if !doc.SavedAt.IsZero() {
		fmt.Fprintf(tw, "saved\t%s\n", doc.SavedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "view\t%.6f,%.6f z%.2f\n", doc.View.Center.Lng, doc.View.Center.Lat, doc.View.Zoom)
	fmt.Fprintf(tw, "features\t%d\n", doc.Features.Len())
	for _, t := range types {
		fmt.Fprintf(tw, "  %s\t%d\n", t, counts[core.FeatureType(t)])
	}
	fmt.Fprintf(tw, "bookmarks\t%d\n", len(doc.Snapshots))
	if len(dropped) > 0 {
		fmt.Fprintf(tw, "invalid\t%d\n", len(dropped))
	}
	return tw.Flush()
}

func listCommand(ctx context.Context, backend storage.Backend, out io.Writer) error {
	catalog, ok := backend.(storage.Catalog)
	if !ok {
		return fmt.Errorf("list: %w", storage.ErrUnsupported)
	}
	docs, err := catalog.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFEATURES\tSAVED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.Features, d.SavedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func deleteCommand(ctx context.Context, backend storage.Backend, name string) error {
	catalog, ok := backend.(storage.Catalog)
	if !ok {
		return fmt.Errorf("delete: %w", storage.ErrUnsupported)
	}
	return catalog.Delete(ctx, name)
}

func exportCommand(ctx context.Context, backend storage.Backend, name, dest string, out io.Writer) error {
	doc, _, err := backend.Load(ctx, name)
	if err != nil {
		return err
	}
	data, err := codec.Marshal(doc.Features)
	if err != nil {
		return err
	}
	if dest == "-" {
		_, err = out.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	Logger.Info("Exported document", "document", name, "path", dest, "features", doc.Features.Len())
	return nil
}

// importCommand replaces the features of name with a GeoJSON file. Bookmarks
// and view are kept.
func importCommand(ctx context.Context, backend storage.Backend, name, src string, out io.Writer) error {
	data, err := filestorage.ReadFile(src)
	if err != nil {
		return err
	}
	fc, dropped, err := codec.Unmarshal(data)
	if err != nil {
		return err
	}
	doc, err := loadOrEmpty(ctx, backend, name)
	if err != nil {
		return err
	}
	doc.Name = name
	doc.Features = fc
	doc.SavedAt = time.Now().UTC()
	if err := backend.Save(ctx, doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d features into %s (%d dropped)\n", fc.Len(), name, len(dropped))
	return nil
}

func pruneCommand(ctx context.Context, backend storage.Backend, name string, out io.Writer) error {
	doc, dropped, err := backend.Load(ctx, name)
	if err != nil {
		return err
	}
	for _, e := range dropped {
		fmt.Fprintf(out, "dropped: %v\n", e)
	}
	if len(dropped) == 0 {
		fmt.Fprintln(out, "nothing to prune")
		return nil
	}
	doc.SavedAt = time.Now().UTC()
	return backend.Save(ctx, doc)
}

func layersCommand(ctx context.Context, backend storage.Backend, name string, out io.Writer) error {
	doc, _, err := backend.Load(ctx, name)
	if err != nil {
		return err
	}
	r := layers.New(layers.Options{TileSize: config.GetMapConfig().TileSize, Logger: Logger})
	for _, e := range r.SetCollection(doc.Features) {
		Logger.Warn("Feature not rendered", "document", name, "error", e)
	}
	style, err := r.MarshalStyle()
	if err != nil {
		return err
	}
	source, err := json.Marshal(r.Source())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Style  json.RawMessage `json:"style"`
		Source json.RawMessage `json:"source"`
	}{style, source})
}

// publishCommand uploads a gzip'd snapshot of the document to the share server.
func publishCommand(ctx context.Context, backend storage.Backend, name string, out io.Writer) error {
	share := config.GetShareConfig()
	if share.URL == "" {
		return fmt.Errorf("%w: share.url is not configured", errUsage)
	}
	doc, _, err := backend.Load(ctx, name)
	if err != nil {
		return err
	}
	data, err := codec.MarshalDocument(doc)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	client := api.New(share.URL, share.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		return fmt.Errorf("share server unavailable: %w", err)
	}
	upload := api.Upload{
		Name:     doc.Name,
		Filename: logging.FileName(doc.Name) + ".geojson.gz",
		Features: doc.Features.Len(),
		Data:     buf.Bytes(),
	}
	if err := client.Upload(ctx, upload); err != nil {
		return err
	}
	Logger.Info("Published document", "document", doc.Name, "url", share.URL, "bytes", buf.Len())
	fmt.Fprintf(out, "published %s (%d features)\n", doc.Name, doc.Features.Len())
	return nil
}

// sdfCommand writes the signed distance field of an icon, or the icon tinted
// with color when one is given.
func sdfCommand(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: sdf <in> <out.png> [color]", errUsage)
	}
	radius := config.GetEngineConfig().SDFRadius
	loader := assets.NewLoader(assets.LoaderOptions{SDFRadius: radius, Logger: Logger})
	icon, err := loader.Load(ctx, core.Asset{ID: args[0], URL: args[0], Colorizable: true})
	if err != nil {
		return err
	}

	img := icon.SDF
	if img == nil {
		img = raster.BuildSDF(icon.Image, radius)
	}
	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	if len(args) > 2 {
		return png.Encode(f, loader.Render(icon, args[2]))
	}
	return png.Encode(f, img)
}
