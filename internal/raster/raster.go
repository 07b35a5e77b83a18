// Package raster analyses and converts symbol icons: monochrome detection and
// signed-distance-field generation so stencil icons can be recolored and
// rescaled by a renderer without re-rasterizing.
package raster

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

const (
	// MaxSampleSize is the largest edge, in pixels, inspected by IsMonochrome
	MaxSampleSize = 64
	// AlphaThreshold is the minimum alpha for a pixel to count as opaque
	AlphaThreshold = 10
	// ChannelTolerance is the largest allowed difference between RGB channels
	ChannelTolerance = 12
	// DefaultSDFRadius is the distance in pixels mapped onto the full alpha range
	DefaultSDFRadius = 12
	// insideThreshold binarizes alpha for the distance transform
	insideThreshold = 128
)

// IsMonochrome reports whether every visible pixel of img is a shade of grey.
// Large images are downscaled to at most MaxSampleSize pixels first.
func IsMonochrome(img image.Image) bool {
	sample := Downscale(img, MaxSampleSize)
	b := sample.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := sample.NRGBAAt(x, y)
			if c.A < AlphaThreshold {
				continue
			}
			if absDiff(c.R, c.G) > ChannelTolerance ||
				absDiff(c.G, c.B) > ChannelTolerance ||
				absDiff(c.R, c.B) > ChannelTolerance {
				return false
			}
		}
	}
	return true
}

// Downscale returns img as NRGBA, shrunk so that neither edge exceeds maxEdge.
// Images already within bounds are copied unscaled.
func Downscale(img image.Image, maxEdge int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxEdge || h > maxEdge {
		if w >= h {
			h = max(1, h*maxEdge/w)
			w = maxEdge
		} else {
			w = max(1, w*maxEdge/h)
			h = maxEdge
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// toNRGBA converts any image into a zero-origin NRGBA.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// Tint recolors an SDF produced by BuildSDF. Pixels inside the shape get col,
// with a one-pixel antialiased edge around the 128 iso-line.
func Tint(sdf *image.NRGBA, col color.NRGBA, radius float64) *image.NRGBA {
	if radius <= 0 {
		radius = DefaultSDFRadius
	}
	b := sdf.Bounds()
	out := image.NewNRGBA(b)
	// one pixel of distance in alpha units
	edge := 128 / radius

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := float64(sdf.NRGBAAt(x, y).A)
			coverage := (a - 128 + edge/2) / edge
			if coverage <= 0 {
				continue
			}
			if coverage > 1 {
				coverage = 1
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: col.R,
				G: col.G,
				B: col.B,
				A: uint8(float64(col.A)*coverage + 0.5),
			})
		}
	}
	return out
}
