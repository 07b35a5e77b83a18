package raster

import (
	"image"
	"image/color"
	"math"
)

// BuildSDF converts the alpha channel of img into a signed distance field.
// Alpha is binarized into inside/outside masks, a 4-connected BFS distance
// transform runs from each mask's boundary, and the signed distance (positive
// inside) is encoded as alpha = clamp(128 + d·128/radius). RGB is white.
func BuildSDF(img image.Image, radius float64) *image.NRGBA {
	if radius <= 0 {
		radius = DefaultSDFRadius
	}
	src := toNRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	inside := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			inside[y*w+x] = src.NRGBAAt(x, y).A >= insideThreshold
		}
	}

	distIn := distanceTransform(inside, w, h, true)
	distOut := distanceTransform(inside, w, h, false)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	scale := 128 / radius
	for i := range inside {
		var signed float64
		if inside[i] {
			signed = distIn[i]
		} else {
			signed = -distOut[i]
		}
		a := math.Round(128 + signed*scale)
		a = math.Max(0, math.Min(255, a))
		out.SetNRGBA(i%w, i/w, color.NRGBA{R: 255, G: 255, B: 255, A: uint8(a)})
	}
	return out
}

// distanceTransform computes, for every pixel of the selected mask, the BFS
// step distance to the mask's boundary plus half a pixel, so the iso-line sits
// between the boundary pixels of the two masks. Pixels outside the mask, or in
// a mask with no boundary, are +Inf.
func distanceTransform(inside []bool, w, h int, mask bool) []float64 {
	dist := make([]float64, len(inside))
	queue := make([]int, 0, len(inside))

	for i := range dist {
		dist[i] = math.Inf(1)
		if inside[i] != mask {
			continue
		}
		if onBoundary(inside, w, h, i) {
			dist[i] = 0.5
			queue = append(queue, i)
		}
	}

	for head := 0; head < len(queue); head++ {
		i := queue[head]
		x, y := i%w, i/w
		next := dist[i] + 1
		for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
			nx, ny := n[0], n[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if inside[j] != mask || dist[j] <= next {
				continue
			}
			dist[j] = next
			queue = append(queue, j)
		}
	}
	return dist
}

// onBoundary reports whether pixel i has a 4-neighbour in the opposite mask.
func onBoundary(inside []bool, w, h, i int) bool {
	x, y := i%w, i/w
	v := inside[i]
	if x > 0 && inside[i-1] != v {
		return true
	}
	if x < w-1 && inside[i+1] != v {
		return true
	}
	if y > 0 && inside[i-w] != v {
		return true
	}
	if y < h-1 && inside[i+w] != v {
		return true
	}
	return false
}
