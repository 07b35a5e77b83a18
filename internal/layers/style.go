package layers

import "github.com/OCAP2/sitac/pkg/core"

// Source and layer ids
const (
	SourceID      = "sitac"
	DraftSourceID = "sitac-draft"

	FillLayerID   = "sitac-fill"
	LineLayerID   = "sitac-line"
	IconLayerID   = "sitac-icon"
	TextLayerID   = "sitac-text"
	DraftLayerID  = "sitac-draft-line"
	HighlightLine = "sitac-highlight-line"
	HighlightFill = "sitac-highlight-fill"
	HighlightDot  = "sitac-highlight-point"

	// HighlightColor is the contrasting selection color
	HighlightColor = "#00e5ff"
)

// Layer is one style layer in the map style document.
type Layer struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Filter []any          `json:"filter,omitempty"`
	Layout map[string]any `json:"layout,omitempty"`
	Paint  map[string]any `json:"paint,omitempty"`
}

func typeIn(types ...core.FeatureType) []any {
	names := make([]any, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return []any{"in", []any{"get", "type"}, []any{"literal", names}}
}

// dashPattern selects the dash array from the feature's lineStyle.
func dashPattern() []any {
	return []any{"match", []any{"get", "lineStyle"},
		string(core.LineDashed), []any{"literal", []any{4, 2}},
		string(core.LineDotDash), []any{"literal", []any{4, 2, 1, 2}},
		[]any{"literal", []any{1, 0}},
	}
}

// selectedFilter matches the selected feature restricted to a geometry type.
// An empty id matches nothing.
func selectedFilter(id string, geometryTypes ...string) []any {
	types := make([]any, len(geometryTypes))
	for i, t := range geometryTypes {
		types[i] = t
	}
	return []any{"all",
		[]any{"==", []any{"id"}, id},
		[]any{"in", []any{"geometry-type"}, []any{"literal", types}},
	}
}

// baseLayers are the data layers over the annotation source.
func baseLayers() []Layer {
	return []Layer{
		{
			ID: FillLayerID, Type: "fill", Source: SourceID,
			Filter: typeIn(core.TypePolygon, core.TypeRect, core.TypeCircle),
			Paint: map[string]any{
				"fill-color":         []any{"get", "color"},
				"fill-opacity":       0.25,
				"fill-outline-color": []any{"get", "color"},
			},
		},
		{
			ID: LineLayerID, Type: "line", Source: SourceID,
			Filter: typeIn(core.TypeLine, core.TypeFreehand, core.TypeArrow),
			Layout: map[string]any{"line-cap": "round", "line-join": "round"},
			Paint: map[string]any{
				"line-color":     []any{"get", "color"},
				"line-width":     []any{"get", "strokeWidth"},
				"line-dasharray": dashPattern(),
			},
		},
		{
			ID: IconLayerID, Type: "symbol", Source: SourceID,
			Filter: typeIn(core.TypeSymbol),
			Layout: map[string]any{
				"icon-image":              []any{"get", "iconName"},
				"icon-rotate":             []any{"get", "rotation"},
				"icon-size":               []any{"coalesce", []any{"get", "scaleX"}, 1},
				"icon-allow-overlap":      true,
				"icon-rotation-alignment": "map",
			},
			Paint: map[string]any{
				// tint only recolorable icons
				"icon-color": []any{"case",
					[]any{"==", []any{"get", "colorizable"}, true}, []any{"get", "color"},
					"#000000",
				},
			},
		},
		{
			ID: TextLayerID, Type: "symbol", Source: SourceID,
			Filter: typeIn(core.TypeText),
			Layout: map[string]any{
				"text-field":              []any{"get", "textContent"},
				"text-size":               []any{"get", "textSize"},
				"text-rotate":             []any{"get", "rotation"},
				"text-allow-overlap":      true,
				"text-rotation-alignment": "map",
			},
			Paint: map[string]any{"text-color": []any{"get", "color"}},
		},
	}
}

// highlightLayers restyle the selected feature.
func highlightLayers(selected string) []Layer {
	return []Layer{
		{
			ID: HighlightFill, Type: "fill", Source: SourceID,
			Filter: selectedFilter(selected, "Polygon", "MultiPolygon"),
			Paint:  map[string]any{"fill-color": HighlightColor, "fill-opacity": 0.15},
		},
		{
			ID: HighlightLine, Type: "line", Source: SourceID,
			Filter: selectedFilter(selected, "LineString", "MultiLineString", "Polygon", "MultiPolygon"),
			Paint: map[string]any{
				"line-color": HighlightColor,
				"line-width": []any{"+", []any{"get", "strokeWidth"}, 4},
			},
		},
		{
			ID: HighlightDot, Type: "circle", Source: SourceID,
			Filter: selectedFilter(selected, "Point"),
			Paint: map[string]any{
				"circle-radius":       18,
				"circle-color":        "rgba(0,0,0,0)",
				"circle-stroke-color": HighlightColor,
				"circle-stroke-width": 3,
			},
		},
	}
}

func draftLayer() Layer {
	return Layer{
		ID: DraftLayerID, Type: "line", Source: DraftSourceID,
		Paint: map[string]any{
			"line-color":     HighlightColor,
			"line-width":     2,
			"line-dasharray": []any{2, 2},
		},
	}
}
