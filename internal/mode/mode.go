// Package mode implements the drawing-mode state machine. Step is a pure
// transition function: it never touches a rendering surface or the store,
// it only returns the effects a host must apply.
package mode

import (
	"strings"

	"github.com/OCAP2/sitac/pkg/core"
)

// Mode is the active interaction tool
type Mode string

const (
	View         Mode = "view"
	Select       Mode = "select"
	DrawSymbol   Mode = "draw_symbol"
	DrawLine     Mode = "draw_line"
	DrawArrow    Mode = "draw_arrow"
	DrawFreehand Mode = "draw_freehand"
	DrawRect     Mode = "draw_rect"
	DrawCircle   Mode = "draw_circle"
	DrawPolygon  Mode = "draw_polygon"
	DrawText     Mode = "draw_text"
	Erase        Mode = "erase"
)

// Modes lists every mode.
var Modes = []Mode{View, Select, DrawSymbol, DrawLine, DrawArrow, DrawFreehand, DrawRect, DrawCircle, DrawPolygon, DrawText, Erase}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Drawing reports whether m is one of the draw_* modes, during which map
// navigation is disabled.
func (m Mode) Drawing() bool {
	return strings.HasPrefix(string(m), "draw_")
}

// Handle is the part of an object grabbed by a pointer
type Handle string

const (
	HandleBody   Handle = "body"
	HandleResize Handle = "resize"
	HandleRotate Handle = "rotate"
)

// Hit is the result of a hit-test on the editing surface
type Hit struct {
	ID     string
	Type   core.FeatureType
	Handle Handle
	// Center is the screen position of the object's visual center
	Center core.Point
}

// Env answers the read-only questions the machine needs while building
// drafts and resolving gestures.
type Env interface {
	Project(core.LngLat) core.Point
	Unproject(core.Point) core.LngLat
	Zoom() float64
	Pick(core.Point) (Hit, bool)
}

// Config holds the gesture thresholds
type Config struct {
	// MinLineLength is the shortest line or arrow, in pixels, that is committed
	MinLineLength float64
	// CloseRadius is the distance to the first polygon vertex that closes it
	CloseRadius float64
	// SimplifyTolerance is the freehand simplification tolerance in degrees
	SimplifyTolerance float64
	// MinShapeSize is the smallest rect edge or circle radius committed
	MinShapeSize float64
	TextSize     float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinLineLength:     10,
		CloseRadius:       10,
		SimplifyTolerance: 5e-5,
		MinShapeSize:      1,
		TextSize:          16,
	}
}

// Draft is an in-progress, never persisted drawing in screen pixels
type Draft struct {
	Kind    core.FeatureType
	Start   core.Point
	Current core.Point
	// Points holds the polygon vertices or the freehand stream
	Points []core.Point
	Text   string
	// Origin is the normalized top-left corner of a rect draft
	Origin core.Point
	Width  float64
	Height float64
}

func (d Draft) clone() *Draft {
	d.Points = append([]core.Point(nil), d.Points...)
	return &d
}

// Gesture is an active select-mode manipulation of one object
type Gesture struct {
	ID     string
	Handle Handle
	Center core.Point
	Last   core.Point
	Moved  bool
}

// State is the complete machine state
type State struct {
	Mode   Mode
	Style  core.Style
	Symbol core.Asset
	Draft  *Draft
	// Gesture is set while an object is being dragged, resized or rotated
	Gesture *Gesture
	// Editing is the id of the existing text object being edited
	Editing string
	// Buffer holds the edited content once it has changed
	Buffer string
	Dirty  bool
	Config Config
}

// NewState returns the initial state: view mode with the default style.
func NewState(cfg Config) State {
	return State{
		Mode:   View,
		Style:  core.DefaultStyle,
		Config: cfg,
	}
}

// TextEditing reports whether a text object or text draft has keyboard focus.
func (s State) TextEditing() bool {
	return s.Editing != "" || (s.Draft != nil && s.Draft.Kind == core.TypeText)
}
