package mode

import "github.com/OCAP2/sitac/pkg/core"

// Event is an input delivered to the machine
type Event interface {
	event()
}

type PointerDown struct{ At core.Point }
type PointerMove struct{ At core.Point }
type PointerUp struct{ At core.Point }
type Click struct{ At core.Point }
type DoubleClick struct{ At core.Point }

// KeyDown carries a key name as reported by the host, e.g. "Delete" or "Escape"
type KeyDown struct{ Key string }

// TextChanged is the live content of the focused text object
type TextChanged struct{ Content string }

// TextBlur ends text editing
type TextBlur struct{}

// Drop is a palette asset dropped onto the map
type Drop struct {
	At    core.Point
	Asset core.Asset
}

// SetMode is an explicit tool switch by the operator
type SetMode struct{ Mode Mode }

// SetStyle changes the drawing style used for new features
type SetStyle struct{ Style core.Style }

// SetActiveSymbol changes the palette asset placed by draw_symbol
type SetActiveSymbol struct{ Asset core.Asset }

func (PointerDown) event()     {}
func (PointerMove) event()     {}
func (PointerUp) event()       {}
func (Click) event()           {}
func (DoubleClick) event()     {}
func (KeyDown) event()         {}
func (TextChanged) event()     {}
func (TextBlur) event()        {}
func (Drop) event()            {}
func (SetMode) event()         {}
func (SetStyle) event()        {}
func (SetActiveSymbol) event() {}
