package mode

import "github.com/OCAP2/sitac/pkg/core"

// Effect is an instruction for the host produced by Step
type Effect interface {
	effect()
}

// SetNavigation enables or disables map pan/zoom/rotate/box-zoom gestures
type SetNavigation struct{ Enabled bool }

// ShowDraft renders the in-progress drawing
type ShowDraft struct{ Draft Draft }

// ClearDraft removes any draft rendering
type ClearDraft struct{}

// Commit persists a finished feature. Draft is the gesture that produced it.
type Commit struct {
	Feature core.Feature
	Draft   Draft
}

// SelectFeature changes the selection; an empty ID clears it
type SelectFeature struct{ ID string }

// TransformKind is the manipulation applied by a Transform
type TransformKind string

const (
	TransformMove   TransformKind = "move"
	TransformResize TransformKind = "resize"
	TransformRotate TransformKind = "rotate"
)

// Transform is an incremental manipulation of a live object. Final marks the
// end of the gesture, when the object must be re-committed.
type Transform struct {
	ID    string
	Kind  TransformKind
	Delta core.Point
	Scale float64
	Angle float64
	Final bool
}

// EraseAt deletes the top-most object under the point
type EraseAt struct{ At core.Point }

// DeleteSelected deletes the current selection
type DeleteSelected struct{}

// BeginTextEdit focuses a text editor at a screen position. ID is empty for
// a new text draft.
type BeginTextEdit struct {
	ID string
	At core.Point
}

// EditText replaces the content of an existing text object. Intermediate
// edits update the live object only; Final edits are persisted.
type EditText struct {
	ID      string
	Content string
	Final   bool
}

// PlaceSymbol asks the host to load an asset and commit it once ready
type PlaceSymbol struct {
	Asset  core.Asset
	At     core.Point
	Anchor core.LngLat
	Style  core.Style
}

// CancelTasks aborts tasks bound to the lifetime of the previous mode
type CancelTasks struct{}

func (SetNavigation) effect()  {}
func (ShowDraft) effect()      {}
func (ClearDraft) effect()     {}
func (Commit) effect()         {}
func (SelectFeature) effect()  {}
func (Transform) effect()      {}
func (EraseAt) effect()        {}
func (DeleteSelected) effect() {}
func (BeginTextEdit) effect()  {}
func (EditText) effect()       {}
func (PlaceSymbol) effect()    {}
func (CancelTasks) effect()    {}
