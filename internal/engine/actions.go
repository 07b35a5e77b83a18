package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OCAP2/sitac/internal/dispatcher"
	"github.com/OCAP2/sitac/internal/mode"
	"github.com/OCAP2/sitac/internal/util"
	"github.com/OCAP2/sitac/pkg/core"
)

// Action names
const (
	ActionMode              = "mode"
	ActionDeleteSelected    = "delete-selected"
	ActionDuplicateSelected = "duplicate-selected"
	ActionUndo              = "undo"
	ActionRedo              = "redo"
	ActionClear             = "clear"
	ActionSetColor          = "set-color"
	ActionSetLineStyle      = "set-line-style"
	ActionSetStrokeWidth    = "set-stroke-width"
	ActionSetRotation       = "set-rotation"
	ActionSetText           = "set-text"
	ActionSetTextSize       = "set-text-size"
	ActionBookmark          = "bookmark"
	ActionGotoBookmark      = "goto-bookmark"
	ActionRemoveBookmark    = "remove-bookmark"
)

var (
	// ErrNoSelection is returned by actions that need a selected feature
	ErrNoSelection = errors.New("no feature selected")
	// ErrInvalidArgument is returned for malformed action arguments
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownBookmark is returned for bookmark ids that do not exist
	ErrUnknownBookmark = errors.New("unknown bookmark")
)

// Dispatch runs a named action.
func (e *Engine) Dispatch(name string, args ...string) (any, error) {
	return e.actions.Dispatch(dispatcher.Action{Name: name, Args: args})
}

func (e *Engine) registerActions() {
	reg := func(name string, h dispatcher.HandlerFunc) {
		e.actions.Register(name, h, dispatcher.Logged())
	}

	reg(ActionMode, func(a dispatcher.Action) (any, error) {
		m := mode.Mode(a.Arg(0))
		if !m.Valid() {
			return nil, fmt.Errorf("%w: mode %q", ErrInvalidArgument, a.Arg(0))
		}
		e.Handle(mode.SetMode{Mode: m})
		return string(m), nil
	})

	reg(ActionDeleteSelected, e.locked(func(a dispatcher.Action) (any, error) {
		id := e.store.Selected()
		if id == "" {
			return nil, ErrNoSelection
		}
		return e.renderer.Remove(id), nil
	}))
	reg(ActionDuplicateSelected, e.locked(func(a dispatcher.Action) (any, error) {
		id := e.store.Selected()
		if id == "" {
			return nil, ErrNoSelection
		}
		return e.store.DuplicateFeature(id), nil
	}))
	reg(ActionUndo, e.locked(func(dispatcher.Action) (any, error) { return e.store.Undo(), nil }))
	reg(ActionRedo, e.locked(func(dispatcher.Action) (any, error) { return e.store.Redo(), nil }))
	reg(ActionClear, e.locked(func(dispatcher.Action) (any, error) {
		e.store.Clear()
		return true, nil
	}))

	reg(ActionSetColor, e.locked(func(a dispatcher.Action) (any, error) {
		hex, err := util.NormalizeHexColor(a.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return e.updateStyle(func(s *core.Style) { s.Color = hex })
	}))
	reg(ActionSetLineStyle, e.locked(func(a dispatcher.Action) (any, error) {
		ls := core.LineStyle(a.Arg(0))
		if !ls.Valid() {
			return nil, fmt.Errorf("%w: line style %q", ErrInvalidArgument, a.Arg(0))
		}
		return e.updateStyle(func(s *core.Style) { s.LineStyle = ls })
	}))
	reg(ActionSetStrokeWidth, e.locked(func(a dispatcher.Action) (any, error) {
		w, err := positive(a.Arg(0))
		if err != nil {
			return nil, err
		}
		return e.updateStyle(func(s *core.Style) { s.StrokeWidth = w })
	}))
	reg(ActionSetRotation, e.locked(func(a dispatcher.Action) (any, error) {
		deg, err := strconv.ParseFloat(a.Arg(0), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return e.updateSelected(func(f *core.Feature) { f.Style.Rotation = deg })
	}))
	reg(ActionSetText, e.locked(func(a dispatcher.Action) (any, error) {
		content := strings.Join(a.Args, " ")
		return e.updateSelected(func(f *core.Feature) {
			if t, ok := f.Shape.(*core.Text); ok {
				t.Content = content
			}
		})
	}))
	reg(ActionSetTextSize, e.locked(func(a dispatcher.Action) (any, error) {
		size, err := positive(a.Arg(0))
		if err != nil {
			return nil, err
		}
		return e.updateSelected(func(f *core.Feature) {
			if t, ok := f.Shape.(*core.Text); ok {
				t.Size = size
			}
		})
	}))

	reg(ActionBookmark, e.locked(func(dispatcher.Action) (any, error) {
		return e.store.AddSnapshot(e.m.Center(), e.m.Zoom()), nil
	}))
	reg(ActionGotoBookmark, e.locked(func(a dispatcher.Action) (any, error) {
		for _, snap := range e.store.Snapshots() {
			if snap.ID == a.Arg(0) {
				e.m.JumpTo(snap.Center, snap.Zoom)
				return snap, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownBookmark, a.Arg(0))
	}))
	reg(ActionRemoveBookmark, e.locked(func(a dispatcher.Action) (any, error) {
		if !e.store.RemoveSnapshot(a.Arg(0)) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBookmark, a.Arg(0))
		}
		return true, nil
	}))
}

// locked serializes a handler with the rest of the engine.
func (e *Engine) locked(h dispatcher.HandlerFunc) dispatcher.HandlerFunc {
	return func(a dispatcher.Action) (any, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return h(a)
	}
}

func positive(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %v must be positive", ErrInvalidArgument, v)
	}
	return v, nil
}

// updateStyle edits the selected feature's style, or the style used for new
// drawings when nothing is selected.
func (e *Engine) updateStyle(fn func(*core.Style)) (any, error) {
	if e.store.Selected() == "" {
		style := e.machine.State().Style
		fn(&style)
		e.machine.Handle(mode.SetStyle{Style: style})
		return style, nil
	}
	return e.updateSelected(func(f *core.Feature) { fn(&f.Style) })
}

func (e *Engine) updateSelected(fn func(*core.Feature)) (any, error) {
	id := e.store.Selected()
	if id == "" {
		return nil, ErrNoSelection
	}
	return e.store.UpdateFeature(id, fn), nil
}

// Properties is the editable projection of the selected feature shown by the
// property panel.
type Properties struct {
	ID          string           `json:"id"`
	Type        core.FeatureType `json:"type"`
	Color       string           `json:"color"`
	LineStyle   core.LineStyle   `json:"lineStyle"`
	StrokeWidth float64          `json:"strokeWidth"`
	Rotation    float64          `json:"rotation"`
	IconName    string           `json:"iconName,omitempty"`
	Colorizable bool             `json:"colorizable,omitempty"`
	TextContent string           `json:"textContent,omitempty"`
	TextSize    float64          `json:"textSize,omitempty"`
}

// SelectedProperties returns the properties of the selected feature.
func (e *Engine) SelectedProperties() (Properties, bool) {
	f, ok := e.store.Feature(e.store.Selected())
	if !ok {
		return Properties{}, false
	}
	p := Properties{
		ID:          f.ID,
		Type:        f.Type(),
		Color:       f.Style.Color,
		LineStyle:   f.Style.LineStyle,
		StrokeWidth: f.Style.StrokeWidth,
		Rotation:    f.Style.Rotation,
	}
	switch s := f.Shape.(type) {
	case *core.Symbol:
		p.IconName = s.IconName
		p.Colorizable = s.Colorizable
	case *core.Text:
		p.TextContent = s.Content
		p.TextSize = s.Size
	}
	return p, true
}
