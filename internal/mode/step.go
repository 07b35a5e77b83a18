package mode

import (
	"math"
	"strings"

	"github.com/OCAP2/sitac/pkg/core"
)

// Step applies one event to a state. It returns the next state and the
// effects the host must apply, in order. The input state is never modified.
func Step(s State, e Event, env Env) (State, []Effect) {
	switch ev := e.(type) {
	case SetMode:
		return setMode(s, ev.Mode)
	case SetStyle:
		s.Style = ev.Style
		return s, nil
	case SetActiveSymbol:
		s.Symbol = ev.Asset
		return s, nil
	case KeyDown:
		return keyDown(s, ev, env)
	case TextChanged:
		return textChanged(s, ev)
	case TextBlur:
		return textBlur(s, env)
	case Drop:
		return placeSymbol(s, ev.Asset, ev.At, env)
	}

	switch s.Mode {
	case View, Select:
		return stepSelect(s, e, env)
	case DrawLine, DrawArrow, DrawRect, DrawCircle, DrawFreehand:
		return stepDrag(s, e, env)
	case DrawPolygon:
		return stepPolygon(s, e, env)
	case DrawText:
		return stepText(s, e)
	case DrawSymbol:
		if c, ok := e.(Click); ok {
			return placeSymbol(s, s.Symbol, c.At, env)
		}
	case Erase:
		if c, ok := e.(Click); ok {
			return s, []Effect{EraseAt{At: c.At}}
		}
	}
	return s, nil
}

func setMode(s State, m Mode) (State, []Effect) {
	if !m.Valid() {
		return s, nil
	}

	var effects []Effect
	if s.Draft != nil {
		effects = append(effects, ClearDraft{})
	}
	if g := s.Gesture; g != nil && g.Moved {
		// the object already moved on screen; keep it where the operator left it
		t := g.transform(g.Last)
		t.Final = true
		effects = append(effects, t)
	}
	if s.Editing != "" && s.Dirty {
		effects = append(effects, EditText{ID: s.Editing, Content: s.Buffer, Final: true})
	}
	effects = append(effects, CancelTasks{})
	if m.Drawing() != s.Mode.Drawing() {
		effects = append(effects, SetNavigation{Enabled: !m.Drawing()})
	}

	s.Mode = m
	s.Draft = nil
	s.Gesture = nil
	s = endTextEdit(s)
	return s, effects
}

func keyDown(s State, ev KeyDown, env Env) (State, []Effect) {
	switch ev.Key {
	case "Escape":
		if s.Draft == nil {
			return s, nil
		}
		s.Draft = nil
		return s, []Effect{ClearDraft{}}
	case "Enter":
		if s.Draft != nil && s.Draft.Kind == core.TypePolygon {
			return finish(s, s.Draft.clone(), env)
		}
	case "Delete", "Backspace":
		if s.TextEditing() {
			return s, nil
		}
		return s, []Effect{DeleteSelected{}}
	}
	return s, nil
}

func textChanged(s State, ev TextChanged) (State, []Effect) {
	if s.Draft != nil && s.Draft.Kind == core.TypeText {
		d := s.Draft.clone()
		d.Text = ev.Content
		s.Draft = d
		return s, []Effect{ShowDraft{Draft: *d}}
	}
	if s.Editing != "" {
		s.Buffer = ev.Content
		s.Dirty = true
		return s, []Effect{EditText{ID: s.Editing, Content: ev.Content}}
	}
	return s, nil
}

func textBlur(s State, env Env) (State, []Effect) {
	if s.Draft != nil && s.Draft.Kind == core.TypeText {
		d := s.Draft.clone()
		if strings.TrimSpace(d.Text) == "" {
			s.Draft = nil
			return s, []Effect{ClearDraft{}}
		}
		return finish(s, d, env)
	}
	if s.Editing != "" {
		var effects []Effect
		if s.Dirty {
			effects = append(effects, EditText{ID: s.Editing, Content: s.Buffer, Final: true})
		}
		return endTextEdit(s), effects
	}
	return s, nil
}

func endTextEdit(s State) State {
	s.Editing = ""
	s.Buffer = ""
	s.Dirty = false
	return s
}

func placeSymbol(s State, a core.Asset, at core.Point, env Env) (State, []Effect) {
	if a.ID == "" && a.URL == "" {
		return s, nil
	}
	anchor := env.Unproject(at)
	if !anchor.Finite() {
		return s, nil
	}
	style := s.Style
	style.BaseZoom = env.Zoom()

	var effects []Effect
	if s.Draft != nil {
		effects = append(effects, ClearDraft{})
		s.Draft = nil
	}
	effects = append(effects, PlaceSymbol{Asset: a, At: at, Anchor: anchor, Style: style})
	return toSelect(s, effects)
}

// toSelect performs the automatic post-commit switch to select mode. Unlike
// an explicit SetMode it does not cancel running tasks.
func toSelect(s State, effects []Effect) (State, []Effect) {
	if s.Mode.Drawing() {
		effects = append(effects, SetNavigation{Enabled: true})
	}
	s.Mode = Select
	return s, effects
}

// finish builds a feature from the draft and commits it, or discards the
// draft when it is too small to keep. A discarded draft leaves the mode as is.
func finish(s State, d *Draft, env Env) (State, []Effect) {
	s.Draft = nil
	f, ok := build(*d, s, env)
	if !ok {
		return s, []Effect{ClearDraft{}}
	}
	return toSelect(s, []Effect{ClearDraft{}, Commit{Feature: f, Draft: *d}})
}

var draftKinds = map[Mode]core.FeatureType{
	DrawLine:     core.TypeLine,
	DrawArrow:    core.TypeArrow,
	DrawRect:     core.TypeRect,
	DrawCircle:   core.TypeCircle,
	DrawFreehand: core.TypeFreehand,
}

func stepDrag(s State, e Event, env Env) (State, []Effect) {
	switch ev := e.(type) {
	case PointerDown:
		if s.Draft != nil {
			return s, nil
		}
		d := &Draft{Kind: draftKinds[s.Mode], Start: ev.At, Current: ev.At, Origin: ev.At}
		if d.Kind == core.TypeFreehand {
			d.Points = []core.Point{ev.At}
		}
		s.Draft = d
		return s, []Effect{ShowDraft{Draft: *d}}
	case PointerMove:
		if s.Draft == nil {
			return s, nil
		}
		d := s.Draft.clone()
		d.drag(ev.At)
		s.Draft = d
		return s, []Effect{ShowDraft{Draft: *d}}
	case PointerUp:
		if s.Draft == nil {
			return s, nil
		}
		d := s.Draft.clone()
		d.drag(ev.At)
		return finish(s, d, env)
	}
	return s, nil
}

// drag moves the pointer end of a press-drag-release draft.
func (d *Draft) drag(p core.Point) {
	d.Current = p
	switch d.Kind {
	case core.TypeFreehand:
		if n := len(d.Points); n == 0 || d.Points[n-1] != p {
			d.Points = append(d.Points, p)
		}
	case core.TypeRect:
		d.Origin = core.Point{X: math.Min(d.Start.X, p.X), Y: math.Min(d.Start.Y, p.Y)}
		d.Width = math.Abs(p.X - d.Start.X)
		d.Height = math.Abs(p.Y - d.Start.Y)
	}
}

func stepPolygon(s State, e Event, env Env) (State, []Effect) {
	switch ev := e.(type) {
	case Click:
		if s.Draft == nil {
			d := &Draft{Kind: core.TypePolygon, Start: ev.At, Current: ev.At, Points: []core.Point{ev.At}}
			s.Draft = d
			return s, []Effect{ShowDraft{Draft: *d}}
		}
		d := s.Draft.clone()
		if len(d.Points) >= 3 && ev.At.Dist(d.Points[0]) <= s.Config.CloseRadius {
			return finish(s, d, env)
		}
		// the repeated click of a double-click
		if ev.At.Dist(d.Points[len(d.Points)-1]) < 1 {
			return s, nil
		}
		d.Points = append(d.Points, ev.At)
		d.Current = ev.At
		s.Draft = d
		return s, []Effect{ShowDraft{Draft: *d}}
	case PointerMove:
		if s.Draft == nil {
			return s, nil
		}
		d := s.Draft.clone()
		d.Current = ev.At
		s.Draft = d
		return s, []Effect{ShowDraft{Draft: *d}}
	case DoubleClick:
		if s.Draft == nil || len(s.Draft.Points) < 3 {
			return s, nil
		}
		return finish(s, s.Draft.clone(), env)
	}
	return s, nil
}

func stepText(s State, e Event) (State, []Effect) {
	c, ok := e.(Click)
	if !ok || s.Draft != nil {
		return s, nil
	}
	d := &Draft{Kind: core.TypeText, Start: c.At, Current: c.At}
	s.Draft = d
	return s, []Effect{BeginTextEdit{At: c.At}, ShowDraft{Draft: *d}}
}

func stepSelect(s State, e Event, env Env) (State, []Effect) {
	switch ev := e.(type) {
	case PointerDown:
		hit, ok := env.Pick(ev.At)
		if !ok {
			s.Gesture = nil
			return s, []Effect{SelectFeature{}}
		}
		s.Gesture = &Gesture{ID: hit.ID, Handle: hit.Handle, Center: hit.Center, Last: ev.At}
		return s, []Effect{SelectFeature{ID: hit.ID}}
	case PointerMove:
		if s.Gesture == nil {
			return s, nil
		}
		g := *s.Gesture
		t := g.transform(ev.At)
		g.Last = ev.At
		g.Moved = true
		s.Gesture = &g
		return s, []Effect{t}
	case PointerUp:
		if s.Gesture == nil {
			return s, nil
		}
		g := *s.Gesture
		s.Gesture = nil
		if !g.Moved && ev.At == g.Last {
			return s, nil
		}
		t := g.transform(ev.At)
		t.Final = true
		return s, []Effect{t}
	case DoubleClick:
		hit, ok := env.Pick(ev.At)
		if !ok || hit.Type != core.TypeText {
			return s, nil
		}
		s = endTextEdit(s)
		s.Editing = hit.ID
		return s, []Effect{BeginTextEdit{ID: hit.ID, At: hit.Center}}
	}
	return s, nil
}

// transform converts pointer motion from g.Last to p into an incremental
// manipulation.
func (g Gesture) transform(p core.Point) Transform {
	switch g.Handle {
	case HandleResize:
		scale := 1.0
		if d0, d1 := g.Last.Dist(g.Center), p.Dist(g.Center); d0 > 0 && d1 > 0 {
			scale = d1 / d0
		}
		return Transform{ID: g.ID, Kind: TransformResize, Scale: scale}
	case HandleRotate:
		a0 := math.Atan2(g.Last.Y-g.Center.Y, g.Last.X-g.Center.X)
		a1 := math.Atan2(p.Y-g.Center.Y, p.X-g.Center.X)
		deg := (a1 - a0) * 180 / math.Pi
		if deg > 180 {
			deg -= 360
		} else if deg <= -180 {
			deg += 360
		}
		return Transform{ID: g.ID, Kind: TransformRotate, Angle: deg}
	default:
		return Transform{ID: g.ID, Kind: TransformMove, Delta: p.Sub(g.Last), Scale: 1}
	}
}
