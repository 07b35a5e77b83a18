// Package store is the single source of truth for an annotation document:
// the current feature collection, a bounded undo history, the redo branch,
// the selection and the view bookmarks.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/sitac/internal/codec"
	"github.com/OCAP2/sitac/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultHistoryLimit  = 50
	DefaultSnapshotLimit = 4
)

// ErrDuplicateID is returned when a feature id is already in the collection
var ErrDuplicateID = errors.New("duplicate feature id")

// ChangeKind tells subscribers what kind of mutation happened
type ChangeKind string

const (
	ChangeAdd       ChangeKind = "add"
	ChangeUpdate    ChangeKind = "update"
	ChangeDelete    ChangeKind = "delete"
	ChangeDuplicate ChangeKind = "duplicate"
	ChangeReplace   ChangeKind = "replace"
	ChangeReset     ChangeKind = "reset"
	ChangeUndo      ChangeKind = "undo"
	ChangeRedo      ChangeKind = "redo"
	ChangeClear     ChangeKind = "clear"
	ChangeSelect    ChangeKind = "select"
	ChangeSnapshot  ChangeKind = "snapshot"
)

// Rebuilds reports whether live objects must be reconstructed after k.
func (k ChangeKind) Rebuilds() bool {
	switch k {
	case ChangeSelect, ChangeSnapshot:
		return false
	}
	return true
}

// Change is delivered to subscribers after a mutation
type Change struct {
	Kind     ChangeKind
	Selected string
}

// Options configures a Store
type Options struct {
	HistoryLimit  int
	SnapshotLimit int
	Logger        *slog.Logger
}

// Store holds the document state. All methods are safe for concurrent use;
// subscribers are notified after the lock is released.
type Store struct {
	mu        sync.RWMutex
	history   []core.FeatureCollection
	redo      []core.FeatureCollection
	selected  string
	snapshots []core.Snapshot

	opts   Options
	logger *slog.Logger

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int

	edits metric.Int64Counter
}

// New creates a Store holding an empty collection.
func New(opts Options) *Store {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.SnapshotLimit <= 0 {
		opts.SnapshotLimit = DefaultSnapshotLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		history: []core.FeatureCollection{{}},
		opts:    opts,
		logger:  opts.Logger,
		subs:    make(map[int]func(Change)),
	}

	edits, err := meter().Int64Counter(
		"store.edits",
		metric.WithDescription("Total document mutations"),
	)
	if err != nil {
		s.logger.Warn("Failed to create store edit counter", "error", err)
	}
	s.edits = edits
	return s
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(c Change) {
	if s.edits != nil && c.Kind.Rebuilds() {
		s.edits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(c.Kind))))
	}

	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// current returns the live collection. Callers hold the lock.
func (s *Store) current() core.FeatureCollection {
	return s.history[len(s.history)-1]
}

// push records fc as the new current collection and drops the redo branch.
// Callers hold the write lock.
func (s *Store) push(fc core.FeatureCollection) error {
	cp, err := codec.Clone(fc)
	if err != nil {
		return err
	}
	s.history = append(s.history, cp)
	if over := len(s.history) - s.opts.HistoryLimit; over > 0 {
		s.history = append([]core.FeatureCollection(nil), s.history[over:]...)
	}
	s.redo = nil
	return nil
}

// Collection returns a deep copy of the current collection.
func (s *Store) Collection() core.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current().Clone()
}

// Feature returns a copy of the feature with the given id.
func (s *Store) Feature(id string) (core.Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.current().Find(id)
	if !ok {
		return core.Feature{}, false
	}
	return f.Clone(), true
}

// AddFeature appends f, records history and selects it.
func (s *Store) AddFeature(f core.Feature) error {
	if err := codec.Validate(f); err != nil {
		return err
	}

	s.mu.Lock()
	cur := s.current()
	if cur.Index(f.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, f.ID)
	}
	next := cur.Clone()
	next.Features = append(next.Features, f.Clone())
	if err := s.push(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.selected = f.ID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAdd, Selected: f.ID})
	return nil
}

// UpdateFeature applies fn to a copy of the feature with the given id and
// records the result. It reports false without touching history when the id
// is absent or the result is invalid. The id cannot be changed by fn.
func (s *Store) UpdateFeature(id string, fn func(*core.Feature)) bool {
	s.mu.Lock()
	cur := s.current()
	i := cur.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	next := cur.Clone()
	fn(&next.Features[i])
	next.Features[i].ID = id
	next.Features[i].Style.Rotation = core.NormalizeRotation(next.Features[i].Style.Rotation)

	if err := codec.Validate(next.Features[i]); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Rejected feature update", "id", id, "error", err)
		return false
	}
	if err := s.push(next); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to record feature update", "id", id, "error", err)
		return false
	}
	sel := s.selected
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdate, Selected: sel})
	return true
}

// DeleteFeature removes the feature with the given id and clears the selection.
func (s *Store) DeleteFeature(id string) bool {
	s.mu.Lock()
	cur := s.current()
	i := cur.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	next := cur.Clone()
	next.Features = append(next.Features[:i], next.Features[i+1:]...)
	if err := s.push(next); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to record delete", "id", id, "error", err)
		return false
	}
	s.selected = ""
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDelete})
	return true
}

// DuplicateFeature appends a copy of the feature under a fresh id at the same
// position and selects it. It returns the new id, or "" if id is absent.
func (s *Store) DuplicateFeature(id string) string {
	s.mu.Lock()
	cur := s.current()
	orig, ok := cur.Find(id)
	if !ok {
		s.mu.Unlock()
		return ""
	}
	clone := orig.Clone()
	clone.ID = core.NewID()
	next := cur.Clone()
	next.Features = append(next.Features, clone)
	if err := s.push(next); err != nil {
		s.mu.Unlock()
		s.logger.Warn("Failed to record duplicate", "id", id, "error", err)
		return ""
	}
	s.selected = clone.ID
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeDuplicate, Selected: clone.ID})
	return clone.ID
}

// SetCollection replaces the whole collection. With recordHistory the
// replacement is undoable; without it history is reset to a single root
// holding fc. Invalid features are dropped and duplicate ids re-minted.
func (s *Store) SetCollection(fc core.FeatureCollection, recordHistory bool) {
	clean := s.sanitize(fc)

	s.mu.Lock()
	kind := ChangeReplace
	if recordHistory {
		if err := s.push(clean); err != nil {
			s.mu.Unlock()
			s.logger.Warn("Failed to record collection", "error", err)
			return
		}
	} else {
		kind = ChangeReset
		s.history = []core.FeatureCollection{clean}
		s.redo = nil
	}
	if s.selected != "" && clean.Index(s.selected) < 0 {
		s.selected = ""
	}
	sel := s.selected
	s.mu.Unlock()

	s.notify(Change{Kind: kind, Selected: sel})
}

func (s *Store) sanitize(fc core.FeatureCollection) core.FeatureCollection {
	out := core.FeatureCollection{Features: make([]core.Feature, 0, len(fc.Features))}
	seen := make(map[string]bool, len(fc.Features))
	for _, f := range fc.Features {
		f = f.Clone()
		if f.ID == "" || seen[f.ID] {
			old := f.ID
			f.ID = core.NewID()
			s.logger.Warn("Re-minted duplicate feature id", "old", old, "new", f.ID)
		}
		if err := codec.Validate(f); err != nil {
			s.logger.Warn("Dropped invalid feature", "id", f.ID, "error", err)
			continue
		}
		seen[f.ID] = true
		out.Features = append(out.Features, f)
	}
	return out
}

// Undo steps back one history entry. It is a no-op at the root.
func (s *Store) Undo() bool {
	s.mu.Lock()
	if len(s.history) <= 1 {
		s.mu.Unlock()
		return false
	}
	last := len(s.history) - 1
	s.redo = append([]core.FeatureCollection{s.history[last]}, s.redo...)
	s.history = s.history[:last]
	s.dropStaleSelection()
	sel := s.selected
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUndo, Selected: sel})
	return true
}

// Redo re-applies the most recently undone entry. It is a no-op when the
// redo branch is empty.
func (s *Store) Redo() bool {
	s.mu.Lock()
	if len(s.redo) == 0 {
		s.mu.Unlock()
		return false
	}
	s.history = append(s.history, s.redo[0])
	s.redo = s.redo[1:]
	if over := len(s.history) - s.opts.HistoryLimit; over > 0 {
		s.history = s.history[over:]
	}
	s.dropStaleSelection()
	sel := s.selected
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRedo, Selected: sel})
	return true
}

func (s *Store) dropStaleSelection() {
	if s.selected != "" && s.current().Index(s.selected) < 0 {
		s.selected = ""
	}
}

// Clear resets the document to an empty collection with no history.
func (s *Store) Clear() {
	s.mu.Lock()
	s.history = []core.FeatureCollection{{}}
	s.redo = nil
	s.selected = ""
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeClear})
}

// Select marks id as the selected feature; "" clears the selection.
// Unknown ids clear the selection.
func (s *Store) Select(id string) {
	s.mu.Lock()
	if id != "" && s.current().Index(id) < 0 {
		id = ""
	}
	if s.selected == id {
		s.mu.Unlock()
		return
	}
	s.selected = id
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSelect, Selected: id})
}

// Selected returns the selected feature id, or "".
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// HistoryLen returns the number of history entries, including the root.
func (s *Store) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// RedoLen returns the number of undone entries available to Redo.
func (s *Store) RedoLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.redo)
}

// AddSnapshot bookmarks a view. Only the most recent SnapshotLimit are kept.
func (s *Store) AddSnapshot(center core.LngLat, zoom float64) core.Snapshot {
	snap := core.Snapshot{ID: core.NewID(), Center: center, Zoom: zoom}

	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	if over := len(s.snapshots) - s.opts.SnapshotLimit; over > 0 {
		s.snapshots = append([]core.Snapshot(nil), s.snapshots[over:]...)
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSnapshot, Selected: s.Selected()})
	return snap
}

// RemoveSnapshot deletes a bookmark by id.
func (s *Store) RemoveSnapshot(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, snap := range s.snapshots {
		if snap.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.snapshots = append(s.snapshots[:idx:idx], s.snapshots[idx+1:]...)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeSnapshot, Selected: s.Selected()})
	return true
}

// Snapshots returns the bookmarks, oldest first.
func (s *Store) Snapshots() []core.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Snapshot(nil), s.snapshots...)
}

// SetSnapshots replaces the bookmarks, keeping the most recent SnapshotLimit.
func (s *Store) SetSnapshots(snaps []core.Snapshot) {
	if over := len(snaps) - s.opts.SnapshotLimit; over > 0 {
		snaps = snaps[over:]
	}
	s.mu.Lock()
	s.snapshots = append([]core.Snapshot(nil), snaps...)
	s.mu.Unlock()
}
