package undo

import (
	"log/slog"
	"time"

	"storyboard/internal/logging"
	"storyboard/internal/timeline"
)

// element is one snapshot: the storyboard as it was before the edit tagged by
// feature and clip.
type element struct {
	feature  Feature
	clip     timeline.ClipID
	snapshot *timeline.Storyboard
	created  time.Time
}

// Entry describes one history element for display.
type Entry struct {
	Feature Feature
	ClipID  timeline.ClipID
	Created time.Time
	// Cursor marks the element the next Undo applies.
	Cursor bool
}

// Engine is the undo/redo stack of one editing session. It is not safe for
// concurrent use; a session drives it from a single goroutine.
type Engine struct {
	// elements run oldest first; the last element is the root.
	elements []*element
	// cursor indexes the element the next Undo applies; -1 when exhausted.
	cursor      int
	groupDepth  int
	groupPushed bool
	maxDepth    int
	logger      *slog.Logger
	now         func() time.Time
}

// New returns an empty engine. maxDepth caps the retained snapshots (0 keeps
// everything).
func New(maxDepth int, logger *slog.Logger) *Engine {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Engine{
		cursor:   -1,
		maxDepth: maxDepth,
		logger:   logging.NewComponentLogger(logger, "undo"),
		now:      time.Now,
	}
}

// Push records current as the state before an edit. It must be called before
// the edit mutates the storyboard. The return value reports whether a new
// element was recorded; coalesced and grouped pushes return false.
func (e *Engine) Push(feature Feature, clip timeline.ClipID, current *timeline.Storyboard) bool {
	if current == nil {
		return false
	}
	if e.groupDepth > 0 && e.groupPushed {
		e.logger.Debug("push collapsed into open group",
			logging.String(logging.FieldFeature, feature.String()),
			logging.Int("group_depth", e.groupDepth),
		)
		return false
	}
	if feature.IsProperties() && e.atRoot() {
		top := e.elements[e.cursor]
		if top.feature == feature && top.clip == clip {
			e.logger.Debug("properties push coalesced",
				logging.String(logging.FieldFeature, feature.String()),
				logging.Clip(int(clip)),
			)
			return false
		}
	}

	e.discardRedo()
	e.elements = append(e.elements, &element{
		feature:  feature,
		clip:     clip,
		snapshot: current.Clone(),
		created:  e.now(),
	})
	e.cursor = len(e.elements) - 1
	if e.groupDepth > 0 {
		e.groupPushed = true
	}
	e.trim()
	e.logger.Debug("undo element pushed",
		logging.String(logging.FieldFeature, feature.String()),
		logging.Clip(int(clip)),
		logging.Int("depth", len(e.elements)),
	)
	return true
}

// Undo returns the storyboard to restore, or false when there is nothing left
// to undo. current is the live storyboard; the first Undo after an edit
// records it so Redo can come back.
func (e *Engine) Undo(current *timeline.Storyboard) (*timeline.Storyboard, bool) {
	if e.cursor < 0 || e.cursor >= len(e.elements) {
		return nil, false
	}
	if e.atRoot() {
		if current == nil {
			return nil, false
		}
		e.elements = append(e.elements, &element{
			feature:  FeatureLatest,
			clip:     timeline.NoClip,
			snapshot: current.Clone(),
			created:  e.now(),
		})
	}
	restored := e.elements[e.cursor].snapshot.Clone()
	e.logger.Debug("undo applied",
		logging.String(logging.FieldFeature, e.elements[e.cursor].feature.String()),
		logging.Clip(int(e.elements[e.cursor].clip)),
	)
	e.cursor--
	return restored, true
}

// Redo returns the storyboard after the most recently undone edit, or false
// when nothing was undone.
func (e *Engine) Redo() (*timeline.Storyboard, bool) {
	above := e.cursor + 1
	after := e.cursor + 2
	if above >= len(e.elements) || after >= len(e.elements) {
		return nil, false
	}
	e.cursor = above
	e.logger.Debug("redo applied",
		logging.String(logging.FieldFeature, e.elements[above].feature.String()),
		logging.Clip(int(e.elements[above].clip)),
	)
	return e.elements[after].snapshot.Clone(), true
}

// CanUndo reports whether Undo would restore a snapshot.
func (e *Engine) CanUndo() bool {
	return e.cursor >= 0 && e.cursor < len(e.elements)
}

// CanRedo reports whether Redo would restore a snapshot.
func (e *Engine) CanRedo() bool {
	return e.cursor+2 < len(e.elements)
}

// GroupBegin opens a group; pushes after the first one inside the group are
// dropped until the outermost GroupEnd.
func (e *Engine) GroupBegin() {
	e.groupDepth++
}

// GroupEnd closes a group. Unbalanced calls are ignored.
func (e *Engine) GroupEnd() {
	if e.groupDepth == 0 {
		return
	}
	e.groupDepth--
	if e.groupDepth == 0 {
		e.groupPushed = false
	}
}

// GroupDepth reports how many groups are open.
func (e *Engine) GroupDepth() int {
	return e.groupDepth
}

// Reset drops the whole history, e.g. on document close or "clear history".
func (e *Engine) Reset() {
	for i := range e.elements {
		e.elements[i] = nil
	}
	e.elements = nil
	e.cursor = -1
	e.groupDepth = 0
	e.groupPushed = false
}

// Len returns the number of retained elements, including a Latest marker.
func (e *Engine) Len() int {
	return len(e.elements)
}

// History lists the retained elements, newest first.
func (e *Engine) History() []Entry {
	out := make([]Entry, 0, len(e.elements))
	for i := len(e.elements) - 1; i >= 0; i-- {
		el := e.elements[i]
		out = append(out, Entry{
			Feature: el.feature,
			ClipID:  el.clip,
			Created: el.created,
			Cursor:  i == e.cursor,
		})
	}
	return out
}

func (e *Engine) atRoot() bool {
	return len(e.elements) > 0 && e.cursor == len(e.elements)-1
}

// discardRedo drops every element newer than the cursor.
func (e *Engine) discardRedo() {
	keep := e.cursor + 1
	if keep < 0 {
		keep = 0
	}
	for i := keep; i < len(e.elements); i++ {
		e.elements[i] = nil
	}
	e.elements = e.elements[:keep]
}

func (e *Engine) trim() {
	if e.maxDepth == 0 || len(e.elements) <= e.maxDepth {
		return
	}
	drop := len(e.elements) - e.maxDepth
	for i := 0; i < drop; i++ {
		e.elements[i] = nil
	}
	e.elements = append([]*element(nil), e.elements[drop:]...)
	e.cursor -= drop
	if e.cursor < -1 {
		e.cursor = -1
	}
}
