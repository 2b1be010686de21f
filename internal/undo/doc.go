// Package undo keeps the snapshot history of a storyboard editing session.
//
// Every mutating edit pushes a deep copy of the storyboard as it was before
// the edit. The engine keeps two positions into one stack: the root (newest
// element) and the cursor (next element Undo applies). Undo at the root first
// records a synthetic Latest snapshot so Redo can return to the live state.
// Properties edits to the same clip coalesce, and an open group collapses every
// push after the first into that first one, so composite operations such as
// automatic scene splitting undo as a single step.
//
// Snapshots handed in or out are always cloned; the engine never aliases the
// live storyboard.
package undo
