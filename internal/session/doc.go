// Package session ties one open storyboard document to the engine around it.
//
// A Session owns the live storyboard, its undo history, the resource registry
// and thumbnail cache, the scene-cut detector, and the document lock. Every
// edit goes through Edit, which applies the change to a copy, records the
// previous state for undo, and only then swaps the copy in, so a rejected edit
// never leaves a half-applied storyboard behind. Sessions are driven from a
// single goroutine; only the resource watcher runs alongside.
package session
