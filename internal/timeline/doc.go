// Package timeline holds the storyboard data model edited by the session: the
// Storyboard root, its named Sections, and the Clips ordered inside them.
//
// Every storyboard owns exactly one MAIN section (the only one rendered to the
// final output) and one MASK section (global mask definitions referenced by
// name from any clip). Both exist from construction and can never be removed
// or renamed. Any further section is a user-named repository whose clips are
// pulled into MAIN through section-kind clips.
//
// Sections and clips are addressed by stable integer IDs. Mutators validate
// their input before touching the tree and report failures with the sentinel
// errors declared in errors.go; a failed call leaves the storyboard unchanged.
//
// Clone produces a deep copy that shares no mutable memory with the source.
// The undo engine depends on that guarantee to keep snapshots immutable while
// the live storyboard keeps changing.
package timeline
