// Package probecache persists resource frame counts in SQLite so reopening a
// storyboard does not re-probe unchanged media.
//
// Entries are keyed by resource identity (kind, path, track) and validated
// against the file's size and modification time; a changed file misses and
// is probed again. The Store implements resource.ProbeStore.
package probecache
