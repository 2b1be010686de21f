// Package storyfile reads and writes storyboard documents.
//
// Documents are plain data mappings of a timeline.Storyboard encoded as YAML
// or JSON, chosen by file extension. Saves are atomic (temp file plus rename)
// and an editor session holds an advisory flock on the document while it is
// open so two sessions cannot overwrite each other.
package storyfile
