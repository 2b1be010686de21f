// Package main hosts the storyboard CLI entrypoint and command graph.
//
// Each invocation opens the document named by --file, applies one edit or
// query through an editor session, saves when the storyboard changed, and
// releases the document lock. Configuration is resolved once per invocation;
// a .env file in the working directory is loaded first so STORYBOARD_*
// overrides can live next to a project.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is only surfaced here through commands and flags.
package main
