// Package preflight provides readiness checks for the external binaries and
// filesystem paths storyboard depends on.
//
// The CLI "storyboard doctor" command runs RunAll and prints one line per
// check. Optional features (the probe cache) are only checked when enabled.
package preflight
