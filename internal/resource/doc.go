// Package resource maps frame sources to stable resource IDs and caches the
// thumbnails decoded from them.
//
// A resource is identified by its kind, path (or section name for section
// clips), and selected track. The Registry hands out one ID per identity,
// probes the total frame count on first use, and owns the decoder handles. The
// decoder is a serially reused collaborator: one decode is in flight at a
// time, and a busy decoder is retried with exponential backoff rather than
// reported as an error.
//
// The Cache maps (resource, frame) to a PixelBuffer normalized to RGBA at the
// storyboard's working size. Fetch stores what it decodes; FetchNoStore hands
// the caller a buffer it must Release, so long scans do not grow the cache.
// Entries are evicted only by CloseResource and Clear.
package resource
