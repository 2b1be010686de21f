// Package scenecut finds scene cuts in clips and splits the clips there.
//
// A run walks a clip's frames through the thumbnail cache, comparing each
// frame with its predecessor using a block-sampled color difference. A cut is
// declared when the difference clears an absolute threshold, or when it spikes
// far above the running mean of the current scene. Both thresholds jump right
// after a cut and decay back, which keeps a flash or a dissolve from yielding
// a burst of one-frame scenes.
//
// Candidate frames are fetched without storing them; only the first frame of
// each new scene is added to the cache. Every run is one undo step.
package scenecut
