package scenecut

import "errors"

var (
	// ErrNoThumbnail reports a scan whose first frame could not be fetched.
	ErrNoThumbnail = errors.New("no thumbnail for first frame")
	// ErrDimensionMismatch reports frames that cannot be compared. Runs treat
	// it as a stop reason rather than a failure.
	ErrDimensionMismatch = errors.New("frame dimensions differ")
)
