package resource

import "errors"

var (
	// ErrDecodeFailed reports a source that could not be opened or decoded.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrSizeUnavailable reports a source whose frame count could not be determined.
	ErrSizeUnavailable = errors.New("frame count unavailable")
	// ErrDecoderBusy is returned by decoders that cannot accept work right now.
	// The registry retries it with backoff; callers never see it.
	ErrDecoderBusy = errors.New("decoder busy")
	// ErrUnknownResource reports an ID the registry never issued or already closed.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrFrameOutOfRange reports a frame number outside [1, frame count].
	ErrFrameOutOfRange = errors.New("frame out of range")
	// ErrNoSectionSource reports a section resource without a section collaborator.
	ErrNoSectionSource = errors.New("no section source configured")
	// ErrNoFrames reports a clip kind that does not reference frames.
	ErrNoFrames = errors.New("clip has no frame source")
)
