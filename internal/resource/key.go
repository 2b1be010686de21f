package resource

import (
	"fmt"
	"path/filepath"
	"strings"

	"storyboard/internal/timeline"
)

// ID identifies a registered resource.
type ID int

// NoResource is the zero value returned alongside errors.
const NoResource ID = 0

// Key is the identity of a frame source.
type Key struct {
	Kind  timeline.Kind
	Path  string
	Track int
}

func (k Key) String() string {
	if k.Track > 0 {
		return fmt.Sprintf("%s:%s#%d", k.Kind, k.Path, k.Track)
	}
	return fmt.Sprintf("%s:%s", k.Kind, k.Path)
}

// IsFile reports whether the key names a file on disk (as opposed to a
// section of the storyboard).
func (k Key) IsFile() bool {
	return k.Kind != timeline.KindSection
}

func (k Key) normalize() Key {
	k.Path = strings.TrimSpace(k.Path)
	if k.IsFile() && k.Path != "" {
		k.Path = filepath.Clean(k.Path)
	}
	if k.Track < 0 {
		k.Track = 0
	}
	return k
}

// ClipKey returns the resource identity a clip reads frames from. Mask
// definitions read from the kind recorded in MaskOf.
func ClipKey(clip *timeline.Clip) (Key, error) {
	if clip == nil {
		return Key{}, ErrNoFrames
	}
	kind := clip.Kind
	if kind == timeline.KindMask {
		kind = clip.MaskOf
	}
	if !kind.HasFrames() || kind == timeline.KindMask {
		return Key{}, fmt.Errorf("clip %d (%s): %w", clip.ID, clip.Kind, ErrNoFrames)
	}
	key := Key{Kind: kind, Path: clip.Source.Path, Track: clip.Source.Track}.normalize()
	if key.Path == "" {
		return Key{}, fmt.Errorf("clip %d: empty source path: %w", clip.ID, ErrNoFrames)
	}
	return key, nil
}

func isSequence(k Key) bool {
	return k.Kind == timeline.KindImageSequence
}
