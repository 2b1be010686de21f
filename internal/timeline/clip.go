package timeline

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

// ClipID identifies a clip within one storyboard.
type ClipID int

const (
	// NoClip marks an edit that targets no particular clip.
	NoClip ClipID = -1
	// MultipleClips marks an edit that applies to more than one clip.
	MultipleClips ClipID = -2
)

// Kind enumerates the clip variants.
type Kind int

const (
	KindMovie Kind = iota
	KindImageSequence
	KindAnimatedImage
	KindSingleImage
	KindSection
	KindColor
	KindSilence
	KindComment
	KindMask
)

var kindNames = map[Kind]string{
	KindMovie:         "movie",
	KindImageSequence: "frames",
	KindAnimatedImage: "anim-image",
	KindSingleImage:   "image",
	KindSection:       "section",
	KindColor:         "color",
	KindSilence:       "silence",
	KindComment:       "comment",
	KindMask:          "mask",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a textual kind (as produced by String) back to a Kind.
func ParseKind(value string) (Kind, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for kind, name := range kindNames {
		if name == value {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown clip kind %q", value)
}

// HasFrames reports whether clips of this kind reference a frame source.
func (k Kind) HasFrames() bool {
	switch k {
	case KindMovie, KindImageSequence, KindAnimatedImage, KindSingleImage, KindSection, KindMask:
		return true
	default:
		return false
	}
}

// PlayMode selects how a looped clip is traversed.
type PlayMode int

const (
	PlayNormal PlayMode = iota
	PlayPingPong
)

func (m PlayMode) String() string {
	if m == PlayPingPong {
		return "pingpong"
	}
	return "normal"
}

// Flip is the per-clip mirror transform.
type Flip int

const (
	FlipNone Flip = iota
	FlipHorizontal
	FlipVertical
	FlipBoth
)

func (f Flip) String() string {
	switch f {
	case FlipHorizontal:
		return "horizontal"
	case FlipVertical:
		return "vertical"
	case FlipBoth:
		return "both"
	default:
		return "none"
	}
}

// Deinterlace selects which field set is kept when deinterlacing.
type Deinterlace int

const (
	DeinterlaceNone Deinterlace = iota
	DeinterlaceOdd
	DeinterlaceEven
	DeinterlaceOddFirst
	DeinterlaceEvenFirst
)

// Transform groups the per-clip pixel transforms.
type Transform struct {
	Flip        Flip
	Deinterlace Deinterlace
	// Threshold blends the deinterlaced rows; must stay within [0, 1).
	Threshold float64
}

// Source identifies where a clip pulls its frames from. Path holds the
// section name for section-kind clips.
type Source struct {
	Path  string
	Track int
}

// Macro references a filter macro applied to the clip. A positive Steps
// interpolates values towards the implicit second macro file.
type Macro struct {
	File  string
	Steps int
}

// Clip is one entry in a section. Fields that do not apply to the clip's Kind
// stay at their zero value.
type Clip struct {
	ID   ClipID
	Kind Kind

	// Name is the mask definition name and MaskOf the media kind the
	// definition pulls its frames from (KindMask only).
	Name   string
	MaskOf Kind

	Source Source
	// From and To are inclusive frame numbers; From > To plays backwards.
	From int
	To   int
	Loop int
	// StepDensity is the number of source frames advanced per output frame.
	StepDensity float64
	PlayMode    PlayMode
	Transform   Transform

	// MaskName references a KindMask clip in the MASK section.
	MaskName string
	Macro    Macro

	Color   color.RGBA // KindColor
	Comment string     // KindComment
}

// NewClip returns a clip with the neutral defaults applied.
func NewClip(kind Kind, path string, from, to int) Clip {
	return Clip{
		ID:          NoClip,
		Kind:        kind,
		Source:      Source{Path: path},
		From:        from,
		To:          to,
		Loop:        1,
		StepDensity: 1,
	}
}

// FrameSpan returns the number of distinct source frames the clip covers.
func (c *Clip) FrameSpan() int {
	if c.From > c.To {
		return c.From - c.To + 1
	}
	return c.To - c.From + 1
}

// TotalFrames returns the number of output frames the clip contributes.
func (c *Clip) TotalFrames() int {
	loop := c.Loop
	if loop < 1 {
		loop = 1
	}
	step := c.StepDensity
	if step <= 0 {
		step = 1
	}
	return int(math.Ceil(float64(c.FrameSpan()*loop) / step))
}

func (c *Clip) clone() *Clip {
	cp := *c
	return &cp
}

func (c *Clip) validate() error {
	if c.Loop < 1 {
		return fmt.Errorf("%w: loop must be >= 1, got %d", ErrInvalidClip, c.Loop)
	}
	if c.StepDensity <= 0 {
		return fmt.Errorf("%w: step density must be > 0, got %g", ErrInvalidClip, c.StepDensity)
	}
	if c.Transform.Threshold < 0 || c.Transform.Threshold >= 1 {
		return fmt.Errorf("%w: deinterlace threshold %g outside [0,1)", ErrInvalidClip, c.Transform.Threshold)
	}
	if c.Macro.Steps < 0 {
		return fmt.Errorf("%w: macro steps must be >= 0", ErrInvalidClip)
	}
	if c.Kind.HasFrames() && (c.From < 1 || c.To < 1) {
		return fmt.Errorf("%w: frame numbers start at 1 (from=%d to=%d)", ErrInvalidClip, c.From, c.To)
	}
	switch c.Kind {
	case KindMask:
		if normalizeName(c.Name) == "" {
			return fmt.Errorf("%w: mask definition needs a name", ErrInvalidName)
		}
		if !c.MaskOf.HasFrames() || c.MaskOf == KindMask || c.MaskOf == KindSection {
			return fmt.Errorf("%w: mask definition cannot pull frames from %s", ErrInvalidClip, c.MaskOf)
		}
	case KindSection:
		if normalizeName(c.Source.Path) == "" {
			return fmt.Errorf("%w: section clip needs a section name", ErrInvalidClip)
		}
	}
	return nil
}
