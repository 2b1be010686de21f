package timeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SectionID identifies a section within one storyboard.
type SectionID int

// SectionKind distinguishes the two reserved sections from user sections.
type SectionKind int

const (
	SectionMain SectionKind = iota
	SectionMask
	SectionSub
)

const (
	// MainSectionName is the reserved name of the rendered section.
	MainSectionName = "MAIN"
	// MaskSectionName is the reserved name of the mask definition section.
	MaskSectionName = "MASK"

	// MainSectionID and MaskSectionID are assigned at construction.
	MainSectionID SectionID = 0
	MaskSectionID SectionID = 1
)

// Section is a named, ordered sequence of clips.
type Section struct {
	ID    SectionID
	Name  string
	Kind  SectionKind
	Clips []*Clip
}

// Storyboard is the root aggregate edited by a session.
type Storyboard struct {
	Sections  []*Section
	Active    SectionID
	FrameRate float64
	// Width and Height are the master working size that thumbnails are
	// scaled to before comparison.
	Width   int
	Height  int
	Unsaved bool

	nextSection SectionID
	nextClip    ClipID
}

// New constructs a storyboard with its MAIN and MASK sections.
func New(frameRate float64, width, height int) *Storyboard {
	return &Storyboard{
		Sections: []*Section{
			{ID: MainSectionID, Name: MainSectionName, Kind: SectionMain},
			{ID: MaskSectionID, Name: MaskSectionName, Kind: SectionMask},
		},
		Active:      MainSectionID,
		FrameRate:   frameRate,
		Width:       width,
		Height:      height,
		nextSection: MaskSectionID + 1,
		nextClip:    1,
	}
}

func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Main returns the MAIN section.
func (sb *Storyboard) Main() *Section {
	return sb.mustSection(MainSectionID)
}

// Mask returns the MASK section.
func (sb *Storyboard) Mask() *Section {
	return sb.mustSection(MaskSectionID)
}

func (sb *Storyboard) mustSection(id SectionID) *Section {
	sec, ok := sb.Section(id)
	if !ok {
		panic(fmt.Sprintf("timeline: reserved section %d missing", id))
	}
	return sec
}

// Section returns the section with the given ID.
func (sb *Storyboard) Section(id SectionID) (*Section, bool) {
	for _, sec := range sb.Sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return nil, false
}

// SectionByName returns the section carrying the (normalised) name.
func (sb *Storyboard) SectionByName(name string) (*Section, bool) {
	name = normalizeName(name)
	for _, sec := range sb.Sections {
		if sec.Name == name {
			return sec, true
		}
	}
	return nil, false
}

// SetActive selects the section the editor currently shows.
func (sb *Storyboard) SetActive(id SectionID) error {
	if _, ok := sb.Section(id); !ok {
		return fmt.Errorf("set active section %d: %w", id, ErrSectionNotFound)
	}
	sb.Active = id
	return nil
}

// CreateSection appends a new SUB section.
func (sb *Storyboard) CreateSection(name string) (SectionID, error) {
	name = normalizeName(name)
	if name == "" {
		return 0, fmt.Errorf("create section: %w", ErrInvalidName)
	}
	if _, exists := sb.SectionByName(name); exists {
		return 0, fmt.Errorf("create section %q: %w", name, ErrDuplicateName)
	}
	sec := &Section{ID: sb.allocSection(), Name: name, Kind: SectionSub}
	sb.Sections = append(sb.Sections, sec)
	sb.Unsaved = true
	return sec.ID, nil
}

// RemoveSection deletes a SUB section that no MAIN clip references.
func (sb *Storyboard) RemoveSection(id SectionID) error {
	sec, ok := sb.Section(id)
	if !ok {
		return fmt.Errorf("remove section %d: %w", id, ErrSectionNotFound)
	}
	if sec.Kind != SectionSub {
		return fmt.Errorf("remove section %q: %w", sec.Name, ErrSectionInUse)
	}
	for _, clip := range sb.Main().Clips {
		if clip.Kind == KindSection && normalizeName(clip.Source.Path) == sec.Name {
			return fmt.Errorf("remove section %q: referenced by clip %d: %w", sec.Name, clip.ID, ErrSectionInUse)
		}
	}
	for i, candidate := range sb.Sections {
		if candidate.ID == id {
			sb.Sections = append(sb.Sections[:i], sb.Sections[i+1:]...)
			break
		}
	}
	if sb.Active == id {
		sb.Active = MainSectionID
	}
	sb.Unsaved = true
	return nil
}

// RenameSection renames a SUB section and rewrites section clips that
// referenced the old name.
func (sb *Storyboard) RenameSection(id SectionID, name string) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("rename section: %w", ErrInvalidName)
	}
	sec, ok := sb.Section(id)
	if !ok {
		return fmt.Errorf("rename section %d: %w", id, ErrSectionNotFound)
	}
	if sec.Kind != SectionSub {
		return fmt.Errorf("rename section %q: %w", sec.Name, ErrReservedSection)
	}
	if sec.Name == name {
		return nil
	}
	if _, exists := sb.SectionByName(name); exists {
		return fmt.Errorf("rename section %q to %q: %w", sec.Name, name, ErrDuplicateName)
	}
	old := sec.Name
	sec.Name = name
	sb.eachClip(func(_ *Section, clip *Clip) {
		if clip.Kind == KindSection && normalizeName(clip.Source.Path) == old {
			clip.Source.Path = name
		}
	})
	sb.Unsaved = true
	return nil
}

// CountTotalFrames sums the output frames of every clip in the section.
func (sb *Storyboard) CountTotalFrames(id SectionID) (int, error) {
	sec, ok := sb.Section(id)
	if !ok {
		return 0, fmt.Errorf("count frames of section %d: %w", id, ErrSectionNotFound)
	}
	total := 0
	for _, clip := range sec.Clips {
		total += clip.TotalFrames()
	}
	return total, nil
}

// Clone returns a deep copy of the storyboard.
func (sb *Storyboard) Clone() *Storyboard {
	if sb == nil {
		return nil
	}
	cp := *sb
	cp.Sections = make([]*Section, len(sb.Sections))
	for i, sec := range sb.Sections {
		secCopy := &Section{ID: sec.ID, Name: sec.Name, Kind: sec.Kind}
		if len(sec.Clips) > 0 {
			secCopy.Clips = make([]*Clip, len(sec.Clips))
			for j, clip := range sec.Clips {
				secCopy.Clips[j] = clip.clone()
			}
		}
		cp.Sections[i] = secCopy
	}
	return &cp
}

// ClipCount returns the number of clips across all sections.
func (sb *Storyboard) ClipCount() int {
	n := 0
	for _, sec := range sb.Sections {
		n += len(sec.Clips)
	}
	return n
}

func (sb *Storyboard) eachClip(fn func(*Section, *Clip)) {
	for _, sec := range sb.Sections {
		for _, clip := range sec.Clips {
			fn(sec, clip)
		}
	}
}

func (sb *Storyboard) allocSection() SectionID {
	id := sb.nextSection
	sb.nextSection++
	return id
}

func (sb *Storyboard) allocClip() ClipID {
	if sb.nextClip < 1 {
		sb.nextClip = 1
	}
	id := sb.nextClip
	sb.nextClip++
	return id
}
