package timeline

import (
	"fmt"
	"strconv"
)

// Clip looks up a clip and the section that holds it.
func (sb *Storyboard) Clip(id ClipID) (*Clip, *Section, bool) {
	for _, sec := range sb.Sections {
		for _, clip := range sec.Clips {
			if clip.ID == id {
				return clip, sec, true
			}
		}
	}
	return nil, nil, false
}

// ClipIndex returns the position of the clip within its section.
func (sb *Storyboard) ClipIndex(id ClipID) (SectionID, int, bool) {
	for _, sec := range sb.Sections {
		for i, clip := range sec.Clips {
			if clip.ID == id {
				return sec.ID, i, true
			}
		}
	}
	return 0, 0, false
}

// AppendClip adds a copy of clip at the end of the section and returns the
// ID assigned to it.
func (sb *Storyboard) AppendClip(section SectionID, clip Clip) (ClipID, error) {
	sec, ok := sb.Section(section)
	if !ok {
		return NoClip, fmt.Errorf("append clip: section %d: %w", section, ErrSectionNotFound)
	}
	return sb.InsertClip(section, len(sec.Clips), clip)
}

// InsertClip adds a copy of clip at index within the section.
func (sb *Storyboard) InsertClip(section SectionID, index int, clip Clip) (ClipID, error) {
	sec, ok := sb.Section(section)
	if !ok {
		return NoClip, fmt.Errorf("insert clip: section %d: %w", section, ErrSectionNotFound)
	}
	if index < 0 || index > len(sec.Clips) {
		return NoClip, fmt.Errorf("insert clip: index %d out of range [0,%d]", index, len(sec.Clips))
	}
	c := clip.clone()
	c.Name = normalizeName(c.Name)
	c.MaskName = normalizeName(c.MaskName)
	if err := sb.checkPlacement(sec, c, NoClip); err != nil {
		return NoClip, fmt.Errorf("insert clip: %w", err)
	}
	c.ID = sb.allocClip()
	sec.Clips = append(sec.Clips, nil)
	copy(sec.Clips[index+1:], sec.Clips[index:])
	sec.Clips[index] = c
	sb.Unsaved = true
	return c.ID, nil
}

// DuplicateClip inserts a copy of the clip directly after the original.
// Duplicated mask definitions receive a fresh unique name.
func (sb *Storyboard) DuplicateClip(id ClipID) (ClipID, error) {
	clip, sec, ok := sb.Clip(id)
	if !ok {
		return NoClip, fmt.Errorf("duplicate clip %d: %w", id, ErrClipNotFound)
	}
	_, index, _ := sb.ClipIndex(id)
	cp := *clip
	if cp.Kind == KindMask {
		cp.Name = sb.uniqueMaskName(cp.Name)
	}
	return sb.InsertClip(sec.ID, index+1, cp)
}

// RemoveClip deletes a clip. Mask definitions still referenced by another
// clip are kept.
func (sb *Storyboard) RemoveClip(id ClipID) error {
	clip, sec, ok := sb.Clip(id)
	if !ok {
		return fmt.Errorf("remove clip %d: %w", id, ErrClipNotFound)
	}
	if clip.Kind == KindMask {
		if users := sb.maskUsers(clip.Name); len(users) > 0 {
			return fmt.Errorf("remove mask %q: referenced by %d clip(s): %w", clip.Name, len(users), ErrMaskInUse)
		}
	}
	for i, candidate := range sec.Clips {
		if candidate.ID == id {
			sec.Clips = append(sec.Clips[:i], sec.Clips[i+1:]...)
			break
		}
	}
	sb.Unsaved = true
	return nil
}

// UpdateClip applies fn to a copy of the clip and commits the copy only when
// it still satisfies the model constraints. ID and Kind cannot change; mask
// definitions must be renamed through RenameMaskDefinition.
func (sb *Storyboard) UpdateClip(id ClipID, fn func(*Clip)) error {
	clip, sec, ok := sb.Clip(id)
	if !ok {
		return fmt.Errorf("update clip %d: %w", id, ErrClipNotFound)
	}
	cp := clip.clone()
	fn(cp)
	cp.ID = clip.ID
	cp.Kind = clip.Kind
	cp.Name = clip.Name
	cp.MaskName = normalizeName(cp.MaskName)
	if err := sb.checkPlacement(sec, cp, id); err != nil {
		return fmt.Errorf("update clip %d: %w", id, err)
	}
	*clip = *cp
	sb.Unsaved = true
	return nil
}

// SetClipRange moves the clip's inclusive frame range.
func (sb *Storyboard) SetClipRange(id ClipID, from, to int) error {
	return sb.UpdateClip(id, func(c *Clip) {
		c.From = from
		c.To = to
	})
}

// SetMaskName attaches (or with an empty name, detaches) a mask reference.
func (sb *Storyboard) SetMaskName(id ClipID, name string) error {
	return sb.UpdateClip(id, func(c *Clip) {
		c.MaskName = name
	})
}

func (sb *Storyboard) checkPlacement(sec *Section, c *Clip, self ClipID) error {
	if sec.Kind == SectionMask && c.Kind != KindMask {
		return fmt.Errorf("%w: section %s holds mask definitions only, got %s", ErrInvalidClip, sec.Name, c.Kind)
	}
	if sec.Kind != SectionMask && c.Kind == KindMask {
		return fmt.Errorf("%w: mask definitions belong to section %s", ErrInvalidClip, MaskSectionName)
	}
	if err := c.validate(); err != nil {
		return err
	}
	if c.Kind == KindMask {
		if other, ok := sb.FindMaskDefinition(c.Name); ok && other.ID != self {
			return fmt.Errorf("mask %q: %w", c.Name, ErrDuplicateName)
		}
	}
	if c.MaskName == "" {
		return nil
	}
	if _, ok := sb.FindMaskDefinition(c.MaskName); !ok {
		return fmt.Errorf("mask %q: %w", c.MaskName, ErrUnknownMask)
	}
	if c.Kind == KindMask && sb.maskChainReaches(c.MaskName, c.Name) {
		return fmt.Errorf("mask %q -> %q: %w", c.Name, c.MaskName, ErrMaskCycle)
	}
	return nil
}

// maskChainReaches walks mask references starting at name and reports
// whether target is reached.
func (sb *Storyboard) maskChainReaches(name, target string) bool {
	seen := map[string]bool{}
	for name != "" && !seen[name] {
		if name == target {
			return true
		}
		seen[name] = true
		def, ok := sb.FindMaskDefinition(name)
		if !ok {
			return false
		}
		name = def.MaskName
	}
	return name != "" && name == target
}

func (sb *Storyboard) uniqueMaskName(base string) string {
	for n := 2; ; n++ {
		candidate := base + "#" + strconv.Itoa(n)
		if _, taken := sb.FindMaskDefinition(candidate); !taken {
			return candidate
		}
	}
}
