package timeline

import "fmt"

// FindMaskDefinition returns the mask definition clip carrying name.
func (sb *Storyboard) FindMaskDefinition(name string) (*Clip, bool) {
	name = normalizeName(name)
	if name == "" {
		return nil, false
	}
	for _, clip := range sb.Mask().Clips {
		if clip.Kind == KindMask && clip.Name == name {
			return clip, true
		}
	}
	return nil, false
}

// UpdateMaskNameReferences rewrites every clip whose MaskName equals oldName
// to newName, across all sections. It returns false without mutating anything
// when newName already names a mask definition other than the one currently
// called oldName.
func (sb *Storyboard) UpdateMaskNameReferences(oldName, newName string) bool {
	oldName = normalizeName(oldName)
	newName = normalizeName(newName)
	if oldName == "" || newName == "" {
		return false
	}
	if oldName == newName {
		return true
	}
	if other, ok := sb.FindMaskDefinition(newName); ok {
		if current, found := sb.FindMaskDefinition(oldName); !found || current.ID != other.ID {
			return false
		}
	}
	changed := false
	sb.eachClip(func(_ *Section, clip *Clip) {
		if clip.MaskName == oldName {
			clip.MaskName = newName
			changed = true
		}
	})
	if changed {
		sb.Unsaved = true
	}
	return true
}

// RenameMaskDefinition renames a mask definition and every reference to it in
// one step. A collision with another definition leaves everything unchanged.
func (sb *Storyboard) RenameMaskDefinition(id ClipID, newName string) error {
	newName = normalizeName(newName)
	if newName == "" {
		return fmt.Errorf("rename mask: %w", ErrInvalidName)
	}
	clip, _, ok := sb.Clip(id)
	if !ok {
		return fmt.Errorf("rename mask %d: %w", id, ErrClipNotFound)
	}
	if clip.Kind != KindMask {
		return fmt.Errorf("rename mask %d: clip is %s: %w", id, clip.Kind, ErrInvalidClip)
	}
	if clip.Name == newName {
		return nil
	}
	if _, taken := sb.FindMaskDefinition(newName); taken {
		return fmt.Errorf("rename mask %q to %q: %w", clip.Name, newName, ErrDuplicateName)
	}
	oldName := clip.Name
	if !sb.UpdateMaskNameReferences(oldName, newName) {
		return fmt.Errorf("rename mask %q to %q: %w", oldName, newName, ErrDuplicateName)
	}
	clip.Name = newName
	sb.Unsaved = true
	return nil
}

// MaskUsers returns the IDs of clips referencing the named mask definition.
func (sb *Storyboard) MaskUsers(name string) []ClipID {
	return sb.maskUsers(normalizeName(name))
}

func (sb *Storyboard) maskUsers(name string) []ClipID {
	var ids []ClipID
	if name == "" {
		return ids
	}
	sb.eachClip(func(_ *Section, clip *Clip) {
		if clip.MaskName == name {
			ids = append(ids, clip.ID)
		}
	})
	return ids
}
