package timeline

import "errors"

var (
	// ErrDuplicateName reports a section or mask name collision.
	ErrDuplicateName = errors.New("name already in use")
	// ErrInvalidName reports an empty or otherwise unusable name.
	ErrInvalidName = errors.New("invalid name")
	// ErrSectionInUse reports a refused section removal.
	ErrSectionInUse = errors.New("section in use")
	// ErrReservedSection reports an attempt to rename or delete MAIN or MASK.
	ErrReservedSection = errors.New("reserved section")
	// ErrSectionNotFound reports an unknown section ID or name.
	ErrSectionNotFound = errors.New("section not found")
	// ErrClipNotFound reports an unknown clip ID.
	ErrClipNotFound = errors.New("clip not found")
	// ErrUnknownMask reports a mask_name that resolves to no mask definition.
	ErrUnknownMask = errors.New("unknown mask definition")
	// ErrMaskInUse reports a refused removal of a referenced mask definition.
	ErrMaskInUse = errors.New("mask definition in use")
	// ErrMaskCycle reports a mask reference chain that leads back to its start.
	ErrMaskCycle = errors.New("mask reference cycle")
	// ErrInvalidClip reports clip fields that violate the model constraints.
	ErrInvalidClip = errors.New("invalid clip")
)
