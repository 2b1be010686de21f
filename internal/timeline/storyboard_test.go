package timeline

import (
	"errors"
	"reflect"
	"testing"
)

func newBoard(t *testing.T) *Storyboard {
	t.Helper()
	return New(25, 320, 240)
}

func TestNewCreatesReservedSections(t *testing.T) {
	sb := newBoard(t)
	if len(sb.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sb.Sections))
	}
	if sb.Main().Name != MainSectionName || sb.Main().Kind != SectionMain {
		t.Fatalf("unexpected main section: %#v", sb.Main())
	}
	if sb.Mask().Name != MaskSectionName || sb.Mask().Kind != SectionMask {
		t.Fatalf("unexpected mask section: %#v", sb.Mask())
	}
	if sb.Active != MainSectionID {
		t.Fatalf("expected MAIN to be active, got %d", sb.Active)
	}
}

func TestCreateSectionRejectsDuplicates(t *testing.T) {
	sb := newBoard(t)
	if _, err := sb.CreateSection("intro"); err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	if _, err := sb.CreateSection("intro"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	if _, err := sb.CreateSection(MainSectionName); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName for MAIN, got %v", err)
	}
	if _, err := sb.CreateSection("   "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestCreateSectionNormalizesUnicode(t *testing.T) {
	sb := newBoard(t)
	// "é" precomposed and decomposed must collide.
	if _, err := sb.CreateSection("café"); err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	if _, err := sb.CreateSection("café"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected decomposed name to collide, got %v", err)
	}
}

func TestRemoveSection(t *testing.T) {
	sb := newBoard(t)
	sub, err := sb.CreateSection("b-roll")
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}

	if err := sb.RemoveSection(MainSectionID); !errors.Is(err, ErrSectionInUse) {
		t.Fatalf("expected MAIN removal to fail with ErrSectionInUse, got %v", err)
	}
	if err := sb.RemoveSection(MaskSectionID); !errors.Is(err, ErrSectionInUse) {
		t.Fatalf("expected MASK removal to fail with ErrSectionInUse, got %v", err)
	}

	ref := NewClip(KindSection, "b-roll", 1, 10)
	refID, err := sb.AppendClip(MainSectionID, ref)
	if err != nil {
		t.Fatalf("AppendClip: %v", err)
	}
	if err := sb.RemoveSection(sub); !errors.Is(err, ErrSectionInUse) {
		t.Fatalf("expected referenced section removal to fail, got %v", err)
	}

	if err := sb.RemoveClip(refID); err != nil {
		t.Fatalf("RemoveClip: %v", err)
	}
	if err := sb.RemoveSection(sub); err != nil {
		t.Fatalf("RemoveSection: %v", err)
	}
	if _, ok := sb.Section(sub); ok {
		t.Fatal("section still present after removal")
	}
	if err := sb.RemoveSection(sub); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
}

func TestRenameSectionUpdatesReferences(t *testing.T) {
	sb := newBoard(t)
	sub, _ := sb.CreateSection("old")
	if _, err := sb.CreateSection("other"); err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	refID, err := sb.AppendClip(MainSectionID, NewClip(KindSection, "old", 1, 5))
	if err != nil {
		t.Fatalf("AppendClip: %v", err)
	}

	if err := sb.RenameSection(sub, "other"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	sec, _ := sb.Section(sub)
	if sec.Name != "old" {
		t.Fatalf("expected name to stay %q, got %q", "old", sec.Name)
	}

	if err := sb.RenameSection(sub, "new"); err != nil {
		t.Fatalf("RenameSection: %v", err)
	}
	clip, _, _ := sb.Clip(refID)
	if clip.Source.Path != "new" {
		t.Fatalf("expected reference to follow rename, got %q", clip.Source.Path)
	}
	if err := sb.RenameSection(MainSectionID, "x"); !errors.Is(err, ErrReservedSection) {
		t.Fatalf("expected ErrReservedSection, got %v", err)
	}
}

func TestCountTotalFrames(t *testing.T) {
	sb := newBoard(t)
	a := NewClip(KindMovie, "a.mp4", 1, 10) // 10 frames
	b := NewClip(KindMovie, "b.mp4", 20, 11)
	b.Loop = 2 // 10 frames twice
	c := NewClip(KindImageSequence, "frames/", 1, 10)
	c.StepDensity = 3 // ceil(10/3) = 4
	for _, clip := range []Clip{a, b, c} {
		if _, err := sb.AppendClip(MainSectionID, clip); err != nil {
			t.Fatalf("AppendClip: %v", err)
		}
	}
	total, err := sb.CountTotalFrames(MainSectionID)
	if err != nil {
		t.Fatalf("CountTotalFrames: %v", err)
	}
	if total != 34 {
		t.Fatalf("expected 34 frames, got %d", total)
	}
	if _, err := sb.CountTotalFrames(99); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	sb := newBoard(t)
	id, err := sb.AppendClip(MainSectionID, NewClip(KindMovie, "a.mp4", 1, 10))
	if err != nil {
		t.Fatalf("AppendClip: %v", err)
	}
	cp := sb.Clone()
	if !reflect.DeepEqual(sb, cp) {
		t.Fatal("clone differs from original")
	}

	if err := sb.SetClipRange(id, 1, 5); err != nil {
		t.Fatalf("SetClipRange: %v", err)
	}
	if _, err := sb.CreateSection("later"); err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	clip, _, _ := cp.Clip(id)
	if clip.To != 10 {
		t.Fatalf("clone observed live mutation: to=%d", clip.To)
	}
	if len(cp.Sections) != 2 {
		t.Fatalf("clone observed new section: %d sections", len(cp.Sections))
	}
}

func TestInsertAndDuplicateClip(t *testing.T) {
	sb := newBoard(t)
	first, _ := sb.AppendClip(MainSectionID, NewClip(KindMovie, "a.mp4", 1, 10))
	last, _ := sb.AppendClip(MainSectionID, NewClip(KindMovie, "c.mp4", 1, 10))
	mid, err := sb.InsertClip(MainSectionID, 1, NewClip(KindMovie, "b.mp4", 1, 10))
	if err != nil {
		t.Fatalf("InsertClip: %v", err)
	}
	dup, err := sb.DuplicateClip(first)
	if err != nil {
		t.Fatalf("DuplicateClip: %v", err)
	}

	var got []ClipID
	for _, clip := range sb.Main().Clips {
		got = append(got, clip.ID)
	}
	want := []ClipID{first, dup, mid, last}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: got %v want %v", got, want)
	}
	if _, err := sb.InsertClip(MainSectionID, 9, NewClip(KindMovie, "x", 1, 1)); err == nil {
		t.Fatal("expected out of range insert to fail")
	}
}

func TestClipValidation(t *testing.T) {
	sb := newBoard(t)
	tests := []struct {
		name string
		clip Clip
	}{
		{"zero loop", func() Clip { c := NewClip(KindMovie, "a", 1, 2); c.Loop = 0; return c }()},
		{"threshold one", func() Clip { c := NewClip(KindMovie, "a", 1, 2); c.Transform.Threshold = 1; return c }()},
		{"frame zero", NewClip(KindMovie, "a", 0, 2)},
		{"mask in main", func() Clip { c := NewClip(KindMask, "m.png", 1, 1); c.Name = "m"; c.MaskOf = KindSingleImage; return c }()},
		{"unknown mask ref", func() Clip { c := NewClip(KindMovie, "a", 1, 2); c.MaskName = "ghost"; return c }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sb.AppendClip(MainSectionID, tt.clip); err == nil {
				t.Fatal("expected AppendClip to fail")
			}
			if len(sb.Main().Clips) != 0 {
				t.Fatalf("failed append mutated section: %d clips", len(sb.Main().Clips))
			}
		})
	}
}
