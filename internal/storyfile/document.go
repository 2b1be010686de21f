package storyfile

import (
	"fmt"
	"image/color"
	"strings"

	"storyboard/internal/timeline"
)

// documentVersion is bumped whenever the document layout changes
// incompatibly.
const documentVersion = 1

type document struct {
	Version   int          `yaml:"version" json:"version"`
	FrameRate float64      `yaml:"frame_rate" json:"frame_rate"`
	Width     int          `yaml:"width" json:"width"`
	Height    int          `yaml:"height" json:"height"`
	Active    string       `yaml:"active,omitempty" json:"active,omitempty"`
	Sections  []sectionDoc `yaml:"sections" json:"sections"`
}

type sectionDoc struct {
	Name  string    `yaml:"name" json:"name"`
	Clips []clipDoc `yaml:"clips,omitempty" json:"clips,omitempty"`
}

type clipDoc struct {
	Kind        string    `yaml:"kind" json:"kind"`
	Name        string    `yaml:"name,omitempty" json:"name,omitempty"`
	MaskOf      string    `yaml:"mask_of,omitempty" json:"mask_of,omitempty"`
	Path        string    `yaml:"path,omitempty" json:"path,omitempty"`
	Track       int       `yaml:"track,omitempty" json:"track,omitempty"`
	From        int       `yaml:"from,omitempty" json:"from,omitempty"`
	To          int       `yaml:"to,omitempty" json:"to,omitempty"`
	Loop        int       `yaml:"loop,omitempty" json:"loop,omitempty"`
	StepDensity float64   `yaml:"step_density,omitempty" json:"step_density,omitempty"`
	PlayMode    string    `yaml:"play_mode,omitempty" json:"play_mode,omitempty"`
	Flip        string    `yaml:"flip,omitempty" json:"flip,omitempty"`
	Deinterlace string    `yaml:"deinterlace,omitempty" json:"deinterlace,omitempty"`
	Threshold   float64   `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	MaskName    string    `yaml:"mask,omitempty" json:"mask,omitempty"`
	Macro       *macroDoc `yaml:"macro,omitempty" json:"macro,omitempty"`
	Color       string    `yaml:"color,omitempty" json:"color,omitempty"`
	Comment     string    `yaml:"comment,omitempty" json:"comment,omitempty"`
}

type macroDoc struct {
	File  string `yaml:"file" json:"file"`
	Steps int    `yaml:"steps,omitempty" json:"steps,omitempty"`
}

var deinterlaceNames = map[timeline.Deinterlace]string{
	timeline.DeinterlaceNone:      "",
	timeline.DeinterlaceOdd:       "odd",
	timeline.DeinterlaceEven:      "even",
	timeline.DeinterlaceOddFirst:  "odd-first",
	timeline.DeinterlaceEvenFirst: "even-first",
}

var flipNames = map[timeline.Flip]string{
	timeline.FlipNone:       "",
	timeline.FlipHorizontal: "horizontal",
	timeline.FlipVertical:   "vertical",
	timeline.FlipBoth:       "both",
}

func toDocument(sb *timeline.Storyboard) document {
	doc := document{
		Version:   documentVersion,
		FrameRate: sb.FrameRate,
		Width:     sb.Width,
		Height:    sb.Height,
	}
	if active, ok := sb.Section(sb.Active); ok && active.ID != timeline.MainSectionID {
		doc.Active = active.Name
	}
	for _, sec := range sb.Sections {
		sd := sectionDoc{Name: sec.Name}
		for _, clip := range sec.Clips {
			sd.Clips = append(sd.Clips, toClipDoc(clip))
		}
		doc.Sections = append(doc.Sections, sd)
	}
	return doc
}

func toClipDoc(c *timeline.Clip) clipDoc {
	cd := clipDoc{
		Kind:        c.Kind.String(),
		Name:        c.Name,
		Path:        c.Source.Path,
		Track:       c.Source.Track,
		From:        c.From,
		To:          c.To,
		StepDensity: c.StepDensity,
		Flip:        flipNames[c.Transform.Flip],
		Deinterlace: deinterlaceNames[c.Transform.Deinterlace],
		Threshold:   c.Transform.Threshold,
		MaskName:    c.MaskName,
		Comment:     c.Comment,
	}
	if c.Loop > 1 {
		cd.Loop = c.Loop
	}
	if cd.StepDensity == 1 {
		cd.StepDensity = 0
	}
	if c.PlayMode != timeline.PlayNormal {
		cd.PlayMode = c.PlayMode.String()
	}
	if c.Kind == timeline.KindMask {
		cd.MaskOf = c.MaskOf.String()
	}
	if c.Macro.File != "" {
		cd.Macro = &macroDoc{File: c.Macro.File, Steps: c.Macro.Steps}
	}
	if c.Kind == timeline.KindColor {
		cd.Color = formatColor(c.Color)
	}
	return cd
}

func fromClipDoc(cd clipDoc) (timeline.Clip, error) {
	kind, err := timeline.ParseKind(cd.Kind)
	if err != nil {
		return timeline.Clip{}, err
	}
	clip := timeline.NewClip(kind, cd.Path, cd.From, cd.To)
	clip.Name = cd.Name
	clip.Source.Track = cd.Track
	clip.Transform.Threshold = cd.Threshold
	clip.MaskName = cd.MaskName
	clip.Comment = cd.Comment
	if cd.Loop > 0 {
		clip.Loop = cd.Loop
	}
	if cd.StepDensity > 0 {
		clip.StepDensity = cd.StepDensity
	}
	switch strings.ToLower(cd.PlayMode) {
	case "", "normal":
	case "pingpong":
		clip.PlayMode = timeline.PlayPingPong
	default:
		return timeline.Clip{}, fmt.Errorf("unknown play mode %q", cd.PlayMode)
	}
	if clip.Transform.Flip, err = lookupName(flipNames, cd.Flip, "flip"); err != nil {
		return timeline.Clip{}, err
	}
	if clip.Transform.Deinterlace, err = lookupName(deinterlaceNames, cd.Deinterlace, "deinterlace"); err != nil {
		return timeline.Clip{}, err
	}
	if kind == timeline.KindMask {
		if clip.MaskOf, err = timeline.ParseKind(cd.MaskOf); err != nil {
			return timeline.Clip{}, fmt.Errorf("mask %q: %w", cd.Name, err)
		}
	}
	if cd.Macro != nil {
		clip.Macro = timeline.Macro{File: cd.Macro.File, Steps: cd.Macro.Steps}
	}
	if cd.Color != "" {
		if clip.Color, err = ParseColor(cd.Color); err != nil {
			return timeline.Clip{}, err
		}
	}
	return clip, nil
}

func lookupName[T comparable](names map[T]string, value, field string) (T, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for key, name := range names {
		if name == value {
			return key, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", field, value)
}

func formatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseColor accepts "#rrggbb" and "#rrggbbaa".
func ParseColor(value string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) == 6 {
		hex += "ff"
	}
	var c color.RGBA
	if len(hex) != 8 {
		return c, fmt.Errorf("invalid color %q", value)
	}
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A); err != nil {
		return c, fmt.Errorf("invalid color %q: %w", value, err)
	}
	return c, nil
}

// fromDocument rebuilds a storyboard through the timeline operations so every
// model constraint is checked on load.
func fromDocument(doc document) (*timeline.Storyboard, error) {
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("%w: document has version %d, expected %d", ErrVersion, doc.Version, documentVersion)
	}
	sb := timeline.New(doc.FrameRate, doc.Width, doc.Height)

	ids := make(map[string]timeline.SectionID, len(doc.Sections))
	for _, sd := range doc.Sections {
		switch sd.Name {
		case timeline.MainSectionName:
			ids[sd.Name] = timeline.MainSectionID
		case timeline.MaskSectionName:
			ids[sd.Name] = timeline.MaskSectionID
		default:
			id, err := sb.CreateSection(sd.Name)
			if err != nil {
				return nil, err
			}
			ids[sd.Name] = id
		}
	}

	// Mask definitions may reference each other in any order, so they are
	// placed first and linked afterwards.
	type link struct {
		id   timeline.ClipID
		mask string
	}
	var links []link
	for _, sd := range doc.Sections {
		if sd.Name != timeline.MaskSectionName {
			continue
		}
		for i, cd := range sd.Clips {
			clip, err := fromClipDoc(cd)
			if err != nil {
				return nil, fmt.Errorf("section %s clip %d: %w", sd.Name, i+1, err)
			}
			mask := clip.MaskName
			clip.MaskName = ""
			id, err := sb.AppendClip(timeline.MaskSectionID, clip)
			if err != nil {
				return nil, fmt.Errorf("section %s clip %d: %w", sd.Name, i+1, err)
			}
			if mask != "" {
				links = append(links, link{id: id, mask: mask})
			}
		}
	}
	for _, l := range links {
		if err := sb.SetMaskName(l.id, l.mask); err != nil {
			return nil, err
		}
	}

	for _, sd := range doc.Sections {
		if sd.Name == timeline.MaskSectionName {
			continue
		}
		for i, cd := range sd.Clips {
			clip, err := fromClipDoc(cd)
			if err != nil {
				return nil, fmt.Errorf("section %s clip %d: %w", sd.Name, i+1, err)
			}
			if _, err := sb.AppendClip(ids[sd.Name], clip); err != nil {
				return nil, fmt.Errorf("section %s clip %d: %w", sd.Name, i+1, err)
			}
		}
	}

	if doc.Active != "" {
		sec, ok := sb.SectionByName(doc.Active)
		if !ok {
			return nil, fmt.Errorf("active section %q: %w", doc.Active, timeline.ErrSectionNotFound)
		}
		sb.Active = sec.ID
	}
	sb.Unsaved = false
	return sb, nil
}
