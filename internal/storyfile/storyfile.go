package storyfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"storyboard/internal/fileutil"
	"storyboard/internal/timeline"
)

var (
	// ErrUnsupportedFormat reports a document extension or format name that
	// has no encoder.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrVersion reports a document written by an incompatible layout.
	ErrVersion = errors.New("document version mismatch")
	// ErrLocked reports a document held by another session.
	ErrLocked = errors.New("document locked by another session")
)

// Format selects the document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" and "json".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

// FormatForPath derives the format from the file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, path)
	}
	return ParseFormat(ext)
}

// Encode serializes the storyboard.
func Encode(sb *timeline.Storyboard, format Format) ([]byte, error) {
	if sb == nil {
		return nil, errors.New("encode storyboard: nil storyboard")
	}
	doc := toDocument(sb)
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Decode parses a document and rebuilds the storyboard, validating every
// clip against the model constraints.
func Decode(data []byte, format Format) (*timeline.Storyboard, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return fromDocument(doc)
}

// Load reads the document at path.
func Load(path string) (*timeline.Storyboard, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read storyboard: %w", err)
	}
	sb, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return sb, nil
}

// Save writes the storyboard to path atomically and clears its Unsaved flag.
func Save(path string, sb *timeline.Storyboard) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(sb, format)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	sb.Unsaved = false
	return nil
}
