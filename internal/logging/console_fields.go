package logging

import (
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
)

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// infoFieldOrder lists the keys shown first on INFO lines, with their labels.
// Keys not listed follow in record order under a title-cased label.
var infoFieldOrder = []struct{ key, label string }{
	{FieldAlert, "Alert"},
	{FieldEventType, "Event"},
	{FieldDecisionType, "Decision"},
	{"decision_result", "Result"},
	{"decision_reason", "Reason"},
	{FieldFeature, "Edit"},
	{"error", "Error"},
	{FieldErrorHint, "Hint"},
	{FieldImpact, "Impact"},
	{"path", "Path"},
	{"kind", "Kind"},
	{FieldFrame, "Frame"},
	{"range", "Range"},
	{"scenes", "Scenes"},
	{"frames_scanned", "Scanned"},
	{"frame_count", "Frames"},
	{"diff", "Diff"},
	{"progress_percent", "Progress"},
	{"cache_entries", "Cached"},
	{"cache_bytes", "Cache Size"},
	{"duration", "Duration"},
}

// selectInfoFields picks the fields rendered under an INFO header and counts
// the ones left out. Subject keys are dropped since the header shows them.
// limit=0 means no limit.
func selectInfoFields(fields []field, limit int) ([]infoField, int) {
	taken := make([]bool, len(fields))
	var out []infoField
	hidden := 0
	take := func(i int, label string) {
		taken[i] = true
		f := fields[i]
		switch {
		case isSubjectKey(f.key):
		case isDebugOnlyKey(f.key), limit > 0 && len(out) >= limit:
			hidden++
		default:
			out = append(out, infoField{label: label, value: renderInfoValue(f.key, f.value)})
		}
	}
	for _, entry := range infoFieldOrder {
		for i, f := range fields {
			if !taken[i] && f.key == entry.key {
				take(i, entry.label)
				break
			}
		}
	}
	for i, f := range fields {
		if !taken[i] {
			take(i, titleizeKey(f.key))
		}
	}
	return out, hidden
}

// renderInfoValue formats byte sizes, percentages, and booleans for reading.
func renderInfoValue(key string, v slog.Value) string {
	v = v.Resolve()
	bytesKey := strings.HasSuffix(key, "_bytes") || key == "size"
	switch {
	case bytesKey && v.Kind() == slog.KindInt64:
		return humanize.IBytes(uint64(max(v.Int64(), 0)))
	case bytesKey && v.Kind() == slog.KindUint64:
		return humanize.IBytes(v.Uint64())
	case strings.HasSuffix(key, "_percent") && v.Kind() == slog.KindFloat64:
		return humanize.FtoaWithDigits(v.Float64(), 1) + "%"
	case v.Kind() == slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case key == "error":
		msg := strings.TrimSpace(plainValue(v))
		if len(msg) > 200 {
			msg = msg[:200] + "…"
		}
		return msg
	}
	return quotedValue(v)
}

func isSubjectKey(key string) bool {
	return key == "" || key == FieldComponent || key == FieldSection || key == FieldClipID
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldSessionID, FieldResourceID, "stamp", "track", "command":
		return true
	}
	return strings.HasPrefix(key, "ffprobe.")
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, part := range parts {
		part = strings.ToLower(part)
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
