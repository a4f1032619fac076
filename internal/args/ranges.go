package args

import "strings"

// Range is a start/end pair in whatever time syntax the tool accepts.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SpeedRange overrides playback speed inside a range.
type SpeedRange struct {
	Speed string `json:"speed"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Ranges holds the three user-editable range lists.
type Ranges struct {
	Cut   []Range      `json:"cut"`
	Add   []Range      `json:"add"`
	Speed []SpeedRange `json:"speed"`
}

// CleanRanges trims every row and drops rows missing either bound.
func CleanRanges(in []Range) []Range {
	out := make([]Range, 0, len(in))
	for _, r := range in {
		r.Start = strings.TrimSpace(r.Start)
		r.End = strings.TrimSpace(r.End)
		if r.Start == "" || r.End == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CleanSpeedRanges is CleanRanges for speed rows, which also need a speed.
func CleanSpeedRanges(in []SpeedRange) []SpeedRange {
	out := make([]SpeedRange, 0, len(in))
	for _, r := range in {
		r.Speed = strings.TrimSpace(r.Speed)
		r.Start = strings.TrimSpace(r.Start)
		r.End = strings.TrimSpace(r.End)
		if r.Speed == "" || r.Start == "" || r.End == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FormatRangeList renders complete rows as "start,end" joined by ";".
func FormatRangeList(ranges []Range) string {
	cleaned := CleanRanges(ranges)
	parts := make([]string, 0, len(cleaned))
	for _, r := range cleaned {
		parts = append(parts, r.Start+","+r.End)
	}
	return strings.Join(parts, ";")
}
