// Package expr turns edit rules into auto-editor filter expressions.
package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Method names the detection strategy of a rule.
type Method string

const (
	MethodNone     Method = "none"
	MethodAll      Method = "all"
	MethodAudio    Method = "audio"
	MethodMotion   Method = "motion"
	MethodSubtitle Method = "subtitle"
	MethodWord     Method = "word"
	MethodRegex    Method = "regex"
)

var knownMethods = []Method{MethodNone, MethodAll, MethodAudio, MethodMotion, MethodSubtitle, MethodWord, MethodRegex}

// ParseMethod validates a method name. Empty input selects audio.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return MethodAudio, nil
	}
	for _, known := range knownMethods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown edit method %q", s)
}

// ThresholdUnit controls the suffix appended to a threshold value.
type ThresholdUnit string

const (
	UnitRatio   ThresholdUnit = "ratio"
	UnitPercent ThresholdUnit = "percent"
	UnitDecibel ThresholdUnit = "db"
)

func formatThreshold(value string, unit ThresholdUnit) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	switch unit {
	case UnitPercent:
		return value + "%"
	case UnitDecibel:
		return value + "dB"
	default:
		return value
	}
}

// AudioStreamMode selects between all audio streams and a single indexed one.
type AudioStreamMode string

const (
	AudioStreamAll   AudioStreamMode = "all"
	AudioStreamIndex AudioStreamMode = "index"
)

// Condition is the method-specific half of a rule. Implementations are the
// seven method types in this package.
type Condition interface {
	Method() Method
	params() []param
	fields() map[string]any
}

// Rule is one detection condition, optionally inverted.
type Rule struct {
	Invert bool
	Cond   Condition
}

// NewRule returns a rule for method with every field at its default.
func NewRule(method Method) Rule {
	switch method {
	case MethodNone:
		return Rule{Cond: None{}}
	case MethodAll:
		return Rule{Cond: All{}}
	case MethodMotion:
		return Rule{Cond: Motion{Unit: UnitRatio}}
	case MethodSubtitle:
		return Rule{Cond: Subtitle{}}
	case MethodWord:
		return Rule{Cond: Word{}}
	case MethodRegex:
		return Rule{Cond: Regex{}}
	default:
		return Rule{Cond: Audio{Unit: UnitRatio, StreamMode: AudioStreamAll}}
	}
}

// Method returns the rule's method, or empty when no condition is set.
func (r Rule) Method() Method {
	if r.Cond == nil {
		return ""
	}
	return r.Cond.Method()
}

type None struct{}

func (None) Method() Method         { return MethodNone }
func (None) params() []param        { return nil }
func (None) fields() map[string]any { return map[string]any{} }

type All struct{}

func (All) Method() Method         { return MethodAll }
func (All) params() []param        { return nil }
func (All) fields() map[string]any { return map[string]any{} }

// Audio detects loudness above a threshold.
type Audio struct {
	Threshold   string
	Unit        ThresholdUnit
	StreamMode  AudioStreamMode
	StreamIndex string
	MinClip     string
	MinCut      string
}

func (Audio) Method() Method { return MethodAudio }

func (a Audio) params() []param {
	var p paramList
	p.add("threshold", formatThreshold(a.Threshold, a.Unit))
	if a.StreamMode == AudioStreamIndex {
		p.add("stream", a.StreamIndex)
	}
	p.add("minclip", a.MinClip)
	p.add("mincut", a.MinCut)
	return p
}

func (a Audio) fields() map[string]any {
	return map[string]any{
		"audioThreshold":     a.Threshold,
		"audioThresholdUnit": string(a.Unit),
		"audioStreamMode":    string(a.StreamMode),
		"audioStreamIndex":   a.StreamIndex,
		"audioMinClip":       a.MinClip,
		"audioMinCut":        a.MinCut,
	}
}

// Motion detects frame-to-frame change above a threshold.
type Motion struct {
	Threshold string
	Unit      ThresholdUnit
	Stream    string
	Width     string
	Blur      string
}

func (Motion) Method() Method { return MethodMotion }

func (m Motion) params() []param {
	var p paramList
	p.add("threshold", formatThreshold(m.Threshold, m.Unit))
	p.add("stream", m.Stream)
	p.add("width", m.Width)
	p.add("blur", m.Blur)
	return p
}

func (m Motion) fields() map[string]any {
	return map[string]any{
		"motionThreshold":     m.Threshold,
		"motionThresholdUnit": string(m.Unit),
		"motionStream":        m.Stream,
		"motionWidth":         m.Width,
		"motionBlur":          m.Blur,
	}
}

// Subtitle matches subtitle text against a pattern.
type Subtitle struct {
	Pattern    string
	Stream     string
	IgnoreCase bool
}

func (Subtitle) Method() Method { return MethodSubtitle }

func (s Subtitle) params() []param {
	var p paramList
	p.add("pattern", s.Pattern)
	p.add("stream", s.Stream)
	p.flag("ignorecase", s.IgnoreCase)
	return p
}

func (s Subtitle) fields() map[string]any {
	return map[string]any{
		"subtitlePattern":    s.Pattern,
		"subtitleStream":     s.Stream,
		"subtitleIgnoreCase": s.IgnoreCase,
	}
}

// Word matches a single transcribed word.
type Word struct {
	Value      string
	Stream     string
	IgnoreCase bool
}

func (Word) Method() Method { return MethodWord }

func (w Word) params() []param {
	var p paramList
	p.add("word", w.Value)
	p.add("stream", w.Stream)
	p.flag("ignorecase", w.IgnoreCase)
	return p
}

func (w Word) fields() map[string]any {
	return map[string]any{
		"wordValue":      w.Value,
		"wordStream":     w.Stream,
		"wordIgnoreCase": w.IgnoreCase,
	}
}

// Regex matches subtitle text against a regular expression.
type Regex struct {
	Pattern    string
	Stream     string
	IgnoreCase bool
}

func (Regex) Method() Method { return MethodRegex }

func (r Regex) params() []param {
	var p paramList
	p.add("pattern", r.Pattern)
	p.add("stream", r.Stream)
	p.flag("ignorecase", r.IgnoreCase)
	return p
}

func (r Regex) fields() map[string]any {
	return map[string]any{
		"regexPattern":    r.Pattern,
		"regexStream":     r.Stream,
		"regexIgnoreCase": r.IgnoreCase,
	}
}

type ruleWire struct {
	Method Method         `json:"method"`
	Invert bool           `json:"invert"`
	Fields map[string]any `json:"fields"`
}

// MarshalJSON encodes the rule as {method, invert, fields}.
func (r Rule) MarshalJSON() ([]byte, error) {
	if r.Cond == nil {
		return []byte("null"), nil
	}
	return json.Marshal(ruleWire{
		Method: r.Cond.Method(),
		Invert: r.Invert,
		Fields: r.Cond.fields(),
	})
}

// UnmarshalJSON decodes {method, invert, fields}. Unknown methods are errors.
func (r *Rule) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	method, err := ParseMethod(string(w.Method))
	if err != nil {
		return err
	}
	f := fieldMap(w.Fields)

	r.Invert = w.Invert
	switch method {
	case MethodNone:
		r.Cond = None{}
	case MethodAll:
		r.Cond = All{}
	case MethodAudio:
		mode := AudioStreamMode(f.str("audioStreamMode"))
		if mode != AudioStreamIndex {
			mode = AudioStreamAll
		}
		r.Cond = Audio{
			Threshold:   f.str("audioThreshold"),
			Unit:        f.unit("audioThresholdUnit"),
			StreamMode:  mode,
			StreamIndex: f.str("audioStreamIndex"),
			MinClip:     f.str("audioMinClip"),
			MinCut:      f.str("audioMinCut"),
		}
	case MethodMotion:
		r.Cond = Motion{
			Threshold: f.str("motionThreshold"),
			Unit:      f.unit("motionThresholdUnit"),
			Stream:    f.str("motionStream"),
			Width:     f.str("motionWidth"),
			Blur:      f.str("motionBlur"),
		}
	case MethodSubtitle:
		r.Cond = Subtitle{
			Pattern:    f.str("subtitlePattern"),
			Stream:     f.str("subtitleStream"),
			IgnoreCase: f.boolean("subtitleIgnoreCase"),
		}
	case MethodWord:
		r.Cond = Word{
			Value:      f.str("wordValue"),
			Stream:     f.str("wordStream"),
			IgnoreCase: f.boolean("wordIgnoreCase"),
		}
	case MethodRegex:
		r.Cond = Regex{
			Pattern:    f.str("regexPattern"),
			Stream:     f.str("regexStream"),
			IgnoreCase: f.boolean("regexIgnoreCase"),
		}
	}
	return nil
}

// fieldMap reads loosely typed form fields. Form inputs arrive as strings, but
// numbers and booleans written by other clients are accepted too.
type fieldMap map[string]any

func (f fieldMap) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (f fieldMap) boolean(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

func (f fieldMap) unit(key string) ThresholdUnit {
	switch u := ThresholdUnit(strings.ToLower(f.str(key))); u {
	case UnitPercent, UnitDecibel:
		return u
	default:
		return UnitRatio
	}
}
