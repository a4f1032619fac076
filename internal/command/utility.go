package command

import (
	"errors"
	"regexp"
	"strings"

	"github.com/autoeditor/autoeditor-agent/internal/expr"
	"github.com/autoeditor/autoeditor-agent/internal/quoting"
)

var (
	ErrNoInput = errors.New("at least one input path is required")
	ErrNoModel = errors.New("whisper requires a model path or name")
)

const (
	UtilityInfo    = "info"
	UtilityLevels  = "levels"
	UtilityWhisper = "whisper"
	UtilityCache   = "cache"

	InputModeClip   = "clip"
	InputModeManual = "manual"

	CacheList  = "list"
	CacheClear = "clear"
)

// UtilityOptions mirrors the utilities tab.
type UtilityOptions struct {
	Command          string `json:"utilityCommand"`
	InputMode        string `json:"utilityInputMode"`
	InputList        string `json:"utilityInputList"`
	InfoJSON         bool   `json:"infoJson"`
	LevelsMethod     string `json:"levelsMethod"`
	LevelsStream     string `json:"levelsStream"`
	LevelsPattern    string `json:"levelsPattern"`
	LevelsIgnoreCase bool   `json:"levelsIgnoreCase"`
	LevelsWidth      string `json:"levelsWidth"`
	LevelsBlur       string `json:"levelsBlur"`
	LevelsTimebase   string `json:"levelsTimebase"`
	LevelsNoCache    bool   `json:"levelsNoCache"`
	WhisperModel     string `json:"whisperModel"`
	WhisperFormat    string `json:"whisperFormat"`
	WhisperOutput    string `json:"whisperOutput"`
	WhisperQueue     string `json:"whisperQueue"`
	WhisperVad       string `json:"whisperVad"`
	WhisperSplit     bool   `json:"whisperSplit"`
	WhisperDebug     bool   `json:"whisperDebug"`
	CacheAction      string `json:"cacheAction"`
}

// Manual reports whether inputs come from the typed list rather than the clip.
func (u UtilityOptions) Manual() bool {
	return u.InputMode == InputModeManual
}

var manualSep = regexp.MustCompile(`[;\n]`)

// ParseManualList splits a typed input list on semicolons and newlines,
// trimming entries, dropping empty ones and unwrapping one pair of quotes.
func ParseManualList(raw string) []string {
	var out []string
	for _, part := range manualSep.Split(raw, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(part) > 2 && quoting.IsQuoted(part) {
			part = part[1 : len(part)-1]
		}
		out = append(out, part)
	}
	return out
}

// LevelsExpression builds the --edit value for the levels utility. Only the
// stream and per-method detail fields apply; thresholds do not.
func LevelsExpression(u UtilityOptions) string {
	method, err := expr.ParseMethod(u.LevelsMethod)
	if err != nil {
		method = expr.MethodAudio
	}
	var cond expr.Condition
	switch method {
	case expr.MethodMotion:
		cond = expr.Motion{Stream: u.LevelsStream, Width: u.LevelsWidth, Blur: u.LevelsBlur}
	case expr.MethodSubtitle:
		cond = expr.Subtitle{Pattern: u.LevelsPattern, Stream: u.LevelsStream, IgnoreCase: u.LevelsIgnoreCase}
	case expr.MethodWord:
		cond = expr.Word{Value: u.LevelsPattern, Stream: u.LevelsStream, IgnoreCase: u.LevelsIgnoreCase}
	case expr.MethodRegex:
		cond = expr.Regex{Pattern: u.LevelsPattern, Stream: u.LevelsStream, IgnoreCase: u.LevelsIgnoreCase}
	case expr.MethodNone, expr.MethodAll:
		cond = expr.NewRule(method).Cond
	default:
		cond = expr.Audio{StreamMode: expr.AudioStreamIndex, StreamIndex: u.LevelsStream}
	}
	return expr.FormatRule(expr.Rule{Cond: cond})
}

// UtilityArgs returns the flags for the selected utility.
func UtilityArgs(u UtilityOptions) []string {
	var out []string
	value := func(flag, v string, quote func(string) string) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, flag+" "+quote(v))
		}
	}
	flag := func(flag string, on bool) {
		if on {
			out = append(out, flag)
		}
	}

	switch u.Command {
	case UtilityInfo:
		flag("--json", u.InfoJSON)
	case UtilityLevels:
		flag("--no-cache", u.LevelsNoCache)
		value("--timebase", u.LevelsTimebase, quoting.MaybeQuote)
		value("--edit", LevelsExpression(u), quoting.MaybeQuote)
	case UtilityWhisper:
		flag("--debug", u.WhisperDebug)
		flag("--split-words", u.WhisperSplit)
		value("--format", u.WhisperFormat, quoting.MaybeQuote)
		value("--output", u.WhisperOutput, quoting.Quote)
		value("--queue", u.WhisperQueue, quoting.MaybeQuote)
		value("--vad-model", u.WhisperVad, quoting.MaybeQuote)
	}
	return out
}

func utilityName(u UtilityOptions) string {
	name := strings.TrimSpace(u.Command)
	if name == "" {
		return UtilityInfo
	}
	return name
}

func cacheCommand(bin string, u UtilityOptions) string {
	if u.CacheAction == CacheClear {
		return bin + " cache clear"
	}
	return bin + " cache"
}

func inputToken(v string) string {
	if v == "" {
		return ClipPlaceholder
	}
	return quoting.MaybeQuote(v)
}

func assemble(bin, name string, flags, inputs []string) string {
	parts := append([]string{bin, name}, flags...)
	for _, in := range inputs {
		parts = append(parts, inputToken(in))
	}
	return strings.Join(parts, " ")
}

// FormatUtilityPreview renders the utility command with placeholders for the
// clip and whisper model.
func FormatUtilityPreview(binary string, u UtilityOptions, clipLabel string) string {
	bin := NormalizeBinary(binary)
	name := utilityName(u)
	if name == UtilityCache {
		return cacheCommand(bin, u)
	}

	var inputs []string
	if u.Manual() {
		inputs = ParseManualList(u.InputList)
	} else {
		inputs = []string{strings.TrimSpace(clipLabel)}
	}
	if len(inputs) == 0 {
		inputs = []string{""}
	}

	flags := UtilityArgs(u)
	if name == UtilityWhisper {
		model := strings.TrimSpace(u.WhisperModel)
		if model == "" {
			model = ModelPlaceholder
		}
		head := []string{inputToken(inputs[0]), quoting.MaybeQuote(model)}
		return strings.Join(append([]string{bin, name}, append(head, flags...)...), " ")
	}
	return assemble(bin, name, flags, inputs)
}

// FormatUtilityCommand renders an executable utility command for resolved
// input paths. Cache ignores inputs.
func FormatUtilityCommand(binary string, u UtilityOptions, inputs []string) (string, error) {
	bin := NormalizeBinary(binary)
	name := utilityName(u)
	if name == UtilityCache {
		return cacheCommand(bin, u), nil
	}
	if len(inputs) == 0 {
		return "", ErrNoInput
	}

	flags := UtilityArgs(u)
	if name == UtilityWhisper {
		model := strings.TrimSpace(u.WhisperModel)
		if model == "" {
			return "", ErrNoModel
		}
		head := []string{quoting.MaybeQuote(inputs[0]), quoting.MaybeQuote(model)}
		return strings.Join(append([]string{bin, name}, append(head, flags...)...), " "), nil
	}
	return assemble(bin, name, flags, inputs), nil
}
