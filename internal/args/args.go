// Package args assembles the ordered auto-editor flag list from a form snapshot.
package args

import (
	"strings"

	"github.com/autoeditor/autoeditor-agent/internal/expr"
	"github.com/autoeditor/autoeditor-agent/internal/quoting"
)

// DefaultBackground is the tool's background colour; it is never emitted.
const DefaultBackground = "#000000"

// Option is one flag, with or without a value.
type Option struct {
	Flag     string `json:"flag"`
	Value    string `json:"value,omitempty"`
	HasValue bool   `json:"hasValue"`
}

// String renders the option as it appears on the command line.
func (o Option) String() string {
	if o.HasValue {
		return o.Flag + " " + o.Value
	}
	return o.Flag
}

// TimelineOptions covers frame rate and layout.
type TimelineOptions struct {
	FrameRate        string `json:"frameRate"`
	SampleRate       string `json:"sampleRate"`
	ResolutionWidth  string `json:"resolutionWidth"`
	ResolutionHeight string `json:"resolutionHeight"`
	BackgroundColor  string `json:"backgroundColor"`
	Scale            string `json:"scale"`
}

// RenderOptions covers codecs, bitrates and audio processing.
type RenderOptions struct {
	VideoCodec         string `json:"videoCodec"`
	VideoBitrate       string `json:"videoBitrate"`
	VideoProfile       string `json:"videoProfile"`
	AudioCodec         string `json:"audioCodec"`
	AudioLayout        string `json:"audioLayout"`
	AudioBitrate       string `json:"audioBitrate"`
	AudioMixMode       string `json:"audioMixMode"`
	AudioNormalizeMode string `json:"audioNormalizeMode"`
	EbuI               string `json:"ebuI"`
	EbuLra             string `json:"ebuLra"`
	EbuTp              string `json:"ebuTp"`
	EbuGain            string `json:"ebuGain"`
	PeakTarget         string `json:"peakTarget"`
}

// StreamOptions covers stream selection and container flags.
type StreamOptions struct {
	DisableVideo     bool   `json:"disableVideo"`
	DisableAudio     bool   `json:"disableAudio"`
	DisableSubtitles bool   `json:"disableSubtitles"`
	DisableData      bool   `json:"disableData"`
	FaststartMode    string `json:"faststartMode"`
	FragmentedMode   string `json:"fragmentedMode"`
	NoSeek           bool   `json:"noSeek"`
	NoOpen           bool   `json:"noOpen"`
}

// DownloadOptions configures yt-dlp for URL inputs.
type DownloadOptions struct {
	YtDlpLocation  string `json:"ytDlpLocation"`
	DownloadFormat string `json:"downloadFormat"`
	OutputFormat   string `json:"outputFormat"`
	YtDlpExtras    string `json:"ytDlpExtras"`
	TempDir        string `json:"tempDir"`
}

type Diagnostics struct {
	ProgressStyle string `json:"progressStyle"`
	Debug         bool   `json:"debug"`
	Quiet         bool   `json:"quiet"`
	PreviewStats  bool   `json:"previewStats"`
}

// State is everything the assembler reads.
type State struct {
	Edit        expr.EditSpec
	Margin      string
	Actions     Actions
	Ranges      Ranges
	Timeline    TimelineOptions
	Render      RenderOptions
	Streams     StreamOptions
	Download    DownloadOptions
	Diagnostics Diagnostics
}

type builder struct {
	opts []Option
}

// value appends flag with the trimmed value, quoted when it holds whitespace.
// Empty values are skipped.
func (b *builder) value(flag, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	b.opts = append(b.opts, Option{Flag: flag, Value: quoting.MaybeQuote(v), HasValue: true})
}

func (b *builder) flag(flag string, on bool) {
	if on {
		b.opts = append(b.opts, Option{Flag: flag})
	}
}

func (b *builder) enabled(flag string, on bool, v string) {
	if on {
		b.value(flag, v)
	}
}

// Build returns the core directives followed by the advanced catalog.
func Build(s State) []Option {
	var b builder
	b.value("--edit", expr.BuildExpression(s.Edit))
	b.value("--margin", s.Margin)
	b.value("--when-silent", s.Actions.WhenSilent())
	b.value("--when-normal", s.Actions.WhenNormal())
	b.value("--cut-out", FormatRangeList(s.Ranges.Cut))
	b.value("--add-in", FormatRangeList(s.Ranges.Add))
	b.opts = append(b.opts, Advanced(s)...)
	return b.opts
}

// Advanced returns the optional catalog in section order: speed and timing,
// timeline, rendering, container, download, diagnostics.
func Advanced(s State) []Option {
	var b builder

	a := s.Actions
	b.enabled("--silent-speed", a.SilentSpeedEnabled, a.SilentSpeed)
	b.enabled("--silent-varispeed", a.SilentVarispeedEnabled, a.SilentVarispeed)
	b.enabled("--silent-volume", a.SilentVolumeEnabled, a.SilentVolume)
	b.enabled("--normal-speed", a.NormalSpeedEnabled, a.NormalSpeed)
	b.enabled("--normal-varispeed", a.NormalVarispeedEnabled, a.NormalVarispeed)
	b.enabled("--normal-volume", a.NormalVolumeEnabled, a.NormalVolume)
	for _, r := range CleanSpeedRanges(s.Ranges.Speed) {
		b.value("--set-speed-for-range", r.Speed+","+r.Start+","+r.End)
	}

	t := s.Timeline
	b.value("--frame-rate", t.FrameRate)
	b.value("--sample-rate", t.SampleRate)
	width, height := strings.TrimSpace(t.ResolutionWidth), strings.TrimSpace(t.ResolutionHeight)
	if width != "" && height != "" {
		b.value("--resolution", width+","+height)
	}
	if bg := strings.TrimSpace(t.BackgroundColor); !strings.EqualFold(bg, DefaultBackground) {
		b.value("--background", bg)
	}
	b.value("--scale", t.Scale)

	r := s.Render
	b.value("--video-codec", r.VideoCodec)
	b.value("--video-bitrate", r.VideoBitrate)
	b.value("-vprofile", r.VideoProfile)
	b.value("--audio-codec", r.AudioCodec)
	b.value("--audio-layout", r.AudioLayout)
	b.value("--audio-bitrate", r.AudioBitrate)
	b.flag("--mix-audio-streams", r.AudioMixMode == "mix")
	b.value("--audio-normalize", normalizeValue(r))

	st := s.Streams
	b.flag("-vn", st.DisableVideo)
	b.flag("-an", st.DisableAudio)
	b.flag("-sn", st.DisableSubtitles)
	b.flag("-dn", st.DisableData)
	b.flag("--faststart", st.FaststartMode == "fast")
	b.flag("--no-faststart", st.FaststartMode == "no")
	b.flag("--fragmented", st.FragmentedMode == "yes")
	b.flag("--no-fragmented", st.FragmentedMode == "no")
	b.flag("--no-seek", st.NoSeek)
	b.flag("--no-open", st.NoOpen)

	d := s.Download
	b.value("--yt-dlp-location", d.YtDlpLocation)
	b.value("--download-format", d.DownloadFormat)
	b.value("--output-format", d.OutputFormat)
	b.value("--yt-dlp-extras", d.YtDlpExtras)
	b.value("--temp-dir", d.TempDir)

	diag := s.Diagnostics
	b.value("--progress", diag.ProgressStyle)
	b.flag("--debug", diag.Debug)
	b.flag("--quiet", diag.Quiet)
	b.flag("--preview", diag.PreviewStats)

	return b.opts
}

func normalizeValue(r RenderOptions) string {
	switch r.AudioNormalizeMode {
	case "ebu":
		var p []string
		for _, kv := range [][2]string{{"i", r.EbuI}, {"lra", r.EbuLra}, {"tp", r.EbuTp}, {"gain", r.EbuGain}} {
			if v := strings.TrimSpace(kv[1]); v != "" {
				p = append(p, kv[0]+"="+v)
			}
		}
		if len(p) == 0 {
			return "ebu"
		}
		return "ebu:" + strings.Join(p, ",")
	case "peak":
		if target := strings.TrimSpace(r.PeakTarget); target != "" {
			return "peak:target=" + target
		}
		return "peak"
	default:
		return ""
	}
}

// Join renders opts space separated.
func Join(opts []Option) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, o.String())
	}
	return strings.Join(parts, " ")
}
