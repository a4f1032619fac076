package expr

import (
	"encoding/json"
	"testing"
)

func TestFormatRule(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{
			name: "audio percent threshold",
			rule: Rule{Cond: Audio{Threshold: "5", Unit: UnitPercent}},
			want: "audio:threshold=5%",
		},
		{
			name: "audio decibel with index stream",
			rule: Rule{Cond: Audio{Threshold: "-19", Unit: UnitDecibel, StreamMode: AudioStreamIndex, StreamIndex: "1", MinClip: "3", MinCut: "6"}},
			want: "audio:threshold=-19dB,stream=1,minclip=3,mincut=6",
		},
		{
			name: "audio stream index ignored in all mode",
			rule: Rule{Cond: Audio{Threshold: "0.04", StreamMode: AudioStreamAll, StreamIndex: "2"}},
			want: "audio:threshold=0.04",
		},
		{
			name: "audio without params",
			rule: Rule{Cond: Audio{Unit: UnitPercent}},
			want: "audio",
		},
		{
			name: "none ignores invert",
			rule: Rule{Invert: true, Cond: None{}},
			want: "none",
		},
		{
			name: "all ignores invert",
			rule: Rule{Invert: true, Cond: All{}},
			want: "all/e",
		},
		{
			name: "motion",
			rule: Rule{Cond: Motion{Threshold: "2", Unit: UnitPercent, Stream: "0", Width: "400", Blur: "9"}},
			want: "motion:threshold=2%,stream=0,width=400,blur=9",
		},
		{
			name: "subtitle quotes pattern with space",
			rule: Rule{Cond: Subtitle{Pattern: "hello world", IgnoreCase: true}},
			want: `subtitle:pattern="hello world",ignorecase=true`,
		},
		{
			name: "word false ignorecase omitted",
			rule: Rule{Cond: Word{Value: "um", Stream: "0"}},
			want: "word:word=um,stream=0",
		},
		{
			name: "regex with comma and quote",
			rule: Rule{Cond: Regex{Pattern: `a,"b"`}},
			want: `regex:pattern="a,\"b\""`,
		},
		{
			name: "inverted",
			rule: Rule{Invert: true, Cond: Audio{Threshold: "4", Unit: UnitPercent}},
			want: "not (audio:threshold=4%)",
		},
		{
			name: "values trimmed",
			rule: Rule{Cond: Motion{Threshold: " 0.1 ", Width: "  "}},
			want: "motion:threshold=0.1",
		},
		{
			name: "no condition",
			rule: Rule{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRule(tt.rule); got != tt.want {
				t.Errorf("FormatRule() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildExpression(t *testing.T) {
	audio := Rule{Cond: Audio{Threshold: "4", Unit: UnitPercent}}
	motion := Rule{Cond: Motion{Threshold: "0.02"}}
	empty := Rule{}

	tests := []struct {
		name string
		spec EditSpec
		want string
	}{
		{
			name: "manual trimmed verbatim",
			spec: EditSpec{Mode: ModeManual, Manual: "  (or audio motion)  ", Single: audio},
			want: "(or audio motion)",
		},
		{
			name: "single",
			spec: EditSpec{Mode: ModeSingle, Single: audio},
			want: "audio:threshold=4%",
		},
		{
			name: "combine with and",
			spec: EditSpec{Mode: ModeCombine, Rules: []Rule{audio, motion}, Operator: OperatorAnd},
			want: "audio:threshold=4% and motion:threshold=0.02",
		},
		{
			name: "combine defaults to or",
			spec: EditSpec{Mode: ModeCombine, Rules: []Rule{audio, motion}},
			want: "audio:threshold=4% or motion:threshold=0.02",
		},
		{
			name: "combine single non-empty rule",
			spec: EditSpec{Mode: ModeCombine, Rules: []Rule{empty, audio, empty}, Operator: OperatorAnd},
			want: "audio:threshold=4%",
		},
		{
			name: "combine nothing",
			spec: EditSpec{Mode: ModeCombine},
			want: "",
		},
		{
			name: "unknown mode falls back to single",
			spec: EditSpec{Mode: "bogus", Single: motion},
			want: "motion:threshold=0.02",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildExpression(tt.spec); got != tt.want {
				t.Errorf("BuildExpression() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseOperator(t *testing.T) {
	if ParseOperator(" AND ") != OperatorAnd {
		t.Error("expected and")
	}
	if ParseOperator("xor") != OperatorOr {
		t.Error("expected or for unknown operator")
	}
}

func TestRuleJSON(t *testing.T) {
	in := Rule{Invert: true, Cond: Subtitle{Pattern: "intro", Stream: "1", IgnoreCase: true}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var out Rule
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if FormatRule(out) != FormatRule(in) {
		t.Errorf("decoded rule = %q, want %q", FormatRule(out), FormatRule(in))
	}
}

func TestRuleJSON_LooseFields(t *testing.T) {
	data := `{"method":"audio","invert":false,"fields":{"audioThreshold":5,"audioThresholdUnit":"PERCENT","audioStreamMode":"index","audioStreamIndex":"0"}}`
	var r Rule
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if got, want := FormatRule(r), "audio:threshold=5%,stream=0"; got != want {
		t.Errorf("FormatRule() = %q, want %q", got, want)
	}
}

func TestRuleJSON_UnknownMethod(t *testing.T) {
	var r Rule
	if err := json.Unmarshal([]byte(`{"method":"smell","fields":{}}`), &r); err == nil {
		t.Fatal("expected error for unknown method")
	}
}

func TestNewRule(t *testing.T) {
	for _, m := range knownMethods {
		r := NewRule(m)
		if r.Method() != m {
			t.Errorf("NewRule(%q).Method() = %q", m, r.Method())
		}
	}
	if got := FormatRule(NewRule(MethodAudio)); got != "audio" {
		t.Errorf("default audio rule = %q, want audio", got)
	}
}
