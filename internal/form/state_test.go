package form

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/autoeditor/autoeditor-agent/internal/command"
	"github.com/autoeditor/autoeditor-agent/internal/expr"
)

func TestDefaults_Preview(t *testing.T) {
	got := Defaults().Preview()
	want := `auto-editor <clip> --export resolve:name="Auto-Editor Timeline" --edit audio --output <path>.fcpxml`
	if got != want {
		t.Errorf("Defaults().Preview() =\n%s\nwant\n%s", got, want)
	}
}

func TestPreview_EndToEnd(t *testing.T) {
	s := Defaults()
	s.ClipLabel = "Reel 1 / ClipA"
	s.Timeline = "My Timeline"
	s.SingleRule = expr.NewRule(expr.MethodNone)
	s.EditMode = expr.ModeManual

	want := `auto-editor "Reel 1 / ClipA" --export resolve:name="My Timeline" --output <path>.fcpxml`
	if got := s.Preview(); got != want {
		t.Errorf("Preview() =\n%s\nwant\n%s", got, want)
	}
}

func TestPreview_UtilitiesTab(t *testing.T) {
	s := Defaults()
	s.ActiveTab = TabUtilities
	s.Utilities.Command = command.UtilityCache
	s.Utilities.CacheAction = command.CacheClear
	if got := s.Preview(); got != "auto-editor cache clear" {
		t.Errorf("Preview() = %q", got)
	}
}

func TestRunLabel(t *testing.T) {
	s := Defaults()
	if s.RunLabel() != "Create Timeline" {
		t.Errorf("host label = %q", s.RunLabel())
	}
	s.RunMode = command.RunModeStandalone
	if s.RunLabel() != "Run Export" {
		t.Errorf("standalone label = %q", s.RunLabel())
	}
	s.ActiveTab = TabUtilities
	if s.RunLabel() != "Run Utility" {
		t.Errorf("utilities label = %q", s.RunLabel())
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	s := Defaults()
	s.RunMode = command.RunModeStandalone
	s.ExportTarget = "premiere"
	s.PriorExportTarget = "premiere"
	s.EditMode = expr.ModeCombine
	s.CombineOperator = expr.OperatorAnd
	s.CombineRules = []expr.Rule{
		{Cond: expr.Audio{Threshold: "4", Unit: expr.UnitPercent, StreamMode: expr.AudioStreamAll}},
		{Invert: true, Cond: expr.Regex{Pattern: "um+", IgnoreCase: true}},
	}
	s.Margin = "0.2s"

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Preview() != s.Preview() {
		t.Errorf("decoded preview =\n%s\nwant\n%s", got.Preview(), s.Preview())
	}
	if got.Expression() != "audio:threshold=4% and not (regex:pattern=um+,ignorecase=true)" {
		t.Errorf("Expression() = %q", got.Expression())
	}
}

func TestDecode_PartialKeepsDefaults(t *testing.T) {
	got, err := Decode([]byte(`{"margin":"1s","renderOptions":{"videoCodec":"h264"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Margin != "1s" || got.RenderOptions.VideoCodec != "h264" {
		t.Errorf("decoded = %+v", got)
	}
	if got.RenderOptions.AudioNormalizeMode != "off" || got.TimelineOptions.BackgroundColor != "#000000" {
		t.Errorf("defaults lost: %+v %+v", got.RenderOptions, got.TimelineOptions)
	}
	if got.ExportTarget != command.TargetResolve || got.RunMode != command.RunModeHost {
		t.Errorf("export = %s/%s", got.RunMode, got.ExportTarget)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{`{not json`, `{"singleRule":{"method":"telepathy"}}`} {
		got, err := Decode([]byte(raw))
		if err == nil {
			t.Errorf("Decode(%s) expected error", raw)
		}
		if got.Preview() != Defaults().Preview() {
			t.Errorf("Decode(%s) did not fall back to defaults", raw)
		}
	}
}

func TestDecode_HostModePinsResolve(t *testing.T) {
	got, err := Decode([]byte(`{"runMode":"resolve","exportTarget":"premiere"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.ExportTarget != command.TargetResolve {
		t.Errorf("ExportTarget = %s, want resolve", got.ExportTarget)
	}
	if got.PriorExportTarget != "premiere" {
		t.Errorf("PriorExportTarget = %s, want premiere", got.PriorExportTarget)
	}

	next := got
	next.RunMode = command.RunModeStandalone
	if left := Apply(got, next); left.ExportTarget != "premiere" {
		t.Errorf("ExportTarget after leaving host mode = %s, want premiere", left.ExportTarget)
	}
}

func TestApply_ExportTransitions(t *testing.T) {
	prev := Defaults()

	next := prev
	next.RunMode = command.RunModeStandalone
	s := Apply(prev, next)
	next = s
	next.ExportTarget = "premiere"
	s = Apply(s, next)
	if s.ExportTarget != "premiere" {
		t.Fatalf("ExportTarget = %s, want premiere", s.ExportTarget)
	}

	next = s
	next.RunMode = command.RunModeHost
	s = Apply(s, next)
	if s.ExportTarget != command.TargetResolve {
		t.Errorf("host ExportTarget = %s, want resolve", s.ExportTarget)
	}

	next = s
	next.ExportTarget = "shotcut"
	s = Apply(s, next)
	if s.ExportTarget != command.TargetResolve {
		t.Errorf("selection in host mode took effect: %s", s.ExportTarget)
	}

	next = s
	next.RunMode = command.RunModeStandalone
	s = Apply(s, next)
	if s.ExportTarget != "premiere" {
		t.Errorf("restored ExportTarget = %s, want premiere", s.ExportTarget)
	}
	if !strings.HasPrefix(s.Preview(), "auto-editor <clip> --export premiere") {
		t.Errorf("Preview() = %s", s.Preview())
	}
}

type fakeKV struct {
	values map[string]string
	getErr error
	setErr error
}

func (f *fakeKV) GetConfig(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.values[key], nil
}

func (f *fakeKV) SetConfig(_ context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

func TestStore_LoadSave(t *testing.T) {
	kv := &fakeKV{}
	st := NewStore(kv, nil)
	ctx := context.Background()

	if got := st.Load(ctx); got.Preview() != Defaults().Preview() {
		t.Errorf("empty Load() = %s", got.Preview())
	}

	s := Defaults()
	s.Margin = "0.3s"
	st.Save(ctx, s)
	if _, ok := kv.values[SettingsKey]; !ok {
		t.Fatalf("nothing stored under %s", SettingsKey)
	}
	if got := st.Load(ctx); got.Margin != "0.3s" {
		t.Errorf("Load().Margin = %q", got.Margin)
	}

	if got := st.Reset(ctx); got.Margin != "" {
		t.Errorf("Reset().Margin = %q", got.Margin)
	}
	if got := st.Load(ctx); got.Margin != "" {
		t.Errorf("Load() after reset Margin = %q", got.Margin)
	}
}

func TestStore_ErrorsSwallowed(t *testing.T) {
	kv := &fakeKV{getErr: errors.New("disk gone"), setErr: errors.New("read-only")}
	st := NewStore(kv, nil)
	ctx := context.Background()

	st.Save(ctx, Defaults())
	if got := st.Load(ctx); got.Preview() != Defaults().Preview() {
		t.Errorf("Load() with failing storage = %s", got.Preview())
	}
}

func TestStore_MalformedFallsBack(t *testing.T) {
	kv := &fakeKV{values: map[string]string{SettingsKey: "garbage"}}
	if got := NewStore(kv, nil).Load(context.Background()); got.ActiveTab != TabEdit {
		t.Errorf("Load() = %+v", got)
	}
}
