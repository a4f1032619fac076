package args

// ActionMode is what the tool does with a silent or normal section.
type ActionMode string

const (
	ActionCut       ActionMode = "cut"
	ActionKeep      ActionMode = "keep"
	ActionSpeed     ActionMode = "speed"
	ActionVarispeed ActionMode = "varispeed"
	ActionVolume    ActionMode = "volume"
)

// ResolveActionMode picks the mode for one section. An enabled override wins
// over the cut checkbox, checked in the order speed, varispeed, volume.
func ResolveActionMode(cut, speed, varispeed, volume bool) ActionMode {
	switch {
	case speed:
		return ActionSpeed
	case varispeed:
		return ActionVarispeed
	case volume:
		return ActionVolume
	case cut:
		return ActionCut
	default:
		return ActionKeep
	}
}

// Actions mirrors the per-section action controls of the form.
type Actions struct {
	SilentCut              bool   `json:"silentCut"`
	SilentSpeedEnabled     bool   `json:"silentSpeedEnabled"`
	SilentSpeed            string `json:"silentSpeed"`
	SilentVarispeedEnabled bool   `json:"silentVarispeedEnabled"`
	SilentVarispeed        string `json:"silentVarispeed"`
	SilentVolumeEnabled    bool   `json:"silentVolumeEnabled"`
	SilentVolume           string `json:"silentVolume"`
	NormalCut              bool   `json:"normalCut"`
	NormalSpeedEnabled     bool   `json:"normalSpeedEnabled"`
	NormalSpeed            string `json:"normalSpeed"`
	NormalVarispeedEnabled bool   `json:"normalVarispeedEnabled"`
	NormalVarispeed        string `json:"normalVarispeed"`
	NormalVolumeEnabled    bool   `json:"normalVolumeEnabled"`
	NormalVolume           string `json:"normalVolume"`
}

// WhenSilent returns the --when-silent value, empty for the tool's default of cut.
func (a Actions) WhenSilent() string {
	mode := ResolveActionMode(a.SilentCut, a.SilentSpeedEnabled, a.SilentVarispeedEnabled, a.SilentVolumeEnabled)
	if mode == ActionCut {
		return ""
	}
	return string(mode)
}

// WhenNormal returns the --when-normal value, empty for the tool's default of keep.
func (a Actions) WhenNormal() string {
	mode := ResolveActionMode(a.NormalCut, a.NormalSpeedEnabled, a.NormalVarispeedEnabled, a.NormalVolumeEnabled)
	if mode == ActionKeep {
		return ""
	}
	return string(mode)
}
