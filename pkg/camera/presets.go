package camera

import (
	"sort"

	"github.com/teslashibe/go-facecues/pkg/facemesh"
)

// Preset names for common capture resolutions.
const (
	PresetVGA   = "vga"
	Preset720p  = "720p"
	Preset1080p = "1080p"
	Preset4K    = "4k"
)

// DefaultPreset is the frame size assumed when a caller does not send one.
const DefaultPreset = PresetVGA

// Presets returns all available frame size presets.
func Presets() map[string]facemesh.FrameSize {
	return map[string]facemesh.FrameSize{
		PresetVGA:   {Width: 640, Height: 480},
		Preset720p:  {Width: 1280, Height: 720},
		Preset1080p: {Width: 1920, Height: 1080},
		Preset4K:    {Width: 3840, Height: 2160},
	}
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a frame size by name.
func Preset(name string) (facemesh.FrameSize, bool) {
	size, ok := Presets()[name]
	return size, ok
}
