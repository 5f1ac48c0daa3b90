package canvas

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultPreset is used when nothing else determines the canvas.
const DefaultPreset = "ppt169"

// Preset is a named canvas size in pixels.
type Preset struct {
	Name        string
	DisplayName string
	Width       int
	Height      int
}

// ViewBox returns the "0 0 W H" view box matching the preset.
func (p Preset) ViewBox() string {
	return fmt.Sprintf("0 0 %d %d", p.Width, p.Height)
}

var builtinPresets = map[string]Preset{
	"ppt169":      {DisplayName: "PPT 16:9", Width: 1280, Height: 720},
	"ppt43":       {DisplayName: "PPT 4:3", Width: 1024, Height: 768},
	"wechat":      {DisplayName: "WeChat article header", Width: 900, Height: 383},
	"xiaohongshu": {DisplayName: "Xiaohongshu", Width: 1242, Height: 1660},
	"moments":     {DisplayName: "Moments square", Width: 1080, Height: 1080},
	"story":       {DisplayName: "Story 9:16", Width: 1080, Height: 1920},
	"banner":      {DisplayName: "Banner 16:9", Width: 1920, Height: 1080},
	"a4":          {DisplayName: "A4 print", Width: 1240, Height: 1754},
}

var aliases = map[string]string{
	"xhs":           "xiaohongshu",
	"wechat_moment": "moments",
	"wechat-moment": "moments",
}

// NormalizeName lower-cases name and resolves aliases.
func NormalizeName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if target, ok := aliases[key]; ok {
		return target
	}
	return key
}

// PresetLibrary stores named canvas presets.
type PresetLibrary struct {
	presets map[string]Preset
}

// NewPresetLibrary constructs a library from a map of presets.
func NewPresetLibrary(m map[string]Preset) *PresetLibrary {
	cp := make(map[string]Preset, len(m))
	for k, v := range m {
		key := NormalizeName(k)
		v.Name = key
		if v.DisplayName == "" {
			v.DisplayName = key
		}
		cp[key] = v
	}
	return &PresetLibrary{presets: cp}
}

// BuiltinPresets returns a library holding the built-in presets.
func BuiltinPresets() *PresetLibrary {
	return NewPresetLibrary(builtinPresets)
}

// Get retrieves a preset by name or alias.
func (l *PresetLibrary) Get(name string) (Preset, bool) {
	if l == nil {
		return Preset{}, false
	}
	preset, ok := l.presets[NormalizeName(name)]
	return preset, ok
}

// Names returns the preset names in sorted order.
func (l *PresetLibrary) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.presets))
	for name := range l.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the presets sorted by name.
func (l *PresetLibrary) List() []Preset {
	names := l.Names()
	out := make([]Preset, 0, len(names))
	for _, name := range names {
		out = append(out, l.presets[name])
	}
	return out
}

// Merge returns a new library with other's presets layered over l's.
func (l *PresetLibrary) Merge(other *PresetLibrary) *PresetLibrary {
	merged := make(map[string]Preset)
	if l != nil {
		for k, v := range l.presets {
			merged[k] = v
		}
	}
	if other != nil {
		for k, v := range other.presets {
			merged[k] = v
		}
	}
	return &PresetLibrary{presets: merged}
}

// LoadPresetFile reads presets from a YAML file:
//
//	presets:
//	  poster:
//	    name: Poster
//	    width: 1500
//	    height: 2000
func LoadPresetFile(fs afero.Fs, path string) (*PresetLibrary, error) {
	data, err := afero.ReadFile(fs, filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("load preset file: %w", err)
	}
	type rawPreset struct {
		Name   string `yaml:"name"`
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
	}
	var payload struct {
		Presets map[string]rawPreset `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse preset file: %w", err)
	}
	presets := make(map[string]Preset, len(payload.Presets))
	for name, rp := range payload.Presets {
		if rp.Width <= 0 || rp.Height <= 0 {
			return nil, fmt.Errorf("preset %q: width and height must be positive", name)
		}
		if !InRange(rp.Width, rp.Height) {
			return nil, fmt.Errorf("preset %q: width and height must not exceed %d px", name, MaxCanvasPx)
		}
		presets[name] = Preset{DisplayName: rp.Name, Width: rp.Width, Height: rp.Height}
	}
	return NewPresetLibrary(presets), nil
}
