// Package canvas decides the pixel and EMU size shared by every slide of a
// deck.
package canvas

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/spf13/afero"

	"svgdeck/internal/logging"
)

// EMUPerPixel converts 96-dpi pixels to English Metric Units.
const EMUPerPixel = 9525

// MaxCanvasPx bounds each canvas side. A raster fallback allocates
// width*height*4 bytes, so larger sizes are refused or ignored.
const MaxCanvasPx = 16384

// InRange reports whether w x h is a usable canvas size.
func InRange(w, h int) bool {
	return w >= 1 && h >= 1 && w <= MaxCanvasPx && h <= MaxCanvasPx
}

// PxToEMU converts pixels to EMU without floating point.
func PxToEMU(px int) int64 {
	return int64(px) * EMUPerPixel
}

// Source records which rule produced a Spec.
type Source string

const (
	SourceExplicit  Source = "explicit"
	SourcePreset    Source = "preset"
	SourceDetected  Source = "detected"
	SourceIntrinsic Source = "intrinsic"
	SourceDefault   Source = "default"
)

// Spec is the resolved canvas. Both dimensions are positive.
type Spec struct {
	WidthPx   int
	HeightPx  int
	WidthEMU  int64
	HeightEMU int64
	Source    Source
	Preset    string
}

// String renders the spec for logs and summaries.
func (s Spec) String() string {
	if s.Preset != "" {
		return fmt.Sprintf("%s %dx%d", s.Preset, s.WidthPx, s.HeightPx)
	}
	return fmt.Sprintf("%dx%d", s.WidthPx, s.HeightPx)
}

func newSpec(w, h int, source Source, preset string) Spec {
	return Spec{
		WidthPx:   w,
		HeightPx:  h,
		WidthEMU:  PxToEMU(w),
		HeightEMU: PxToEMU(h),
		Source:    source,
		Preset:    preset,
	}
}

// Request carries the caller's canvas preferences. Zero values mean "not
// given".
type Request struct {
	Preset string
	Width  int
	Height int
}

// Resolver turns a Request and the first slide into a Spec.
type Resolver struct {
	fs      afero.Fs
	presets *PresetLibrary
	logger  logging.Logger
}

// NewResolver creates a resolver. A nil library means the built-in presets.
func NewResolver(fs afero.Fs, presets *PresetLibrary, logger logging.Logger) *Resolver {
	if presets == nil {
		presets = BuiltinPresets()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Resolver{fs: fs, presets: presets, logger: logging.OrNop(logger)}
}

// Resolve applies, in order: explicit pixels, a named preset, a preset
// detected from the first slide's view box, the first slide's intrinsic
// size, the default preset. It never fails; unreadable slides fall through
// to the default.
func (r *Resolver) Resolve(req Request, firstSlide string) Spec {
	if req.Width > 0 && req.Height > 0 {
		if InRange(req.Width, req.Height) {
			return newSpec(req.Width, req.Height, SourceExplicit, "")
		}
		r.logger.Warn("ignoring canvas size %dx%d above %d px", req.Width, req.Height, MaxCanvasPx)
		return r.defaultSpec()
	}
	if req.Width > 0 || req.Height > 0 {
		r.logger.Warn("ignoring incomplete canvas size %dx%d", req.Width, req.Height)
	}

	if strings.TrimSpace(req.Preset) != "" {
		if preset, ok := r.presets.Get(req.Preset); ok {
			return newSpec(preset.Width, preset.Height, SourcePreset, preset.Name)
		}
		r.logger.Warn("unknown canvas preset %q, using %s", req.Preset, DefaultPreset)
		return r.defaultSpec()
	}

	if firstSlide != "" {
		bounds, err := r.readBounds(firstSlide)
		if err != nil {
			r.logger.Warn("could not read canvas from %s: %v", firstSlide, err)
		} else {
			if name, ok := r.detect(bounds); ok {
				preset, _ := r.presets.Get(name)
				return newSpec(preset.Width, preset.Height, SourceDetected, preset.Name)
			}
			if w, h, ok := bounds.size(); ok {
				return newSpec(w, h, SourceIntrinsic, "")
			}
			r.logger.Warn("canvas of %s is unusable, using %s", firstSlide, DefaultPreset)
		}
	}
	return r.defaultSpec()
}

func (r *Resolver) defaultSpec() Spec {
	if preset, ok := r.presets.Get(DefaultPreset); ok {
		return newSpec(preset.Width, preset.Height, SourceDefault, preset.Name)
	}
	return newSpec(1280, 720, SourceDefault, DefaultPreset)
}

func (r *Resolver) detect(b Bounds) (string, bool) {
	if !b.HasViewBox || b.MinX != 0 || b.MinY != 0 {
		return "", false
	}
	for _, name := range r.presets.Names() {
		preset, _ := r.presets.Get(name)
		if b.ViewWidth == float64(preset.Width) && b.ViewHeight == float64(preset.Height) {
			return name, true
		}
	}
	return "", false
}

func (r *Resolver) readBounds(path string) (Bounds, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return Bounds{}, err
	}
	return ParseBounds(data)
}

// Bounds is the geometry declared on an SVG root element.
type Bounds struct {
	HasViewBox bool
	MinX       float64
	MinY       float64
	ViewWidth  float64
	ViewHeight float64
	Width      float64
	Height     float64
}

// size prefers the view box and falls back to width/height attributes.
// Sizes that round outside InRange are not usable.
func (b Bounds) size() (int, int, bool) {
	if b.HasViewBox {
		if w, h, ok := rounded(b.ViewWidth, b.ViewHeight); ok {
			return w, h, true
		}
	}
	return rounded(b.Width, b.Height)
}

func rounded(fw, fh float64) (int, int, bool) {
	if !(fw > 0 && fh > 0) || fw > MaxCanvasPx || fh > MaxCanvasPx {
		return 0, 0, false
	}
	w, h := int(math.Round(fw)), int(math.Round(fh))
	if !InRange(w, h) {
		return 0, 0, false
	}
	return w, h, true
}

// ParseBounds reads the viewBox, width and height attributes of an SVG
// document's root element.
func ParseBounds(data []byte) (Bounds, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return Bounds{}, fmt.Errorf("parse svg: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "svg" {
		return Bounds{}, fmt.Errorf("parse svg: root element is not <svg>")
	}

	var b Bounds
	if raw := root.SelectAttrValue("viewBox", ""); raw != "" {
		fields := strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
		if len(fields) == 4 {
			vals := make([]float64, 4)
			ok := true
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					ok = false
					break
				}
				vals[i] = v
			}
			if ok {
				b.HasViewBox = true
				b.MinX, b.MinY, b.ViewWidth, b.ViewHeight = vals[0], vals[1], vals[2], vals[3]
			}
		}
	}
	b.Width = parseLength(root.SelectAttrValue("width", ""))
	b.Height = parseLength(root.SelectAttrValue("height", ""))
	return b, nil
}

// parseLength accepts unitless and px lengths; anything else yields 0.
func parseLength(raw string) float64 {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "px")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
