// Package media decides, per slide, whether to embed the vector original
// alone or together with a raster fallback, and stages the media parts.
package media

import (
	"context"
	"fmt"

	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/opc"
	"svgdeck/internal/deck/raster"
	"svgdeck/internal/errors"
	"svgdeck/internal/logging"
)

// Mode is the embedding outcome of one slide.
type Mode string

const (
	VectorOnly Mode = "vector_only"
	DualFormat Mode = "dual_format"
	Downgraded Mode = "downgraded"
)

const svgMIME = "image/svg+xml"

// NoticeNoRasterizer is the single build-level notice emitted when a
// dual-format build has no rasterizer to work with.
const NoticeNoRasterizer = "no rasterizer available: every slide is embedded as vector only"

// Plan is the build-wide embedding decision, made once before any slide is
// processed.
type Plan struct {
	DualFormat bool
	Notice     string
}

// NewPlan decides whether slides attempt dual-format embedding.
func NewPlan(compat bool, rasterizer raster.Rasterizer) Plan {
	switch {
	case !compat:
		return Plan{}
	case rasterizer == nil:
		return Plan{Notice: NoticeNoRasterizer}
	default:
		return Plan{DualFormat: true}
	}
}

// Image is one embedded media part and the relationship id it is referenced
// by from the slide.
type Image struct {
	ID   string
	Part string
}

// Result describes what was staged for one slide.
type Result struct {
	Mode Mode
	// Vector is always set. Raster is set only for DualFormat.
	Vector Image
	Raster *Image
	Parts  []opc.Part
	// RasterErr is the rasterization failure behind a Downgraded slide.
	RasterErr error
}

// Images returns the embedded images in relationship id order.
func (r *Result) Images() []Image {
	if r.Raster != nil {
		return []Image{*r.Raster, r.Vector}
	}
	return []Image{r.Vector}
}

// MediaExtensions returns the extensions of the staged media parts.
func (r *Result) MediaExtensions() []string {
	if r.Raster != nil {
		return []string{"png", "svg"}
	}
	return []string{"svg"}
}

// Embedder stages media for slides of one build.
type Embedder struct {
	fs         afero.Fs
	rasterizer raster.Rasterizer
	plan       Plan
	logger     logging.Logger
}

// NewEmbedder creates an embedder following plan.
func NewEmbedder(fs afero.Fs, rasterizer raster.Rasterizer, plan Plan, logger logging.Logger) *Embedder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Embedder{fs: fs, rasterizer: rasterizer, plan: plan, logger: logging.OrNop(logger)}
}

// Embed reads the slide at path and stages its media. Relationship ids are
// drawn from ids, the allocator of the slide's relationship part: raster
// first, then vector. An unreadable or non-SVG source is returned as a
// *errors.SlideError; a rasterization failure is not an error, it yields a
// Downgraded result.
func (e *Embedder) Embed(ctx context.Context, index int, name, path string, spec canvas.Spec, ids *opc.IDAllocator) (*Result, error) {
	svg, err := e.readSource(path)
	if err != nil {
		return nil, errors.NewSlideError(index, name, errors.StageSource, err)
	}

	result := &Result{Mode: VectorOnly}
	var png []byte
	if e.plan.DualFormat {
		png, err = e.rasterize(ctx, svg, spec)
		if err != nil {
			e.logger.Warn("slide %d (%s): raster fallback failed, embedding vector only: %v", index, name, err)
			result.Mode = Downgraded
			result.RasterErr = err
		} else {
			result.Mode = DualFormat
		}
	}

	if result.Mode == DualFormat {
		rasterPart := opc.MediaPart(index, "png")
		result.Raster = &Image{ID: ids.Next(), Part: rasterPart}
		result.Parts = append(result.Parts, opc.Part{Name: rasterPart, Data: png})
	}
	vectorPart := opc.MediaPart(index, "svg")
	result.Vector = Image{ID: ids.Next(), Part: vectorPart}
	result.Parts = append(result.Parts, opc.Part{Name: vectorPart, Data: svg})
	return result, nil
}

func (e *Embedder) readSource(path string) ([]byte, error) {
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read slide: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("slide %s is empty", path)
	}
	// Detection only sees the head of the file, so a long prolog reads as
	// plain XML. The parsed root element decides for textual content.
	detected := mimetype.Detect(data)
	if !detected.Is(svgMIME) && !isText(detected) {
		return nil, fmt.Errorf("slide %s is not an SVG document (detected %s)", path, detected.String())
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("slide %s is not well-formed: %w", path, err)
	}
	if root := doc.Root(); root == nil || root.Tag != "svg" {
		return nil, fmt.Errorf("slide %s is not an SVG document (detected %s)", path, detected.String())
	}
	return data, nil
}

// isText reports whether detection fell back to a generic textual type.
func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/xml") || m.Is("text/plain") {
			return true
		}
	}
	return false
}

// rasterize calls the rasterizer, converting a panic into an error.
func (e *Embedder) rasterize(ctx context.Context, svg []byte, spec canvas.Spec) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("rasterizer panic: %v", rec)
		}
	}()
	out, err = e.rasterizer.Rasterize(ctx, svg, spec.WidthPx, spec.HeightPx)
	if err == nil && len(out) == 0 {
		err = fmt.Errorf("rasterizer returned no data")
	}
	return out, err
}
