// Package raster turns SVG documents into PNG fallbacks. The deck builder
// only sees the Rasterizer interface; backends are chosen once per process
// by Probe.
package raster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/observability"
)

// ErrInvalidSize is returned for non-positive target sizes.
var ErrInvalidSize = errors.New("raster: width and height must be positive")

// ErrSizeTooLarge rejects sizes whose RGBA buffer would exceed MaxSidePx per side.
var ErrSizeTooLarge = errors.New("raster: canvas too large")

// MaxSidePx is the largest width or height accepted by every backend.
const MaxSidePx = canvas.MaxCanvasPx

// Rasterizer renders svg to PNG bytes of exactly w x h pixels.
// Implementations must be safe for concurrent use.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg []byte, w, h int) ([]byte, error)
}

// Func adapts a function to Rasterizer.
type Func func(ctx context.Context, svg []byte, w, h int) ([]byte, error)

// Rasterize calls f.
func (f Func) Rasterize(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
	return f(ctx, svg, w, h)
}

func checkSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	if w > MaxSidePx || h > MaxSidePx {
		return fmt.Errorf("%w: %dx%d exceeds %d px per side", ErrSizeTooLarge, w, h, MaxSidePx)
	}
	return nil
}

// Instrumented records the duration and outcome of every call.
type Instrumented struct {
	next    Rasterizer
	backend string
	metrics *observability.MetricsCollector
}

// NewInstrumented wraps next. A nil collector makes recording a no-op.
func NewInstrumented(next Rasterizer, backend string, metrics *observability.MetricsCollector) *Instrumented {
	return &Instrumented{next: next, backend: backend, metrics: metrics}
}

// Rasterize delegates to the wrapped rasterizer.
func (i *Instrumented) Rasterize(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
	start := time.Now()
	out, err := i.next.Rasterize(ctx, svg, w, h)
	i.metrics.RecordRaster(ctx, i.backend, err == nil, time.Since(start))
	return out, err
}
