package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Native renders in-process with oksvg. Text, filters and embedded images
// are not drawn; the vector original stays authoritative.
type Native struct {
	// Background fills the canvas before drawing. Nil leaves it transparent.
	Background image.Image
}

// NewNative returns an in-process rasterizer.
func NewNative() *Native {
	return &Native{}
}

// Rasterize parses svg, fits it into w x h and encodes the result as PNG.
func (n *Native) Rasterize(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
	if err := checkSize(w, h); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if n.Background != nil {
		draw.Draw(img, img.Bounds(), n.Background, image.Point{}, draw.Src)
	}
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
