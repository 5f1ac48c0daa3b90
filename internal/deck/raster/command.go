package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// DefaultCommand is the external converter used when none is configured.
const DefaultCommand = "rsvg-convert"

// Command renders through an external converter that reads SVG on stdin and
// writes PNG on stdout. Args may use {width} and {height} placeholders.
type Command struct {
	Path string
	Args []string
}

// DefaultCommandArgs are the rsvg-convert arguments.
func DefaultCommandArgs() []string {
	return []string{"--width", "{width}", "--height", "{height}", "--format", "png"}
}

// NewCommand resolves name on PATH.
func NewCommand(name string, args []string) (*Command, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultCommand
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("rasterizer command %q not found: %w", name, err)
	}
	if len(args) == 0 {
		args = DefaultCommandArgs()
	}
	return &Command{Path: path, Args: append([]string(nil), args...)}, nil
}

// Rasterize runs the converter and normalises its output to w x h.
func (c *Command) Rasterize(ctx context.Context, svg []byte, w, h int) ([]byte, error) {
	if err := checkSize(w, h); err != nil {
		return nil, err
	}
	args := expandArgs(c.Args, w, h)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Stdin = bytes.NewReader(svg)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", c.Path, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}
	return fitPNG(stdout.Bytes(), w, h)
}

func expandArgs(args []string, w, h int) []string {
	replacer := strings.NewReplacer("{width}", strconv.Itoa(w), "{height}", strconv.Itoa(h))
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// fitPNG rescales encoded PNG data to exactly w x h when the converter
// honoured the aspect ratio instead of the requested size.
func fitPNG(data []byte, w, h int) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode converter output: %w", err)
	}
	if b := src.Bounds(); b.Dx() == w && b.Dy() == h {
		return data, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
