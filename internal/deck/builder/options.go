package builder

import (
	"fmt"
	"strings"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/notes"
	"svgdeck/internal/deck/slidexml"
	"svgdeck/internal/errors"
)

// Options describes one build.
type Options struct {
	// Slides are SVG paths in presentation order. At least one is required.
	Slides []string
	// OutputPath is where the finished package is written.
	OutputPath string

	Canvas canvas.Request
	// Compat embeds a PNG fallback next to every SVG when a rasterizer is
	// available.
	Compat bool

	// Notes enables notes parts for every slide.
	Notes bool
	// NotesDir holds *.md notes files. Missing directories are ignored.
	NotesDir string
	// NotesText maps notes names to markdown and overrides files of the same
	// name.
	NotesText map[string]string
	// NotesLanguage tags notes text runs; empty means en-US.
	NotesLanguage string
	// RelIDs selects the slide-to-notes relationship id mode: sequential
	// (default) or legacy.
	RelIDs string

	Transition         string
	TransitionDuration float64
	AutoAdvance        *float64

	Title   string
	BuildID string
}

// request is Options after validation.
type request struct {
	Options
	transition *slidexml.Transition
	relIDs     notes.RelIDMode
}

func (o Options) validate() (*request, error) {
	if len(o.Slides) == 0 {
		return nil, errors.NewInputError("slides", fmt.Errorf("no slide sources supplied"))
	}
	for i, path := range o.Slides {
		if strings.TrimSpace(path) == "" {
			return nil, errors.NewInputError("slides", fmt.Errorf("slide %d has an empty path", i+1))
		}
	}
	if strings.TrimSpace(o.OutputPath) == "" {
		return nil, errors.NewInputError("output", fmt.Errorf("output path is required"))
	}
	transition, err := slidexml.ParseTransition(o.Transition, o.TransitionDuration, o.AutoAdvance)
	if err != nil {
		return nil, errors.NewInputError("transition", err)
	}
	mode, err := notes.ParseRelIDMode(o.RelIDs)
	if err != nil {
		return nil, errors.NewInputError("rel_ids", err)
	}
	if o.Canvas.Width < 0 || o.Canvas.Height < 0 {
		return nil, errors.NewInputError("canvas", fmt.Errorf("canvas size must not be negative, got %dx%d", o.Canvas.Width, o.Canvas.Height))
	}
	if o.Canvas.Width > canvas.MaxCanvasPx || o.Canvas.Height > canvas.MaxCanvasPx {
		return nil, errors.NewInputError("canvas", fmt.Errorf("canvas size %dx%d exceeds %d px per side", o.Canvas.Width, o.Canvas.Height, canvas.MaxCanvasPx))
	}
	return &request{Options: o, transition: transition, relIDs: mode}, nil
}
