package builder

import (
	"time"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/media"
)

// SlideStatus is the outcome of one slide.
type SlideStatus string

const (
	StatusOK     SlideStatus = "ok"
	StatusFailed SlideStatus = "failed"
)

// SlideReport describes what happened to one slide.
type SlideReport struct {
	Index  int         `json:"index"`
	Name   string      `json:"name"`
	Path   string      `json:"path"`
	Status SlideStatus `json:"status"`
	Mode   media.Mode  `json:"mode,omitempty"`
	Notes  bool        `json:"notes"`
	Error  string      `json:"error,omitempty"`
}

// Summary is the result of a build that produced a package.
type Summary struct {
	BuildID       string        `json:"build_id"`
	Total         int           `json:"total"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Downgraded    int           `json:"downgraded"`
	NotesFailures int           `json:"notes_failures"`
	Canvas        canvas.Spec   `json:"canvas"`
	Slides        []SlideReport `json:"slides"`
	Notices       []string      `json:"notices,omitempty"`
	OutputPath    string        `json:"output_path"`
	Duration      time.Duration `json:"duration"`
}

// OK reports whether every slide made it into the package.
func (s *Summary) OK() bool {
	return s != nil && s.Failed == 0
}

func (s *Summary) add(report SlideReport) {
	s.Slides = append(s.Slides, report)
	if report.Status == StatusFailed {
		s.Failed++
		return
	}
	s.Succeeded++
	if report.Mode == media.Downgraded {
		s.Downgraded++
	}
}

func (s *Summary) status() string {
	switch {
	case s.Failed == 0:
		return "ok"
	case s.Succeeded == 0:
		return "failed"
	default:
		return "partial"
	}
}
