package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"svgdeck/internal/deck/builder"
	"svgdeck/internal/deck/media"
)

// isTTY reports whether w is an interactive terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type styles struct {
	green  func(a ...any) string
	yellow func(a ...any) string
	red    func(a ...any) string
	gray   func(a ...any) string
	bold   func(a ...any) string
}

func newStyles(w io.Writer) styles {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if !isTTY(w) {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return styles{
		green:  mk(color.FgGreen),
		yellow: mk(color.FgYellow),
		red:    mk(color.FgRed),
		gray:   mk(color.FgHiBlack),
		bold:   mk(color.Bold),
	}
}

func (s styles) error(msg string) string {
	return s.red("error: " + msg)
}

func modeLabel(s styles, report builder.SlideReport) string {
	if report.Status == builder.StatusFailed {
		return s.red("failed")
	}
	switch report.Mode {
	case media.DualFormat:
		return s.green("svg+png")
	case media.Downgraded:
		return s.yellow("svg (png failed)")
	default:
		return s.green("svg")
	}
}

// writeSummary prints one line per slide followed by the totals.
func writeSummary(w io.Writer, s styles, summary *builder.Summary) {
	fmt.Fprintf(w, "%s %s\n", s.bold("Canvas:"), summary.Canvas)
	for _, notice := range summary.Notices {
		fmt.Fprintf(w, "%s %s\n", s.yellow("notice:"), notice)
	}
	for _, report := range summary.Slides {
		line := fmt.Sprintf("  [%d/%d] %-28s %s", report.Index, summary.Total, report.Name, modeLabel(s, report))
		if report.Notes {
			line += s.gray(" +notes")
		}
		if report.Error != "" {
			line += " " + s.gray(report.Error)
		}
		fmt.Fprintln(w, line)
	}

	parts := []string{fmt.Sprintf("%d/%d slides", summary.Succeeded, summary.Total)}
	if summary.Downgraded > 0 {
		parts = append(parts, fmt.Sprintf("%d without PNG fallback", summary.Downgraded))
	}
	if summary.NotesFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d notes file(s) unreadable", summary.NotesFailures))
	}
	status := s.green("Done:")
	if !summary.OK() {
		status = s.red("Incomplete:")
	}
	fmt.Fprintf(w, "%s %s -> %s (%s)\n", status, strings.Join(parts, ", "), summary.OutputPath, summary.Duration.Round(1e6))
}
