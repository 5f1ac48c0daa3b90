package notes

import (
	"regexp"
	"strings"
)

var (
	headingMarker = regexp.MustCompile(`^#+\s*`)
	boldStars     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnders    = regexp.MustCompile(`__(.+?)__`)
	italicStars   = regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*`)
)

// Bullet prefixes list items in the plain-text output.
const Bullet = "• "

var listMarkers = []string{"- ", "* ", "+ "}

// stripEmphasis removes bold and italic markers, keeping their content.
func stripEmphasis(text string) string {
	text = boldStars.ReplaceAllString(text, "$1")
	text = boldUnders.ReplaceAllString(text, "$1")
	return italicStars.ReplaceAllString(text, "$1")
}

// ToPlainText converts lightweight markdown into plain paragraphs, one per
// line. Headings become a paragraph followed by a blank one, list items get
// a bullet, emphasis markers are dropped and runs of blank lines collapse.
func ToPlainText(markdown string) string {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "#"):
			text := stripEmphasis(strings.TrimSpace(headingMarker.ReplaceAllString(line, "")))
			if text != "" {
				lines = append(lines, text, "")
			}
		case listItem(trimmed):
			lines = append(lines, Bullet+stripEmphasis(trimmed[2:]))
		case trimmed != "":
			lines = append(lines, stripEmphasis(trimmed))
		default:
			lines = append(lines, "")
		}
	}

	out := make([]string, 0, len(lines))
	prevEmpty := false
	for _, line := range lines {
		if line == "" {
			if !prevEmpty {
				out = append(out, line)
			}
			prevEmpty = true
			continue
		}
		out = append(out, line)
		prevEmpty = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func listItem(line string) bool {
	for _, marker := range listMarkers {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}
	return false
}
