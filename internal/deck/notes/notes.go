// Package notes matches speaker notes to slides and renders notes parts.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"svgdeck/internal/logging"
)

// DirName is the notes directory inside a project.
const DirName = "notes"

var indexPattern = regexp.MustCompile(`slide[_]?(\d+)`)

// Source is one raw notes document and the stem it was found under.
type Source struct {
	Name string
	Text string
}

// SlideRef identifies a slide for matching: its 1-based position and stem.
type SlideRef struct {
	Index int
	Stem  string
}

// Record maps slide stems to plain-text notes. It is built once per build
// and only read afterwards.
type Record map[string]string

// Lookup returns the notes of stem.
func (r Record) Lookup(stem string) (string, bool) {
	text, ok := r[NormalizeStem(stem)]
	return text, ok
}

// NormalizeStem returns stem in Unicode NFC so names produced on different
// file systems compare equal.
func NormalizeStem(stem string) string {
	return norm.NFC.String(stem)
}

// Stem returns the file name of path without its extension, normalized.
func Stem(path string) string {
	base := filepath.Base(path)
	return NormalizeStem(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Loader gathers notes sources.
type Loader struct {
	fs     afero.Fs
	logger logging.Logger
}

// NewLoader creates a loader reading from fs.
func NewLoader(fs afero.Fs, logger logging.Logger) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs, logger: logging.OrNop(logger)}
}

// LoadResult is the outcome of Load.
type LoadResult struct {
	Sources []Source
	// Failures counts notes files that exist but could not be read.
	Failures int
}

// Load reads every *.md file in dir and merges the explicit map on top
// (explicit entries replace files of the same stem). A missing dir yields
// no sources. Whitespace-only documents are dropped.
func (l *Loader) Load(dir string, explicit map[string]string) (LoadResult, error) {
	byName := map[string]string{}
	var result LoadResult

	if dir != "" {
		entries, err := afero.ReadDir(l.fs, dir)
		switch {
		case os.IsNotExist(err):
			l.logger.Debug("notes directory %s not found", dir)
		case err != nil:
			return result, fmt.Errorf("read notes directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			data, err := afero.ReadFile(l.fs, path)
			if err != nil {
				result.Failures++
				l.logger.Warn("skipping notes %s: %v", path, err)
				continue
			}
			byName[Stem(entry.Name())] = string(data)
		}
	}
	for name, text := range explicit {
		if strings.TrimSpace(text) == "" {
			continue
		}
		byName[NormalizeStem(strings.TrimSuffix(name, filepath.Ext(name)))] = text
	}

	names := make([]string, 0, len(byName))
	for name, text := range byName {
		if strings.TrimSpace(text) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		result.Sources = append(result.Sources, Source{Name: name, Text: strings.TrimSpace(byName[name])})
	}
	return result, nil
}

// Match assigns sources to slides in two passes. The first maps names
// carrying an index (slide01, slide_2) to the slide at that position; the
// second maps names equal to a slide stem and overwrites the first, so an
// exact name always beats an index. Text is converted to plain paragraphs.
func Match(sources []Source, slides []SlideRef) Record {
	byIndex := make(map[int]string, len(slides))
	byStem := make(map[string]struct{}, len(slides))
	for _, slide := range slides {
		stem := NormalizeStem(slide.Stem)
		byIndex[slide.Index] = stem
		byStem[stem] = struct{}{}
	}

	record := Record{}
	for _, src := range sources {
		m := indexPattern.FindStringSubmatch(src.Name)
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if stem, ok := byIndex[index]; ok {
			record[stem] = ToPlainText(src.Text)
		}
	}
	for _, src := range sources {
		name := NormalizeStem(src.Name)
		if _, ok := byStem[name]; ok {
			record[name] = ToPlainText(src.Text)
		}
	}
	return record
}
