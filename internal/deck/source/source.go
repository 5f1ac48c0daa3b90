// Package source locates slide SVGs and speaker notes inside a project
// directory.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"svgdeck/internal/deck/notes"
)

// Well-known slide directories of a project.
const (
	OutputDir = "svg_output"
	FinalDir  = "svg_final"
)

var sourceAliases = map[string]string{
	"output": OutputDir,
	"final":  FinalDir,
}

// Project is a resolved project directory.
type Project struct {
	Root string
	// SlideDir is where Slides were found.
	SlideDir string
	Slides   []string
	// NotesDir is empty when the project has no notes directory.
	NotesDir string
}

// Name is the project's directory name.
func (p Project) Name() string {
	return filepath.Base(filepath.Clean(p.Root))
}

// Finder resolves projects on a filesystem.
type Finder struct {
	fs afero.Fs
}

// NewFinder creates a Finder; a nil fs means the OS filesystem.
func NewFinder(fs afero.Fs) *Finder {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Finder{fs: fs}
}

// ResolveSourceDir maps a source selector to a directory name. "output"
// and "final" are shorthands; anything else is taken as a subdirectory.
func ResolveSourceDir(selector string) string {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return OutputDir
	}
	if dir, ok := sourceAliases[strings.ToLower(selector)]; ok {
		return dir
	}
	return selector
}

// Find resolves root. The selected source directory is tried first, then
// svg_output, then root itself.
func (f *Finder) Find(root, selector string) (Project, error) {
	info, err := f.fs.Stat(root)
	if err != nil {
		return Project{}, fmt.Errorf("project %s: %w", root, err)
	}
	if !info.IsDir() {
		return Project{}, fmt.Errorf("project %s: not a directory", root)
	}

	candidates := []string{filepath.Join(root, ResolveSourceDir(selector))}
	if ResolveSourceDir(selector) != OutputDir {
		candidates = append(candidates, filepath.Join(root, OutputDir))
	}
	candidates = append(candidates, root)

	project := Project{Root: root}
	for _, dir := range candidates {
		slides, err := f.List(dir)
		if err != nil || len(slides) == 0 {
			continue
		}
		project.SlideDir = dir
		project.Slides = slides
		break
	}
	if len(project.Slides) == 0 {
		return Project{}, fmt.Errorf("project %s: no SVG slides found", root)
	}

	notesDir := filepath.Join(root, notes.DirName)
	if ok, _ := afero.DirExists(f.fs, notesDir); ok {
		project.NotesDir = notesDir
	}
	return project, nil
}

// List returns the *.svg files directly inside dir, sorted by name.
func (f *Finder) List(dir string) ([]string, error) {
	entries, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".svg") {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Expand turns CLI arguments into slide paths. A single directory argument
// is resolved as a project; otherwise every argument is a slide. Missing
// files are kept so the build reports them as failed slides.
func (f *Finder) Expand(args []string, selector string) (Project, error) {
	if len(args) == 0 {
		return Project{}, fmt.Errorf("no input given")
	}
	if len(args) == 1 {
		if ok, _ := afero.IsDir(f.fs, args[0]); ok {
			return f.Find(args[0], selector)
		}
	}

	project := Project{}
	for _, arg := range args {
		info, err := f.fs.Stat(arg)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Project{}, err
		case info.IsDir():
			return Project{}, fmt.Errorf("%s: directories cannot be mixed with files", arg)
		}
		project.Slides = append(project.Slides, arg)
	}
	project.SlideDir = filepath.Dir(args[0])
	project.Root = project.SlideDir
	if filepath.Base(project.SlideDir) == OutputDir || filepath.Base(project.SlideDir) == FinalDir {
		project.Root = filepath.Dir(project.SlideDir)
	}
	notesDir := filepath.Join(project.Root, notes.DirName)
	if ok, _ := afero.DirExists(f.fs, notesDir); ok {
		project.NotesDir = notesDir
	}
	return project, nil
}

// DefaultOutput is <root>/<name>_<YYYYMMDD_HHMMSS>.pptx.
func DefaultOutput(p Project, stamp string) string {
	return filepath.Join(p.Root, p.Name()+"_"+stamp+".pptx")
}
