package builder

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"svgdeck/internal/deck/opc"
	"svgdeck/internal/deck/raster"
)

var errInjected = stderrors.New("injected write failure")

// failingFs refuses writes to paths ending in suffix.
type failingFs struct {
	afero.Fs
	suffix string
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) != 0 && strings.HasSuffix(filepath.ToSlash(name), f.suffix) {
		return nil, errInjected
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *failingFs) Create(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func slideSVG(label string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1280 720" width="1280" height="720">
  <rect width="1280" height="720" fill="#ffffff"/>
  <text x="40" y="80">%s</text>
</svg>`, label)
}

// writeSlides creates slides named stems under dir and returns their paths.
func writeSlides(t *testing.T, fs afero.Fs, dir string, stems ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(stems))
	for _, stem := range stems {
		path := filepath.Join(dir, stem+".svg")
		require.NoError(t, afero.WriteFile(fs, path, []byte(slideSVG(stem)), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func stubRasterizer(failFor ...int) raster.Rasterizer {
	calls := 0
	return raster.Func(func(_ context.Context, svg []byte, w, h int) ([]byte, error) {
		calls++
		for _, n := range failFor {
			if n == calls {
				return nil, stderrors.New("renderer failed")
			}
		}
		return []byte(fmt.Sprintf("PNG %dx%d", w, h)), nil
	})
}

func newTestBuilder(fs afero.Fs, r raster.Rasterizer) *Builder {
	return New(Config{
		Fs:         fs,
		Rasterizer: r,
		WorkDir:    "/work",
		Clock:      func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
}

type pkg struct {
	t     *testing.T
	parts map[string][]byte
}

func openPackage(t *testing.T, fs afero.Fs, path string) *pkg {
	t.Helper()
	parts, err := opc.ReadArchiveFile(fs, path)
	require.NoError(t, err)
	return &pkg{t: t, parts: parts}
}

func (p *pkg) has(name string) bool {
	_, ok := p.parts[name]
	return ok
}

func (p *pkg) count(prefix, suffix string) int {
	n := 0
	for name := range p.parts {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
			n++
		}
	}
	return n
}

func (p *pkg) xml(name string) *etree.Document {
	p.t.Helper()
	data, ok := p.parts[name]
	require.True(p.t, ok, "missing part %s", name)
	doc := etree.NewDocument()
	require.NoError(p.t, doc.ReadFromBytes(data))
	return doc
}

func (p *pkg) rels(owner string) *opc.Relationships {
	p.t.Helper()
	data, ok := p.parts[opc.RelsPartFor(owner)]
	require.True(p.t, ok, "missing relationships of %s", owner)
	rels, err := opc.ParseRelationships(data)
	require.NoError(p.t, err)
	return rels
}

func (p *pkg) contentTypes() *opc.ContentTypes {
	p.t.Helper()
	ct, err := opc.ParseContentTypes(p.parts[opc.ContentTypesPart])
	require.NoError(p.t, err)
	return ct
}

// referencedIDs returns every r:embed and r:id value used in a part.
func referencedIDs(doc *etree.Document) []string {
	var ids []string
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, attr := range el.Attr {
			if attr.Space == "r" && (attr.Key == "embed" || attr.Key == "id") {
				ids = append(ids, attr.Value)
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(doc.Root())
	return ids
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
