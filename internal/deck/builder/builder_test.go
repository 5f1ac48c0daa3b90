package builder

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/media"
	"svgdeck/internal/deck/opc"
	"svgdeck/internal/errors"
)

func TestScenarioVectorOnlyWithoutNotes(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "01_cover", "02_body", "03_end")

	summary, err := newTestBuilder(fs, stubRasterizer()).Build(context.Background(), Options{
		Slides:     slides,
		OutputPath: "/out/deck.pptx",
	})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Empty(t, summary.Notices)

	p := openPackage(t, fs, "/out/deck.pptx")
	assert.Equal(t, 3, p.count("ppt/slides/slide", ".xml"))
	assert.Equal(t, 3, p.count("ppt/slides/_rels/slide", ".xml.rels"))
	assert.Zero(t, p.count("ppt/notesSlides/", ""))
	assert.False(t, p.has(opc.NotesMasterPart))

	for i := 1; i <= 3; i++ {
		rels := p.rels(opc.SlidePart(i))
		images := rels.ByType(opc.RelImage)
		require.Len(t, images, 1)
		assert.Equal(t, "rId2", images[0].ID)
		assert.Equal(t, opc.RelativeTarget(opc.SlidePart(i), opc.MediaPart(i, "svg")), images[0].Target)
		assert.Equal(t, media.VectorOnly, summary.Slides[i-1].Mode)
	}

	ct := p.contentTypes()
	_, hasSVG := ct.Default("svg")
	_, hasPNG := ct.Default("png")
	assert.True(t, hasSVG)
	assert.False(t, hasPNG)
}

func TestScenarioDualFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a", "b", "c")

	summary, err := newTestBuilder(fs, stubRasterizer()).Build(context.Background(), Options{
		Slides:     slides,
		OutputPath: "/out/deck.pptx",
		Compat:     true,
	})
	require.NoError(t, err)
	assert.True(t, summary.OK())

	p := openPackage(t, fs, "/out/deck.pptx")
	for i := 1; i <= 3; i++ {
		rels := p.rels(opc.SlidePart(i))
		assert.Len(t, rels.ByType(opc.RelImage), 2)
		png, ok := rels.ByID("rId2")
		require.True(t, ok)
		assert.Equal(t, "../media/image"+itoa(i)+".png", png.Target)
		svg, ok := rels.ByID("rId3")
		require.True(t, ok)
		assert.Equal(t, "../media/image"+itoa(i)+".svg", svg.Target)
		assert.True(t, p.has(opc.MediaPart(i, "png")))
		assert.Equal(t, []byte("PNG 1280x720"), p.parts[opc.MediaPart(i, "png")])

		doc := p.xml(opc.SlidePart(i))
		ids := referencedIDs(doc)
		sort.Strings(ids)
		assert.Equal(t, []string{"rId2", "rId3"}, ids)
	}

	ct := p.contentTypes()
	svgType, _ := ct.Default("svg")
	pngType, _ := ct.Default("png")
	assert.Equal(t, opc.CTSVG, svgType)
	assert.Equal(t, opc.CTPNG, pngType)
}

func TestScenarioMissingRasterizerNoticeOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a", "b")

	summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{
		Slides:     slides,
		OutputPath: "/out/deck.pptx",
		Compat:     true,
	})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Len(t, summary.Notices, 1)
	assert.Equal(t, media.NoticeNoRasterizer, summary.Notices[0])
	assert.Zero(t, summary.Downgraded)

	p := openPackage(t, fs, "/out/deck.pptx")
	for i := 1; i <= 2; i++ {
		assert.Len(t, p.rels(opc.SlidePart(i)).ByType(opc.RelImage), 1)
		assert.Equal(t, media.VectorOnly, summary.Slides[i-1].Mode)
	}
}

func TestScenarioTransitionOnEverySlide(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a", "b")

	_, err := newTestBuilder(fs, nil).Build(context.Background(), Options{
		Slides:             slides,
		OutputPath:         "/out/deck.pptx",
		Transition:         "fade",
		TransitionDuration: 1.0,
	})
	require.NoError(t, err)

	p := openPackage(t, fs, "/out/deck.pptx")
	block := func(name string) []byte {
		data := p.parts[name]
		start := bytes.Index(data, []byte("<mc:AlternateContent"))
		end := bytes.Index(data, []byte("</mc:AlternateContent>"))
		require.True(t, start > 0 && end > start, name)
		return data[start:end]
	}
	first := block(opc.SlidePart(1))
	assert.Equal(t, first, block(opc.SlidePart(2)))
	assert.Contains(t, string(first), `p14:dur="1000"`)
	assert.Contains(t, string(first), "<p:fade/>")
}

func TestDowngradeKeepsSlide(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a", "b", "c")

	summary, err := newTestBuilder(fs, stubRasterizer(2)).Build(context.Background(), Options{
		Slides:     slides,
		OutputPath: "/out/deck.pptx",
		Compat:     true,
	})
	require.NoError(t, err)
	assert.True(t, summary.OK())
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.Downgraded)
	assert.Equal(t, media.Downgraded, summary.Slides[1].Mode)

	p := openPackage(t, fs, "/out/deck.pptx")
	assert.Len(t, p.rels(opc.SlidePart(1)).ByType(opc.RelImage), 2)
	downgraded := p.rels(opc.SlidePart(2))
	assert.Len(t, downgraded.ByType(opc.RelImage), 1)
	assert.False(t, p.has(opc.MediaPart(2, "png")))
	assert.Len(t, p.rels(opc.SlidePart(3)).ByType(opc.RelImage), 2)
}

func TestNotesPrecedenceAndIDs(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/p/svg_output", "01_cover", "02_body")
	require.NoError(t, afero.WriteFile(fs, "/p/notes/slide01.md", []byte("from index"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/p/notes/01_cover.md", []byte("# Cover\n- **from** name"), 0o644))

	for _, tc := range []struct {
		mode string
		want string
	}{
		{"", "rId3"},
		{"legacy", "rId10"},
	} {
		t.Run("mode="+tc.mode, func(t *testing.T) {
			summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{
				Slides:     slides,
				OutputPath: "/out/notes.pptx",
				Notes:      true,
				NotesDir:   "/p/notes",
				RelIDs:     tc.mode,
			})
			require.NoError(t, err)
			assert.True(t, summary.Slides[0].Notes)
			assert.False(t, summary.Slides[1].Notes)

			p := openPackage(t, fs, "/out/notes.pptx")
			assert.True(t, p.has(opc.NotesMasterPart))
			assert.True(t, p.has(opc.NotesThemePart))

			doc := p.xml(opc.NotesSlidePart(1))
			var texts []string
			for _, el := range doc.FindElements("//a:t") {
				texts = append(texts, el.Text())
			}
			assert.Equal(t, []string{"Cover", "• from name"}, texts)
			assert.Empty(t, p.xml(opc.NotesSlidePart(2)).FindElements("//a:t"))

			for i := 1; i <= 2; i++ {
				rel, ok := p.rels(opc.SlidePart(i)).ByID(tc.want)
				require.True(t, ok)
				assert.Equal(t, opc.RelNotesSlide, rel.Type)
			}
			assert.Equal(t,
				[]string{"/ppt/notesSlides/notesSlide1.xml", "/ppt/notesSlides/notesSlide2.xml"},
				p.contentTypes().OverridesOfType(opc.CTNotesSlide))
		})
	}
}

func TestMissingSlideIsCountedAndPlaceholderKept(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a", "c")
	slides = []string{slides[0], "/in/missing.svg", slides[1]}

	summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{
		Slides:     slides,
		OutputPath: "/out/deck.pptx",
		Notes:      true,
	})
	require.NoError(t, err)
	assert.False(t, summary.OK())
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, StatusFailed, summary.Slides[1].Status)
	assert.NotEmpty(t, summary.Slides[1].Error)

	p := openPackage(t, fs, "/out/deck.pptx")
	assert.Equal(t, 3, p.count("ppt/slides/slide", ".xml"))
	assert.Nil(t, p.xml(opc.SlidePart(2)).FindElement("//p:pic"))
	assert.Equal(t, []string{"rId1"}, p.rels(opc.SlidePart(2)).IDs())
	assert.False(t, p.has(opc.NotesSlidePart(2)))
	assert.Len(t, p.contentTypes().OverridesOfType(opc.CTNotesSlide), 2)
}

func TestCommitFailureRollsBackSlide(t *testing.T) {
	mem := afero.NewMemMapFs()
	slides := writeSlides(t, mem, "/in", "a", "b", "c")
	fs := &failingFs{Fs: mem, suffix: "pkg/ppt/notesSlides/notesSlide2.xml"}

	summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{
		Slides:     slides,
		OutputPath: "/out/deck.pptx",
		Notes:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, StatusFailed, summary.Slides[1].Status)
	assert.Contains(t, summary.Slides[1].Error, "commit")

	p := openPackage(t, mem, "/out/deck.pptx")
	assert.False(t, p.has(opc.MediaPart(2, "svg")))
	assert.True(t, p.has(opc.MediaPart(3, "svg")))
	assert.Nil(t, p.xml(opc.SlidePart(2)).FindElement("//p:pic"))
	assert.Equal(t, []string{"rId1"}, p.rels(opc.SlidePart(2)).IDs())
	_, declared := p.contentTypes().Override(opc.NotesSlidePart(2))
	assert.False(t, declared)
}

func TestRepackFailureIsFatalAndLeavesNothing(t *testing.T) {
	mem := afero.NewMemMapFs()
	slides := writeSlides(t, mem, "/in", "a")
	fs := &failingFs{Fs: mem, suffix: "deck.pptx.tmp"}

	summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{
		Slides:     slides,
		OutputPath: "/out/deck.pptx",
	})
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, errors.IsPackaging(err))

	exists, _ := afero.Exists(mem, "/out/deck.pptx")
	assert.False(t, exists)
	entries, _ := afero.ReadDir(mem, "/work")
	assert.Empty(t, entries)
}

func TestInputErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a")
	b := newTestBuilder(fs, nil)

	cases := map[string]Options{
		"no slides":          {OutputPath: "/out/x.pptx"},
		"no output":          {Slides: slides},
		"unknown transition": {Slides: slides, OutputPath: "/out/x.pptx", Transition: "spin"},
		"bad rel ids":        {Slides: slides, OutputPath: "/out/x.pptx", RelIDs: "random"},
		"oversized canvas":   {Slides: slides, OutputPath: "/out/x.pptx", Canvas: canvas.Request{Width: canvas.MaxCanvasPx + 1, Height: 720}},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			summary, err := b.Build(context.Background(), opts)
			require.Error(t, err)
			assert.Nil(t, summary)
			assert.True(t, errors.IsInput(err))
			exists, _ := afero.Exists(fs, "/out/x.pptx")
			assert.False(t, exists)
			exists, _ = afero.Exists(fs, "/work")
			assert.False(t, exists)
		})
	}
}

func TestWorkingAreaRemoved(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a", "b")
	_, err := newTestBuilder(fs, nil).Build(context.Background(), Options{Slides: slides, OutputPath: "/out/deck.pptx"})
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, "/work")
	require.NoError(t, err)
	assert.Empty(t, entries)
	exists, _ := afero.Exists(fs, "/out/deck.pptx.tmp")
	assert.False(t, exists)
}

func TestUnusableFirstSlideCanvasFallsBackToDefault(t *testing.T) {
	for name, root := range map[string]string{
		"sub-pixel": `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 0.4 0.4"/>`,
		"oversized": `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100000 100000"/>`,
	} {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/in/s.svg", []byte(root), 0o644))

			summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{Slides: []string{"/in/s.svg"}, OutputPath: "/out/deck.pptx"})
			require.NoError(t, err)
			assert.Equal(t, canvas.SourceDefault, summary.Canvas.Source)
			assert.Equal(t, 1280, summary.Canvas.WidthPx)
			assert.Equal(t, 720, summary.Canvas.HeightPx)
			assert.Equal(t, 1, summary.Succeeded)
		})
	}
}

func TestSlideWithLongPrologIsEmbedded(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `<?xml version="1.0" encoding="UTF-8"?>` + "\n<!--" + strings.Repeat(" generator metadata", 300) + " -->\n" +
		`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1280 720"/>`
	require.NoError(t, afero.WriteFile(fs, "/in/a.svg", []byte(doc), 0o644))

	summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{Slides: []string{"/in/a.svg"}, OutputPath: "/out/deck.pptx"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
}

func TestCanvasFlowsIntoPackage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/s.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 1080 1920"/>`), 0o644))

	summary, err := newTestBuilder(fs, nil).Build(context.Background(), Options{Slides: []string{"/in/s.svg"}, OutputPath: "/out/deck.pptx"})
	require.NoError(t, err)
	assert.Equal(t, "story", summary.Canvas.Preset)
	assert.Equal(t, canvas.SourceDetected, summary.Canvas.Source)

	p := openPackage(t, fs, "/out/deck.pptx")
	sz := p.xml(opc.PresentationPart).FindElement("//p:sldSz")
	assert.Equal(t, "10287000", sz.SelectAttrValue("cx", ""))
	ext := p.xml(opc.SlidePart(1)).FindElement("//p:pic/p:spPr/a:xfrm/a:ext")
	assert.Equal(t, "18288000", ext.SelectAttrValue("cy", ""))

	summary, err = newTestBuilder(fs, nil).Build(context.Background(), Options{
		Slides:     []string{"/in/s.svg"},
		OutputPath: "/out/deck.pptx",
		Canvas:     canvas.Request{Width: 800, Height: 600},
	})
	require.NoError(t, err)
	assert.Equal(t, canvas.PxToEMU(800), summary.Canvas.WidthEMU)
}

func TestRepeatedBuildsAreStable(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "01", "02", "03")
	require.NoError(t, afero.WriteFile(fs, "/in/notes/02.md", []byte("second"), 0o644))
	opts := func(out string) Options {
		return Options{Slides: slides, OutputPath: out, Compat: true, Notes: true, NotesDir: "/in/notes", Transition: "push"}
	}

	_, err := newTestBuilder(fs, stubRasterizer()).Build(context.Background(), opts("/out/one.pptx"))
	require.NoError(t, err)
	_, err = newTestBuilder(fs, stubRasterizer()).Build(context.Background(), opts("/out/two.pptx"))
	require.NoError(t, err)

	one := openPackage(t, fs, "/out/one.pptx")
	two := openPackage(t, fs, "/out/two.pptx")

	names := func(p *pkg) []string {
		out := make([]string, 0, len(p.parts))
		for name := range p.parts {
			out = append(out, name)
		}
		sort.Strings(out)
		return out
	}
	require.Equal(t, names(one), names(two))

	if diff := cmp.Diff(one.contentTypes().Defaults(), two.contentTypes().Defaults()); diff != "" {
		t.Fatalf("content type defaults differ (-one +two):\n%s", diff)
	}
	if diff := cmp.Diff(one.contentTypes().Overrides(), two.contentTypes().Overrides()); diff != "" {
		t.Fatalf("content type overrides differ (-one +two):\n%s", diff)
	}
	for _, name := range names(one) {
		if !bytes.HasSuffix([]byte(name), []byte(".rels")) {
			continue
		}
		a, err := opc.ParseRelationships(one.parts[name])
		require.NoError(t, err)
		b, err := opc.ParseRelationships(two.parts[name])
		require.NoError(t, err)
		if diff := cmp.Diff(a.All(), b.All()); diff != "" {
			t.Fatalf("%s differs (-one +two):\n%s", name, diff)
		}
	}
}

func TestEveryReferencedIDExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	slides := writeSlides(t, fs, "/in", "a", "b")
	_, err := newTestBuilder(fs, stubRasterizer()).Build(context.Background(), Options{
		Slides: slides, OutputPath: "/out/deck.pptx", Compat: true, Notes: true,
	})
	require.NoError(t, err)

	p := openPackage(t, fs, "/out/deck.pptx")
	for _, owner := range []string{opc.PresentationPart, opc.SlidePart(1), opc.SlidePart(2), opc.SlideMasterPart} {
		rels := p.rels(owner)
		for _, id := range referencedIDs(p.xml(owner)) {
			_, ok := rels.ByID(id)
			assert.True(t, ok, "%s references missing %s", owner, id)
		}
	}
}
