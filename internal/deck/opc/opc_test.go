package opc

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartNames(t *testing.T) {
	assert.Equal(t, "ppt/slides/slide3.xml", SlidePart(3))
	assert.Equal(t, "ppt/notesSlides/notesSlide2.xml", NotesSlidePart(2))
	assert.Equal(t, "ppt/media/image1.svg", MediaPart(1, ".svg"))
	assert.Equal(t, "ppt/slides/_rels/slide3.xml.rels", RelsPartFor(SlidePart(3)))
	assert.Equal(t, "_rels/.rels", RelsPartFor(".rels"))
	assert.Equal(t, "/ppt/slides/slide1.xml", PartURI("ppt/slides/slide1.xml"))
}

func TestRelativeTarget(t *testing.T) {
	cases := []struct {
		source, target, want string
	}{
		{"ppt/slides/slide1.xml", "ppt/media/image1.svg", "../media/image1.svg"},
		{"ppt/slides/slide1.xml", "ppt/slideLayouts/slideLayout1.xml", "../slideLayouts/slideLayout1.xml"},
		{"ppt/presentation.xml", "ppt/slides/slide2.xml", "slides/slide2.xml"},
		{"ppt/notesSlides/notesSlide1.xml", "ppt/slides/slide1.xml", "../slides/slide1.xml"},
		{"[Content_Types].xml", "ppt/presentation.xml", "ppt/presentation.xml"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RelativeTarget(tc.source, tc.target), tc.source)
	}
}

func TestRelationshipsRoundTripAndDuplicates(t *testing.T) {
	rels := NewRelationships()
	require.NoError(t, rels.Add(Relationship{ID: "rId1", Type: RelSlideLayout, Target: "../slideLayouts/slideLayout1.xml"}))
	require.NoError(t, rels.Add(Relationship{ID: "rId10", Type: RelNotesSlide, Target: "../notesSlides/notesSlide1.xml"}))
	require.NoError(t, rels.Add(Relationship{ID: "rId2", Type: RelImage, Target: "../media/image1.svg"}))
	require.Error(t, rels.Add(Relationship{ID: "rId2", Type: RelImage, Target: "x"}))
	require.Error(t, rels.Add(Relationship{Type: RelImage}))

	assert.Equal(t, []string{"rId1", "rId2", "rId10"}, rels.IDs())

	data, err := rels.Marshal()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)))

	parsed, err := ParseRelationships(data)
	require.NoError(t, err)
	if diff := cmp.Diff(rels.All(), parsed.All()); diff != "" {
		t.Fatalf("relationships changed after round trip (-want +got):\n%s", diff)
	}
	assert.Len(t, parsed.ByType(RelImage), 1)
}

func TestIDAllocatorIsMonotonic(t *testing.T) {
	alloc := NewIDAllocator()
	assert.Equal(t, "rId1", alloc.Next())
	assert.Equal(t, "rId2", alloc.Next())

	id, err := alloc.Reserve(10)
	require.NoError(t, err)
	assert.Equal(t, "rId10", id)
	assert.Equal(t, "rId11", alloc.Next())

	_, err = alloc.Reserve(2)
	require.Error(t, err)
	_, err = alloc.Reserve(0)
	require.Error(t, err)
}

func TestContentTypesEnsureIsIdempotent(t *testing.T) {
	ct := NewContentTypes()
	require.True(t, ct.EnsureOverride(PresentationPart, CTPresentation))
	require.True(t, ct.EnsureDefault(".SVG", CTSVG))
	require.False(t, ct.EnsureDefault("svg", CTSVG))
	require.False(t, ct.EnsureOverride("/"+PresentationPart, CTPresentation))

	added := ct.Register(Usage{
		MediaExtensions: []string{"svg", "png", "png"},
		NotesParts:      []string{NotesSlidePart(1), NotesSlidePart(2), NotesSlidePart(1)},
	})
	assert.Equal(t, 3, added)
	assert.Zero(t, ct.Register(Usage{MediaExtensions: []string{"png"}, NotesParts: []string{NotesSlidePart(2)}}))

	data, err := ct.Marshal()
	require.NoError(t, err)
	parsed, err := ParseContentTypes(data)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"rels": CTRelationships,
		"xml":  CTXML,
		"svg":  CTSVG,
		"png":  CTPNG,
	}, parsed.Defaults())
	assert.Equal(t, []string{"/ppt/notesSlides/notesSlide1.xml", "/ppt/notesSlides/notesSlide2.xml"},
		parsed.OverridesOfType(CTNotesSlide))

	// Defaults precede overrides in document order.
	sawOverride := false
	for _, el := range parsed.root.ChildElements() {
		switch el.Tag {
		case "Override":
			sawOverride = true
		case "Default":
			assert.False(t, sawOverride, "Default after Override")
		}
	}
}

func TestRepackWritesManifestFirstAndCleansUp(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WritePartFile(fs, "/work/pkg", "ppt/slides/slide1.xml", []byte("<a/>")))
	require.NoError(t, WritePartFile(fs, "/work/pkg", ContentTypesPart, []byte("<Types/>")))
	require.NoError(t, WritePartFile(fs, "/work/pkg", "_rels/.rels", []byte("<Relationships/>")))

	require.NoError(t, Repack(fs, "/work/pkg", "/out/deck.pptx"))

	exists, err := afero.Exists(fs, "/out/deck.pptx.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := afero.ReadFile(fs, "/out/deck.pptx")
	require.NoError(t, err)
	parts, err := ReadParts(data)
	require.NoError(t, err)
	assert.Len(t, parts, 3)
	assert.Equal(t, []byte("<a/>"), parts["ppt/slides/slide1.xml"])

	// The manifest is the first local file header in the archive.
	nameAt := bytes.Index(data, []byte(ContentTypesPart))
	relsAt := bytes.Index(data, []byte("_rels/.rels"))
	require.True(t, nameAt >= 0 && relsAt >= 0)
	assert.Less(t, nameAt, relsAt)

	names, err := Unpack(fs, "/out/deck.pptx", "/again")
	require.NoError(t, err)
	assert.Equal(t, []string{"[Content_Types].xml", "_rels/.rels", "ppt/slides/slide1.xml"}, names)

	require.NoError(t, RemovePartFile(fs, "/again", "ppt/slides/slide1.xml"))
	require.NoError(t, RemovePartFile(fs, "/again", "ppt/slides/slide1.xml"))
}

func TestWritePartsIsDeterministic(t *testing.T) {
	parts := []Part{
		{Name: "b.xml", Data: []byte("b")},
		{Name: ContentTypesPart, Data: []byte("ct")},
		{Name: "a.xml", Data: []byte("a")},
	}
	var first, second bytes.Buffer
	require.NoError(t, WriteParts(&first, parts))
	require.NoError(t, WriteParts(&second, []Part{parts[2], parts[0], parts[1]}))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestReadPartsRejectsEscapingNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteParts(&buf, []Part{{Name: "../evil.xml", Data: []byte("x")}}))
	_, err := ReadParts(buf.Bytes())
	require.Error(t, err)
}
