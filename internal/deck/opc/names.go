// Package opc implements the pieces of the Open Packaging Conventions a
// presentation package needs: part names, relationship parts, the
// content-type manifest and zip (un)packing through an afero filesystem.
package opc

import (
	"fmt"
	"path"
	"strings"
)

// XML namespaces used across the package.
const (
	NSPackageRels    = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes   = "http://schemas.openxmlformats.org/package/2006/content-types"
	NSDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSOfficeRels     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	NSSVG2016        = "http://schemas.microsoft.com/office/drawing/2016/SVG/main"
	NSP14            = "http://schemas.microsoft.com/office/powerpoint/2010/main"
	NSMarkupCompat   = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// Relationship types.
const (
	RelOfficeDocument = NSOfficeRels + "/officeDocument"
	RelCoreProps      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	RelExtendedProps  = NSOfficeRels + "/extended-properties"
	RelSlide          = NSOfficeRels + "/slide"
	RelSlideLayout    = NSOfficeRels + "/slideLayout"
	RelSlideMaster    = NSOfficeRels + "/slideMaster"
	RelNotesMaster    = NSOfficeRels + "/notesMaster"
	RelNotesSlide     = NSOfficeRels + "/notesSlide"
	RelImage          = NSOfficeRels + "/image"
	RelTheme          = NSOfficeRels + "/theme"
	RelPresProps      = NSOfficeRels + "/presProps"
	RelViewProps      = NSOfficeRels + "/viewProps"
	RelTableStyles    = NSOfficeRels + "/tableStyles"
)

// Content types.
const (
	CTRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	CTXML           = "application/xml"
	CTSVG           = "image/svg+xml"
	CTPNG           = "image/png"
	CTPresentation  = "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"
	CTSlide         = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	CTSlideLayout   = "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"
	CTSlideMaster   = "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"
	CTNotesMaster   = "application/vnd.openxmlformats-officedocument.presentationml.notesMaster+xml"
	CTNotesSlide    = "application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"
	CTTheme         = "application/vnd.openxmlformats-officedocument.theme+xml"
	CTPresProps     = "application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"
	CTViewProps     = "application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"
	CTTableStyles   = "application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml"
	CTCoreProps     = "application/vnd.openxmlformats-package.core-properties+xml"
	CTExtendedProps = "application/vnd.openxmlformats-officedocument.extended-properties+xml"

	// PresentationMediaType is the MIME type of a finished .pptx file.
	PresentationMediaType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// Well-known part names inside the package.
const (
	ContentTypesPart  = "[Content_Types].xml"
	RootRelsPart      = "_rels/.rels"
	PresentationPart  = "ppt/presentation.xml"
	PresentationRels  = "ppt/_rels/presentation.xml.rels"
	SlideMasterPart   = "ppt/slideMasters/slideMaster1.xml"
	SlideLayoutPart   = "ppt/slideLayouts/slideLayout1.xml"
	NotesMasterPart   = "ppt/notesMasters/notesMaster1.xml"
	ThemePart         = "ppt/theme/theme1.xml"
	NotesThemePart    = "ppt/theme/theme2.xml"
	PresPropsPart     = "ppt/presProps.xml"
	ViewPropsPart     = "ppt/viewProps.xml"
	TableStylesPart   = "ppt/tableStyles.xml"
	CorePropsPart     = "docProps/core.xml"
	ExtendedPropsPart = "docProps/app.xml"
)

// SlidePart returns the part name of the 1-based slide index.
func SlidePart(index int) string {
	return fmt.Sprintf("ppt/slides/slide%d.xml", index)
}

// NotesSlidePart returns the part name of the notes part for a slide.
func NotesSlidePart(index int) string {
	return fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", index)
}

// MediaPart returns the part name of a slide's media file.
func MediaPart(index int, ext string) string {
	return fmt.Sprintf("ppt/media/image%d.%s", index, strings.TrimPrefix(ext, "."))
}

// RelsPartFor returns the relationship part name belonging to part.
func RelsPartFor(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// RelativeTarget returns target expressed relative to the directory of
// source, the form relationship Target attributes use.
func RelativeTarget(source, target string) string {
	from := strings.Split(path.Dir(source), "/")
	to := strings.Split(target, "/")
	if path.Dir(source) == "." {
		from = nil
	}
	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}
	parts := make([]string, 0, len(from)-common+len(to)-common)
	for i := common; i < len(from); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return strings.Join(parts, "/")
}

// PartURI returns the absolute part URI used by content-type overrides.
func PartURI(part string) string {
	return "/" + strings.TrimPrefix(part, "/")
}

// Part is one named entry of the package: media bytes or serialized XML.
type Part struct {
	Name string
	Data []byte
}
