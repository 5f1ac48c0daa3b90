// Package skeleton generates the minimal presentation package slides are
// injected into: one master, one blank layout, a theme and N blank slides.
package skeleton

import (
	_ "embed"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/opc"
	"svgdeck/internal/deck/slidexml"
)

//go:embed assets/theme.xml
var themeXML []byte

const (
	firstSlideID       = 256
	slideMasterID      = 2147483648
	slideLayoutID      = 2147483649
	notesWidthEMU      = 6858000
	notesHeightEMU     = 9144000
	defaultApplication = "svgdeck"
)

// Options sizes the skeleton.
type Options struct {
	Slides int
	Canvas canvas.Spec
	// Notes adds the notes master and its theme.
	Notes bool
	Title string
	// Creator is written to the core properties; empty means svgdeck.
	Creator string
	// Created stamps the core properties; zero means the Unix epoch so
	// identical inputs give identical skeletons.
	Created time.Time
}

func (o Options) validate() error {
	if o.Slides < 1 {
		return fmt.Errorf("skeleton needs at least one slide, got %d", o.Slides)
	}
	if o.Canvas.WidthEMU <= 0 || o.Canvas.HeightEMU <= 0 {
		return fmt.Errorf("skeleton canvas must be positive, got %dx%d EMU", o.Canvas.WidthEMU, o.Canvas.HeightEMU)
	}
	return nil
}

type assembler struct {
	parts []opc.Part
	types *opc.ContentTypes
}

func (a *assembler) add(name string, data []byte, contentType string) {
	a.parts = append(a.parts, opc.Part{Name: name, Data: data})
	if contentType != "" {
		a.types.EnsureOverride(name, contentType)
	}
}

func (a *assembler) addDoc(name string, doc *etree.Document, contentType string) error {
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}
	a.add(name, data, contentType)
	return nil
}

func (a *assembler) addRels(owner string, rels *opc.Relationships) error {
	data, err := rels.Marshal()
	if err != nil {
		return fmt.Errorf("serialize %s relationships: %w", owner, err)
	}
	a.add(opc.RelsPartFor(owner), data, "")
	return nil
}

// link adds a relationship from owner to target using the next id.
func link(rels *opc.Relationships, ids *opc.IDAllocator, owner, relType, target string) (string, error) {
	id := ids.Next()
	err := rels.Add(opc.Relationship{ID: id, Type: relType, Target: opc.RelativeTarget(owner, target)})
	return id, err
}

// Build returns every part of the skeleton, the content-type manifest
// included.
func Build(opts Options) ([]opc.Part, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	a := &assembler{types: opc.NewContentTypes()}

	steps := []func(*assembler, Options) error{
		addPackageRels,
		addDocProps,
		addPresentation,
		addMaster,
		addLayout,
		addThemes,
		addProps,
		addSlides,
	}
	if opts.Notes {
		steps = append(steps, addNotesMaster)
	}
	for _, step := range steps {
		if err := step(a, opts); err != nil {
			return nil, err
		}
	}

	manifest, err := a.types.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize content types: %w", err)
	}
	return append([]opc.Part{{Name: opc.ContentTypesPart, Data: manifest}}, a.parts...), nil
}

// Write builds the skeleton and writes it to w as a zip archive.
func Write(w io.Writer, opts Options) error {
	parts, err := Build(opts)
	if err != nil {
		return err
	}
	return opc.WriteParts(w, parts)
}

func addPackageRels(a *assembler, _ Options) error {
	rels := opc.NewRelationships()
	ids := opc.NewIDAllocator()
	for _, r := range []struct{ typ, target string }{
		{opc.RelOfficeDocument, opc.PresentationPart},
		{opc.RelCoreProps, opc.CorePropsPart},
		{opc.RelExtendedProps, opc.ExtendedPropsPart},
	} {
		if err := rels.Add(opc.Relationship{ID: ids.Next(), Type: r.typ, Target: r.target}); err != nil {
			return err
		}
	}
	data, err := rels.Marshal()
	if err != nil {
		return err
	}
	a.add(opc.RootRelsPart, data, "")
	return nil
}

func addDocProps(a *assembler, opts Options) error {
	creator := opts.Creator
	if creator == "" {
		creator = defaultApplication
	}
	created := opts.Created
	if created.IsZero() {
		created = time.Unix(0, 0)
	}
	stamp := created.UTC().Format(time.RFC3339)

	core := opc.NewDocument()
	cp := core.CreateElement("cp:coreProperties")
	cp.CreateAttr("xmlns:cp", "http://schemas.openxmlformats.org/package/2006/metadata/core-properties")
	cp.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	cp.CreateAttr("xmlns:dcterms", "http://purl.org/dc/terms/")
	cp.CreateAttr("xmlns:dcmitype", "http://purl.org/dc/dcmitype/")
	cp.CreateAttr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	cp.CreateElement("dc:title").SetText(opts.Title)
	cp.CreateElement("dc:creator").SetText(creator)
	cp.CreateElement("cp:lastModifiedBy").SetText(creator)
	for _, tag := range []string{"dcterms:created", "dcterms:modified"} {
		el := cp.CreateElement(tag)
		el.CreateAttr("xsi:type", "dcterms:W3CDTF")
		el.SetText(stamp)
	}
	if err := a.addDoc(opc.CorePropsPart, core, opc.CTCoreProps); err != nil {
		return err
	}

	app := opc.NewDocument()
	props := app.CreateElement("Properties")
	props.CreateAttr("xmlns", "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties")
	props.CreateAttr("xmlns:vt", "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes")
	props.CreateElement("Application").SetText(defaultApplication)
	props.CreateElement("Slides").SetText(strconv.Itoa(opts.Slides))
	notes := 0
	if opts.Notes {
		notes = opts.Slides
	}
	props.CreateElement("Notes").SetText(strconv.Itoa(notes))
	props.CreateElement("HiddenSlides").SetText("0")
	props.CreateElement("ScaleCrop").SetText("false")
	props.CreateElement("AppVersion").SetText("16.0000")
	return a.addDoc(opc.ExtendedPropsPart, app, opc.CTExtendedProps)
}

func newPresentationRoot(doc *etree.Document, tag string) *etree.Element {
	root := doc.CreateElement(tag)
	root.CreateAttr("xmlns:a", opc.NSDrawingML)
	root.CreateAttr("xmlns:r", opc.NSOfficeRels)
	root.CreateAttr("xmlns:p", opc.NSPresentationML)
	return root
}

func setSize(el *etree.Element, cx, cy int64) {
	el.CreateAttr("cx", strconv.FormatInt(cx, 10))
	el.CreateAttr("cy", strconv.FormatInt(cy, 10))
}

func addPresentation(a *assembler, opts Options) error {
	owner := opc.PresentationPart
	rels := opc.NewRelationships()
	ids := opc.NewIDAllocator()

	masterID, err := link(rels, ids, owner, opc.RelSlideMaster, opc.SlideMasterPart)
	if err != nil {
		return err
	}
	slideIDs := make([]string, opts.Slides)
	for i := range slideIDs {
		if slideIDs[i], err = link(rels, ids, owner, opc.RelSlide, opc.SlidePart(i+1)); err != nil {
			return err
		}
	}
	var notesMasterID string
	if opts.Notes {
		if notesMasterID, err = link(rels, ids, owner, opc.RelNotesMaster, opc.NotesMasterPart); err != nil {
			return err
		}
	}
	for _, r := range []struct{ typ, target string }{
		{opc.RelPresProps, opc.PresPropsPart},
		{opc.RelViewProps, opc.ViewPropsPart},
		{opc.RelTheme, opc.ThemePart},
		{opc.RelTableStyles, opc.TableStylesPart},
	} {
		if _, err := link(rels, ids, owner, r.typ, r.target); err != nil {
			return err
		}
	}

	doc := opc.NewDocument()
	root := newPresentationRoot(doc, "p:presentation")
	root.CreateAttr("saveSubsetFonts", "1")

	master := root.CreateElement("p:sldMasterIdLst").CreateElement("p:sldMasterId")
	master.CreateAttr("id", strconv.Itoa(slideMasterID))
	master.CreateAttr("r:id", masterID)
	if notesMasterID != "" {
		root.CreateElement("p:notesMasterIdLst").CreateElement("p:notesMasterId").CreateAttr("r:id", notesMasterID)
	}
	list := root.CreateElement("p:sldIdLst")
	for i, rid := range slideIDs {
		sld := list.CreateElement("p:sldId")
		sld.CreateAttr("id", strconv.Itoa(firstSlideID+i))
		sld.CreateAttr("r:id", rid)
	}
	setSize(root.CreateElement("p:sldSz"), opts.Canvas.WidthEMU, opts.Canvas.HeightEMU)
	setSize(root.CreateElement("p:notesSz"), notesWidthEMU, notesHeightEMU)
	root.CreateElement("p:defaultTextStyle")

	if err := a.addDoc(owner, doc, opc.CTPresentation); err != nil {
		return err
	}
	return a.addRels(owner, rels)
}

func addColorMap(parent *etree.Element) {
	clrMap := parent.CreateElement("p:clrMap")
	for _, kv := range [][2]string{
		{"bg1", "lt1"}, {"tx1", "dk1"}, {"bg2", "lt2"}, {"tx2", "dk2"},
		{"accent1", "accent1"}, {"accent2", "accent2"}, {"accent3", "accent3"},
		{"accent4", "accent4"}, {"accent5", "accent5"}, {"accent6", "accent6"},
		{"hlink", "hlink"}, {"folHlink", "folHlink"},
	} {
		clrMap.CreateAttr(kv[0], kv[1])
	}
}

func addMaster(a *assembler, _ Options) error {
	owner := opc.SlideMasterPart
	rels := opc.NewRelationships()
	ids := opc.NewIDAllocator()
	layoutRel, err := link(rels, ids, owner, opc.RelSlideLayout, opc.SlideLayoutPart)
	if err != nil {
		return err
	}
	if _, err := link(rels, ids, owner, opc.RelTheme, opc.ThemePart); err != nil {
		return err
	}

	doc := opc.NewDocument()
	root := newPresentationRoot(doc, "p:sldMaster")
	slidexml.NewShapeTree(root)
	addColorMap(root)
	layout := root.CreateElement("p:sldLayoutIdLst").CreateElement("p:sldLayoutId")
	layout.CreateAttr("id", strconv.Itoa(slideLayoutID))
	layout.CreateAttr("r:id", layoutRel)
	styles := root.CreateElement("p:txStyles")
	styles.CreateElement("p:titleStyle")
	styles.CreateElement("p:bodyStyle")
	styles.CreateElement("p:otherStyle")

	if err := a.addDoc(owner, doc, opc.CTSlideMaster); err != nil {
		return err
	}
	return a.addRels(owner, rels)
}

func addLayout(a *assembler, _ Options) error {
	owner := opc.SlideLayoutPart
	rels := opc.NewRelationships()
	if _, err := link(rels, opc.NewIDAllocator(), owner, opc.RelSlideMaster, opc.SlideMasterPart); err != nil {
		return err
	}

	doc := opc.NewDocument()
	root := newPresentationRoot(doc, "p:sldLayout")
	root.CreateAttr("type", "blank")
	root.CreateAttr("preserve", "1")
	slidexml.NewShapeTree(root)
	root.FindElement("p:cSld").CreateAttr("name", "Blank")
	slidexml.AddMasterColorMapping(root)

	if err := a.addDoc(owner, doc, opc.CTSlideLayout); err != nil {
		return err
	}
	return a.addRels(owner, rels)
}

func addThemes(a *assembler, opts Options) error {
	a.add(opc.ThemePart, themeXML, opc.CTTheme)
	if opts.Notes {
		a.add(opc.NotesThemePart, themeXML, opc.CTTheme)
	}
	return nil
}

func addProps(a *assembler, _ Options) error {
	pres := opc.NewDocument()
	newPresentationRoot(pres, "p:presentationPr")
	if err := a.addDoc(opc.PresPropsPart, pres, opc.CTPresProps); err != nil {
		return err
	}

	view := opc.NewDocument()
	viewRoot := newPresentationRoot(view, "p:viewPr")
	viewRoot.CreateAttr("lastView", "sldView")
	if err := a.addDoc(opc.ViewPropsPart, view, opc.CTViewProps); err != nil {
		return err
	}

	styles := opc.NewDocument()
	tbl := styles.CreateElement("a:tblStyleLst")
	tbl.CreateAttr("xmlns:a", opc.NSDrawingML)
	tbl.CreateAttr("def", "{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}")
	return a.addDoc(opc.TableStylesPart, styles, opc.CTTableStyles)
}

func addSlides(a *assembler, opts Options) error {
	blank, err := slidexml.BlankSlide()
	if err != nil {
		return err
	}
	for i := 1; i <= opts.Slides; i++ {
		part := opc.SlidePart(i)
		a.add(part, blank, opc.CTSlide)
		rels, err := slidexml.BlankSlideRels(i)
		if err != nil {
			return err
		}
		a.add(opc.RelsPartFor(part), rels, "")
	}
	return nil
}

func addNotesMaster(a *assembler, _ Options) error {
	owner := opc.NotesMasterPart
	rels := opc.NewRelationships()
	if _, err := link(rels, opc.NewIDAllocator(), owner, opc.RelTheme, opc.NotesThemePart); err != nil {
		return err
	}

	doc := opc.NewDocument()
	root := newPresentationRoot(doc, "p:notesMaster")
	slidexml.NewShapeTree(root)
	addColorMap(root)

	if err := a.addDoc(owner, doc, opc.CTNotesMaster); err != nil {
		return err
	}
	return a.addRels(owner, rels)
}
