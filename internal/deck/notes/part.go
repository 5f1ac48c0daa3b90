package notes

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"svgdeck/internal/deck/opc"
	"svgdeck/internal/deck/slidexml"
)

// DefaultLanguage tags every notes run.
const DefaultLanguage = "en-US"

// LegacyRelID is the fixed slide-to-notes relationship number written by
// the legacy id mode.
const LegacyRelID = 10

// RelIDMode selects how the slide-to-notes relationship id is chosen.
type RelIDMode string

const (
	// RelIDSequential takes the next id after the slide's images.
	RelIDSequential RelIDMode = "sequential"
	// RelIDLegacy always uses rId10.
	RelIDLegacy RelIDMode = "legacy"
)

// ParseRelIDMode validates a mode name. Empty means sequential.
func ParseRelIDMode(name string) (RelIDMode, error) {
	switch m := RelIDMode(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return RelIDSequential, nil
	case RelIDSequential, RelIDLegacy:
		return m, nil
	default:
		return "", fmt.Errorf("unknown relationship id mode %q (want sequential or legacy)", name)
	}
}

// Embedder produces notes parts for the slides of one build.
type Embedder struct {
	record   Record
	mode     RelIDMode
	language string
}

// NewEmbedder creates an embedder over record.
func NewEmbedder(record Record, mode RelIDMode, language string) *Embedder {
	if mode == "" {
		mode = RelIDSequential
	}
	if language == "" {
		language = DefaultLanguage
	}
	return &Embedder{record: record, mode: mode, language: language}
}

// Embed renders the notes part of slide index and its relationship part,
// and links the slide to it through slideRels using ids. A slide without
// matched notes still gets an empty notes part. It reports whether notes
// text was found.
func (e *Embedder) Embed(index int, stem string, slideRels *opc.Relationships, ids *opc.IDAllocator) ([]opc.Part, bool, error) {
	text, found := e.record.Lookup(stem)

	body, err := NotesSlide(text, e.language)
	if err != nil {
		return nil, false, err
	}
	rels, err := NotesSlideRels(index)
	if err != nil {
		return nil, false, err
	}
	if err := e.link(index, slideRels, ids); err != nil {
		return nil, false, err
	}

	part := opc.NotesSlidePart(index)
	return []opc.Part{
		{Name: part, Data: body},
		{Name: opc.RelsPartFor(part), Data: rels},
	}, found, nil
}

func (e *Embedder) link(index int, slideRels *opc.Relationships, ids *opc.IDAllocator) error {
	var id string
	if e.mode == RelIDLegacy {
		var err error
		if id, err = ids.Reserve(LegacyRelID); err != nil {
			return err
		}
	} else {
		id = ids.Next()
	}
	return slideRels.Add(opc.Relationship{
		ID:     id,
		Type:   opc.RelNotesSlide,
		Target: opc.RelativeTarget(opc.SlidePart(index), opc.NotesSlidePart(index)),
	})
}

// NotesSlide renders a notes part holding text, one paragraph per line.
func NotesSlide(text, language string) ([]byte, error) {
	doc := opc.NewDocument()
	root := doc.CreateElement("p:notes")
	root.CreateAttr("xmlns:a", opc.NSDrawingML)
	root.CreateAttr("xmlns:r", opc.NSOfficeRels)
	root.CreateAttr("xmlns:p", opc.NSPresentationML)
	tree := slidexml.NewShapeTree(root)

	image := tree.CreateElement("p:sp")
	addPlaceholderProps(image, "2", "Slide Image Placeholder 1", "sldImg", "", [][2]string{{"noGrp", "1"}, {"noRot", "1"}, {"noChangeAspect", "1"}})
	image.CreateElement("p:spPr")

	body := tree.CreateElement("p:sp")
	addPlaceholderProps(body, "3", "Notes Placeholder 2", "body", "1", [][2]string{{"noGrp", "1"}})
	body.CreateElement("p:spPr")
	txBody := body.CreateElement("p:txBody")
	txBody.CreateElement("a:bodyPr")
	txBody.CreateElement("a:lstStyle")
	addParagraphs(txBody, text, language)

	slidexml.AddMasterColorMapping(root)
	return doc.WriteToBytes()
}

func addPlaceholderProps(sp *etree.Element, id, name, phType, phIdx string, locks [][2]string) {
	nv := sp.CreateElement("p:nvSpPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", id)
	cNvPr.CreateAttr("name", name)
	lock := nv.CreateElement("p:cNvSpPr").CreateElement("a:spLocks")
	for _, attr := range locks {
		lock.CreateAttr(attr[0], attr[1])
	}
	ph := nv.CreateElement("p:nvPr").CreateElement("p:ph")
	ph.CreateAttr("type", phType)
	if phIdx != "" {
		ph.CreateAttr("idx", phIdx)
	}
}

func addParagraphs(txBody *etree.Element, text, language string) {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		p := txBody.CreateElement("a:p")
		if strings.TrimSpace(line) == "" {
			end := p.CreateElement("a:endParaRPr")
			end.CreateAttr("lang", language)
			end.CreateAttr("dirty", "0")
			continue
		}
		run := p.CreateElement("a:r")
		rPr := run.CreateElement("a:rPr")
		rPr.CreateAttr("lang", language)
		rPr.CreateAttr("dirty", "0")
		run.CreateElement("a:t").SetText(line)
	}
}

// NotesSlideRels links a notes part to the notes master and its slide.
func NotesSlideRels(index int) ([]byte, error) {
	part := opc.NotesSlidePart(index)
	rels := opc.NewRelationships()
	if err := rels.Add(opc.Relationship{
		ID:     "rId1",
		Type:   opc.RelNotesMaster,
		Target: opc.RelativeTarget(part, opc.NotesMasterPart),
	}); err != nil {
		return nil, err
	}
	if err := rels.Add(opc.Relationship{
		ID:     "rId2",
		Type:   opc.RelSlide,
		Target: opc.RelativeTarget(part, opc.SlidePart(index)),
	}); err != nil {
		return nil, err
	}
	return rels.Marshal()
}
