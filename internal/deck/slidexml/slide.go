// Package slidexml synthesizes slide content parts and their relationship
// parts.
package slidexml

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"svgdeck/internal/deck/canvas"
	"svgdeck/internal/deck/media"
	"svgdeck/internal/deck/opc"
)

// SVGBlipExtURI identifies the DrawingML extension carrying the vector
// original next to a raster blip.
const SVGBlipExtURI = "{96DAC541-7B7A-43D3-8B79-37D633B846F1}"

// LayoutRelID is the relationship id every slide uses for its layout.
const LayoutRelID = "rId1"

// NewSlideIDs returns the relationship id allocator of a slide part with the
// layout id already taken.
func NewSlideIDs() *opc.IDAllocator {
	ids := opc.NewIDAllocator()
	ids.Next()
	return ids
}

// newSlideRoot creates <p:sld> with the DrawingML, relationship and
// PresentationML namespaces declared.
func newSlideRoot(doc *etree.Document, tag string) *etree.Element {
	root := doc.CreateElement(tag)
	root.CreateAttr("xmlns:a", opc.NSDrawingML)
	root.CreateAttr("xmlns:r", opc.NSOfficeRels)
	root.CreateAttr("xmlns:p", opc.NSPresentationML)
	return root
}

// NewShapeTree adds the cSld/spTree skeleton with its group properties and
// returns the spTree element.
func NewShapeTree(root *etree.Element) *etree.Element {
	tree := root.CreateElement("p:cSld").CreateElement("p:spTree")

	nv := tree.CreateElement("p:nvGrpSpPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", "1")
	cNvPr.CreateAttr("name", "")
	nv.CreateElement("p:cNvGrpSpPr")
	nv.CreateElement("p:nvPr")

	xfrm := tree.CreateElement("p:grpSpPr").CreateElement("a:xfrm")
	setXY(xfrm.CreateElement("a:off"), "x", "y", 0, 0)
	setXY(xfrm.CreateElement("a:ext"), "cx", "cy", 0, 0)
	setXY(xfrm.CreateElement("a:chOff"), "x", "y", 0, 0)
	setXY(xfrm.CreateElement("a:chExt"), "cx", "cy", 0, 0)
	return tree
}

// AddMasterColorMapping appends <p:clrMapOvr><a:masterClrMapping/>.
func AddMasterColorMapping(root *etree.Element) {
	root.CreateElement("p:clrMapOvr").CreateElement("a:masterClrMapping")
}

func setXY(el *etree.Element, xName, yName string, x, y int64) {
	el.CreateAttr(xName, strconv.FormatInt(x, 10))
	el.CreateAttr(yName, strconv.FormatInt(y, 10))
}

// BlankSlide returns the placeholder slide used by the skeleton.
func BlankSlide() ([]byte, error) {
	doc := opc.NewDocument()
	root := newSlideRoot(doc, "p:sld")
	NewShapeTree(root)
	AddMasterColorMapping(root)
	return doc.WriteToBytes()
}

// Slide renders the content part of slide index: one picture covering the
// whole canvas, followed by the transition block when tr is non-nil.
func Slide(index int, name string, res *media.Result, spec canvas.Spec, tr *Transition) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("slide %d: no media", index)
	}
	doc := opc.NewDocument()
	root := newSlideRoot(doc, "p:sld")
	tree := NewShapeTree(root)
	addPicture(tree, index, name, res, spec)
	AddMasterColorMapping(root)
	if tr != nil {
		tr.appendTo(root)
	}
	return doc.WriteToBytes()
}

func addPicture(tree *etree.Element, index int, name string, res *media.Result, spec canvas.Spec) {
	pic := tree.CreateElement("p:pic")

	nv := pic.CreateElement("p:nvPicPr")
	cNvPr := nv.CreateElement("p:cNvPr")
	cNvPr.CreateAttr("id", "2")
	cNvPr.CreateAttr("name", fmt.Sprintf("Slide Image %d", index))
	if name != "" {
		cNvPr.CreateAttr("descr", name)
	}
	nv.CreateElement("p:cNvPicPr").CreateElement("a:picLocks").CreateAttr("noChangeAspect", "1")
	nv.CreateElement("p:nvPr")

	fill := pic.CreateElement("p:blipFill")
	blip := fill.CreateElement("a:blip")
	if res.Raster != nil {
		blip.CreateAttr("r:embed", res.Raster.ID)
		ext := blip.CreateElement("a:extLst").CreateElement("a:ext")
		ext.CreateAttr("uri", SVGBlipExtURI)
		svgBlip := ext.CreateElement("asvg:svgBlip")
		svgBlip.CreateAttr("xmlns:asvg", opc.NSSVG2016)
		svgBlip.CreateAttr("r:embed", res.Vector.ID)
	} else {
		blip.CreateAttr("r:embed", res.Vector.ID)
	}
	fill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("p:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	setXY(xfrm.CreateElement("a:off"), "x", "y", 0, 0)
	setXY(xfrm.CreateElement("a:ext"), "cx", "cy", spec.WidthEMU, spec.HeightEMU)
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")
}

// SlideRels returns the relationship set of slide index: the layout plus
// every image res references. Callers may append further relationships
// (notes) before marshalling.
func SlideRels(index int, res *media.Result) (*opc.Relationships, error) {
	slidePart := opc.SlidePart(index)
	rels := opc.NewRelationships()
	if err := rels.Add(opc.Relationship{
		ID:     LayoutRelID,
		Type:   opc.RelSlideLayout,
		Target: opc.RelativeTarget(slidePart, opc.SlideLayoutPart),
	}); err != nil {
		return nil, err
	}
	if res == nil {
		return rels, nil
	}
	for _, img := range res.Images() {
		if err := rels.Add(opc.Relationship{
			ID:     img.ID,
			Type:   opc.RelImage,
			Target: opc.RelativeTarget(slidePart, img.Part),
		}); err != nil {
			return nil, fmt.Errorf("slide %d: %w", index, err)
		}
	}
	return rels, nil
}

// BlankSlideRels returns the relationship part of a placeholder slide.
func BlankSlideRels(index int) ([]byte, error) {
	rels, err := SlideRels(index, nil)
	if err != nil {
		return nil, err
	}
	return rels.Marshal()
}
