package opc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// ContentTypes is the package-level content-type manifest. Ensure* calls are
// idempotent: entries are added at most once and never removed.
type ContentTypes struct {
	doc  *etree.Document
	root *etree.Element
}

// NewContentTypes returns a manifest with the rels and xml defaults.
func NewContentTypes() *ContentTypes {
	doc := NewDocument()
	root := doc.CreateElement("Types")
	root.CreateAttr("xmlns", NSContentTypes)
	ct := &ContentTypes{doc: doc, root: root}
	ct.EnsureDefault("rels", CTRelationships)
	ct.EnsureDefault("xml", CTXML)
	return ct
}

// ParseContentTypes reads an existing manifest.
func ParseContentTypes(data []byte) (*ContentTypes, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse content types: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Types" {
		return nil, fmt.Errorf("parse content types: missing Types root")
	}
	return &ContentTypes{doc: doc, root: root}, nil
}

// EnsureDefault declares ext (without dot, case-insensitive) unless already
// declared. It reports whether an entry was added.
func (c *ContentTypes) EnsureDefault(ext, contentType string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if _, ok := c.Default(ext); ok {
		return false
	}
	el := etree.NewElement("Default")
	el.CreateAttr("Extension", ext)
	el.CreateAttr("ContentType", contentType)
	c.insertDefault(el)
	return true
}

// EnsureOverride declares part unless already declared. It reports whether
// an entry was added.
func (c *ContentTypes) EnsureOverride(part, contentType string) bool {
	uri := PartURI(part)
	if _, ok := c.Override(uri); ok {
		return false
	}
	el := c.root.CreateElement("Override")
	el.CreateAttr("PartName", uri)
	el.CreateAttr("ContentType", contentType)
	return true
}

// insertDefault keeps Default entries ahead of Override entries.
func (c *ContentTypes) insertDefault(el *etree.Element) {
	overrides := c.root.SelectElements("Override")
	for _, o := range overrides {
		c.root.RemoveChild(o)
	}
	c.root.AddChild(el)
	for _, o := range overrides {
		c.root.AddChild(o)
	}
}

// Default returns the content type declared for ext.
func (c *ContentTypes) Default(ext string) (string, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, el := range c.root.SelectElements("Default") {
		if strings.EqualFold(el.SelectAttrValue("Extension", ""), ext) {
			return el.SelectAttrValue("ContentType", ""), true
		}
	}
	return "", false
}

// Override returns the content type declared for part.
func (c *ContentTypes) Override(part string) (string, bool) {
	uri := PartURI(part)
	for _, el := range c.root.SelectElements("Override") {
		if strings.EqualFold(el.SelectAttrValue("PartName", ""), uri) {
			return el.SelectAttrValue("ContentType", ""), true
		}
	}
	return "", false
}

// Defaults returns extension -> content type.
func (c *ContentTypes) Defaults() map[string]string {
	out := map[string]string{}
	for _, el := range c.root.SelectElements("Default") {
		out[strings.ToLower(el.SelectAttrValue("Extension", ""))] = el.SelectAttrValue("ContentType", "")
	}
	return out
}

// Overrides returns part URI -> content type.
func (c *ContentTypes) Overrides() map[string]string {
	out := map[string]string{}
	for _, el := range c.root.SelectElements("Override") {
		out[el.SelectAttrValue("PartName", "")] = el.SelectAttrValue("ContentType", "")
	}
	return out
}

// OverridesOfType returns the sorted part URIs declared with contentType.
func (c *ContentTypes) OverridesOfType(contentType string) []string {
	var out []string
	for uri, ct := range c.Overrides() {
		if ct == contentType {
			out = append(out, uri)
		}
	}
	sort.Strings(out)
	return out
}

// Marshal serializes the manifest.
func (c *ContentTypes) Marshal() ([]byte, error) {
	return c.doc.WriteToBytes()
}

// Usage lists the part kinds a build actually produced, the input of
// Register.
type Usage struct {
	MediaExtensions []string
	NotesParts      []string
}

// Register brings the manifest in line with usage: one Default per media
// extension and one Override per notes part. It returns the number of
// entries added.
func (c *ContentTypes) Register(usage Usage) int {
	added := 0
	for _, ext := range usage.MediaExtensions {
		if c.EnsureDefault(ext, MediaContentType(ext)) {
			added++
		}
	}
	for _, part := range usage.NotesParts {
		if c.EnsureOverride(part, CTNotesSlide) {
			added++
		}
	}
	return added
}

// MediaContentType maps a media extension to its content type.
func MediaContentType(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "svg":
		return CTSVG
	case "png":
		return CTPNG
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
