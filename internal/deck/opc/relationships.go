package opc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Relationship is one typed, id-keyed reference from a part to another.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// Relationships is the content of one relationship part. Ids are scoped to
// the part; Add rejects duplicates.
type Relationships struct {
	items []Relationship
}

// NewRelationships returns an empty relationship set.
func NewRelationships() *Relationships {
	return &Relationships{}
}

// ParseRelationships reads a serialized relationship part.
func ParseRelationships(data []byte) (*Relationships, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse relationships: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Relationships" {
		return nil, fmt.Errorf("parse relationships: missing Relationships root")
	}
	rels := NewRelationships()
	for _, el := range root.SelectElements("Relationship") {
		rel := Relationship{
			ID:         el.SelectAttrValue("Id", ""),
			Type:       el.SelectAttrValue("Type", ""),
			Target:     el.SelectAttrValue("Target", ""),
			TargetMode: el.SelectAttrValue("TargetMode", ""),
		}
		if err := rels.Add(rel); err != nil {
			return nil, err
		}
	}
	return rels, nil
}

// Add appends rel.
func (r *Relationships) Add(rel Relationship) error {
	if strings.TrimSpace(rel.ID) == "" {
		return fmt.Errorf("relationship id is required")
	}
	if _, ok := r.ByID(rel.ID); ok {
		return fmt.Errorf("duplicate relationship id %q", rel.ID)
	}
	r.items = append(r.items, rel)
	return nil
}

// ByID returns the relationship with the given id.
func (r *Relationships) ByID(id string) (Relationship, bool) {
	for _, rel := range r.items {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// ByType returns every relationship of the given type in insertion order.
func (r *Relationships) ByType(relType string) []Relationship {
	var out []Relationship
	for _, rel := range r.items {
		if rel.Type == relType {
			out = append(out, rel)
		}
	}
	return out
}

// All returns a copy of the relationships in insertion order.
func (r *Relationships) All() []Relationship {
	return append([]Relationship(nil), r.items...)
}

// Len returns the number of relationships.
func (r *Relationships) Len() int {
	return len(r.items)
}

// IDs returns the relationship ids sorted numerically.
func (r *Relationships) IDs() []string {
	ids := make([]string, 0, len(r.items))
	for _, rel := range r.items {
		ids = append(ids, rel.ID)
	}
	sort.Slice(ids, func(i, j int) bool {
		ni, _ := ParseRelID(ids[i])
		nj, _ := ParseRelID(ids[j])
		if ni != nj {
			return ni < nj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Marshal serializes the relationship part.
func (r *Relationships) Marshal() ([]byte, error) {
	doc := NewDocument()
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", NSPackageRels)
	for _, rel := range r.items {
		el := root.CreateElement("Relationship")
		el.CreateAttr("Id", rel.ID)
		el.CreateAttr("Type", rel.Type)
		el.CreateAttr("Target", rel.Target)
		if rel.TargetMode != "" {
			el.CreateAttr("TargetMode", rel.TargetMode)
		}
	}
	return doc.WriteToBytes()
}

// RelID formats the n-th relationship id.
func RelID(n int) string {
	return "rId" + strconv.Itoa(n)
}

// ParseRelID extracts n from "rId<n>".
func ParseRelID(id string) (int, bool) {
	if !strings.HasPrefix(id, "rId") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "rId"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// IDAllocator hands out relationship ids for one relationship part.
// Next is monotonically increasing: it never returns an id lower than one
// already handed out or reserved.
type IDAllocator struct {
	used map[int]struct{}
	max  int
}

// NewIDAllocator returns an allocator with no ids in use.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{used: map[int]struct{}{}}
}

// Next returns the next free id above every id handed out so far.
func (a *IDAllocator) Next() string {
	a.max++
	a.used[a.max] = struct{}{}
	return RelID(a.max)
}

// Reserve claims a fixed id.
func (a *IDAllocator) Reserve(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid relationship id number %d", n)
	}
	if _, ok := a.used[n]; ok {
		return "", fmt.Errorf("relationship id %s already allocated", RelID(n))
	}
	a.used[n] = struct{}{}
	if n > a.max {
		a.max = n
	}
	return RelID(n), nil
}

// NewDocument returns an etree document with the standalone XML declaration
// every package part starts with.
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	return doc
}
