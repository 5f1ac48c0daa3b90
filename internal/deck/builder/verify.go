package builder

import (
	"fmt"
	"path"
	"strings"

	"svgdeck/internal/deck/opc"
)

// verifyPackage checks the staged package before it is repacked: every
// slide is listed by the presentation and declared in the manifest, and
// every internal relationship points at a part that exists.
func verifyPackage(parts []opc.Part, slides int) error {
	byName := make(map[string][]byte, len(parts))
	for _, p := range parts {
		byName[p.Name] = p.Data
	}

	manifest, ok := byName[opc.ContentTypesPart]
	if !ok {
		return fmt.Errorf("missing %s", opc.ContentTypesPart)
	}
	types, err := opc.ParseContentTypes(manifest)
	if err != nil {
		return err
	}
	presRels, ok := byName[opc.PresentationRels]
	if !ok {
		return fmt.Errorf("missing %s", opc.PresentationRels)
	}
	rels, err := opc.ParseRelationships(presRels)
	if err != nil {
		return err
	}
	if listed := len(rels.ByType(opc.RelSlide)); listed != slides {
		return fmt.Errorf("presentation lists %d slides, want %d", listed, slides)
	}
	if declared := len(types.OverridesOfType(opc.CTSlide)); declared != slides {
		return fmt.Errorf("manifest declares %d slides, want %d", declared, slides)
	}
	for _, kind := range []string{opc.CTSlide, opc.CTNotesSlide} {
		for _, uri := range types.OverridesOfType(kind) {
			if _, ok := byName[strings.TrimPrefix(uri, "/")]; !ok {
				return fmt.Errorf("manifest declares missing part %s", uri)
			}
		}
	}

	for name, data := range byName {
		if !strings.HasSuffix(name, ".rels") {
			continue
		}
		set, err := opc.ParseRelationships(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		base := sourceDir(name)
		for _, rel := range set.All() {
			if rel.TargetMode == "External" {
				continue
			}
			target := path.Clean(path.Join(base, rel.Target))
			if strings.HasPrefix(rel.Target, "/") {
				target = strings.TrimPrefix(rel.Target, "/")
			}
			if _, ok := byName[target]; !ok {
				return fmt.Errorf("%s: %s targets missing part %s", name, rel.ID, target)
			}
		}
	}
	return nil
}

// sourceDir returns the directory that relative targets in relsPart resolve
// against: "ppt/slides/_rels/slide1.xml.rels" resolves against "ppt/slides".
func sourceDir(relsPart string) string {
	dir := path.Dir(path.Dir(relsPart))
	if dir == "." {
		return ""
	}
	return dir
}
