package skeleton

import (
	"path"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}

// ownerOf maps "ppt/slides/_rels/slide1.xml.rels" to "ppt/slides/slide1.xml".
func ownerOf(relsPart string) string {
	dir, file := path.Split(relsPart)
	dir = strings.TrimSuffix(strings.TrimSuffix(dir, "/"), "_rels")
	return dir + strings.TrimSuffix(file, ".rels")
}

// resolve interprets a relationship target relative to its owner part.
func resolve(owner, target string) string {
	base := path.Dir(owner)
	if base == "." || owner == ".rels" {
		return path.Clean(target)
	}
	return path.Clean(path.Join(base, target))
}
