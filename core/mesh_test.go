package core

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestDrawCounts(t *testing.T) {
	c := qt.New(t)

	vertices, indexes := drawCounts(4, []uint32{0, 1, 2, 0, 2, 3})
	c.Assert(vertices, qt.Equals, CountNotApplicable)
	c.Assert(indexes, qt.Equals, 6)

	vertices, indexes = drawCounts(36, nil)
	c.Assert(vertices, qt.Equals, 36)
	c.Assert(indexes, qt.Equals, CountNotApplicable)
}

func TestMeshDrawPath(t *testing.T) {
	c := qt.New(t)

	indexed := &Mesh{vertexCount: CountNotApplicable, indexCount: 6}
	c.Assert(indexed.Indexed(), qt.Equals, true)

	unindexed := &Mesh{vertexCount: 36, indexCount: CountNotApplicable}
	c.Assert(unindexed.Indexed(), qt.Equals, false)
	c.Assert(unindexed.VertexCount(), qt.Equals, 36)
}
