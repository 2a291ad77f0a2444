// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package iddag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgehub/scmcore/store/dag/idmap"
)

// TestLinearScenario mirrors seed scenario S6: A <- B <- C <- D <- E.
func TestLinearScenario(t *testing.T) {
	d := New()
	a, b, c, dd, e := idmap.Id(0), idmap.Id(1), idmap.Id(2), idmap.Id(3), idmap.Id(4)

	d.AddVertex(a, nil)
	d.AddVertex(b, []idmap.Id{a})
	d.AddVertex(c, []idmap.Id{b})
	d.AddVertex(dd, []idmap.Id{c})
	d.AddVertex(e, []idmap.Id{dd})
	d.BuildFlatSegments([]idmap.Id{a, b, c, dd, e}, idmap.Master)

	assert.ElementsMatch(t, []idmap.Id{a, b, c, dd}, d.Ancestors([]idmap.Id{dd}))
	assert.True(t, d.IsAncestor(a, e))
	assert.ElementsMatch(t, []idmap.Id{c}, d.GCA([]idmap.Id{c, e}))
	assert.ElementsMatch(t, []idmap.Id{dd}, d.HeadsAncestors([]idmap.Id{b, dd}))

	segs := d.Segments()
	if assert.Len(t, segs, 1) {
		assert.Equal(t, a, segs[0].Low)
		assert.Equal(t, e, segs[0].High)
		assert.True(t, segs[0].HasFlag(HasRoot))
		assert.True(t, segs[0].HasFlag(OnlyHead))
	}
}

// TestMergeScenario mirrors seed scenario S7: A<-B<-D, A<-C<-D.
func TestMergeScenario(t *testing.T) {
	d := New()
	a, b, c, dd := idmap.Id(0), idmap.Id(1), idmap.Id(2), idmap.Id(3)

	d.AddVertex(a, nil)
	d.AddVertex(b, []idmap.Id{a})
	d.AddVertex(c, []idmap.Id{a})
	d.AddVertex(dd, []idmap.Id{b, c})
	d.BuildFlatSegments([]idmap.Id{a, b, c, dd}, idmap.Master)

	assert.ElementsMatch(t, []idmap.Id{a}, d.GCA([]idmap.Id{b, c}))
	assert.ElementsMatch(t, []idmap.Id{a}, d.CommonAncestors([]idmap.Id{b, c}))
	assert.ElementsMatch(t, []idmap.Id{a, b, c, dd}, d.Range([]idmap.Id{a}, []idmap.Id{dd}))

	segOf := func(id idmap.Id) Segment {
		seg, _ := d.segmentOf(id)
		return seg
	}
	assert.NotEqual(t, segOf(dd).Low, segOf(b).Low)
	assert.NotEqual(t, segOf(dd).Low, segOf(c).Low)
}

func TestOnlySetOperation(t *testing.T) {
	d := New()
	a, b, c := idmap.Id(0), idmap.Id(1), idmap.Id(2)
	d.AddVertex(a, nil)
	d.AddVertex(b, []idmap.Id{a})
	d.AddVertex(c, []idmap.Id{a})
	d.BuildFlatSegments([]idmap.Id{a, b, c}, idmap.Master)

	only := d.Only([]idmap.Id{b}, []idmap.Id{c})
	assert.ElementsMatch(t, []idmap.Id{b}, only)
}

func TestFirstAncestorChain(t *testing.T) {
	d := New()
	a, b, c := idmap.Id(0), idmap.Id(1), idmap.Id(2)
	d.AddVertex(a, nil)
	d.AddVertex(b, []idmap.Id{a})
	d.AddVertex(c, []idmap.Id{b})

	got, ok := d.FirstAncestorNth(c, 2)
	assert.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, []idmap.Id{c, b, a}, d.FirstAncestors(c))
}

func TestMergesReturnsMultiParentVertices(t *testing.T) {
	d := New()
	a, b, c, dd := idmap.Id(0), idmap.Id(1), idmap.Id(2), idmap.Id(3)
	d.AddVertex(a, nil)
	d.AddVertex(b, []idmap.Id{a})
	d.AddVertex(c, []idmap.Id{a})
	d.AddVertex(dd, []idmap.Id{b, c})

	assert.Equal(t, []idmap.Id{dd}, d.Merges([]idmap.Id{a, b, c, dd}))
}
