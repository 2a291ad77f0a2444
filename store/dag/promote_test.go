// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehub/scmcore/store/dag/idmap"
	"github.com/forgehub/scmcore/store/hash"
)

func TestPromoteRelabelsExistingVertexToMaster(t *testing.T) {
	hashes, parentsOf := linearChain()
	g := newGraph(t)
	src := parentsSourceFrom(parentsOf)

	require.NoError(t, g.AddHeads(context.Background(), src, []Head{
		{Hash: hashes["C"], Group: idmap.NonMaster},
	}))
	cID, ok := g.idMap.VertexId(hashes["C"])
	require.True(t, ok)
	require.Equal(t, idmap.NonMaster, g.idMap.Group(cID))

	_, err := Promote(context.Background(), g, src, []hash.Hash{hashes["C"]})
	require.NoError(t, err)

	assert.Equal(t, idmap.Master, g.idMap.Group(cID), "promote must relabel C's existing id in place")
	cID2, _ := g.idMap.VertexId(hashes["C"])
	assert.Equal(t, cID, cID2, "promote must not renumber an already-assigned vertex")
}

func TestPromoteAssignsNewAncestorsAsMaster(t *testing.T) {
	hashes, parentsOf := linearChain()
	g := newGraph(t)
	src := parentsSourceFrom(parentsOf)

	ver, err := Promote(context.Background(), g, src, []hash.Hash{hashes["E"]})
	require.NoError(t, err)
	assert.NotZero(t, ver)

	for _, label := range []string{"A", "B", "C", "D", "E"} {
		id, ok := g.idMap.VertexId(hashes[label])
		require.True(t, ok)
		assert.Equal(t, idmap.Master, g.idMap.Group(id))
	}
	assert.Empty(t, g.CheckUniversalIds())
}
