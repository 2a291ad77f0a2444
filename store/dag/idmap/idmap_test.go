// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package idmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehub/scmcore/store/hash"
)

func TestAssignIdIsIdempotent(t *testing.T) {
	m := New()
	h := hash.Of([]byte("a"))

	id1, err := m.AssignId(h, Master)
	require.NoError(t, err)
	id2, err := m.AssignId(h, Master)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestMasterIdsPrecedeNonMasterIds(t *testing.T) {
	m := New()
	masterId, err := m.AssignId(hash.Of([]byte("m")), Master)
	require.NoError(t, err)
	nonMasterId, err := m.AssignId(hash.Of([]byte("n")), NonMaster)
	require.NoError(t, err)
	assert.Less(t, masterId, nonMasterId)
}

func TestVertexIdWithMaxGroupRefusesNonMaster(t *testing.T) {
	m := New()
	h := hash.Of([]byte("x"))
	_, err := m.AssignId(h, NonMaster)
	require.NoError(t, err)

	_, ok := m.VertexIdWithMaxGroup(h, Master)
	assert.False(t, ok)

	_, ok = m.VertexIdWithMaxGroup(h, NonMaster)
	assert.True(t, ok)
}

func TestVersionBumpsOnMutation(t *testing.T) {
	m := New()
	before := m.Version()
	_, err := m.AssignId(hash.Of([]byte("v")), Master)
	require.NoError(t, err)
	assert.Greater(t, m.Version(), before)
}

// TestPrefixLookupReturnsStableOrderUpToLimit covers B4.
func TestPrefixLookupReturnsStableOrderUpToLimit(t *testing.T) {
	m := New()
	var hashes []hash.Hash
	for i := 0; i < 20; i++ {
		h := hash.Of([]byte{byte(i)})
		_, err := m.AssignId(h, Master)
		require.NoError(t, err)
		hashes = append(hashes, h)
	}

	prefix := hashes[0].String()[:1]
	limited := m.VertexesByHexPrefix(prefix, 2)
	assert.LessOrEqual(t, len(limited), 2)

	for _, h := range limited {
		assert.Equal(t, prefix, h.String()[:1])
	}
}

func TestVertexNameRoundTrip(t *testing.T) {
	m := New()
	h := hash.Of([]byte("round-trip"))
	id, err := m.AssignId(h, Master)
	require.NoError(t, err)

	got, ok := m.VertexName(id)
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestMarkMasterRelabelsWithoutRenumbering(t *testing.T) {
	m := New()
	h := hash.Of([]byte("promote-me"))
	id, err := m.AssignId(h, NonMaster)
	require.NoError(t, err)
	assert.Equal(t, NonMaster, m.Group(id))

	gotId, ok := m.MarkMaster(h)
	require.True(t, ok)
	assert.Equal(t, id, gotId, "MarkMaster must not renumber the vertex")
	assert.Equal(t, Master, m.Group(id))
}

func TestMarkMasterReportsUnknownHash(t *testing.T) {
	m := New()
	_, ok := m.MarkMaster(hash.Of([]byte("never-assigned")))
	assert.False(t, ok)
}

func TestInstallIsIdempotentAndRejectsConflicts(t *testing.T) {
	m := New()
	h := hash.Of([]byte("imported"))

	require.NoError(t, m.Install(h, 42, Master))
	require.NoError(t, m.Install(h, 42, Master), "re-installing the same pairing must be a no-op")

	got, ok := m.VertexId(h)
	require.True(t, ok)
	assert.Equal(t, Id(42), got)

	assert.Error(t, m.Install(h, 43, Master), "conflicting id for an already-installed hash must error")
	assert.Error(t, m.Install(hash.Of([]byte("other")), 42, Master), "conflicting hash for an already-installed id must error")
}

func TestInstallAdvancesNextIdPastImported(t *testing.T) {
	m := New()
	require.NoError(t, m.Install(hash.Of([]byte("imported-master")), 100, Master))
	assert.Equal(t, Id(101), m.NextId(Master))

	id, err := m.AssignId(hash.Of([]byte("fresh")), Master)
	require.NoError(t, err)
	assert.Equal(t, Id(101), id)
}
