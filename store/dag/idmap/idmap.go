// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package idmap implements the bijection between vertex hashes and
// small integer ids (§4.6): the IdMap. It is held in memory only and is
// not persisted to disk. Ids are partitioned
// into two groups, MASTER and NON_MASTER, with MASTER ids always
// numerically less than NON_MASTER ids so that id order alone encodes
// group membership.
package idmap

import (
	"fmt"
	"sync"

	"github.com/google/btree"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/herr"
)

// Group partitions the id space (§4.6, Glossary).
type Group int

const (
	Master Group = iota
	NonMaster
)

// Id is a small integer identifying a vertex.
type Id uint64

// NonMasterBase is the first id available to the NON_MASTER group; it
// is chosen far above any realistic MASTER id count so that MASTER ids
// universally precede NON_MASTER ones without needing a cross-group
// comparison at query time.
const NonMasterBase Id = 1 << 55

// VerLink is a monotonically advancing token identifying a consistent
// snapshot of IdMap state.
type VerLink uint64

type hashEntry struct {
	hex string
	id  Id
}

func (h hashEntry) Less(other btree.Item) bool {
	return h.hex < other.(hashEntry).hex
}

// IdMap is the in-memory VertexHash<->Id bijection.
type IdMap struct {
	mu sync.RWMutex

	hashToId map[hash.Hash]Id
	idToHash map[Id]hash.Hash
	idGroup  map[Id]Group
	byHex    *btree.BTree

	nextMaster    Id
	nextNonMaster Id
	version       VerLink

	hot *lru.Cache[hash.Hash, Id]
}

func New() *IdMap {
	hot, _ := lru.New[hash.Hash, Id](4096)
	return &IdMap{
		hashToId:      make(map[hash.Hash]Id),
		idToHash:      make(map[Id]hash.Hash),
		idGroup:       make(map[Id]Group),
		byHex:         btree.New(32),
		nextNonMaster: NonMasterBase,
		hot:           hot,
	}
}

// VertexId returns the id assigned to h, if any.
func (m *IdMap) VertexId(h hash.Hash) (Id, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.hot.Get(h); ok {
		return id, true
	}
	id, ok := m.hashToId[h]
	return id, ok
}

// VertexIdWithMaxGroup returns the id for h only if it was assigned at
// or below maxGroup, refusing to silently report a NON_MASTER vertex
// when the caller asked for a MASTER-only lookup (§4.6).
func (m *IdMap) VertexIdWithMaxGroup(h hash.Hash, maxGroup Group) (Id, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.hashToId[h]
	if !ok {
		return 0, false
	}
	if m.idGroup[id] > maxGroup {
		return 0, false
	}
	return id, true
}

// VertexName returns the hash assigned to id, if any.
func (m *IdMap) VertexName(id Id) (hash.Hash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.idToHash[id]
	return h, ok
}

// VertexIdBatch and VertexNameBatch are the batched forms used by the
// lazy resolver to dedup and pre-resolve before an O(n) traversal
// (§4.8).
func (m *IdMap) VertexIdBatch(hs []hash.Hash) []Id {
	out := make([]Id, len(hs))
	for i, h := range hs {
		out[i], _ = m.VertexId(h)
	}
	return out
}

func (m *IdMap) VertexNameBatch(ids []Id) []hash.Hash {
	out := make([]hash.Hash, len(ids))
	for i, id := range ids {
		out[i], _ = m.VertexName(id)
	}
	return out
}

// VertexesByHexPrefix returns up to limit hashes whose base32 string
// form (Hash.String) begins with prefix, in stable lexicographic order
// (§4.6, B4).
func (m *IdMap) VertexesByHexPrefix(prefix string, limit int) []hash.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []hash.Hash
	m.byHex.AscendGreaterOrEqual(hashEntry{hex: prefix}, func(item btree.Item) bool {
		e := item.(hashEntry)
		if len(e.hex) < len(prefix) || e.hex[:len(prefix)] != prefix {
			return false
		}
		if limit > 0 && len(out) >= limit {
			return false
		}
		h, ok := m.idToHash[e.id]
		if ok {
			out = append(out, h)
		}
		return true
	})
	return out
}

// Version returns the current VerLink; it is bumped on every mutation.
func (m *IdMap) Version() VerLink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// AssignId gives h the next id in group, or returns h's existing id if
// it already has one. Mutation is the only way an IdMap
// changes (§4.6); callers (the dag facade) are responsible for
// assigning ids in topological order and for keeping MASTER ids
// strictly before any NON_MASTER assignment.
func (m *IdMap) AssignId(h hash.Hash, group Group) (Id, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.hashToId[h]; ok {
		return id, nil
	}

	var id Id
	switch group {
	case Master:
		id = m.nextMaster
		m.nextMaster++
	case NonMaster:
		id = m.nextNonMaster
		m.nextNonMaster++
	default:
		return 0, herr.InvalidData.New(fmt.Sprintf("unknown group %d", group))
	}

	m.hashToId[h] = id
	m.idToHash[id] = h
	m.idGroup[id] = group
	m.byHex.ReplaceOrInsert(hashEntry{hex: h.String(), id: id})
	m.hot.Add(h, id)
	m.version++

	return id, nil
}

// Group reports which group id belongs to.
func (m *IdMap) Group(id Id) Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idGroup[id]
}

// MarkMaster relabels an already-assigned vertex's group metadata to
// Master in place, without renumbering its id. This is the cheap half
// of a group transition (§9 "Group transitions"): the id itself stays
// in the NON_MASTER numeric range, so callers that rely purely on id
// magnitude to infer group (rather than calling Group) still need a
// segment recompaction or a fresh re-assignment to see it as MASTER.
// dag.Promote uses this for bookkeeping while documenting that
// limitation.
func (m *IdMap) MarkMaster(h hash.Hash) (Id, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.hashToId[h]
	if !ok {
		return 0, false
	}
	m.idGroup[id] = Master
	m.version++
	return id, true
}

// Install records a hash<->id pairing received from a remote server
// during clone/pull import (§4.8), rather than assigning a fresh id of
// its own. It advances the group's next-id counter past id so that a
// later local AssignId can never collide with an imported id, and is a
// no-op when called again with the identical pairing. A conflicting
// pairing (same hash/id already bound to something else) is reported
// as InvalidData: the caller must treat the IdMap as corrupted rather
// than silently overwrite it (§4.8 "after import, check_universal_ids
// must be empty; otherwise the client must treat the IdMap as
// corrupted").
func (m *IdMap) Install(h hash.Hash, id Id, group Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.hashToId[h]; ok {
		if existing != id {
			return herr.InvalidData.New(fmt.Sprintf("conflicting id for %s: have %d, import says %d", h, existing, id))
		}
		return nil
	}
	if existingHash, ok := m.idToHash[id]; ok {
		return herr.InvalidData.New(fmt.Sprintf("id %d already names %s, cannot import %s", id, existingHash, h))
	}

	m.hashToId[h] = id
	m.idToHash[id] = h
	m.idGroup[id] = group
	m.byHex.ReplaceOrInsert(hashEntry{hex: h.String(), id: id})
	m.hot.Add(h, id)
	switch group {
	case Master:
		if id >= m.nextMaster {
			m.nextMaster = id + 1
		}
	case NonMaster:
		if id >= m.nextNonMaster {
			m.nextNonMaster = id + 1
		}
	}
	m.version++
	return nil
}

// NextId previews the id that would be assigned next in group, without
// mutating the map.
func (m *IdMap) NextId(group Group) Id {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if group == Master {
		return m.nextMaster
	}
	return m.nextNonMaster
}
