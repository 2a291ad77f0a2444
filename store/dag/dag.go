// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package dag is the commit-graph facade (§4.9): it drives IdMap
// assignment and IdDag segment construction together through
// add_heads/flush, the only path by which new vertices enter either
// structure.
package dag

import (
	"context"
	"sort"

	"github.com/forgehub/scmcore/store/dag/iddag"
	"github.com/forgehub/scmcore/store/dag/idmap"
	"github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/herr"
)

// ParentsSource resolves a vertex's parent hashes, e.g. by reading a
// commit object. It is walked by AddHeads to discover the unknown
// ancestor set of a new head (§4.9 step 1).
type ParentsSource func(ctx context.Context, h hash.Hash) ([]hash.Hash, error)

// Head names one new vertex to add, with the group it should be
// assigned into.
type Head struct {
	Hash  hash.Hash
	Group idmap.Group
}

// Graph owns one IdMap and its associated IdDag.
type Graph struct {
	idMap *idmap.IdMap
	idDag *iddag.IdDag
	log   *SegmentLog
	// flushed counts the idDag segments already appended to log.
	flushed int
}

func New(idMap *idmap.IdMap, idDag *iddag.IdDag, log *SegmentLog) *Graph {
	return &Graph{idMap: idMap, idDag: idDag, log: log}
}

// AddHeads implements §4.9: for each head, it collects unknown
// ancestors via parentsSource, orders them topologically (ties broken
// lexicographically on hash for reproducibility), assigns ids with
// MASTER strictly preceding NON_MASTER, and builds flat segments. It
// does not persist anything; call Flush afterward.
func (g *Graph) AddHeads(ctx context.Context, parentsSource ParentsSource, heads []Head) error {
	unknownByGroup := map[idmap.Group][]hash.Hash{}
	seen := map[hash.Hash]bool{}
	parentsOf := map[hash.Hash][]hash.Hash{}

	var collect func(h hash.Hash, group idmap.Group, stack map[hash.Hash]bool) error
	collect = func(h hash.Hash, group idmap.Group, stack map[hash.Hash]bool) error {
		if _, ok := g.idMap.VertexId(h); ok {
			return nil
		}
		if seen[h] {
			return nil
		}
		if stack[h] {
			return herr.InvalidData.New("cyclic parent chain at " + h.String())
		}
		stack[h] = true

		parents, err := parentsSource(ctx, h)
		if err != nil {
			return err
		}
		parentsOf[h] = parents
		for _, p := range parents {
			if err := collect(p, group, stack); err != nil {
				return err
			}
		}

		seen[h] = true
		unknownByGroup[group] = append(unknownByGroup[group], h)
		delete(stack, h)
		return nil
	}

	// MASTER heads are collected first, so an unknown ancestor shared
	// with a NON_MASTER head settles into MASTER (I7).
	for _, masterPass := range []bool{true, false} {
		for _, head := range heads {
			if (head.Group == idmap.Master) != masterPass {
				continue
			}
			if err := collect(head.Hash, head.Group, map[hash.Hash]bool{}); err != nil {
				return err
			}
		}
	}

	// MASTER must be assigned (and thus numbered) strictly before
	// NON_MASTER (§4.9 step 3).
	for _, group := range []idmap.Group{idmap.Master, idmap.NonMaster} {
		batch := unknownByGroup[group]
		sort.Slice(batch, func(i, j int) bool { return batch[i].String() < batch[j].String() })
		batch = topoSort(batch, parentsOf)

		var ids []idmap.Id
		for _, h := range batch {
			id, err := g.idMap.AssignId(h, group)
			if err != nil {
				return err
			}
			var parentIds []idmap.Id
			for _, p := range parentsOf[h] {
				pid, ok := g.idMap.VertexId(p)
				if !ok {
					return herr.InvalidData.New("parent not assigned: " + p.String())
				}
				parentIds = append(parentIds, pid)
			}
			g.idDag.AddVertex(id, parentIds)
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			g.idDag.BuildFlatSegments(ids, group)
		}
	}

	return nil
}

// topoSort orders batch so that every hash appears after its parents,
// breaking ties lexicographically (already sorted into batch) for
// reproducibility (§4.9 step 2).
func topoSort(batch []hash.Hash, parentsOf map[hash.Hash][]hash.Hash) []hash.Hash {
	inBatch := make(map[hash.Hash]bool, len(batch))
	for _, h := range batch {
		inBatch[h] = true
	}

	visited := make(map[hash.Hash]bool, len(batch))
	var out []hash.Hash
	var visit func(h hash.Hash)
	visit = func(h hash.Hash) {
		if visited[h] {
			return
		}
		visited[h] = true
		for _, p := range parentsOf[h] {
			if inBatch[p] {
				visit(p)
			}
		}
		out = append(out, h)
	}
	for _, h := range batch {
		visit(h)
	}
	return out
}

// CheckUniversalIds verifies that every universal id — the Low and High
// endpoints and the external parents of each MASTER flat segment, the
// same ids a CloneData exchange carries (§6.6) — is locally resolvable
// to a hash without a remote call. Ids strictly inside a segment are
// not checked. Returns one error per unresolvable endpoint or parent
// (P6: after add_heads + flush, this must be empty).
func (g *Graph) CheckUniversalIds() []error {
	var errs []error
	for _, seg := range g.idDag.Segments() {
		if seg.Group != idmap.Master {
			continue
		}
		for _, id := range append([]idmap.Id{seg.Low, seg.High}, seg.Parents...) {
			if _, ok := g.idMap.VertexName(id); !ok {
				errs = append(errs, herr.InvalidData.New("universal id not locally resolvable"))
			}
		}
	}
	return errs
}

// Flush persists the flat segments built since the previous Flush by
// appending them to the segment log, then returns the IdMap's current
// VerLink. The append is a single bbolt transaction, so a crash leaves
// the log with either none or all of the batch (§4.9 step 5). The IdMap
// itself is held in memory only; Flush does not write it to disk.
func (g *Graph) Flush(ctx context.Context) (idmap.VerLink, error) {
	if g.log != nil {
		segs := g.idDag.Segments()
		if err := g.log.Append(ctx, segs[g.flushed:]); err != nil {
			return 0, err
		}
		g.flushed = len(segs)
	}
	return g.idMap.Version(), nil
}

// IdMap exposes the underlying IdMap for read-only queries.
func (g *Graph) IdMap() *idmap.IdMap { return g.idMap }

// IdDag exposes the underlying IdDag for read-only queries.
func (g *Graph) IdDag() *iddag.IdDag { return g.idDag }
