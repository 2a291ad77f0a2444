// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package iddag implements the flat-segment commit graph index (§4.7):
// a collection of contiguous id ranges ("flat segments"), each with a
// parent list, supporting sublinear ancestry queries over the ids
// assigned by store/dag/idmap.
package iddag

import (
	"sort"

	"github.com/google/btree"

	"github.com/forgehub/scmcore/store/dag/idmap"
)

// Flags on a Segment (§4.7).
type Flags uint8

const (
	HasRoot Flags = 1 << iota
	OnlyHead
)

// Segment is a maximal contiguous id range whose members form a linear
// parent chain broken only at known boundaries (Glossary).
type Segment struct {
	Low, High idmap.Id
	Group     idmap.Group
	// Parents holds the ids, outside [Low, High], that the segment's
	// Low vertex depends on.
	Parents []idmap.Id
	Flags   Flags
}

func (s Segment) HasFlag(f Flags) bool { return s.Flags&f != 0 }

func (s Segment) contains(id idmap.Id) bool { return id >= s.Low && id <= s.High }

// segEntry indexes a Segment by its High endpoint in byHigh, so the
// segment covering a given id can be found in O(log segments) instead
// of scanning every segment (§4.7, §2's "sublinear" requirement).
// Segments never overlap, so High alone is a unique key.
type segEntry struct {
	high idmap.Id
	seg  Segment
}

func (e segEntry) Less(other btree.Item) bool { return e.high < other.(segEntry).high }

// IdDag indexes a set of flat segments for ancestry queries. It also
// records, per vertex id, the direct parent ids (and the reverse,
// children, edges) — the flat segments compress the common case
// (linear history) but point queries still need exact per-vertex
// parents for merges and first-parent chains.
//
// Only level-0 (flat) segments are implemented here: segments are
// never merged bottom-up into higher-level shortcuts spanning many
// flat segments at once. See DESIGN.md for why that cut was made and
// what it costs queries like Heads/Roots over very large sets.
type IdDag struct {
	segments []Segment
	byHigh   *btree.BTree
	parents  map[idmap.Id][]idmap.Id
	children map[idmap.Id][]idmap.Id
}

func New() *IdDag {
	return &IdDag{
		byHigh:   btree.New(32),
		parents:  make(map[idmap.Id][]idmap.Id),
		children: make(map[idmap.Id][]idmap.Id),
	}
}

// AddVertex records one vertex's parents ahead of segment construction.
func (d *IdDag) AddVertex(id idmap.Id, parents []idmap.Id) {
	cp := make([]idmap.Id, len(parents))
	copy(cp, parents)
	d.parents[id] = cp
	for _, p := range parents {
		d.children[p] = append(d.children[p], id)
	}
}

func (d *IdDag) Parents(id idmap.Id) []idmap.Id {
	return d.parents[id]
}

// BuildFlatSegments builds flat segments over ids using the recorded
// per-vertex parents, following the extend-or-close rule of §4.7: a
// segment extends while the immediately preceding id is the vertex's
// sole in-range parent and every parent so far has a smaller id;
// otherwise it closes and a new one opens. The new segments are
// appended to the existing set (like ImportSegments), not substituted
// for it: a Graph calls this once per group on every AddHeads/Flush
// cycle, each time with only that call's newly assigned ids, so
// overwriting d.segments here would discard every segment built by an
// earlier call.
func (d *IdDag) BuildFlatSegments(ids []idmap.Id, group idmap.Group) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var segs []Segment
	var curLow, curHigh idmap.Id
	var curParents []idmap.Id
	open := false
	hasRoot := false

	flush := func() {
		if !open {
			return
		}
		segs = append(segs, Segment{
			Low: curLow, High: curHigh, Group: group,
			Parents: curParents, Flags: flagsFor(hasRoot),
		})
		open = false
	}

	for _, id := range ids {
		parents := d.parents[id]
		extendsOpen := open && curHigh+1 == id && len(parents) == 1 && parents[0] == curHigh
		if extendsOpen {
			curHigh = id
			continue
		}
		flush()
		curLow, curHigh = id, id
		curParents = externalParents(parents, id)
		hasRoot = len(parents) == 0
		open = true
	}
	flush()

	markOnlyHeads(segs, d.parents, ids)
	d.segments = append(d.segments, segs...)
	for _, seg := range segs {
		d.byHigh.ReplaceOrInsert(segEntry{high: seg.High, seg: seg})
	}
}

func flagsFor(hasRoot bool) Flags {
	var f Flags
	if hasRoot {
		f |= HasRoot
	}
	return f
}

func externalParents(parents []idmap.Id, _ idmap.Id) []idmap.Id {
	out := make([]idmap.Id, len(parents))
	copy(out, parents)
	return out
}

// markOnlyHeads sets OnlyHead on any segment whose High endpoint has no
// children among ids (§4.7).
func markOnlyHeads(segs []Segment, parents map[idmap.Id][]idmap.Id, ids []idmap.Id) {
	hasChild := make(map[idmap.Id]bool, len(ids))
	for _, id := range ids {
		for _, p := range parents[id] {
			hasChild[p] = true
		}
	}
	for i := range segs {
		if !hasChild[segs[i].High] {
			segs[i].Flags |= OnlyHead
		}
	}
}

// Segments returns the current flat segment set.
func (d *IdDag) Segments() []Segment {
	return d.segments
}

// ImportSegments installs a set of flat segments received verbatim
// from a remote (§6.6 CloneData), trusting that the sender already ran
// the extend-or-close construction. It reconstructs the per-vertex
// parent index implied by each segment's shape — every id's sole
// parent is the previous id, except the segment's Low endpoint, whose
// parents are the segment's recorded external Parents — since a flat
// segment's defining property is exactly that internal linear chain.
func (d *IdDag) ImportSegments(segs []Segment) {
	d.segments = append(d.segments, segs...)
	for _, seg := range segs {
		d.byHigh.ReplaceOrInsert(segEntry{high: seg.High, seg: seg})
		if _, ok := d.parents[seg.Low]; !ok {
			d.AddVertex(seg.Low, seg.Parents)
		}
		for id := seg.Low + 1; id <= seg.High; id++ {
			if _, ok := d.parents[id]; !ok {
				d.AddVertex(id, []idmap.Id{id - 1})
			}
		}
	}
}

// segmentOf finds the segment covering id via byHigh: the first
// segment whose High is >= id is the only candidate, since segments
// never overlap and are ordered the same way by Low and by High.
func (d *IdDag) segmentOf(id idmap.Id) (Segment, bool) {
	var found Segment
	ok := false
	d.byHigh.AscendGreaterOrEqual(segEntry{high: id}, func(item btree.Item) bool {
		e := item.(segEntry)
		if e.seg.contains(id) {
			found, ok = e.seg, true
		}
		return false
	})
	return found, ok
}

type idSet map[idmap.Id]struct{}

func newIdSet(ids ...idmap.Id) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) toSlice() []idmap.Id {
	out := make([]idmap.Id, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ancestors returns the set of ids reachable by following parent edges
// from set, including set itself (§4.7).
func (d *IdDag) Ancestors(set []idmap.Id) []idmap.Id {
	visited := idSet{}
	stack := append([]idmap.Id{}, set...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		if seg, ok := d.segmentOf(id); ok {
			// Within a flat segment, every id's sole parent is the
			// previous id; walk down to Low in one pass, then jump to
			// the segment's external parents.
			for cur := id; cur > seg.Low; cur-- {
				if _, ok := visited[cur-1]; !ok {
					stack = append(stack, cur-1)
				}
			}
			for _, p := range seg.Parents {
				if _, ok := visited[p]; !ok {
					stack = append(stack, p)
				}
			}
		}
		for _, p := range d.parents[id] {
			if _, ok := visited[p]; !ok {
				stack = append(stack, p)
			}
		}
	}
	return visited.toSlice()
}

// Descendants returns every id that has some id in set as an ancestor,
// including set itself. It walks the maintained reverse (children)
// adjacency list forward from set, visiting each reachable id once,
// rather than repeatedly rescanning the whole parent table to a fixed
// point.
func (d *IdDag) Descendants(set []idmap.Id) []idmap.Id {
	visited := newIdSet(set...)
	stack := append([]idmap.Id{}, set...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range d.children[id] {
			if _, ok := visited[c]; !ok {
				visited[c] = struct{}{}
				stack = append(stack, c)
			}
		}
	}
	return visited.toSlice()
}

// IsAncestor reports whether u is an ancestor of v (§4.7, P5). Unlike
// materializing ancestors(v) and scanning it for u, this jumps segment
// by segment: once v's containing segment is found, u being anywhere
// in [seg.Low, v] is an immediate answer (every id in that range is on
// the segment's single linear chain), so only a segment's external
// parents — not each of its member ids — are queued for further
// search.
func (d *IdDag) IsAncestor(u, v idmap.Id) bool {
	if u == v {
		return true
	}
	visited := idSet{}
	stack := []idmap.Id{v}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		if seg, ok := d.segmentOf(id); ok {
			if u >= seg.Low && u <= id {
				return true
			}
			for _, p := range seg.Parents {
				if p == u {
					return true
				}
				if _, ok := visited[p]; !ok {
					stack = append(stack, p)
				}
			}
			continue
		}

		for _, p := range d.parents[id] {
			if p == u {
				return true
			}
			if _, ok := visited[p]; !ok {
				stack = append(stack, p)
			}
		}
	}
	return false
}

// CommonAncestors returns the intersection of ancestors({v}) for every
// v in set.
func (d *IdDag) CommonAncestors(set []idmap.Id) []idmap.Id {
	if len(set) == 0 {
		return nil
	}
	common := newIdSet(d.Ancestors([]idmap.Id{set[0]})...)
	for _, v := range set[1:] {
		next := newIdSet(d.Ancestors([]idmap.Id{v})...)
		for id := range common {
			if _, ok := next[id]; !ok {
				delete(common, id)
			}
		}
	}
	return common.toSlice()
}

// Heads returns the subset of set with no descendant also in set.
// Candidates are walked highest-id first and each already-dominated
// (ancestor-of-a-kept-head) candidate is skipped rather than re-tested,
// so the segment-jump IsAncestor below does the real work instead of a
// blind pairwise scan.
func (d *IdDag) Heads(set []idmap.Id) []idmap.Id {
	if len(set) == 0 {
		return nil
	}
	sorted := append([]idmap.Id{}, newIdSet(set...).toSlice()...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	dominated := idSet{}
	var heads []idmap.Id
	for _, id := range sorted {
		if _, ok := dominated[id]; ok {
			continue
		}
		heads = append(heads, id)
		for _, other := range sorted {
			if other == id {
				continue
			}
			if _, ok := dominated[other]; ok {
				continue
			}
			if d.IsAncestor(other, id) {
				dominated[other] = struct{}{}
			}
		}
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })
	return heads
}

// Roots returns the subset of set with no ancestor also in set. Mirrors
// Heads, walking candidates lowest-id first.
func (d *IdDag) Roots(set []idmap.Id) []idmap.Id {
	if len(set) == 0 {
		return nil
	}
	sorted := append([]idmap.Id{}, newIdSet(set...).toSlice()...)

	dominated := idSet{}
	var roots []idmap.Id
	for _, id := range sorted {
		if _, ok := dominated[id]; ok {
			continue
		}
		roots = append(roots, id)
		for _, other := range sorted {
			if other == id {
				continue
			}
			if _, ok := dominated[other]; ok {
				continue
			}
			if d.IsAncestor(id, other) {
				dominated[other] = struct{}{}
			}
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// GCA returns heads(common_ancestors(set)) (§4.7).
func (d *IdDag) GCA(set []idmap.Id) []idmap.Id {
	return d.Heads(d.CommonAncestors(set))
}

// Range returns descendants(roots) ∩ ancestors(heads).
func (d *IdDag) Range(roots, heads []idmap.Id) []idmap.Id {
	desc := newIdSet(d.Descendants(roots)...)
	anc := newIdSet(d.Ancestors(heads)...)
	out := idSet{}
	for id := range desc {
		if _, ok := anc[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out.toSlice()
}

// Only returns ancestors(reachable) - ancestors(unreachable) (supplement C.4).
func (d *IdDag) Only(reachable, unreachable []idmap.Id) []idmap.Id {
	a := newIdSet(d.Ancestors(reachable)...)
	b := newIdSet(d.Ancestors(unreachable)...)
	out := idSet{}
	for id := range a {
		if _, ok := b[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out.toSlice()
}

// Merges returns the subset of set with more than one parent.
func (d *IdDag) Merges(set []idmap.Id) []idmap.Id {
	var out []idmap.Id
	for _, id := range set {
		if len(d.parents[id]) > 1 {
			out = append(out, id)
		}
	}
	return out
}

// HeadsAncestors returns heads(ancestors(set)).
func (d *IdDag) HeadsAncestors(set []idmap.Id) []idmap.Id {
	return d.Heads(d.Ancestors(set))
}

// FirstAncestorNth follows the parent[0] chain n steps from id.
func (d *IdDag) FirstAncestorNth(id idmap.Id, n int) (idmap.Id, bool) {
	cur := id
	for i := 0; i < n; i++ {
		parents := d.parents[cur]
		if len(parents) == 0 {
			return 0, false
		}
		cur = parents[0]
	}
	return cur, true
}

// FirstAncestors follows the parent[0] chain from id until a root.
func (d *IdDag) FirstAncestors(id idmap.Id) []idmap.Id {
	var out []idmap.Id
	cur := id
	for {
		out = append(out, cur)
		parents := d.parents[cur]
		if len(parents) == 0 {
			return out
		}
		cur = parents[0]
	}
}

// Sort returns ids in an order consistent with id assignment
// (ancestors before descendants within a group), per §4.7's ordering
// contract.
func Sort(ids []idmap.Id) []idmap.Id {
	out := append([]idmap.Id{}, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
