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

	"github.com/forgehub/scmcore/store/dag/idmap"
	"github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/herr"
)

// Promote moves a batch of vertices from NON_MASTER into MASTER (e.g.
// after a bookmark advance), per the Design Notes' "group transitions"
// guidance and supplement C.6: this is a batch operation, not a
// single-vertex mutation. Each named head that already has an id is
// relabeled MASTER in place (idmap.MarkMaster) and keeps its id; then
// AddHeads runs for the named heads under Group: Master, which assigns
// fresh MASTER ids only to ancestors that have no id yet, and the
// result is flushed. Ancestors that already hold NON_MASTER ids are
// neither relabeled nor renumbered, and existing segments are not
// rewritten.
func Promote(ctx context.Context, g *Graph, parentsSource ParentsSource, hs []hash.Hash) (idmap.VerLink, error) {
	heads := make([]Head, len(hs))
	for i, h := range hs {
		heads[i] = Head{Hash: h, Group: idmap.Master}
	}

	// Relabel every already-assigned vertex to Master group metadata
	// now; AssignId (invoked below via AddHeads) is idempotent and
	// would otherwise leave a NON_MASTER vertex's group untouched even
	// though it was just named as a MASTER head.
	for _, h := range hs {
		g.idMap.MarkMaster(h)
	}

	if err := g.AddHeads(ctx, parentsSource, heads); err != nil {
		return 0, herr.InvalidData.Wrap(err, "promote")
	}
	return g.Flush(ctx)
}
