// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package resolver

import (
	"context"

	"github.com/forgehub/scmcore/store/dag/idmap"
	"github.com/forgehub/scmcore/store/hash"
)

// Lazy fronts an IdMap with a remote Client for batched lookups (§4.8).
// Every id or hash missing from the local IdMap goes to the remote in
// one batch, whatever its group: Lazy does not hold MASTER-range ids
// back from the remote. Each remote answer is installed locally under
// the NON_MASTER group.
type Lazy struct {
	idMap  *idmap.IdMap
	client *Client
}

func NewLazy(idMap *idmap.IdMap, client *Client) *Lazy {
	return &Lazy{idMap: idMap, client: client}
}

// VertexNameBatch resolves every id locally first, then makes one
// deduped remote call for whatever is missing, pre-resolving the whole
// batch before the caller starts any O(n) traversal over it.
func (l *Lazy) VertexNameBatch(ctx context.Context, ids []idmap.Id) ([]hash.Hash, error) {
	out := make([]hash.Hash, len(ids))
	var missing []idmap.Id
	for i, id := range ids {
		if h, ok := l.idMap.VertexName(id); ok {
			out[i] = h
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	resolved, err := l.client.VertexNameBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if out[i].IsEmpty() {
			if h, ok := resolved[id]; ok {
				out[i] = h
				_ = l.idMap.Install(h, id, idmap.NonMaster)
			}
		}
	}
	return out, nil
}

// VertexIdBatch is the symmetric hash->id form.
func (l *Lazy) VertexIdBatch(ctx context.Context, hs []hash.Hash) ([]idmap.Id, error) {
	out := make([]idmap.Id, len(hs))
	found := make([]bool, len(hs))
	var missing []hash.Hash
	for i, h := range hs {
		if id, ok := l.idMap.VertexId(h); ok {
			out[i] = id
			found[i] = true
		} else {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	resolved, err := l.client.VertexIdBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, h := range hs {
		if !found[i] {
			if id, ok := resolved[h]; ok {
				out[i] = id
				_ = l.idMap.Install(h, id, idmap.NonMaster)
			}
		}
	}
	return out, nil
}
