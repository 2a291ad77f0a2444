// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package resolver

import (
	"github.com/forgehub/scmcore/store/dag"
	"github.com/forgehub/scmcore/store/herr"
)

// Import merges a CloneData payload into g: every (id, hash) pairing
// is installed into the IdMap first (so the segments that follow can
// resolve their endpoints), then every segment is recorded against the
// IdDag. After import, CheckUniversalIds must come back empty; if it
// doesn't, the caller's IdMap is corrupted and must not be trusted
// further (§4.8).
func Import(g *dag.Graph, data CloneData) error {
	for _, e := range data.IdMap {
		if err := g.IdMap().Install(e.Hash, e.Id, e.Group); err != nil {
			return herr.InvalidData.Wrap(err, "importing clone data idmap entry")
		}
	}

	g.IdDag().ImportSegments(data.FlatSegments)

	if errs := g.CheckUniversalIds(); len(errs) > 0 {
		return herr.InvalidData.Wrap(errs[0], "clone data import left unresolvable universal ids")
	}
	return nil
}
