// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package resolver

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/forgehub/scmcore/store/dag"
	"github.com/forgehub/scmcore/store/dag/idmap"
)

// Server answers lazy-resolution requests against a Graph's IdMap and
// IdDag. It is mounted as a handful of HTTP handlers rather than a
// single multiplexed RPC method, so a deployer can put per-route
// auth/rate-limiting in front of it.
type Server struct {
	graph *dag.Graph
}

func NewServer(g *dag.Graph) *Server {
	return &Server{graph: g}
}

func (s *Server) HandleVertexNames(w http.ResponseWriter, r *http.Request) {
	var req VertexNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := VertexNameResponse{Entries: make([]vertexNameEntry, len(req.Ids))}
	for i, id := range req.Ids {
		h, ok := s.graph.IdMap().VertexName(id)
		resp.Entries[i] = vertexNameEntry{Id: id, Hash: h, Ok: ok}
	}
	writeJSON(w, resp)
}

func (s *Server) HandleVertexIds(w http.ResponseWriter, r *http.Request) {
	var req VertexIdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := VertexIdResponse{Entries: make([]vertexIdEntry, len(req.Hashes))}
	for i, h := range req.Hashes {
		id, ok := s.graph.IdMap().VertexId(h)
		resp.Entries[i] = vertexIdEntry{Hash: h, Id: id, Ok: ok}
	}
	writeJSON(w, resp)
}

// HandleCloneData serves the full CloneData exchange (§6.6): every
// flat segment plus the (id, hash) pairs for each segment's endpoints
// and external parents, which is all a client needs to translate
// segment boundaries locally.
func (s *Server) HandleCloneData(w http.ResponseWriter, r *http.Request) {
	idDag := s.graph.IdDag()
	idMap := s.graph.IdMap()

	segs := idDag.Segments()
	seen := map[idmap.Id]bool{}
	var entries []IdMapEntry
	addEntry := func(id idmap.Id) {
		if seen[id] {
			return
		}
		seen[id] = true
		if h, ok := idMap.VertexName(id); ok {
			entries = append(entries, IdMapEntry{Id: id, Hash: h, Group: idMap.Group(id)})
		}
	}
	for _, seg := range segs {
		addEntry(seg.Low)
		addEntry(seg.High)
		for _, p := range seg.Parents {
			addEntry(p)
		}
	}

	writeJSON(w, CloneData{FlatSegments: segs, IdMap: entries})
}

// Mux builds an http.ServeMux with the three resolver routes attached,
// for callers that don't already have their own router.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/vertex-names", s.HandleVertexNames)
	mux.HandleFunc("/vertex-ids", s.HandleVertexIds)
	mux.HandleFunc("/clone-data", s.HandleCloneData)
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
