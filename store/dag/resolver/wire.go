// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package resolver implements the lazy vertex resolution protocol
// (§4.8): a JSON-over-HTTP client/server pair standing in for the
// gRPC/protobuf transport the upstream corpus favors, chosen because
// generating protobuf/flatbuffers stubs would require running protoc
// or flatc at build time. Requests and responses are encoded with
// goccy/go-json for parity with the rest of the storage core's wire
// encoding choices.
package resolver

import (
	"github.com/forgehub/scmcore/store/dag/iddag"
	"github.com/forgehub/scmcore/store/dag/idmap"
	"github.com/forgehub/scmcore/store/hash"
)

// VertexNameRequest asks the remote for the hashes naming a batch of
// ids. Duplicate ids are the client's responsibility to dedupe before
// sending (§4.8 "batches deduplicate hashes/ids").
type VertexNameRequest struct {
	Ids []idmap.Id `json:"ids"`
}

type vertexNameEntry struct {
	Id   idmap.Id  `json:"id"`
	Hash hash.Hash `json:"hash"`
	Ok   bool      `json:"ok"`
}

type VertexNameResponse struct {
	Entries []vertexNameEntry `json:"entries"`
}

// VertexIdRequest asks the remote for the ids assigned to a batch of
// hashes.
type VertexIdRequest struct {
	Hashes []hash.Hash `json:"hashes"`
}

type vertexIdEntry struct {
	Hash hash.Hash `json:"hash"`
	Id   idmap.Id  `json:"id"`
	Ok   bool      `json:"ok"`
}

type VertexIdResponse struct {
	Entries []vertexIdEntry `json:"entries"`
}

// IdMapEntry is one (Id, VertexHash) pairing from a CloneData exchange
// (§6.6); CloneData restricts these to segment endpoints and parent
// ids, not the full IdMap.
type IdMapEntry struct {
	Id    idmap.Id    `json:"id"`
	Hash  hash.Hash   `json:"hash"`
	Group idmap.Group `json:"group"`
}

// CloneData is the clone/pull exchange payload (§4.8, §6.6): the
// server's flat segments plus the IdMap fragments needed to translate
// their endpoints, so the client can import both without a point
// lookup per vertex.
type CloneData struct {
	FlatSegments []iddag.Segment `json:"flat_segments"`
	IdMap        []IdMapEntry    `json:"idmap"`
}

// CloneDataRequest is currently parameterless; it exists as a named
// type so the transport has a stable body shape to extend later (e.g.
// an incremental "since VerLink" clone).
type CloneDataRequest struct{}
