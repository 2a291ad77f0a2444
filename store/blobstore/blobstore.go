// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package blobstore defines the minimal abstract key/value surface
// (§4.1) that every storage backend in the core is built on. The
// interface is purely byte-level: it knows nothing about content
// addressing, chunking, or replication. Those concerns live in
// store/filestore, store/pack and store/mux respectively.
package blobstore

import (
	"context"
	"io"
)

// Presence is the three-valued answer to IsPresent: Unsure is a
// first-class outcome (e.g. some backends can't distinguish "missing"
// from "transient error") and must never be silently promoted to
// Absent or Present by a caller.
type Presence int

const (
	Absent Presence = iota
	Present
	Unsure
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Present:
		return "present"
	default:
		return "unsure"
	}
}

// OverwritePolicy selects Put's behavior when a key already has a value.
type OverwritePolicy int

const (
	// Overwrite always replaces the existing value.
	Overwrite OverwritePolicy = iota
	// IfAbsent fails the put if the key is already present.
	IfAbsent
	// OverwriteAndLog replaces the existing value and additionally
	// reports (via the returned bool) whether a value was replaced, so
	// callers can log unexpected overwrites of content-addressed data.
	OverwriteAndLog
)

// Metadata describes a stored blob without its payload.
type Metadata struct {
	Size int64
}

// BlobData is the payload and metadata returned by Get.
type BlobData struct {
	Bytes    []byte
	Metadata Metadata
}

// EnumerateRange bounds an Enumerate scan. An empty Token starts from
// the beginning of the keyspace.
type EnumerateRange struct {
	Prefix string
	Token  string
	Limit  int
}

// EnumerateResult is one page of an Enumerate scan.
type EnumerateResult struct {
	Keys      []string
	NextToken string
}

// Blobstore is the capability interface every backend implements.
// Implementations choose their overwrite semantics at construction
// time; Unlink and Enumerate are optional capabilities and return a
// herr.Unsupported error when not implemented.
type Blobstore interface {
	// Get returns the stored value and its metadata, or (nil, nil) if
	// the key is absent. Errors other than absence are returned as-is
	// (typically wrapped in a herr.Transient or herr.InvalidData kind).
	Get(ctx context.Context, key string) (*BlobData, error)

	// Put stores value (exactly size bytes read from value) under key,
	// subject to the backend's configured OverwritePolicy. didOverwrite
	// is only meaningful for OverwriteAndLog backends.
	Put(ctx context.Context, key string, size int64, value io.Reader) (didOverwrite bool, err error)

	// IsPresent answers the three-valued presence question without
	// transferring the payload.
	IsPresent(ctx context.Context, key string) (Presence, error)

	// Unlink removes a key. Optional capability.
	Unlink(ctx context.Context, key string) error

	// Copy duplicates srcKey's current value to dstKey. The default
	// implementation is get-then-put; backends may override with a
	// native server-side copy.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// Enumerate lists keys under rng.Prefix starting at rng.Token.
	// Optional capability.
	Enumerate(ctx context.Context, rng EnumerateRange) (EnumerateResult, error)
}

// PutBytes is a convenience wrapper around Put for callers holding the
// whole value in memory (mirrors the corpus's PutBytes/GetBytes helpers).
func PutBytes(ctx context.Context, bs Blobstore, key string, data []byte) (bool, error) {
	return bs.Put(ctx, key, int64(len(data)), newByteReader(data))
}

// GetBytes is a convenience wrapper around Get that materializes the
// full payload.
func GetBytes(ctx context.Context, bs Blobstore, key string) ([]byte, error) {
	bd, err := bs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if bd == nil {
		return nil, nil
	}
	return bd.Bytes, nil
}

func newByteReader(data []byte) io.Reader {
	return &staticReader{data: data}
}

type staticReader struct {
	data []byte
	pos  int
}

func (r *staticReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
