// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package herr declares the boundary error taxonomy shared by every
// layer of the storage core: blobstore, mux, pack, filestore and dag.
// Each Kind is a sentinel category; New/Wrap attach a message or cause
// while preserving Is(err) membership tests across package boundaries.
package herr

import errorkit "gopkg.in/src-d/go-errors.v1"

var (
	// NotFound: the key/vertex/alias is absent. Not an error for get;
	// is an error for operations that require the value to exist.
	NotFound = errorkit.NewKind("not found: %s")

	// InvalidData: stored bytes failed structural decoding or an
	// invariant check. Always fatal to the calling operation.
	InvalidData = errorkit.NewKind("invalid data: %s")

	// HashMismatch: a declared alias or content id did not match the
	// computed bytes. Partial writes made under this error are orphaned.
	HashMismatch = errorkit.NewKind("hash mismatch: %s")

	// Transient: an inner blobstore, queue, or remote resolver signalled
	// a retryable condition (timeout, throttling, unavailability).
	Transient = errorkit.NewKind("transient error: %s")

	// Unsupported: a capability (unlink, enumerate) isn't implemented
	// by this backend.
	Unsupported = errorkit.NewKind("unsupported operation: %s")

	// NeedsLookup: the dag would answer but requires a remote call the
	// caller forbade (local-only mode).
	NeedsLookup = errorkit.NewKind("needs remote lookup: %s")

	// AllReplicasFailed: a multiplex put could not reach min_writes
	// Normal inner stores.
	AllReplicasFailed = errorkit.NewKind("all replicas failed: %s")
)

// Is reports whether err (or something it wraps via Cause()) belongs to kind.
func Is(kind *errorkit.Kind, err error) bool {
	return kind.Is(err)
}
