// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package queue implements the write-repair queue (§4.2): a durable log
// of writes that did not reach every replica in a multiplex, consumed
// by the scrubber to perform eventual repair.
package queue

import (
	"context"
	"time"
)

// Entry is one outstanding repair obligation (§6.2).
type Entry struct {
	MultiplexId  int
	Key          string
	BlobstoreId  int
	Timestamp    time.Time
	OperationKey string // groups entries produced by a single put (§6.2)
}

// Queue is the durable write-repair log. Implementations must tolerate
// concurrent peers (scrubber instances) reading and deleting
// overlapping entries (§4.2: at-least-once, entries unordered).
type Queue interface {
	// AddMany appends entries describing a failed-replica set.
	AddMany(ctx context.Context, entries []Entry) error

	// Get returns all outstanding entries for key, across all
	// blobstore ids and multiplex ids.
	Get(ctx context.Context, key string) ([]Entry, error)

	// Iter returns up to limit entries older than olderThan, for the
	// scrubber's sweep. Implementations may return entries in any
	// order (§4.2: entries are not ordered).
	Iter(ctx context.Context, olderThan time.Time, limit int) ([]Entry, error)

	// Del removes entries after a successful repair. Deletion is by
	// primary key (multiplex_id, key, blobstore_id, timestamp) so that
	// concurrent scrubbers deleting overlapping entries don't race.
	Del(ctx context.Context, entries []Entry) error
}
