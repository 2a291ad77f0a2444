// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package mux

import (
	"bytes"
	"context"
	"time"

	"github.com/forgehub/scmcore/store/blobstore"
	"github.com/forgehub/scmcore/store/herr"
	"github.com/forgehub/scmcore/store/queue"
)

// ScrubGet implements the scrub read variant (§4.3.3): unlike Get, it
// always queries every Normal member rather than resolving on the
// first Some, so it can detect a missing replica (and, with
// MarkAndRepair, heal it inline) or a byte-level discrepancy between
// two replicas that both claim to have the key.
//
// A discrepancy between two Some responses is never silently resolved
// by picking one; it is reported as a herr.HashMismatch error (§7: the
// scrub variant is the only layer allowed to write during a read, and
// only to copy a known-good replica to one that is missing the key).
func (m *Mux) ScrubGet(ctx context.Context, key string) (*blobstore.BlobData, error) {
	type scrubResult struct {
		member Member
		data   *blobstore.BlobData
		err    error
	}

	ch := make(chan scrubResult, len(m.normals))
	for _, mem := range m.normals {
		mem := mem
		go func() {
			d, err := mem.Store.Get(ctx, key)
			ch <- scrubResult{mem, d, err}
		}()
	}

	results := make([]scrubResult, 0, len(m.normals))
	for i := 0; i < len(m.normals); i++ {
		results = append(results, <-ch)
	}

	var have []scrubResult
	var missing []Member
	errs := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			errs++
		case r.data != nil:
			have = append(have, r)
		default:
			missing = append(missing, r.member)
		}
	}

	if len(have) == 0 {
		if errs == 0 {
			return nil, nil
		}
		return nil, herr.AllReplicasFailed.New(key)
	}

	first := have[0]
	for _, r := range have[1:] {
		if !bytes.Equal(first.data.Bytes, r.data.Bytes) {
			m.log.WithField("key", key).Error("scrub found byte-level discrepancy between replicas")
			return nil, herr.HashMismatch.New(key)
		}
	}

	if len(missing) > 0 {
		m.log.WithField("key", key).WithField("missing", len(missing)).Warn("scrub found missing replica")
		m.enqueueScrubRepair(key, missing)
		if m.markAndRepair {
			m.repairNow(key, first.data.Bytes, missing)
		}
	}

	return first.data, nil
}

func (m *Mux) enqueueScrubRepair(key string, missing []Member) {
	if m.queue == nil {
		return
	}
	now := time.Now()
	entries := make([]queue.Entry, 0, len(missing))
	for _, mem := range missing {
		if !m.shouldEnqueueRepair(key, mem.Id) {
			continue
		}
		entries = append(entries, queue.Entry{
			MultiplexId:  m.multiplexId,
			Key:          key,
			BlobstoreId:  mem.Id,
			Timestamp:    now,
			OperationKey: key,
		})
	}
	if len(entries) == 0 {
		return
	}
	_ = m.queue.AddMany(context.Background(), entries)
}

func (m *Mux) repairNow(key string, data []byte, missing []Member) {
	for _, mem := range missing {
		_, _ = mem.Store.Put(context.Background(), key, int64(len(data)), bytes.NewReader(data))
	}
}

// RunScrubPass drains up to limit outstanding repair entries older than
// olderThan and applies them: for each entry, it fetches the value from
// whichever inner store has it and writes it to the named blobstore_id,
// then deletes the entry. Idempotent by construction (L3): once every
// named replica has the key, re-running the pass finds no further
// entries to apply.
func (m *Mux) RunScrubPass(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	if m.queue == nil {
		return 0, nil
	}
	entries, err := m.queue.Iter(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	byMember := make(map[int]Member, len(m.members))
	for _, mem := range m.members {
		byMember[mem.Id] = mem
	}

	var repaired []queue.Entry
	for _, e := range entries {
		mem, ok := byMember[e.BlobstoreId]
		if !ok {
			repaired = append(repaired, e)
			continue
		}
		present, err := mem.Store.IsPresent(ctx, e.Key)
		if err == nil && present == blobstore.Present {
			repaired = append(repaired, e)
			continue
		}

		bd, err := m.Get(ctx, e.Key)
		if err != nil || bd == nil {
			continue
		}
		if _, err := mem.Store.Put(ctx, e.Key, int64(len(bd.Bytes)), bytes.NewReader(bd.Bytes)); err != nil {
			continue
		}
		repaired = append(repaired, e)
	}

	if len(repaired) > 0 {
		if err := m.queue.Del(ctx, repaired); err != nil {
			return len(repaired), err
		}
	}
	return len(repaired), nil
}
