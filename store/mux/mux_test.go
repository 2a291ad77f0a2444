// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package mux

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehub/scmcore/store/blobstore"
	"github.com/forgehub/scmcore/store/queue"
)

// failingBlobstore wraps an in-memory blobstore and unconditionally
// fails every Put and Get, simulating a replica that is down.
type failingBlobstore struct {
	blobstore.Blobstore
}

func (f failingBlobstore) Put(ctx context.Context, key string, size int64, value io.Reader) (bool, error) {
	return false, assertErr
}

func (f failingBlobstore) Get(ctx context.Context, key string) (*blobstore.BlobData, error) {
	return nil, assertErr
}

func (f failingBlobstore) IsPresent(ctx context.Context, key string) (blobstore.Presence, error) {
	return blobstore.Unsure, assertErr
}

var assertErr = io.ErrClosedPipe

func newTestQueue(t *testing.T) queue.Queue {
	q, err := queue.OpenBboltQueue(filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// TestPutStoreZeroSucceedsStoreOneFails mirrors seed scenario S1: two
// stores, store-0 succeeds and store-1 fails, min_writes = 1.
func TestPutStoreZeroSucceedsStoreOneFails(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	good := blobstore.NewInMemoryBlobstore("good")
	bad := failingBlobstore{blobstore.NewInMemoryBlobstore("bad")}

	m := New(Config{
		MultiplexId: 1,
		Members: []Member{
			{Id: 0, Store: good, Role: Normal},
			{Id: 1, Store: bad, Role: Normal},
		},
		Queue:          q,
		MinWrites:      1,
		RepairDeadline: 2 * time.Second,
	})

	_, err := m.Put(ctx, "k0", 2, bytesReader("v0"))
	require.NoError(t, err)

	got, err := blobstore.GetBytes(ctx, m, "k0")
	require.NoError(t, err)
	assert.Equal(t, []byte("v0"), got)

	require.Eventually(t, func() bool {
		entries, err := q.Get(ctx, "k0")
		return err == nil && len(entries) == 1 && entries[0].BlobstoreId == 1
	}, time.Second, 10*time.Millisecond)
}

// TestPutMinWritesOneStoreZeroFails mirrors S2: store-0 fails, store-1
// succeeds, min_writes=1.
func TestPutMinWritesOneStoreZeroFails(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	bad := failingBlobstore{blobstore.NewInMemoryBlobstore("bad")}
	good := blobstore.NewInMemoryBlobstore("good")

	m := New(Config{
		MultiplexId: 1,
		Members: []Member{
			{Id: 0, Store: bad, Role: Normal},
			{Id: 1, Store: good, Role: Normal},
		},
		Queue:          q,
		MinWrites:      1,
		RepairDeadline: 2 * time.Second,
	})

	_, err := m.Put(ctx, "k1", 2, bytesReader("v1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		entries, err := q.Get(ctx, "k1")
		return err == nil && len(entries) == 1 && entries[0].BlobstoreId == 0
	}, time.Second, 10*time.Millisecond)

	got, err := blobstore.GetBytes(ctx, m, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

// TestPutAllReplicasFail mirrors S3: both stores error, Put returns Err.
func TestPutAllReplicasFail(t *testing.T) {
	ctx := context.Background()

	bad1 := failingBlobstore{blobstore.NewInMemoryBlobstore("bad1")}
	bad2 := failingBlobstore{blobstore.NewInMemoryBlobstore("bad2")}

	m := New(Config{
		MultiplexId: 1,
		Members: []Member{
			{Id: 0, Store: bad1, Role: Normal},
			{Id: 1, Store: bad2, Role: Normal},
		},
		MinWrites:      1,
		RepairDeadline: time.Second,
	})

	_, err := m.Put(ctx, "k", 1, bytesReader("v"))
	require.Error(t, err)
}

// TestScrubEnqueuesAndRepairsMissingReplica mirrors S4: store-0 has k,
// store-1 does not. ScrubGet must return the value, enqueue a repair
// entry for store-1, and a subsequent scrub pass must copy the value
// and delete the entry so a second pass is a no-op (L3).
func TestScrubEnqueuesAndRepairsMissingReplica(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	store0 := blobstore.NewInMemoryBlobstore("s0")
	store1 := blobstore.NewInMemoryBlobstore("s1")
	_, err := blobstore.PutBytes(ctx, store0, "k", []byte("v"))
	require.NoError(t, err)

	m := New(Config{
		MultiplexId: 7,
		Members: []Member{
			{Id: 0, Store: store0, Role: Normal},
			{Id: 1, Store: store1, Role: Normal},
		},
		Queue:         q,
		MinWrites:     1,
		MarkAndRepair: false,
	})

	bd, err := m.ScrubGet(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, bd)
	assert.Equal(t, []byte("v"), bd.Bytes)

	entries, err := q.Get(ctx, "k")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].BlobstoreId)

	n, err := m.RunScrubPass(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := blobstore.GetBytes(ctx, store1, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	n, err = m.RunScrubPass(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second scrub pass must be a no-op (L3)")
}

func TestScrubDiscrepancyIsFatal(t *testing.T) {
	ctx := context.Background()

	store0 := blobstore.NewInMemoryBlobstore("s0")
	store1 := blobstore.NewInMemoryBlobstore("s1")
	_, err := blobstore.PutBytes(ctx, store0, "k", []byte("v0"))
	require.NoError(t, err)
	_, err = blobstore.PutBytes(ctx, store1, "k", []byte("v1"))
	require.NoError(t, err)

	m := New(Config{
		MultiplexId: 7,
		Members: []Member{
			{Id: 0, Store: store0, Role: Normal},
			{Id: 1, Store: store1, Role: Normal},
		},
		MinWrites: 1,
	})

	_, err = m.ScrubGet(ctx, "k")
	require.Error(t, err)
}

func TestIsPresentUnsureOnSplitResponses(t *testing.T) {
	ctx := context.Background()

	absent := blobstore.NewInMemoryBlobstore("absent")
	erroring := failingBlobstore{blobstore.NewInMemoryBlobstore("erroring")}

	m := New(Config{
		MultiplexId: 1,
		Members: []Member{
			{Id: 0, Store: absent, Role: Normal},
			{Id: 1, Store: erroring, Role: Normal},
		},
		MinWrites: 1,
	})

	p, err := m.IsPresent(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, blobstore.Unsure, p)
}

func TestWriteOnlyIsReadFallbackOnly(t *testing.T) {
	ctx := context.Background()

	normal := blobstore.NewInMemoryBlobstore("n")
	writeOnly := blobstore.NewInMemoryBlobstore("wo")

	m := New(Config{
		MultiplexId: 1,
		Members: []Member{
			{Id: 0, Store: normal, Role: Normal},
			{Id: 1, Store: writeOnly, Role: WriteOnly},
		},
		MinWrites: 1,
	})

	_, err := m.Put(ctx, "k", 1, bytesReader("v"))
	require.NoError(t, err)

	_, _ = blobstore.PutBytes(ctx, writeOnly, "only-there", []byte("w"))

	got, err := blobstore.GetBytes(ctx, m, "only-there")
	require.NoError(t, err)
	assert.Equal(t, []byte("w"), got)
}

func bytesReader(s string) io.Reader {
	return &stringReader{s: s}
}

type stringReader struct {
	s   string
	pos int
}

func (r *stringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
