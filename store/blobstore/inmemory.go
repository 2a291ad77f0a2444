// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package blobstore

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/forgehub/scmcore/store/herr"
)

// InMemoryBlobstore keeps every value in a process-local map. It is
// used in tests and as the trivial inner store in multiplex fixtures.
type InMemoryBlobstore struct {
	namespace string
	policy    OverwritePolicy

	mu     sync.RWMutex
	values map[string][]byte
}

var _ Blobstore = (*InMemoryBlobstore)(nil)

// NewInMemoryBlobstore creates a store scoped to namespace (a label
// only; storage is not actually partitioned by it beyond identifying
// the store in logs).
func NewInMemoryBlobstore(namespace string) *InMemoryBlobstore {
	return &InMemoryBlobstore{
		namespace: namespace,
		policy:    Overwrite,
		values:    map[string][]byte{},
	}
}

// WithPolicy returns bs configured with the given OverwritePolicy.
func (bs *InMemoryBlobstore) WithPolicy(p OverwritePolicy) *InMemoryBlobstore {
	bs.policy = p
	return bs
}

func (bs *InMemoryBlobstore) Get(_ context.Context, key string) (*BlobData, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	v, ok := bs.values[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return &BlobData{Bytes: cp, Metadata: Metadata{Size: int64(len(cp))}}, nil
}

func (bs *InMemoryBlobstore) Put(_ context.Context, key string, size int64, value io.Reader) (bool, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(value, data); err != nil {
		return false, herr.InvalidData.Wrap(err, key)
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	_, existed := bs.values[key]
	if existed && bs.policy == IfAbsent {
		return false, herr.InvalidData.New("key already present: " + key)
	}
	bs.values[key] = data
	return existed, nil
}

func (bs *InMemoryBlobstore) IsPresent(_ context.Context, key string) (Presence, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	if _, ok := bs.values[key]; ok {
		return Present, nil
	}
	return Absent, nil
}

func (bs *InMemoryBlobstore) Unlink(_ context.Context, key string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	delete(bs.values, key)
	return nil
}

func (bs *InMemoryBlobstore) Copy(ctx context.Context, srcKey, dstKey string) error {
	return genericCopy(ctx, bs, srcKey, dstKey)
}

func (bs *InMemoryBlobstore) Enumerate(_ context.Context, rng EnumerateRange) (EnumerateResult, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	var keys []string
	for k := range bs.values {
		if strings.HasPrefix(k, rng.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if rng.Token != "" {
		start = sort.SearchStrings(keys, rng.Token)
	}
	end := len(keys)
	limit := rng.Limit
	if limit <= 0 {
		limit = len(keys)
	}
	if start+limit < end {
		end = start + limit
	}
	if start > end {
		start = end
	}

	page := keys[start:end]
	next := ""
	if end < len(keys) {
		next = keys[end]
	}
	return EnumerateResult{Keys: page, NextToken: next}, nil
}
