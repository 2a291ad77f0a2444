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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/forgehub/scmcore/store/herr"
)

// LocalBlobstore stores each value as a file under a root directory.
// Keys are sanitized to a single path segment; Put writes to a
// temporary sibling file and renames it into place so that readers
// never observe a partially written value.
type LocalBlobstore struct {
	root   string
	policy OverwritePolicy
}

var _ Blobstore = (*LocalBlobstore)(nil)

func NewLocalBlobstore(root string) *LocalBlobstore {
	return &LocalBlobstore{root: root, policy: Overwrite}
}

func (bs *LocalBlobstore) WithPolicy(p OverwritePolicy) *LocalBlobstore {
	bs.policy = p
	return bs
}

func (bs *LocalBlobstore) path(key string) string {
	return filepath.Join(bs.root, sanitizeKey(key))
}

// sanitizeKey maps an arbitrary key to a filesystem-safe, bytewise
// stable name (§6.1: keys must be bytewise-stable; no random salt).
func sanitizeKey(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, "/", "_"), "..", "__")
}

func (bs *LocalBlobstore) Get(_ context.Context, key string) (*BlobData, error) {
	data, err := os.ReadFile(bs.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, herr.Transient.Wrap(err, key)
	}
	return &BlobData{Bytes: data, Metadata: Metadata{Size: int64(len(data))}}, nil
}

func (bs *LocalBlobstore) Put(_ context.Context, key string, size int64, value io.Reader) (bool, error) {
	if err := os.MkdirAll(bs.root, 0o755); err != nil {
		return false, herr.Transient.Wrap(err, key)
	}

	dst := bs.path(key)
	_, existed := os.Stat(dst)
	alreadyThere := existed == nil
	if alreadyThere && bs.policy == IfAbsent {
		return false, herr.InvalidData.New("key already present: " + key)
	}

	tmp := filepath.Join(bs.root, ".tmp-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return false, herr.Transient.Wrap(err, key)
	}
	defer os.Remove(tmp)

	n, err := io.CopyN(f, value, size)
	closeErr := f.Close()
	if err != nil {
		return false, herr.InvalidData.Wrap(err, key)
	}
	if n != size {
		return false, herr.InvalidData.New("short write for " + key)
	}
	if closeErr != nil {
		return false, herr.Transient.Wrap(closeErr, key)
	}

	if err := os.Rename(tmp, dst); err != nil {
		return false, herr.Transient.Wrap(err, key)
	}
	return alreadyThere, nil
}

func (bs *LocalBlobstore) IsPresent(_ context.Context, key string) (Presence, error) {
	_, err := os.Stat(bs.path(key))
	if err == nil {
		return Present, nil
	}
	if os.IsNotExist(err) {
		return Absent, nil
	}
	return Unsure, herr.Transient.Wrap(err, key)
}

func (bs *LocalBlobstore) Unlink(_ context.Context, key string) error {
	err := os.Remove(bs.path(key))
	if err != nil && !os.IsNotExist(err) {
		return herr.Transient.Wrap(err, key)
	}
	return nil
}

func (bs *LocalBlobstore) Copy(ctx context.Context, srcKey, dstKey string) error {
	return genericCopy(ctx, bs, srcKey, dstKey)
}

func (bs *LocalBlobstore) Enumerate(_ context.Context, rng EnumerateRange) (EnumerateResult, error) {
	entries, err := os.ReadDir(bs.root)
	if err != nil {
		if os.IsNotExist(err) {
			return EnumerateResult{}, nil
		}
		return EnumerateResult{}, herr.Transient.Wrap(err, bs.root)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		if strings.HasPrefix(e.Name(), sanitizeKey(rng.Prefix)) {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)

	start := 0
	if rng.Token != "" {
		start = sort.SearchStrings(keys, rng.Token)
	}
	limit := rng.Limit
	if limit <= 0 {
		limit = len(keys)
	}
	end := start + limit
	if end > len(keys) {
		end = len(keys)
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
