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

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/forgehub/scmcore/store/herr"
)

// GCSBlobstore backs a Blobstore with a Google Cloud Storage bucket,
// mirroring the corpus's GCSBlobstore (store/blobstore/blobstore_test.go).
type GCSBlobstore struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

var _ Blobstore = (*GCSBlobstore)(nil)

func NewGCSBlobstore(bucket *storage.BucketHandle, name, prefix string) *GCSBlobstore {
	return &GCSBlobstore{bucket: bucket, name: name, prefix: prefix}
}

func (bs *GCSBlobstore) objectKey(key string) string {
	return bs.prefix + key
}

func (bs *GCSBlobstore) Get(ctx context.Context, key string) (*BlobData, error) {
	r, err := bs.bucket.Object(bs.objectKey(key)).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, herr.Transient.Wrap(err, key)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, herr.Transient.Wrap(err, key)
	}
	return &BlobData{Bytes: data, Metadata: Metadata{Size: int64(len(data))}}, nil
}

func (bs *GCSBlobstore) Put(ctx context.Context, key string, size int64, value io.Reader) (bool, error) {
	existed, err := bs.IsPresent(ctx, key)
	if err != nil {
		return false, err
	}

	w := bs.bucket.Object(bs.objectKey(key)).NewWriter(ctx)
	if _, err := io.CopyN(w, value, size); err != nil {
		_ = w.Close()
		return false, herr.InvalidData.Wrap(err, key)
	}
	if err := w.Close(); err != nil {
		return false, herr.Transient.Wrap(err, key)
	}
	return existed == Present, nil
}

func (bs *GCSBlobstore) IsPresent(ctx context.Context, key string) (Presence, error) {
	_, err := bs.bucket.Object(bs.objectKey(key)).Attrs(ctx)
	if err == nil {
		return Present, nil
	}
	if err == storage.ErrObjectNotExist {
		return Absent, nil
	}
	return Unsure, herr.Transient.Wrap(err, key)
}

func (bs *GCSBlobstore) Unlink(ctx context.Context, key string) error {
	err := bs.bucket.Object(bs.objectKey(key)).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return herr.Transient.Wrap(err, key)
	}
	return nil
}

func (bs *GCSBlobstore) Copy(ctx context.Context, srcKey, dstKey string) error {
	src := bs.bucket.Object(bs.objectKey(srcKey))
	dst := bs.bucket.Object(bs.objectKey(dstKey))
	_, err := dst.CopierFrom(src).Run(ctx)
	if err != nil {
		return herr.Transient.Wrap(err, srcKey)
	}
	return nil
}

func (bs *GCSBlobstore) Enumerate(ctx context.Context, rng EnumerateRange) (EnumerateResult, error) {
	it := bs.bucket.Objects(ctx, &storage.Query{Prefix: bs.objectKey(rng.Prefix)})

	var keys []string
	limit := rng.Limit
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return EnumerateResult{}, herr.Transient.Wrap(err, rng.Prefix)
		}
		keys = append(keys, attrs.Name[len(bs.prefix):])
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	return EnumerateResult{Keys: keys}, nil
}
