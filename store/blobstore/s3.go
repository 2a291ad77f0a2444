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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/forgehub/scmcore/store/herr"
)

// S3Blobstore backs a Blobstore with an S3 bucket. Objects are stored
// under prefix+key; S3's native CopyObject is used instead of the
// generic get-then-put so Copy doesn't round-trip large payloads
// through the caller.
type S3Blobstore struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Blobstore = (*S3Blobstore)(nil)

func NewS3Blobstore(client *s3.Client, bucket, prefix string) *S3Blobstore {
	return &S3Blobstore{client: client, bucket: bucket, prefix: prefix}
}

func (bs *S3Blobstore) objectKey(key string) string {
	return bs.prefix + key
}

func (bs *S3Blobstore) Get(ctx context.Context, key string) (*BlobData, error) {
	out, err := bs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bs.bucket),
		Key:    aws.String(bs.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errorsAs(err, &nsk) {
			return nil, nil
		}
		return nil, herr.Transient.Wrap(err, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, herr.Transient.Wrap(err, key)
	}
	return &BlobData{Bytes: data, Metadata: Metadata{Size: int64(len(data))}}, nil
}

func (bs *S3Blobstore) Put(ctx context.Context, key string, size int64, value io.Reader) (bool, error) {
	existed, err := bs.IsPresent(ctx, key)
	if err != nil {
		return false, err
	}

	_, err = bs.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bs.bucket),
		Key:           aws.String(bs.objectKey(key)),
		Body:          io.LimitReader(value, size),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return false, herr.Transient.Wrap(err, key)
	}
	return existed == Present, nil
}

func (bs *S3Blobstore) IsPresent(ctx context.Context, key string) (Presence, error) {
	_, err := bs.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bs.bucket),
		Key:    aws.String(bs.objectKey(key)),
	})
	if err == nil {
		return Present, nil
	}
	var nf *types.NotFound
	if errorsAs(err, &nf) {
		return Absent, nil
	}
	return Unsure, herr.Transient.Wrap(err, key)
}

func (bs *S3Blobstore) Unlink(ctx context.Context, key string) error {
	_, err := bs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bs.bucket),
		Key:    aws.String(bs.objectKey(key)),
	})
	if err != nil {
		return herr.Transient.Wrap(err, key)
	}
	return nil
}

func (bs *S3Blobstore) Copy(ctx context.Context, srcKey, dstKey string) error {
	src := bs.bucket + "/" + bs.objectKey(srcKey)
	_, err := bs.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bs.bucket),
		CopySource: aws.String(src),
		Key:        aws.String(bs.objectKey(dstKey)),
	})
	if err != nil {
		return herr.Transient.Wrap(err, srcKey)
	}
	return nil
}

func (bs *S3Blobstore) Enumerate(ctx context.Context, rng EnumerateRange) (EnumerateResult, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bs.bucket),
		Prefix:  aws.String(bs.objectKey(rng.Prefix)),
		MaxKeys: aws.Int32(int32(rng.Limit)),
	}
	if rng.Token != "" {
		in.ContinuationToken = aws.String(rng.Token)
	}

	out, err := bs.client.ListObjectsV2(ctx, in)
	if err != nil {
		return EnumerateResult{}, herr.Transient.Wrap(err, rng.Prefix)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, o := range out.Contents {
		keys = append(keys, (*o.Key)[len(bs.prefix):])
	}

	next := ""
	if out.NextContinuationToken != nil {
		next = *out.NextContinuationToken
	}
	return EnumerateResult{Keys: keys, NextToken: next}, nil
}

// errorsAs is a small indirection over errors.As so this file only
// needs one import line changed if the AWS SDK's error types move.
func errorsAs(err error, target interface{}) bool {
	return stdErrorsAs(err, target)
}
