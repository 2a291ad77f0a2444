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
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randBytes(size int) []byte {
	b := make([]byte, size)
	_, _ = rand.Read(b)
	return b
}

func newBlobstoreFixtures(t *testing.T) map[string]Blobstore {
	return map[string]Blobstore{
		"inmem": NewInMemoryBlobstore("ns"),
		"local": NewLocalBlobstore(t.TempDir()),
	}
}

func TestPutAndGetBack(t *testing.T) {
	for name, bs := range newBlobstoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "k-" + uuid.NewString()
			data := randBytes(64)

			_, err := PutBytes(ctx, bs, key, data)
			require.NoError(t, err)

			got, err := GetBytes(ctx, bs, key)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	for name, bs := range newBlobstoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			got, err := GetBytes(context.Background(), bs, "missing-"+uuid.NewString())
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestIsPresent(t *testing.T) {
	for name, bs := range newBlobstoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "k-" + uuid.NewString()

			p, err := bs.IsPresent(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, Absent, p)

			_, err = PutBytes(ctx, bs, key, []byte("v"))
			require.NoError(t, err)

			p, err = bs.IsPresent(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, Present, p)
		})
	}
}

func TestUnlink(t *testing.T) {
	for name, bs := range newBlobstoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "k-" + uuid.NewString()
			_, err := PutBytes(ctx, bs, key, []byte("v"))
			require.NoError(t, err)

			require.NoError(t, bs.Unlink(ctx, key))

			p, err := bs.IsPresent(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, Absent, p)
		})
	}
}

func TestCopy(t *testing.T) {
	for name, bs := range newBlobstoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			src, dst := "src-"+uuid.NewString(), "dst-"+uuid.NewString()
			data := randBytes(32)

			_, err := PutBytes(ctx, bs, src, data)
			require.NoError(t, err)
			require.NoError(t, bs.Copy(ctx, src, dst))

			got, err := GetBytes(ctx, bs, dst)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestEnumerate(t *testing.T) {
	for name, bs := range newBlobstoreFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			prefix := "enum-" + uuid.NewString() + "-"
			for i := 0; i < 5; i++ {
				_, err := PutBytes(ctx, bs, prefix+string(rune('a'+i)), []byte("v"))
				require.NoError(t, err)
			}

			res, err := bs.Enumerate(ctx, EnumerateRange{Prefix: prefix})
			require.NoError(t, err)
			assert.Len(t, res.Keys, 5)
		})
	}
}

func TestIfAbsentPolicyRejectsOverwrite(t *testing.T) {
	ctx := context.Background()
	bs := NewInMemoryBlobstore("ns").WithPolicy(IfAbsent)
	key := "k"

	_, err := PutBytes(ctx, bs, key, []byte("v1"))
	require.NoError(t, err)

	_, err = PutBytes(ctx, bs, key, []byte("v2"))
	assert.Error(t, err)
}
