// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package pack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehub/scmcore/store/blobstore"
)

func TestIndividualRawRoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewInMemoryBlobstore("ns")
	s := New(inner, Raw, 0)

	_, err := blobstore.PutBytes(ctx, s, "k", []byte("hello world"))
	require.NoError(t, err)

	got, err := blobstore.GetBytes(ctx, s, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)
}

func TestIndividualZstdRoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewInMemoryBlobstore("ns")
	s := New(inner, ZstdIndividual, 3)

	data := []byte("the quick brown fox jumps over the lazy dog, repeated, repeated, repeated")
	_, err := blobstore.PutBytes(ctx, s, "k", data)
	require.NoError(t, err)

	got, err := blobstore.GetBytes(ctx, s, "k")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestIndividualSnappyRoundTrip(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewInMemoryBlobstore("ns")
	s := New(inner, SnappyIndividual, 0)

	data := []byte("the quick brown fox jumps over the lazy dog, repeated, repeated, repeated")
	_, err := blobstore.PutBytes(ctx, s, "k", data)
	require.NoError(t, err)

	got, err := blobstore.GetBytes(ctx, s, "k")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCompressionLevelDoesNotAffectIdentity(t *testing.T) {
	ctx := context.Background()
	inner1 := blobstore.NewInMemoryBlobstore("ns1")
	inner2 := blobstore.NewInMemoryBlobstore("ns2")
	data := []byte("identical payload identical payload identical payload")

	s1 := New(inner1, ZstdIndividual, 1)
	s2 := New(inner2, ZstdIndividual, 19)

	_, err := blobstore.PutBytes(ctx, s1, "k", data)
	require.NoError(t, err)
	_, err = blobstore.PutBytes(ctx, s2, "k", data)
	require.NoError(t, err)

	got1, err := blobstore.GetBytes(ctx, s1, "k")
	require.NoError(t, err)
	got2, err := blobstore.GetBytes(ctx, s2, "k")
	require.NoError(t, err)
	assert.Equal(t, got1, got2)
}

func TestEnumerateStripsSuffix(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewInMemoryBlobstore("ns")
	s := New(inner, Raw, 0)

	_, err := blobstore.PutBytes(ctx, s, "a", []byte("1"))
	require.NoError(t, err)
	_, err = blobstore.PutBytes(ctx, s, "b", []byte("2"))
	require.NoError(t, err)

	res, err := s.Enumerate(ctx, blobstore.EnumerateRange{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Keys)
}

func TestPackFileRoundTripAndUnlinksTemp(t *testing.T) {
	ctx := context.Background()
	inner := blobstore.NewInMemoryBlobstore("ns")
	packer := NewPacker(inner)

	blobs := map[string][]byte{
		"base":  []byte("aaaaaaaaaaaaaaaaaaaa"),
		"child": []byte("aaaaaaaaaaaaaaaaaaab"),
	}
	require.NoError(t, packer.WritePack(ctx, "tmp-pack-1", blobs))

	got, err := packer.ReadPackedBlob(ctx, "base", "base")
	require.NoError(t, err)
	assert.Equal(t, blobs["base"], got)

	got, err = packer.ReadPackedBlob(ctx, "base", "child")
	require.NoError(t, err)
	assert.Equal(t, blobs["child"], got)

	present, err := inner.IsPresent(ctx, outerKey("tmp-pack-1"))
	require.NoError(t, err)
	assert.Equal(t, blobstore.Absent, present, "temporary pack key must be unlinked after linking")
}

func TestByteDiffRoundTrip(t *testing.T) {
	base := []byte("0123456789")
	raw := []byte("0123456780")
	diff := byteDiff(raw, base)
	assert.Equal(t, raw, byteUndiff(diff, base))
}
