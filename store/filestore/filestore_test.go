// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package filestore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehub/scmcore/store/blobstore"
	contenthash "github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/serial"
)

// TestChunkedFoobarScenario mirrors seed scenario S5.
func TestChunkedFoobarScenario(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 3})

	cm, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(6)}, bytes.NewReader([]byte("foobar")))
	require.NoError(t, err)

	data, err := blobstore.GetBytes(ctx, bs, contentKey(cm.ContentId))
	require.NoError(t, err)
	fc, err := serial.DecodeFileContents(data)
	require.NoError(t, err)
	require.Equal(t, serial.TagChunked, fc.Tag)
	require.Len(t, fc.Chunks, 2)
	assert.Equal(t, contenthash.ContentIdOf([]byte("foo")), fc.Chunks[0].ContentId)
	assert.Equal(t, contenthash.ContentIdOf([]byte("bar")), fc.Chunks[1].ContentId)

	got, err := s.Fetch(ctx, FetchKey{Kind: KeyContentId, Value: cm.ContentId.String()}, nil, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), got)

	got, err = s.Fetch(ctx, FetchKey{Kind: KeyContentId, Value: cm.ContentId.String()}, &ByteRange{Start: 2, End: 5}, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("oba"), got)
}

func TestAllAliasesResolve(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 0})

	cm, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(5)}, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	for _, fk := range []FetchKey{
		{Kind: KeyContentId, Value: cm.ContentId.String()},
		{Kind: KeySha1, Value: hexOf(cm.Sha1[:])},
		{Kind: KeySha256, Value: hexOf(cm.Sha256[:])},
		{Kind: KeyGitSha1, Value: hexOf(cm.GitSha1[:])},
	} {
		got, err := s.Fetch(ctx, fk, nil, FetchOptions{})
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)
	}
}

// TestZeroLengthContentIsSingleEmptyChunk covers B1.
func TestZeroLengthContentIsSingleEmptyChunk(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 4})

	cm1, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(0)}, bytes.NewReader(nil))
	require.NoError(t, err)
	cm2, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(0)}, bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, cm1.ContentId, cm2.ContentId)

	got, err := s.Fetch(ctx, FetchKey{Kind: KeyContentId, Value: cm1.ContentId.String()}, nil, FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestStreamExceedingDeclaredSizeIsRejected covers B2.
func TestStreamExceedingDeclaredSizeIsRejected(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 3})

	_, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(3)}, bytes.NewReader([]byte("toolong")))
	require.Error(t, err)

	present, err := bs.Enumerate(ctx, blobstore.EnumerateRange{Prefix: contentPrefix})
	require.NoError(t, err)
	assert.Empty(t, present.Keys)
}

func TestStreamShorterThanDeclaredSizeIsRejected(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 3})

	_, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(10)}, bytes.NewReader([]byte("short")))
	require.Error(t, err)
}

// TestFetchRangePastEOFClipsToAvailableBytes covers B3.
func TestFetchRangePastEOFClipsToAvailableBytes(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 3})

	cm, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(6)}, bytes.NewReader([]byte("foobar")))
	require.NoError(t, err)

	got, err := s.Fetch(ctx, FetchKey{Kind: KeyContentId, Value: cm.ContentId.String()}, &ByteRange{Start: 4, End: 100}, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("ar"), got)
}

func TestHashMismatchRejectsStoreRequest(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{})

	wrong := contenthash.ContentIdOf([]byte("not the content"))
	_, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(5), ContentId: &wrong}, bytes.NewReader([]byte("hello")))
	require.Error(t, err)
}

// TestRechunkPreservesContentIdAndAliases covers L1 (§4.5.6, §8).
func TestRechunkPreservesContentIdAndAliases(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 3})

	cm, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(6)}, bytes.NewReader([]byte("foobar")))
	require.NoError(t, err)

	require.NoError(t, s.Rechunk(ctx, cm.ContentId, 2))

	got, err := s.Fetch(ctx, FetchKey{Kind: KeyContentId, Value: cm.ContentId.String()}, nil, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), got)

	cm2, err := s.GetMetadata(ctx, FetchKey{Kind: KeyContentId, Value: cm.ContentId.String()})
	require.NoError(t, err)
	assert.Equal(t, cm.ContentId, cm2.ContentId)
	assert.Equal(t, cm.Sha1, cm2.Sha1)
}

func TestExistsReportsPresenceAndAbsence(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{})

	cm, err := s.Store(ctx, StoreRequest{ExpectedSize: ExactSize(3)}, bytes.NewReader([]byte("abc")))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, FetchKey{Kind: KeyContentId, Value: cm.ContentId.String()}, false)
	require.NoError(t, err)
	assert.True(t, ok)

	missing := contenthash.ContentIdOf([]byte("never stored"))
	ok, err = s.Exists(ctx, FetchKey{Kind: KeyContentId, Value: missing.String()}, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownSizeStreamsAndFinalizesAtEOF(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewInMemoryBlobstore("ns")
	s := New(bs, Config{ChunkSize: 4})

	cm, err := s.Store(ctx, StoreRequest{ExpectedSize: UnknownSize()}, bytes.NewReader([]byte("unbounded-input")))
	require.NoError(t, err)
	assert.EqualValues(t, len("unbounded-input"), cm.TotalSize)
}

// TestUnknownSizeMatchesExactSizeHashes checks that the unknown-size
// chunked path's two-pass GitSHA1 (streamed content hashes, then a
// replay over the already-written chunks once the total size is known)
// agrees with the exact-size path, which can hash GitSHA1 inline.
func TestUnknownSizeMatchesExactSizeHashes(t *testing.T) {
	ctx := context.Background()
	content := []byte("foobarbazqux")

	exact := New(blobstore.NewInMemoryBlobstore("ns"), Config{ChunkSize: 4})
	cmExact, err := exact.Store(ctx, StoreRequest{ExpectedSize: ExactSize(uint64(len(content)))}, bytes.NewReader(content))
	require.NoError(t, err)

	unknown := New(blobstore.NewInMemoryBlobstore("ns"), Config{ChunkSize: 4})
	cmUnknown, err := unknown.Store(ctx, StoreRequest{ExpectedSize: UnknownSize()}, bytes.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, cmExact.ContentId, cmUnknown.ContentId)
	assert.Equal(t, cmExact.Sha1, cmUnknown.Sha1)
	assert.Equal(t, cmExact.Sha256, cmUnknown.Sha256)
	assert.Equal(t, cmExact.GitSha1, cmUnknown.GitSha1)
	assert.Equal(t, cmExact.TotalSize, cmUnknown.TotalSize)
}
