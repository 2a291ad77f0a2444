// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehub/scmcore/store/hash"
)

func TestFileContentsBytesRoundTrip(t *testing.T) {
	fc := FileContents{Tag: TagBytes, Bytes: []byte("hello")}
	decoded, err := DecodeFileContents(EncodeFileContents(fc))
	require.NoError(t, err)
	assert.Equal(t, fc, decoded)
}

func TestFileContentsChunkedRoundTrip(t *testing.T) {
	fc := FileContents{
		Tag:  TagChunked,
		Size: 6,
		Chunks: []ChunkRef{
			{ContentId: hash.ContentIdOf([]byte("foo")), Size: 3},
			{ContentId: hash.ContentIdOf([]byte("bar")), Size: 3},
		},
	}
	decoded, err := DecodeFileContents(EncodeFileContents(fc))
	require.NoError(t, err)
	assert.Equal(t, fc, decoded)
}

func TestFileContentsEmptyBytes(t *testing.T) {
	fc := FileContents{Tag: TagBytes, Bytes: []byte{}}
	decoded, err := DecodeFileContents(EncodeFileContents(fc))
	require.NoError(t, err)
	assert.Empty(t, decoded.Bytes)
}

func TestDecodeFileContentsRejectsUnknownTag(t *testing.T) {
	_, err := DecodeFileContents([]byte{0x7f})
	assert.Error(t, err)
}

func TestContentMetadataRoundTrip(t *testing.T) {
	cm := ContentMetadata{
		ContentId: hash.ContentIdOf([]byte("payload")),
		TotalSize: 7,
	}
	copy(cm.Sha1[:], []byte("01234567890123456789"))
	copy(cm.Sha256[:], []byte("0123456789012345678901234567890"))
	copy(cm.GitSha1[:], []byte("abcdefghijklmnopqrst"))

	decoded, err := DecodeContentMetadata(EncodeContentMetadata(cm))
	require.NoError(t, err)
	assert.Equal(t, cm, decoded)
}

func TestDecodeContentMetadataRejectsBadLength(t *testing.T) {
	_, err := DecodeContentMetadata([]byte{1, 2, 3})
	assert.Error(t, err)
}
