// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package hash

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentIdByteLen is the digest length of a ContentId (I1: BLAKE2b-256).
const ContentIdByteLen = 32

// ContentId is the canonical, content-derived identifier of a file's
// bytes: BLAKE2b-256 of the concatenated raw content (invariant I1).
// It is printed as lowercase hex, distinct from Hash's base32 form,
// matching the corpus convention that content addressing uses hex
// (§6.1) while opaque vertex/object hashes use base32.
type ContentId [ContentIdByteLen]byte

// ContentIdOf computes the ContentId of data in one call; streaming
// callers should use NewContentIdHasher instead so that the whole file
// need not be buffered.
func ContentIdOf(data []byte) ContentId {
	return ContentId(blake2b.Sum256(data))
}

// ContentIdHasher is an incremental BLAKE2b-256 state for streaming
// content id computation.
type ContentIdHasher struct {
	inner interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
		Reset()
	}
}

// NewContentIdHasher returns an incremental BLAKE2b-256 state for
// streaming content id computation.
func NewContentIdHasher() *ContentIdHasher {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a bad key, and we pass none.
		panic(err)
	}
	return &ContentIdHasher{h}
}

func (b *ContentIdHasher) Write(p []byte) (int, error) { return b.inner.Write(p) }

func (b *ContentIdHasher) Sum() ContentId {
	var cid ContentId
	copy(cid[:], b.inner.Sum(nil))
	return cid
}

func (c ContentId) String() string {
	return hex.EncodeToString(c[:])
}

func (c ContentId) IsEmpty() bool {
	return c == ContentId{}
}

// ParseContentId decodes a lowercase hex ContentId string.
func ParseContentId(s string) (ContentId, bool) {
	if len(s) != ContentIdByteLen*2 {
		return ContentId{}, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ContentId{}, false
	}
	var c ContentId
	copy(c[:], b)
	return c, true
}

// AliasKind enumerates the secondary content-dependent identifiers
// tracked alongside a ContentId (§3.1 Alias).
type AliasKind uint8

const (
	AliasSHA1 AliasKind = iota
	AliasSHA256
	AliasGitSHA1
)

func (k AliasKind) String() string {
	switch k {
	case AliasSHA1:
		return "sha1"
	case AliasSHA256:
		return "sha256"
	case AliasGitSHA1:
		return "git-sha1"
	default:
		return "unknown"
	}
}

// Prefix returns the stable per-alias-type key prefix used for alias
// pointer objects (§6.1).
func (k AliasKind) Prefix() string {
	return "alias." + k.String() + "."
}
