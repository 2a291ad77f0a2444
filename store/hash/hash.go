// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// This file incorporates work covered by the following copyright and
// permission notice:
//
// Copyright 2016 Attic Labs, Inc. All rights reserved.
// Licensed under the Apache License, version 2.0:
// http://www.apache.org/licenses/LICENSE-2.0

// Package hash implements the two identifier families used by the
// storage core: Hash, a 20-byte opaque digest used to name vertices and
// generic objects (§3.1 VertexHash), and ContentId, the 32-byte
// BLAKE2b-256 digest that canonically identifies file contents (§3.1,
// invariant I1).
package hash

import (
	"bytes"
	"crypto/sha512"
	"encoding/base32"
	"fmt"
	"sort"
)

// ByteLen is the number of bytes in a Hash's digest.
const ByteLen = 20

// StringLen is the number of characters in a Hash's base32 string form.
const StringLen = 32 // ByteLen*8/5

var encoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

var emptyHash = Hash{}

// Hash is a 20-byte opaque digest naming a vertex or other generic
// object. It is printed and parsed as a 32-character lowercase base32
// string with no separators or prefix.
type Hash [ByteLen]byte

// Of computes the Hash of data using the same construction as the
// legacy content-store (SHA-512 truncated to 20 bytes); retained for
// objects that predate BLAKE2b-256 ContentId and for VertexHash values
// supplied by callers that only need an opaque, stable digest.
func Of(data []byte) Hash {
	sum := sha512.Sum512(data)
	var h Hash
	copy(h[:], sum[:ByteLen])
	return h
}

// Parse decodes s into a Hash. It panics if s is not a well-formed
// 32-character base32 digest; callers that want a recoverable error
// should use MaybeParse.
func Parse(s string) Hash {
	h, ok := MaybeParse(s)
	if !ok {
		panic("invalid hash: " + s)
	}
	return h
}

// MaybeParse decodes s into a Hash, returning ok=false if s isn't a
// well-formed 32-character base32 digest.
func MaybeParse(s string) (Hash, bool) {
	if len(s) != StringLen {
		return emptyHash, false
	}
	data, err := encoding.DecodeString(s)
	if err != nil || len(data) != ByteLen {
		return emptyHash, false
	}
	var h Hash
	copy(h[:], data)
	return h, true
}

// String renders h as a 32-character lowercase base32 digest.
func (h Hash) String() string {
	return encoding.EncodeToString(h[:])
}

// IsEmpty reports whether h is the zero Hash.
func (h Hash) IsEmpty() bool {
	return h == emptyHash
}

// Compare orders hashes bytewise; it is consistent with Less.
func (h Hash) Compare(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// Less reports whether h sorts before other.
func (h Hash) Less(other Hash) bool {
	return h.Compare(other) < 0
}

// Sort orders hs in place, ascending.
func Sort(hs []Hash) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Less(hs[j]) })
}

// HashSlice is a []Hash that implements sort.Interface in Less order.
type HashSlice []Hash

func (hs HashSlice) Len() int           { return len(hs) }
func (hs HashSlice) Less(i, j int) bool { return hs[i].Less(hs[j]) }
func (hs HashSlice) Swap(i, j int)      { hs[i], hs[j] = hs[j], hs[i] }

// Equals reports whether hs and other hold the same hashes in the same order.
func (hs HashSlice) Equals(other HashSlice) bool {
	if len(hs) != len(other) {
		return false
	}
	for i := range hs {
		if hs[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether h's base32 string form starts with prefix.
func (h Hash) HasPrefix(prefix string) bool {
	s := h.String()
	return len(prefix) <= len(s) && s[:len(prefix)] == prefix
}

// MarshalText renders h as its base32 string form, so JSON and other
// text-based encodings (the resolver wire protocol, in particular)
// carry it the same way String does rather than as a raw byte array.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses the base32 string form produced by MarshalText.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, ok := MaybeParse(string(text))
	if !ok {
		return fmt.Errorf("invalid hash: %s", text)
	}
	*h = parsed
	return nil
}
