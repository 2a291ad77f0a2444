// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package pack

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"

	"github.com/forgehub/scmcore/store/blobstore"
	"github.com/forgehub/scmcore/store/herr"
)

// DeltaBlob is one logical blob stored as a byte-diff against a Pack's
// base blob (§4.4, supplement C.3: single delta base, lightweight
// byte-diff rather than a full bsdiff).
type DeltaBlob struct {
	Key  string
	Diff []byte
	Size int
}

// Pack bundles one base blob with zero or more delta-encoded blobs that
// share it, as a single physical payload.
type Pack struct {
	BaseKey  string
	BaseBlob []byte
	Deltas   []DeltaBlob
}

func byteDiff(raw, base []byte) []byte {
	diff := make([]byte, len(raw))
	for i := range raw {
		var b byte
		if i < len(base) {
			b = base[i]
		}
		diff[i] = raw[i] ^ b
	}
	return diff
}

func byteUndiff(diff, base []byte) []byte {
	raw := make([]byte, len(diff))
	for i := range diff {
		var b byte
		if i < len(base) {
			b = base[i]
		}
		raw[i] = diff[i] ^ b
	}
	return raw
}

// BuildPack picks the lexicographically-first key as the base blob and
// deltas the rest against it, mirroring the single-delta-base strategy
// adopted from the source packer.
func BuildPack(blobs map[string][]byte) Pack {
	keys := make([]string, 0, len(blobs))
	for k := range blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	p := Pack{BaseKey: keys[0], BaseBlob: blobs[keys[0]]}
	for _, k := range keys[1:] {
		raw := blobs[k]
		p.Deltas = append(p.Deltas, DeltaBlob{
			Key:  k,
			Diff: byteDiff(raw, p.BaseBlob),
			Size: len(raw),
		})
	}
	return p
}

// Encode serializes a Pack to its physical wire form:
//
//	uvarint(len(base_key)) base_key
//	uvarint(len(base_blob)) base_blob
//	uvarint(delta_count)
//	  per delta: uvarint(len(key)) key, uvarint(size) uvarint(len(diff)) diff
func (p Pack) Encode() []byte {
	var buf []byte
	buf = appendString(buf, p.BaseKey)
	buf = appendBytes(buf, p.BaseBlob)
	buf = appendUvarint(buf, uint64(len(p.Deltas)))
	for _, d := range p.Deltas {
		buf = appendString(buf, d.Key)
		buf = appendUvarint(buf, uint64(d.Size))
		buf = appendBytes(buf, d.Diff)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, herr.InvalidData.Wrap(err, "pack uvarint")
	}
	return v, nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := ioFullRead(r, buf); err != nil {
		return nil, herr.InvalidData.Wrap(err, "pack bytes")
	}
	return buf, nil
}

func ioFullRead(r *bytes.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// DecodePack parses the physical wire form produced by Encode.
func DecodePack(data []byte) (Pack, error) {
	r := bytes.NewReader(data)
	baseKeyB, err := readBytes(r)
	if err != nil {
		return Pack{}, err
	}
	baseBlob, err := readBytes(r)
	if err != nil {
		return Pack{}, err
	}
	count, err := readUvarint(r)
	if err != nil {
		return Pack{}, err
	}
	p := Pack{BaseKey: string(baseKeyB), BaseBlob: baseBlob}
	for i := uint64(0); i < count; i++ {
		keyB, err := readBytes(r)
		if err != nil {
			return Pack{}, err
		}
		size, err := readUvarint(r)
		if err != nil {
			return Pack{}, err
		}
		diff, err := readBytes(r)
		if err != nil {
			return Pack{}, err
		}
		p.Deltas = append(p.Deltas, DeltaBlob{Key: string(keyB), Diff: diff, Size: int(size)})
	}
	return p, nil
}

// Blob reconstructs the original bytes for key, which must be either
// the pack's BaseKey or one of its Deltas.
func (p Pack) Blob(key string) ([]byte, bool) {
	if key == p.BaseKey {
		return p.BaseBlob, true
	}
	for _, d := range p.Deltas {
		if d.Key == key {
			return byteUndiff(d.Diff, p.BaseBlob), true
		}
	}
	return nil, false
}

// Packer writes multi-blob pack files (§4.4 "Pack file" mode) to an
// inner blobstore: it writes the combined pack under a temporary key,
// links every logical key to it via Copy, then Unlinks the temporary so
// the physical pack is kept alive only by its constituent links.
type Packer struct {
	inner blobstore.Blobstore
}

func NewPacker(inner blobstore.Blobstore) *Packer {
	return &Packer{inner: inner}
}

// WritePack builds a Pack from blobs, stores it, and creates one link
// per logical key. tempKey must not collide with any logical key.
func (p *Packer) WritePack(ctx context.Context, tempKey string, blobs map[string][]byte) error {
	if len(blobs) == 0 {
		return nil
	}
	pack := BuildPack(blobs)
	encoded := pack.Encode()

	if _, err := p.inner.Put(ctx, outerKey(tempKey), int64(len(encoded)), bytes.NewReader(encoded)); err != nil {
		return err
	}

	for key := range blobs {
		if err := p.inner.Copy(ctx, outerKey(tempKey), outerKey(key)); err != nil {
			return err
		}
	}

	return p.inner.Unlink(ctx, outerKey(tempKey))
}

// ReadPackedBlob fetches and decodes the physical pack stored at
// packKey (any of its linked logical keys) and extracts logicalKey.
func (p *Packer) ReadPackedBlob(ctx context.Context, packKey, logicalKey string) ([]byte, error) {
	bd, err := p.inner.Get(ctx, outerKey(packKey))
	if err != nil {
		return nil, err
	}
	if bd == nil {
		return nil, herr.NotFound.New(packKey)
	}
	pack, err := DecodePack(bd.Bytes)
	if err != nil {
		return nil, err
	}
	blob, ok := pack.Blob(logicalKey)
	if !ok {
		return nil, herr.NotFound.New(logicalKey)
	}
	return blob, nil
}
