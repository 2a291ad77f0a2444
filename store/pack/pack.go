// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package pack implements the pack envelope layer (§4.4): a per-object
// compression wrapper around any blobstore.Blobstore, plus a pack-file
// mode that lets several logical blobs share one physical payload via a
// single delta base.
package pack

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/dolthub/gozstd"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/forgehub/scmcore/store/blobstore"
	"github.com/forgehub/scmcore/store/herr"
)

// KeySuffix is appended to every outer key before it is stored, so a
// pack-wrapped store never collides with an unwrapped use of the same
// inner blobstore (§4.4).
const KeySuffix = ".pack"

// Codec selects how an individual envelope's payload is compressed.
type Codec byte

const (
	Raw Codec = iota
	ZstdIndividual
	// SnappyIndividual trades zstd's better ratio for snappy's much
	// cheaper decompress cost; a deployer picks it for read-hot packs
	// where CPU, not storage, is the bottleneck (see DESIGN.md).
	SnappyIndividual
)

// Store wraps an inner blobstore.Blobstore with the pack envelope.
type Store struct {
	inner blobstore.Blobstore
	codec Codec
	level int
}

var _ blobstore.Blobstore = (*Store)(nil)

// DefaultLevel mirrors zstd's own default compression level.
const DefaultLevel = 3

func New(inner blobstore.Blobstore, codec Codec, level int) *Store {
	if level <= 0 {
		level = DefaultLevel
	}
	return &Store{inner: inner, codec: codec, level: level}
}

func outerKey(key string) string {
	return key + KeySuffix
}

func stripSuffix(key string) (string, bool) {
	if len(key) <= len(KeySuffix) || key[len(key)-len(KeySuffix):] != KeySuffix {
		return "", false
	}
	return key[:len(key)-len(KeySuffix)], true
}

// envelope wire format: [codec byte][payload...]
func encodeEnvelope(codec Codec, level int, raw []byte) []byte {
	var payload []byte
	switch codec {
	case ZstdIndividual:
		payload = gozstd.CompressLevel(nil, raw, level)
	case SnappyIndividual:
		payload = snappy.Encode(nil, raw)
	default:
		payload = raw
	}
	out := make([]byte, 1+len(payload))
	out[0] = byte(codec)
	copy(out[1:], payload)
	return out
}

func decodeEnvelope(data []byte) ([]byte, Codec, error) {
	if len(data) < 1 {
		return nil, Raw, herr.InvalidData.New("empty pack envelope")
	}
	codec := Codec(data[0])
	payload := data[1:]
	switch codec {
	case ZstdIndividual:
		raw, err := gozstd.Decompress(nil, payload)
		if err != nil {
			return nil, codec, herr.InvalidData.Wrap(err, "zstd decompress")
		}
		return raw, codec, nil
	case SnappyIndividual:
		raw, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, codec, herr.InvalidData.Wrap(err, "snappy decompress")
		}
		return raw, codec, nil
	case Raw:
		return payload, codec, nil
	default:
		return nil, codec, herr.InvalidData.New("unknown pack codec")
	}
}

func (s *Store) Get(ctx context.Context, key string) (*blobstore.BlobData, error) {
	bd, err := s.inner.Get(ctx, outerKey(key))
	if err != nil {
		return nil, errors.Wrapf(err, "pack: reading envelope for %q", key)
	}
	if bd == nil {
		return nil, nil
	}
	raw, _, err := decodeEnvelope(bd.Bytes)
	if err != nil {
		return nil, errors.Wrapf(err, "pack: decoding envelope for %q", key)
	}
	// §4.4: Individual-mode get reports the compressed on-disk size as
	// metadata, not the decompressed length.
	return &blobstore.BlobData{Bytes: raw, Metadata: blobstore.Metadata{Size: int64(len(bd.Bytes))}}, nil
}

func (s *Store) Put(ctx context.Context, key string, size int64, value io.Reader) (bool, error) {
	raw := make([]byte, size)
	if _, err := io.ReadFull(value, raw); err != nil {
		return false, herr.InvalidData.Wrap(err, key)
	}
	env := encodeEnvelope(s.codec, s.level, raw)
	ok, err := s.inner.Put(ctx, outerKey(key), int64(len(env)), bytes.NewReader(env))
	if err != nil {
		return ok, errors.Wrapf(err, "pack: writing envelope for %q", key)
	}
	return ok, nil
}

func (s *Store) IsPresent(ctx context.Context, key string) (blobstore.Presence, error) {
	return s.inner.IsPresent(ctx, outerKey(key))
}

func (s *Store) Unlink(ctx context.Context, key string) error {
	return s.inner.Unlink(ctx, outerKey(key))
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	return s.inner.Copy(ctx, outerKey(srcKey), outerKey(dstKey))
}

func (s *Store) Enumerate(ctx context.Context, rng blobstore.EnumerateRange) (blobstore.EnumerateResult, error) {
	inner, err := s.inner.Enumerate(ctx, blobstore.EnumerateRange{
		Prefix: rng.Prefix,
		Token:  rng.Token,
		Limit:  rng.Limit,
	})
	if err != nil {
		return blobstore.EnumerateResult{}, err
	}
	keys := make([]string, 0, len(inner.Keys))
	for _, k := range inner.Keys {
		if stripped, ok := stripSuffix(k); ok {
			keys = append(keys, stripped)
		}
	}
	return blobstore.EnumerateResult{Keys: keys, NextToken: inner.NextToken}, nil
}

// appendUvarint appends v to buf in uvarint encoding; used by the
// pack-file encoder for its length prefixes.
func appendUvarint(buf []byte, v uint64) []byte {
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, v)
	return append(buf, tmp[:n]...)
}
