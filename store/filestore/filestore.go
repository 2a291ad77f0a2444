// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package filestore implements content-addressed chunked file storage
// (§4.5): an exact-size streaming store, SHA1/SHA256/GitSHA1 aliases
// alongside the canonical BLAKE2b-256 ContentId, and fetch/rechunk
// operations over a blobstore.Blobstore.
package filestore

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	contenthash "github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/herr"

	"github.com/forgehub/scmcore/store/blobstore"
	"github.com/forgehub/scmcore/store/serial"
)

// FetchKey is the canonical lookup key accepted by GetMetadata/Fetch
// (supplement C.1): any of the tracked aliases, or the ContentId
// itself.
type FetchKey struct {
	Kind  FetchKind
	Value string // hex
}

type FetchKind int

const (
	KeyContentId FetchKind = iota
	KeySha1
	KeySha256
	KeyGitSha1
)

// SizeHint tells Store how much data to expect (supplement C.2). Exact
// enables the exact-size streaming contract of §4.5.1, letting GitSHA1
// hashing start before the upload finishes; Unknown still streams in
// ChunkSize buffers but can only finalize TotalSize (and so GitSHA1)
// once the upload hits EOF.
type SizeHint struct {
	Exact bool
	Size  uint64 // valid when Exact
}

func ExactSize(n uint64) SizeHint { return SizeHint{Exact: true, Size: n} }
func UnknownSize() SizeHint       { return SizeHint{Exact: false} }

// StoreRequest lets a caller pre-commit to expected hash values
// (§4.5.3); finalization fails with HashMismatch if computed values
// disagree with any asserted one.
type StoreRequest struct {
	ExpectedSize SizeHint
	ContentId    *contenthash.ContentId
	Sha1         *[20]byte
	Sha256       *[32]byte
	GitSha1      *[20]byte
}

// FetchOptions controls Fetch's streaming behavior.
type FetchOptions struct {
	// PrefetchDepth is the batch size of the chunk fetch loop
	// (supplement C.5); 0 uses DefaultPrefetchDepth. Chunks are still
	// read one at a time, and no chunk is read ahead of the consumer.
	PrefetchDepth int
}

// DefaultPrefetchDepth is used when FetchOptions.PrefetchDepth is unset.
const DefaultPrefetchDepth = 4

// Config parameterizes a Store.
type Config struct {
	// ChunkSize is the target chunk length (§4.5.1). If zero, content
	// is never split regardless of size.
	ChunkSize int
}

// Store is the content-addressed filestore.
type Store struct {
	bs     blobstore.Blobstore
	config Config
}

func New(bs blobstore.Blobstore, config Config) *Store {
	return &Store{bs: bs, config: config}
}

const (
	contentPrefix  = "content."
	metaPrefix     = "meta."
	chunkPrefix    = "chunk."
)

func contentKey(id contenthash.ContentId) string { return contentPrefix + id.String() }
func metaKey(id contenthash.ContentId) string     { return metaPrefix + id.String() }
func chunkKey(id contenthash.ContentId) string    { return chunkPrefix + id.String() }

func aliasKey(kind contenthash.AliasKind, hexDigest string) string {
	return kind.Prefix() + hexDigest
}

// hashState bundles the incremental hashers run while bytes flow
// (§4.5.2): ContentId (BLAKE2b-256), SHA1, SHA256, and GitSHA1 (SHA1 of
// the git "blob {N}\0" prefix followed by the content).
type hashState struct {
	contentId *contenthash.ContentIdHasher
	sha1      hash.Hash
	sha256    hash.Hash
	gitSha1   hash.Hash
}

func newHashState(totalSize uint64) *hashState {
	git := sha1.New()
	_, _ = git.Write([]byte(fmt.Sprintf("blob %d\x00", totalSize)))
	return &hashState{
		contentId: contenthash.NewContentIdHasher(),
		sha1:      sha1.New(),
		sha256:    sha256.New(),
		gitSha1:   git,
	}
}

func (h *hashState) write(p []byte) {
	h.contentId.Write(p)
	h.sha1.Write(p)
	h.sha256.Write(p)
	h.gitSha1.Write(p)
}

func (h *hashState) metadata(totalSize uint64) serial.ContentMetadata {
	cm := serial.ContentMetadata{ContentId: h.contentId.Sum(), TotalSize: totalSize}
	copy(cm.Sha1[:], h.sha1.Sum(nil))
	copy(cm.Sha256[:], h.sha256.Sum(nil))
	copy(cm.GitSha1[:], h.gitSha1.Sum(nil))
	return cm
}

// hashTriple is hashState without GitSHA1, used while a chunked upload
// of unknown total size is still streaming in: GitSHA1's "blob {N}\0"
// prefix needs the total size, which isn't known until EOF.
type hashTriple struct {
	contentId *contenthash.ContentIdHasher
	sha1      hash.Hash
	sha256    hash.Hash
}

func newHashTriple() *hashTriple {
	return &hashTriple{contentId: contenthash.NewContentIdHasher(), sha1: sha1.New(), sha256: sha256.New()}
}

func (h *hashTriple) write(p []byte) {
	h.contentId.Write(p)
	h.sha1.Write(p)
	h.sha256.Write(p)
}

// Store consumes r per req's size hint, computes its hashes, splits it
// into chunks if it exceeds ChunkSize, and finalizes the FileContents,
// ContentMetadata, and alias pointer objects (§4.5.1, §4.5.4). Content
// that needs chunking is never buffered whole: each step reads,
// hashes, and writes at most one ChunkSize-sized buffer before reading
// the next, so memory use stays independent of the upload's total size
// (§9).
func (s *Store) Store(ctx context.Context, req StoreRequest, r io.Reader) (*serial.ContentMetadata, error) {
	chunkSize := s.config.ChunkSize
	switch {
	case chunkSize <= 0:
		// Config says content is never split, so there is no chunking
		// decision to stream around: the whole payload is one inline
		// blob regardless of size.
		data, totalSize, err := s.drain(req.ExpectedSize, r)
		if err != nil {
			return nil, err
		}
		return s.storeInline(ctx, req, data, totalSize)
	case req.ExpectedSize.Exact:
		return s.storeExact(ctx, req, r, chunkSize)
	default:
		return s.storeUnknownSize(ctx, req, r, chunkSize)
	}
}

// storeInline hashes and commits data as a single TagBytes object. The
// caller has already established that data is the whole payload and
// is small enough (or, per Config.ChunkSize<=0, required) to be held
// inline. Zero-length data with chunking enabled is instead committed
// as a Chunked object holding one empty chunk (B1).
func (s *Store) storeInline(ctx context.Context, req StoreRequest, data []byte, totalSize uint64) (*serial.ContentMetadata, error) {
	hstate := newHashState(totalSize)
	hstate.write(data)
	cm := hstate.metadata(totalSize)
	fc := serial.FileContents{Tag: serial.TagBytes, Bytes: data}
	if len(data) == 0 && s.config.ChunkSize > 0 {
		chunks, err := s.writeChunks(ctx, nil)
		if err != nil {
			return nil, err
		}
		fc = serial.FileContents{Tag: serial.TagChunked, Size: 0, Chunks: chunks}
	}
	return s.commit(ctx, req, cm, fc)
}

// storeExact streams an exact-size upload whose total is already
// known, so GitSHA1's size-prefixed hash can start immediately. Only
// content exceeding chunkSize is chunked; one chunkSize buffer is read,
// hashed, and written per iteration.
func (s *Store) storeExact(ctx context.Context, req StoreRequest, r io.Reader, chunkSize int) (*serial.ContentMetadata, error) {
	totalSize := req.ExpectedSize.Size
	if totalSize <= uint64(chunkSize) {
		buf := make([]byte, totalSize)
		if _, err := io.ReadFull(r, buf); err != nil && err != io.EOF {
			return nil, herr.InvalidData.Wrap(err, "read exact-size upload")
		}
		if err := checkNoExtra(r); err != nil {
			return nil, err
		}
		return s.storeInline(ctx, req, buf, totalSize)
	}

	hstate := newHashState(totalSize)
	var chunks []serial.ChunkRef
	remaining := totalSize
	buf := make([]byte, chunkSize)
	for remaining > 0 {
		want := uint64(chunkSize)
		if remaining < want {
			want = remaining
		}
		n, err := io.ReadFull(r, buf[:want])
		if err != nil {
			return nil, herr.InvalidData.Wrap(err, "read exact-size upload")
		}
		chunk := buf[:n]
		hstate.write(chunk)
		cid := contenthash.ContentIdOf(chunk)
		if err := s.putChunk(ctx, cid, chunk); err != nil {
			return nil, err
		}
		chunks = append(chunks, serial.ChunkRef{ContentId: cid, Size: uint32(n)})
		remaining -= uint64(n)
	}
	if err := checkNoExtra(r); err != nil {
		return nil, err
	}

	cm := hstate.metadata(totalSize)
	fc := serial.FileContents{Tag: serial.TagChunked, Size: totalSize, Chunks: chunks}
	return s.commit(ctx, req, cm, fc)
}

// readChunkBuf reads one ChunkSize-sized buffer, reporting whether r is
// now exhausted so the caller can tell a full buffer with more data
// behind it from the stream's final, possibly short, buffer.
func readChunkBuf(r io.Reader, buf []byte) (n int, eof bool, err error) {
	n, err = io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, true, nil
	}
	if err != nil {
		return n, false, err
	}
	return n, false, nil
}

// storeUnknownSize streams an upload whose total size isn't known in
// advance. It reads one ChunkSize buffer at a time; if the content
// turns out to fit in a single buffer it is stored inline, otherwise
// each buffer is hashed and written as its own chunk as it arrives, and
// GitSHA1 (whose hash embeds the total size as a prefix) is computed in
// a second pass once the total is known, replaying the already-written
// chunks one at a time rather than holding them all in memory.
func (s *Store) storeUnknownSize(ctx context.Context, req StoreRequest, r io.Reader, chunkSize int) (*serial.ContentMetadata, error) {
	buf := make([]byte, chunkSize)
	n, eof, err := readChunkBuf(r, buf)
	if err != nil {
		return nil, herr.InvalidData.Wrap(err, "read unknown-size upload")
	}
	if !eof {
		// A full first buffer may be the whole stream: peek one byte so
		// that content of exactly ChunkSize bytes is also stored inline.
		var peek [1]byte
		m, perr := io.ReadFull(r, peek[:])
		if perr != nil && perr != io.EOF {
			return nil, herr.InvalidData.Wrap(perr, "read unknown-size upload")
		}
		eof = m == 0
		r = io.MultiReader(bytes.NewReader(peek[:m]), r)
	}
	if eof {
		return s.storeInline(ctx, req, append([]byte(nil), buf[:n]...), uint64(n))
	}

	ht := newHashTriple()
	var chunks []serial.ChunkRef
	var totalSize uint64
	for {
		if n > 0 {
			chunk := buf[:n]
			ht.write(chunk)
			cid := contenthash.ContentIdOf(chunk)
			if err := s.putChunk(ctx, cid, chunk); err != nil {
				return nil, err
			}
			chunks = append(chunks, serial.ChunkRef{ContentId: cid, Size: uint32(n)})
			totalSize += uint64(n)
		}
		if eof {
			break
		}
		n, eof, err = readChunkBuf(r, buf)
		if err != nil {
			return nil, herr.InvalidData.Wrap(err, "read unknown-size upload")
		}
	}

	gitSha1, err := s.replayGitSha1(ctx, totalSize, chunks)
	if err != nil {
		return nil, err
	}
	cm := serial.ContentMetadata{ContentId: ht.contentId.Sum(), TotalSize: totalSize, GitSha1: gitSha1}
	copy(cm.Sha1[:], ht.sha1.Sum(nil))
	copy(cm.Sha256[:], ht.sha256.Sum(nil))

	fc := serial.FileContents{Tag: serial.TagChunked, Size: totalSize, Chunks: chunks}
	return s.commit(ctx, req, cm, fc)
}

// replayGitSha1 computes the GitSHA1 digest of a chunked upload whose
// total size is now known, by re-reading each already-written chunk in
// order and feeding it through sha1 after the "blob {N}\0" prefix: one
// chunk's worth of memory at a time, never the whole content.
func (s *Store) replayGitSha1(ctx context.Context, totalSize uint64, chunks []serial.ChunkRef) ([20]byte, error) {
	var out [20]byte
	h := sha1.New()
	_, _ = h.Write([]byte(fmt.Sprintf("blob %d\x00", totalSize)))
	for _, c := range chunks {
		data, err := blobstore.GetBytes(ctx, s.bs, chunkKey(c.ContentId))
		if err != nil {
			return out, err
		}
		if data == nil {
			return out, herr.NotFound.New(c.ContentId.String())
		}
		h.Write(data)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

func checkNoExtra(r io.Reader) error {
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return herr.InvalidData.New("stream exceeds declared size")
	}
	return nil
}

// commit persists fc and cm, and the three alias pointers derived from
// cm, once the caller has already produced them (§4.5.1, §4.5.4).
func (s *Store) commit(ctx context.Context, req StoreRequest, cm serial.ContentMetadata, fc serial.FileContents) (*serial.ContentMetadata, error) {
	if err := verifyRequest(req, cm); err != nil {
		return nil, err
	}

	// Step 1: FileContents must land before any alias observer can
	// follow a pointer (§4.5.4).
	if _, err := blobstore.PutBytes(ctx, s.bs, contentKey(cm.ContentId), serial.EncodeFileContents(fc)); err != nil {
		return nil, errors.Wrap(err, "writing file contents object")
	}

	// Steps 2 and 3 run concurrently: the metadata object and the three
	// alias pointers all depend only on cm, not on each other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := blobstore.PutBytes(gctx, s.bs, metaKey(cm.ContentId), serial.EncodeContentMetadata(cm))
		return err
	})
	g.Go(func() error {
		_, err := blobstore.PutBytes(gctx, s.bs, aliasKey(contenthash.AliasSHA1, hexOf(cm.Sha1[:])), cm.ContentId[:])
		return err
	})
	g.Go(func() error {
		_, err := blobstore.PutBytes(gctx, s.bs, aliasKey(contenthash.AliasSHA256, hexOf(cm.Sha256[:])), cm.ContentId[:])
		return err
	})
	g.Go(func() error {
		_, err := blobstore.PutBytes(gctx, s.bs, aliasKey(contenthash.AliasGitSHA1, hexOf(cm.GitSha1[:])), cm.ContentId[:])
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "writing content metadata and aliases")
	}

	return &cm, nil
}

func (s *Store) writeChunks(ctx context.Context, data []byte) ([]serial.ChunkRef, error) {
	chunkSize := s.config.ChunkSize
	var chunks []serial.ChunkRef
	if len(data) == 0 {
		cid := contenthash.ContentIdOf(nil)
		if err := s.putChunk(ctx, cid, nil); err != nil {
			return nil, err
		}
		return []serial.ChunkRef{{ContentId: cid, Size: 0}}, nil
	}
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		cid := contenthash.ContentIdOf(chunk)
		if err := s.putChunk(ctx, cid, chunk); err != nil {
			return nil, err
		}
		chunks = append(chunks, serial.ChunkRef{ContentId: cid, Size: uint32(len(chunk))})
	}
	return chunks, nil
}

func (s *Store) putChunk(ctx context.Context, cid contenthash.ContentId, data []byte) error {
	_, err := blobstore.PutBytes(ctx, s.bs, chunkKey(cid), data)
	return err
}

// drain reads r according to hint, enforcing the exact-size contract
// of §4.5.1: the stream must not exceed N bytes, and must not fall
// short. Both violations abort before anything is written. Only used
// when Config.ChunkSize<=0, since chunking is disabled entirely and
// the whole payload must become one inline object regardless of size
// — there is no streaming decision to make, unlike storeExact/
// storeUnknownSize.
func (s *Store) drain(hint SizeHint, r io.Reader) ([]byte, uint64, error) {
	if !hint.Exact {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, 0, herr.InvalidData.Wrap(err, "read unknown-size upload")
		}
		return data, uint64(len(data)), nil
	}

	buf := make([]byte, hint.Size)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, 0, herr.InvalidData.Wrap(err, "read exact-size upload")
	}
	if uint64(n) != hint.Size {
		return nil, 0, herr.InvalidData.New("fewer bytes than declared size")
	}
	var extra [1]byte
	if n2, _ := r.Read(extra[:]); n2 > 0 {
		return nil, 0, herr.InvalidData.New("stream exceeds declared size")
	}
	return buf, hint.Size, nil
}

func verifyRequest(req StoreRequest, cm serial.ContentMetadata) error {
	if req.ContentId != nil && *req.ContentId != cm.ContentId {
		return herr.HashMismatch.New("content_id")
	}
	if req.Sha1 != nil && *req.Sha1 != cm.Sha1 {
		return herr.HashMismatch.New("sha1")
	}
	if req.Sha256 != nil && *req.Sha256 != cm.Sha256 {
		return herr.HashMismatch.New("sha256")
	}
	if req.GitSha1 != nil && *req.GitSha1 != cm.GitSha1 {
		return herr.HashMismatch.New("git_sha1")
	}
	return nil
}

func hexOf(b []byte) string {
	return fmt.Sprintf("%x", b)
}

// resolve maps a FetchKey to a ContentId, following an alias pointer
// if needed.
func (s *Store) resolve(ctx context.Context, key FetchKey) (contenthash.ContentId, error) {
	if key.Kind == KeyContentId {
		cid, ok := contenthash.ParseContentId(key.Value)
		if !ok {
			return contenthash.ContentId{}, herr.InvalidData.New("malformed content id")
		}
		return cid, nil
	}

	var kind contenthash.AliasKind
	switch key.Kind {
	case KeySha1:
		kind = contenthash.AliasSHA1
	case KeySha256:
		kind = contenthash.AliasSHA256
	case KeyGitSha1:
		kind = contenthash.AliasGitSHA1
	default:
		return contenthash.ContentId{}, herr.InvalidData.New("unknown fetch key kind")
	}

	data, err := blobstore.GetBytes(ctx, s.bs, aliasKey(kind, key.Value))
	if err != nil {
		return contenthash.ContentId{}, err
	}
	if data == nil {
		return contenthash.ContentId{}, herr.NotFound.New(key.Value)
	}
	var cid contenthash.ContentId
	copy(cid[:], data)
	return cid, nil
}

// GetMetadata resolves key to its ContentMetadata (§4.5.5).
func (s *Store) GetMetadata(ctx context.Context, key FetchKey) (*serial.ContentMetadata, error) {
	cid, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := blobstore.GetBytes(ctx, s.bs, metaKey(cid))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, herr.NotFound.New(cid.String())
	}
	cm, err := serial.DecodeContentMetadata(data)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

// ByteRange selects [Start, End) of a file's logical bytes for Fetch.
type ByteRange struct {
	Start, End uint64
}

// Fetch resolves key to its FileContents and returns the requested
// byte range (the whole file if rng is nil), trimming the first/last
// chunk of a Chunked variant to the range boundaries (§4.5.5, B3).
func (s *Store) Fetch(ctx context.Context, key FetchKey, rng *ByteRange, opts FetchOptions) ([]byte, error) {
	cid, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.fetchByContentId(ctx, cid, rng, opts)
}

func (s *Store) fetchByContentId(ctx context.Context, cid contenthash.ContentId, rng *ByteRange, opts FetchOptions) ([]byte, error) {
	data, err := blobstore.GetBytes(ctx, s.bs, contentKey(cid))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, herr.NotFound.New(cid.String())
	}
	fc, err := serial.DecodeFileContents(data)
	if err != nil {
		return nil, err
	}

	switch fc.Tag {
	case serial.TagBytes:
		return clipBytes(fc.Bytes, rng), nil
	case serial.TagChunked:
		return s.fetchChunked(ctx, fc, rng, opts)
	default:
		return nil, herr.InvalidData.New("unknown file contents tag")
	}
}

func clipBytes(data []byte, rng *ByteRange) []byte {
	if rng == nil {
		return data
	}
	start, end := rng.Start, rng.End
	if start > uint64(len(data)) {
		return nil
	}
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	if end < start {
		return nil
	}
	return data[start:end]
}

// fetchChunked reads the chunks overlapping rng in order, one at a
// time, in loop batches of opts.PrefetchDepth (supplement C.5), and
// returns the requested bytes as one buffer. Nothing is read ahead of
// the consumer, and the result is not streamed.
func (s *Store) fetchChunked(ctx context.Context, fc serial.FileContents, rng *ByteRange, opts FetchOptions) ([]byte, error) {
	start, end := uint64(0), fc.Size
	if rng != nil {
		start, end = rng.Start, rng.End
		if end > fc.Size {
			end = fc.Size
		}
		if start > end {
			return nil, nil
		}
	}

	depth := opts.PrefetchDepth
	if depth <= 0 {
		depth = DefaultPrefetchDepth
	}

	var out bytes.Buffer
	offset := uint64(0)
	for i := 0; i < len(fc.Chunks); i += depth {
		batchEnd := i + depth
		if batchEnd > len(fc.Chunks) {
			batchEnd = len(fc.Chunks)
		}
		for j := i; j < batchEnd; j++ {
			c := fc.Chunks[j]
			chunkStart, chunkEnd := offset, offset+uint64(c.Size)
			offset = chunkEnd
			if chunkEnd <= start || chunkStart >= end {
				continue
			}
			data, err := blobstore.GetBytes(ctx, s.bs, chunkKey(c.ContentId))
			if err != nil {
				return nil, err
			}
			if data == nil {
				return nil, herr.NotFound.New(c.ContentId.String())
			}
			lo := uint64(0)
			if start > chunkStart {
				lo = start - chunkStart
			}
			hi := uint64(len(data))
			if end < chunkEnd {
				hi = end - chunkStart
			}
			out.Write(data[lo:hi])
		}
	}
	return out.Bytes(), nil
}

// Exists reports whether key's FileContents object is present. When
// unsureIsMissing is false (the default), an Unsure presence answer is
// surfaced as an error rather than silently treated as either outcome
// (§4.5.5).
func (s *Store) Exists(ctx context.Context, key FetchKey, unsureIsMissing bool) (bool, error) {
	cid, err := s.resolve(ctx, key)
	if err != nil {
		if herr.NotFound.Is(err) {
			return false, nil
		}
		return false, err
	}
	p, err := s.bs.IsPresent(ctx, contentKey(cid))
	if err != nil {
		return false, err
	}
	switch p {
	case blobstore.Present:
		return true, nil
	case blobstore.Absent:
		return false, nil
	default:
		if unsureIsMissing {
			return false, nil
		}
		return false, herr.Transient.New(cid.String())
	}
}

// Rechunk re-runs the store pipeline for an existing ContentId with a
// new chunk size, preserving ContentId and all aliases (§4.5.6, L1).
func (s *Store) Rechunk(ctx context.Context, cid contenthash.ContentId, newChunkSize int) error {
	data, err := s.fetchByContentId(ctx, cid, nil, FetchOptions{})
	if err != nil {
		return err
	}
	rechunked := &Store{bs: s.bs, config: Config{ChunkSize: newChunkSize}}

	var fc serial.FileContents
	if newChunkSize <= 0 || len(data) <= newChunkSize {
		fc = serial.FileContents{Tag: serial.TagBytes, Bytes: data}
	} else {
		chunks, err := rechunked.writeChunks(ctx, data)
		if err != nil {
			return err
		}
		fc = serial.FileContents{Tag: serial.TagChunked, Size: uint64(len(data)), Chunks: chunks}
	}
	_, err = blobstore.PutBytes(ctx, s.bs, contentKey(cid), serial.EncodeFileContents(fc))
	return err
}
