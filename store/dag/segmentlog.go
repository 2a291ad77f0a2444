// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package dag

import (
	"context"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/forgehub/scmcore/store/dag/iddag"
	"github.com/forgehub/scmcore/store/dag/idmap"
	"github.com/forgehub/scmcore/store/herr"
)

var segmentBucket = []byte("segment_log")

// SegmentLog is the append-only on-disk record of flat segments
// (§6.5): `{level, low, high, parents, flags}`. Level 0 entries
// partition ids exactly once per group; this implementation stores
// only level 0 (flat) segments, since higher levels are a derivable
// read-side optimization the segment algebra does not require for
// correctness.
type SegmentLog struct {
	db  *bolt.DB
	seq uint64
}

func OpenSegmentLog(path string) (*SegmentLog, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, herr.Transient.Wrap(err, path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(segmentBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, herr.Transient.Wrap(err, path)
	}
	return &SegmentLog{db: db}, nil
}

func (l *SegmentLog) Close() error { return l.db.Close() }

func encodeSegmentRecord(level uint8, s iddag.Segment) []byte {
	buf := make([]byte, 0, 32+8*len(s.Parents))
	buf = append(buf, level)
	buf = appendUint64(buf, uint64(s.Low))
	buf = appendUint64(buf, uint64(s.High))
	buf = append(buf, byte(s.Flags))
	buf = appendUint64(buf, uint64(len(s.Parents)))
	for _, p := range s.Parents {
		buf = appendUint64(buf, uint64(p))
	}
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Append writes one record per segment to the log, in order. Entries
// are never rewritten; a crash mid-append leaves a prefix of valid
// records with no partial trailing one visible, because bbolt commits
// the whole batch atomically.
func (l *SegmentLog) Append(ctx context.Context, segments []iddag.Segment) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(segmentBucket)
		for _, s := range segments {
			l.seq++
			key := []byte(fmt.Sprintf("%020d", l.seq))
			if err := b.Put(key, encodeSegmentRecord(0, s)); err != nil {
				return herr.Transient.Wrap(err, "segment log append")
			}
		}
		return nil
	})
}

// ReadAll decodes every record in the log, in append order.
func (l *SegmentLog) ReadAll() ([]iddag.Segment, error) {
	var out []iddag.Segment
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(segmentBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			seg, err := decodeSegmentRecord(v)
			if err != nil {
				return err
			}
			out = append(out, seg)
		}
		return nil
	})
	return out, err
}

func decodeSegmentRecord(data []byte) (iddag.Segment, error) {
	if len(data) < 1+8+8+1+8 {
		return iddag.Segment{}, herr.InvalidData.New("segment record too short")
	}
	off := 1 // skip level
	low := binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	high := binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	flags := data[off]
	off++
	count := binary.BigEndian.Uint64(data[off : off+8])
	off += 8

	parents := make([]idmap.Id, count)
	for i := uint64(0); i < count; i++ {
		if len(data) < off+8 {
			return iddag.Segment{}, herr.InvalidData.New("segment record truncated parents")
		}
		parents[i] = idmap.Id(binary.BigEndian.Uint64(data[off : off+8]))
		off += 8
	}

	return iddag.Segment{
		Low:     idmap.Id(low),
		High:    idmap.Id(high),
		Parents: parents,
		Flags:   iddag.Flags(flags),
	}, nil
}
