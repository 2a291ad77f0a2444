// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package queue

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/forgehub/scmcore/store/herr"
)

var entriesBucket = []byte("queue_entries")

// BboltQueue is a durable Queue backed by a bbolt file. Primary keys are
// built so that lexicographic bucket order equals chronological order,
// letting Iter page forward with a plain cursor scan; Get(key) does a
// bounded scan over the bucket filtering by Entry.Key, which is
// acceptable at the queue depths a healthy multiplex accumulates
// between scrub passes.
type BboltQueue struct {
	db *bolt.DB
}

var _ Queue = (*BboltQueue)(nil)

func OpenBboltQueue(path string) (*BboltQueue, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, herr.Transient.Wrap(err, path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, herr.Transient.Wrap(err, path)
	}
	return &BboltQueue{db: db}, nil
}

func (q *BboltQueue) Close() error {
	return q.db.Close()
}

func primaryKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%020d|%d|%d|%s", e.Timestamp.UnixNano(), e.MultiplexId, e.BlobstoreId, e.Key))
}

func (q *BboltQueue) AddMany(_ context.Context, entries []Entry) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		for _, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return herr.InvalidData.Wrap(err, e.Key)
			}
			if err := b.Put(primaryKey(e), data); err != nil {
				return herr.Transient.Wrap(err, e.Key)
			}
		}
		return nil
	})
}

func (q *BboltQueue) Get(_ context.Context, key string) ([]Entry, error) {
	var out []Entry
	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return herr.InvalidData.Wrap(err, string(k))
			}
			if e.Key == key {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (q *BboltQueue) Iter(_ context.Context, olderThan time.Time, limit int) ([]Entry, error) {
	var out []Entry
	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return herr.InvalidData.Wrap(err, string(k))
			}
			if e.Timestamp.Before(olderThan) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (q *BboltQueue) Del(_ context.Context, entries []Entry) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		for _, e := range entries {
			if err := b.Delete(primaryKey(e)); err != nil {
				return herr.Transient.Wrap(err, e.Key)
			}
		}
		return nil
	})
}
