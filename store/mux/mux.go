// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package mux implements the multiplexed blobstore (§4.3): a fan-out
// over several inner Blobstores with at-most-one-replica-success write
// semantics, first-success reads, and a durable write-repair queue for
// replicas that missed a put.
package mux

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/forgehub/scmcore/store/blobstore"
	"github.com/forgehub/scmcore/store/herr"
	"github.com/forgehub/scmcore/store/queue"
)

// Role controls whether a member participates in read fan-out.
type Role int

const (
	// Normal members take part in every read and write.
	Normal Role = iota
	// WriteOnly members are written like Normal members but are only
	// read from as a fallback, once every Normal member has missed.
	WriteOnly
)

// Member is one inner store behind the multiplex.
type Member struct {
	Id    int
	Store blobstore.Blobstore
	Role  Role
}

// Config parameterizes a Mux (§4.3 construction).
type Config struct {
	MultiplexId int
	Members     []Member
	Queue       queue.Queue

	// MinWrites is the number of Normal members that must accept a put
	// for it to resolve Ok.
	MinWrites int

	// ReadQuorum is stored on the Mux, with values below 1 raised to 1.
	// Neither Get nor ScrubGet consults it: Get resolves on the first
	// Some, and ScrubGet always waits for every Normal member.
	ReadQuorum int

	// RepairDeadline bounds how long the detached write-repair
	// continuation waits for straggling inner puts before giving up
	// and queuing them for the scrubber regardless.
	RepairDeadline time.Duration

	// MarkAndRepair, for the scrub variant, copies a value found on
	// some Normal member to any Normal member missing it, inline with
	// the read, in addition to enqueueing a repair entry.
	MarkAndRepair bool

	// Logger receives Put/Get/scrub/repair events. Defaults to
	// logrus.StandardLogger().
	Logger *logrus.Logger
}

// Mux is the multiplexed blobstore.
type Mux struct {
	multiplexId    int
	members        []Member
	normals        []Member
	writeOnly      []Member
	queue          queue.Queue
	minWrites      int
	readQuorum     int
	repairDeadline time.Duration
	markAndRepair  bool
	log            *logrus.Entry

	// recentRepairs dedupes repeated repair-queue enqueues for the same
	// (key, blobstore) pairing seen again within repairDeadline, so a
	// hot key under repeated scrubbing doesn't pile up redundant queue
	// entries for the same straggler between scrub passes.
	recentRepairs *lru.Cache[string, time.Time]
}

var _ blobstore.Blobstore = (*Mux)(nil)

func New(cfg Config) *Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	recent, _ := lru.New[string, time.Time](4096)
	m := &Mux{
		multiplexId:    cfg.MultiplexId,
		members:        cfg.Members,
		queue:          cfg.Queue,
		minWrites:      cfg.MinWrites,
		readQuorum:     cfg.ReadQuorum,
		repairDeadline: cfg.RepairDeadline,
		markAndRepair:  cfg.MarkAndRepair,
		log:            logger.WithField("component", "mux"),
		recentRepairs:  recent,
	}
	if m.repairDeadline <= 0 {
		m.repairDeadline = 30 * time.Second
	}
	if m.readQuorum < 1 {
		m.readQuorum = 1
	}
	for _, mem := range cfg.Members {
		if mem.Role == Normal {
			m.normals = append(m.normals, mem)
		} else {
			m.writeOnly = append(m.writeOnly, mem)
		}
	}
	return m
}

// shouldEnqueueRepair reports whether a repair entry for (key,
// blobstoreId) is worth adding to the queue right now, given what was
// already enqueued recently.
func (m *Mux) shouldEnqueueRepair(key string, blobstoreId int) bool {
	dedupeKey := fmt.Sprintf("%d|%s|%d", m.multiplexId, key, blobstoreId)
	if last, ok := m.recentRepairs.Get(dedupeKey); ok && time.Since(last) < m.repairDeadline {
		return false
	}
	m.recentRepairs.Add(dedupeKey, time.Now())
	return true
}

func readExact(r io.Reader, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, herr.Transient.Wrap(err, "read put payload")
	}
	if int64(n) != size {
		return nil, herr.InvalidData.New("short read: declared size not met")
	}
	var extra [1]byte
	if n2, _ := r.Read(extra[:]); n2 > 0 {
		return nil, herr.InvalidData.New("stream exceeds declared size")
	}
	return buf, nil
}

type putOutcome struct {
	member     Member
	overwrote  bool
	err        error
}

// Put fans the write out to every member concurrently and resolves as
// soon as MinWrites Normal members have accepted it (§4.3.1). Stragglers
// are awaited in a detached goroutine that outlives the call, which
// records a write-repair queue entry for every member that still
// hasn't got the value once its own put context expires.
func (m *Mux) Put(ctx context.Context, key string, size int64, value io.Reader) (bool, error) {
	data, err := readExact(value, size)
	if err != nil {
		return false, err
	}

	results := make(chan putOutcome, len(m.members))
	for _, mem := range m.members {
		mem := mem
		go func() {
			putCtx, cancel := context.WithTimeout(context.Background(), m.repairDeadline)
			defer cancel()
			ow, err := mem.Store.Put(putCtx, key, size, bytes.NewReader(data))
			results <- putOutcome{member: mem, overwrote: ow, err: err}
		}()
	}

	type resolution struct {
		err       error
		overwrote bool
	}
	resolveCh := make(chan resolution, 1)

	go func() {
		var collected []putOutcome
		successNormal, failedNormal := 0, 0
		overwroteAny := false
		resolved := false
		totalNormal := len(m.normals)

		for i := 0; i < len(m.members); i++ {
			r := <-results
			collected = append(collected, r)
			if r.overwrote {
				overwroteAny = true
			}
			if r.member.Role == Normal {
				if r.err == nil {
					successNormal++
				} else {
					failedNormal++
				}
			}
			if !resolved {
				if successNormal >= m.minWrites {
					resolved = true
					resolveCh <- resolution{err: nil, overwrote: overwroteAny}
				} else if totalNormal-failedNormal < m.minWrites {
					resolved = true
					resolveCh <- resolution{err: herr.AllReplicasFailed.New(key)}
				}
			}
		}
		if !resolved {
			resolveCh <- resolution{err: herr.AllReplicasFailed.New(key)}
		}
		m.enqueueRepairs(key, collected)
	}()

	res := <-resolveCh
	if res.err != nil {
		m.log.WithError(res.err).WithField("key", key).Error("put failed to reach min_writes")
	} else {
		m.log.WithField("key", key).Debug("put resolved")
	}
	return res.overwrote, res.err
}

func (m *Mux) enqueueRepairs(key string, collected []putOutcome) {
	if m.queue == nil {
		return
	}
	now := time.Now()
	var entries []queue.Entry
	for _, r := range collected {
		if r.err == nil {
			continue
		}
		if !m.shouldEnqueueRepair(key, r.member.Id) {
			continue
		}
		entries = append(entries, queue.Entry{
			MultiplexId:  m.multiplexId,
			Key:          key,
			BlobstoreId:  r.member.Id,
			Timestamp:    now,
			OperationKey: key,
		})
	}
	if len(entries) == 0 {
		return
	}
	m.log.WithField("key", key).WithField("count", len(entries)).Warn("queuing write-repair entries")
	if err := m.queue.AddMany(context.Background(), entries); err != nil {
		m.log.WithError(err).WithField("key", key).Warn("failed to enqueue write-repair entries")
	}
}

type getOutcome struct {
	data *blobstore.BlobData
	err  error
}

// fanOutGet races Get across members, returning the first Some. If no
// member answers Some it waits for all and reports how many answered
// None vs. erred.
func fanOutGet(ctx context.Context, members []Member, key string) (data *blobstore.BlobData, some bool, none, errs int) {
	if len(members) == 0 {
		return nil, false, 0, 0
	}
	ch := make(chan getOutcome, len(members))
	for _, mem := range members {
		mem := mem
		go func() {
			d, err := mem.Store.Get(ctx, key)
			ch <- getOutcome{d, err}
		}()
	}
	for i := 0; i < len(members); i++ {
		r := <-ch
		if r.err != nil {
			errs++
			continue
		}
		if r.data != nil {
			return r.data, true, none, errs
		}
		none++
	}
	return nil, false, none, errs
}

// Get resolves Some on the first member to answer with a value,
// preferring Normal members and falling back to WriteOnly members only
// once every Normal member has missed (§4.3.2).
func (m *Mux) Get(ctx context.Context, key string) (*blobstore.BlobData, error) {
	data, some, none, errs := fanOutGet(ctx, m.normals, key)
	if some {
		return data, nil
	}
	if len(m.writeOnly) > 0 {
		data, some, woNone, woErrs := fanOutGet(ctx, m.writeOnly, key)
		if some {
			return data, nil
		}
		none += woNone
		errs += woErrs
	}
	if errs == 0 {
		return nil, nil
	}
	if none > 0 {
		m.log.WithField("key", key).Debug("get found no value, some replicas erred")
		return nil, herr.Transient.New(key)
	}
	m.log.WithField("key", key).Error("get: all replicas failed")
	return nil, herr.AllReplicasFailed.New(key)
}

// IsPresent mirrors Get's fan-out but returns Unsure whenever responses
// are split between Absent and error, since the content may or may not
// exist (§4.3.4).
func (m *Mux) IsPresent(ctx context.Context, key string) (blobstore.Presence, error) {
	all := append(append([]Member{}, m.normals...), m.writeOnly...)
	if len(all) == 0 {
		return blobstore.Absent, nil
	}

	type presenceOutcome struct {
		p   blobstore.Presence
		err error
	}
	ch := make(chan presenceOutcome, len(all))
	for _, mem := range all {
		mem := mem
		go func() {
			p, err := mem.Store.IsPresent(ctx, key)
			ch <- presenceOutcome{p, err}
		}()
	}

	present, absent, unsure, errs := 0, 0, 0, 0
	for i := 0; i < len(all); i++ {
		r := <-ch
		if r.err != nil {
			errs++
			continue
		}
		switch r.p {
		case blobstore.Present:
			present++
		case blobstore.Absent:
			absent++
		default:
			unsure++
		}
	}
	if present > 0 {
		return blobstore.Present, nil
	}
	if unsure == 0 && errs == 0 {
		return blobstore.Absent, nil
	}
	if unsure == 0 && absent == 0 {
		return blobstore.Unsure, herr.AllReplicasFailed.New(key)
	}
	return blobstore.Unsure, nil
}

// Unlink is best-effort on every inner store; the write-repair queue is
// never used for deletions (§4.3.4).
func (m *Mux) Unlink(ctx context.Context, key string) error {
	ch := make(chan error, len(m.members))
	for _, mem := range m.members {
		mem := mem
		go func() {
			ch <- mem.Store.Unlink(ctx, key)
		}()
	}
	var firstErr error
	for i := 0; i < len(m.members); i++ {
		if err := <-ch; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Copy is implemented generically as Get-then-Put through the
// multiplex, so the copied value gets the same write-repair guarantees
// as any other put.
func (m *Mux) Copy(ctx context.Context, srcKey, dstKey string) error {
	bd, err := m.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	if bd == nil {
		return herr.NotFound.New(srcKey)
	}
	_, err = m.Put(ctx, dstKey, int64(len(bd.Bytes)), bytes.NewReader(bd.Bytes))
	return err
}

// Enumerate is not a multiplex-wide capability: the set of keys visible
// on one inner store may lag another's, and we have no way to merge
// query pages without risking duplicate or missing keys across a
// repair boundary.
func (m *Mux) Enumerate(ctx context.Context, rng blobstore.EnumerateRange) (blobstore.EnumerateResult, error) {
	return blobstore.EnumerateResult{}, herr.Unsupported.New("multiplex enumerate")
}
