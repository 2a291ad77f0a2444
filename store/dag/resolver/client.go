// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package resolver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/forgehub/scmcore/store/dag/idmap"
	"github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/herr"
)

// Client is the remote half of the lazy resolution protocol. It
// batches and dedupes requests, retries Transient failures with
// backoff, and — when LocalOnly is set — refuses to touch the network
// at all, reporting NeedsLookup instead (§7's "DAG operations convert
// remote Transient into NeedsLookup at API boundaries that were called
// in local-only mode").
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// LocalOnly short-circuits every remote call into NeedsLookup.
	LocalOnly bool
	// Deadline bounds a single remote round trip, including retries
	// (§5 "remote resolver calls must have a deadline").
	Deadline time.Duration

	sf singleflight.Group
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		HTTP:     http.DefaultClient,
		Deadline: 10 * time.Second,
	}
}

// VertexNameBatch resolves ids to hashes in one round trip, deduping
// repeated ids before the call and broadcasting results back to every
// requested position (§4.8).
func (c *Client) VertexNameBatch(ctx context.Context, ids []idmap.Id) (map[idmap.Id]hash.Hash, error) {
	unique := dedupeIds(ids)
	if c.LocalOnly {
		return nil, herr.NeedsLookup.New("vertex_name_batch")
	}
	if len(unique) == 0 {
		return map[idmap.Id]hash.Hash{}, nil
	}

	key := sfKeyForIds(unique)
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var resp VertexNameResponse
		if err := c.call(ctx, "/vertex-names", VertexNameRequest{Ids: unique}, &resp); err != nil {
			return nil, err
		}
		out := make(map[idmap.Id]hash.Hash, len(resp.Entries))
		for _, e := range resp.Entries {
			if e.Ok {
				out[e.Id] = e.Hash
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[idmap.Id]hash.Hash), nil
}

// VertexIdBatch is the symmetric hash->id batch call.
func (c *Client) VertexIdBatch(ctx context.Context, hs []hash.Hash) (map[hash.Hash]idmap.Id, error) {
	unique := dedupeHashes(hs)
	if c.LocalOnly {
		return nil, herr.NeedsLookup.New("vertex_id_batch")
	}
	if len(unique) == 0 {
		return map[hash.Hash]idmap.Id{}, nil
	}

	key := sfKeyForHashes(unique)
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		var resp VertexIdResponse
		if err := c.call(ctx, "/vertex-ids", VertexIdRequest{Hashes: unique}, &resp); err != nil {
			return nil, err
		}
		out := make(map[hash.Hash]idmap.Id, len(resp.Entries))
		for _, e := range resp.Entries {
			if e.Ok {
				out[e.Hash] = e.Id
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[hash.Hash]idmap.Id), nil
}

// FetchCloneData pulls the full CloneData payload for import.
func (c *Client) FetchCloneData(ctx context.Context) (CloneData, error) {
	if c.LocalOnly {
		return CloneData{}, herr.NeedsLookup.New("clone_data")
	}
	var data CloneData
	err := c.call(ctx, "/clone-data", CloneDataRequest{}, &data)
	return data, err
}

// call posts req to path and decodes the response into resp, retrying
// Transient failures with exponential backoff up to Deadline.
func (c *Client) call(ctx context.Context, path string, req, resp interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.Deadline)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return herr.InvalidData.Wrap(err, "encoding resolver request")
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(herr.InvalidData.Wrap(err, "building resolver request"))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.HTTP.Do(httpReq)
		if err != nil {
			return herr.Transient.Wrap(err, "resolver request to "+path)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 500 {
			return herr.Transient.New(fmt.Sprintf("resolver %s returned %d", path, httpResp.StatusCode))
		}
		if httpResp.StatusCode != http.StatusOK {
			return backoff.Permanent(herr.InvalidData.New(fmt.Sprintf("resolver %s returned %d", path, httpResp.StatusCode)))
		}

		if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
			return backoff.Permanent(herr.InvalidData.Wrap(err, "decoding resolver response"))
		}
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		return err
	}
	return nil
}

func dedupeIds(ids []idmap.Id) []idmap.Id {
	seen := make(map[idmap.Id]bool, len(ids))
	out := make([]idmap.Id, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupeHashes(hs []hash.Hash) []hash.Hash {
	seen := make(map[hash.Hash]bool, len(hs))
	out := make([]hash.Hash, 0, len(hs))
	for _, h := range hs {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func sfKeyForIds(ids []idmap.Id) string {
	var b bytes.Buffer
	b.WriteString("ids:")
	for _, id := range ids {
		fmt.Fprintf(&b, "%d,", id)
	}
	return b.String()
}

func sfKeyForHashes(hs []hash.Hash) string {
	var b bytes.Buffer
	b.WriteString("hashes:")
	for _, h := range hs {
		b.WriteString(h.String())
		b.WriteByte(',')
	}
	return b.String()
}
