// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package config decodes the TOML-based deployment configuration for a
// multiplexed blobstore and a filestore, mirroring the teacher's
// repo/remote TOML config style.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/forgehub/scmcore/store/blobstore"
	"github.com/forgehub/scmcore/store/filestore"
	"github.com/forgehub/scmcore/store/mux"
	"github.com/forgehub/scmcore/store/pack"
	"github.com/forgehub/scmcore/store/queue"
)

// Duration decodes a TOML string like "30s" into a time.Duration; TOML
// has no native duration type, so config files spell it the way Go's
// own flag package would parse it.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MemberConfig describes one inner blobstore behind a Mux.
type MemberConfig struct {
	Id   int    `toml:"id"`
	Kind string `toml:"kind"` // "memory", "local", "s3", "gcs"
	Role string `toml:"role"` // "normal" (default) or "write_only"

	// Namespace is the InMemoryBlobstore namespace (kind = "memory").
	Namespace string `toml:"namespace"`
	// Root is the LocalBlobstore root directory (kind = "local").
	Root string `toml:"root"`
	// Bucket and Prefix name the remote container (kind = "s3"/"gcs").
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
}

// MultiplexConfig parameterizes a mux.Mux (§4.3 construction).
type MultiplexConfig struct {
	MultiplexId int            `toml:"multiplex_id"`
	Members     []MemberConfig `toml:"member"`

	MinWrites      int      `toml:"min_writes"`
	ReadQuorum     int      `toml:"read_quorum"`
	RepairDeadline Duration `toml:"repair_deadline"`
	MarkAndRepair  bool     `toml:"mark_and_repair"`

	// ScrubMode records the operator's chosen scrub cadence; RunScrubPass
	// callers read it directly rather than the config package enforcing
	// a schedule itself.
	ScrubMode string `toml:"scrub_mode"`
}

// FilestoreConfig parameterizes a filestore.Store plus the pack
// envelope it is usually layered over.
type FilestoreConfig struct {
	ChunkSize     int    `toml:"chunk_size"`
	PrefetchDepth int    `toml:"prefetch_depth"`
	PackCodec     string `toml:"pack_codec"` // "raw", "zstd", or "snappy"
	PackLevel     int    `toml:"pack_level"`
}

// Config is the top-level deployment file: one multiplex and one
// filestore, turned into live values by BuildMuxConfig and
// FilestoreConfig.BuildFilestore.
type Config struct {
	Multiplex MultiplexConfig `toml:"multiplex"`
	Filestore FilestoreConfig `toml:"filestore"`
}

// Load decodes a TOML config file at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return &cfg, nil
}

// RemoteBuilder constructs the blobstore.Blobstore for member kinds
// that need a live client the config file cannot express on its own
// (an authenticated S3 client, a GCS bucket handle). Deployments that
// only use "memory"/"local" members may leave this nil.
type RemoteBuilder interface {
	BuildS3(ctx context.Context, bucket, prefix string) (blobstore.Blobstore, error)
	BuildGCS(ctx context.Context, bucket, prefix string) (blobstore.Blobstore, error)
}

// BuildMember constructs the blobstore.Blobstore named by one
// MemberConfig entry.
func BuildMember(ctx context.Context, mc MemberConfig, remote RemoteBuilder) (blobstore.Blobstore, error) {
	switch mc.Kind {
	case "memory", "":
		return blobstore.NewInMemoryBlobstore(mc.Namespace), nil
	case "local":
		return blobstore.NewLocalBlobstore(mc.Root), nil
	case "s3":
		if remote == nil {
			return nil, fmt.Errorf("config: member %d is kind s3 but no RemoteBuilder was supplied", mc.Id)
		}
		return remote.BuildS3(ctx, mc.Bucket, mc.Prefix)
	case "gcs":
		if remote == nil {
			return nil, fmt.Errorf("config: member %d is kind gcs but no RemoteBuilder was supplied", mc.Id)
		}
		return remote.BuildGCS(ctx, mc.Bucket, mc.Prefix)
	default:
		return nil, fmt.Errorf("config: member %d has unknown kind %q", mc.Id, mc.Kind)
	}
}

// BuildMuxConfig constructs a mux.Config from a MultiplexConfig,
// resolving every member's inner Blobstore via BuildMember. The
// caller supplies the write-repair queue.Queue separately since its
// lifecycle (a shared bbolt handle) usually outlives any one mux.
func BuildMuxConfig(ctx context.Context, mc MultiplexConfig, remote RemoteBuilder, q queue.Queue) (mux.Config, error) {
	members := make([]mux.Member, 0, len(mc.Members))
	for _, m := range mc.Members {
		bs, err := BuildMember(ctx, m, remote)
		if err != nil {
			return mux.Config{}, err
		}
		role := mux.Normal
		if m.Role == "write_only" {
			role = mux.WriteOnly
		}
		members = append(members, mux.Member{Id: m.Id, Store: bs, Role: role})
	}
	return mux.Config{
		MultiplexId:    mc.MultiplexId,
		Members:        members,
		Queue:          q,
		MinWrites:      mc.MinWrites,
		ReadQuorum:     mc.ReadQuorum,
		RepairDeadline: time.Duration(mc.RepairDeadline),
		MarkAndRepair:  mc.MarkAndRepair,
	}, nil
}

// PackCodecValue resolves the configured codec name to a pack.Codec.
func (fc FilestoreConfig) PackCodecValue() (pack.Codec, error) {
	switch fc.PackCodec {
	case "", "raw":
		return pack.Raw, nil
	case "zstd":
		return pack.ZstdIndividual, nil
	case "snappy":
		return pack.SnappyIndividual, nil
	default:
		return pack.Raw, fmt.Errorf("config: unknown pack_codec %q", fc.PackCodec)
	}
}

// BuildFilestore layers the configured pack envelope over inner and
// returns the resulting filestore.Store.
func (fc FilestoreConfig) BuildFilestore(inner blobstore.Blobstore) (*filestore.Store, error) {
	codec, err := fc.PackCodecValue()
	if err != nil {
		return nil, err
	}
	packed := pack.New(inner, codec, fc.PackLevel)
	return filestore.New(packed, filestore.Config{ChunkSize: fc.ChunkSize}), nil
}
