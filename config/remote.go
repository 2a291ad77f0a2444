// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package config

import (
	"context"

	"cloud.google.com/go/storage"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/forgehub/scmcore/store/blobstore"
)

// DefaultRemoteBuilder resolves s3/gcs members using each SDK's
// ambient credential discovery (environment, shared config file,
// instance metadata), exactly as the teacher's cloud blobstore tests
// assume an already-configured environment.
type DefaultRemoteBuilder struct {
	gcsClient *storage.Client
	s3Client  *s3.Client
}

// NewDefaultRemoteBuilder loads the AWS and GCS SDK default
// configurations once, so every s3/gcs member in a deployment config
// shares one underlying client and connection pool.
func NewDefaultRemoteBuilder(ctx context.Context) (*DefaultRemoteBuilder, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &DefaultRemoteBuilder{
		gcsClient: gcsClient,
		s3Client:  s3.NewFromConfig(awsCfg),
	}, nil
}

func (b *DefaultRemoteBuilder) BuildS3(ctx context.Context, bucket, prefix string) (blobstore.Blobstore, error) {
	return blobstore.NewS3Blobstore(b.s3Client, bucket, prefix), nil
}

func (b *DefaultRemoteBuilder) BuildGCS(ctx context.Context, bucket, prefix string) (blobstore.Blobstore, error) {
	return blobstore.NewGCSBlobstore(b.gcsClient.Bucket(bucket), bucket, prefix), nil
}

var _ RemoteBuilder = (*DefaultRemoteBuilder)(nil)
