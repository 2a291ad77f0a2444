// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package blobstore

import (
	"bytes"
	"context"

	"github.com/forgehub/scmcore/store/herr"
)

// genericCopy implements Copy as get-then-put for backends with no
// native server-side copy. Backends that can do better (S3's
// CopyObject, GCS's ObjectHandle.CopierFrom) should not call this.
func genericCopy(ctx context.Context, bs Blobstore, srcKey, dstKey string) error {
	bd, err := bs.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	if bd == nil {
		return herr.NotFound.New(srcKey)
	}
	_, err = bs.Put(ctx, dstKey, int64(len(bd.Bytes)), bytes.NewReader(bd.Bytes))
	return err
}
