// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package serial

import (
	"encoding/binary"

	"github.com/forgehub/scmcore/store/hash"
	"github.com/forgehub/scmcore/store/herr"
)

// ContentMetadata is the fixed-width envelope of §6.4.
type ContentMetadata struct {
	ContentId hash.ContentId
	TotalSize uint64
	Sha1      [20]byte
	Sha256    [32]byte
	GitSha1   [20]byte
}

const contentMetadataWireLen = 32 + 8 + 20 + 32 + 20

func EncodeContentMetadata(cm ContentMetadata) []byte {
	buf := make([]byte, 0, contentMetadataWireLen)
	buf = append(buf, cm.ContentId[:]...)
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], cm.TotalSize)
	buf = append(buf, sz[:]...)
	buf = append(buf, cm.Sha1[:]...)
	buf = append(buf, cm.Sha256[:]...)
	buf = append(buf, cm.GitSha1[:]...)
	return buf
}

func DecodeContentMetadata(data []byte) (ContentMetadata, error) {
	if len(data) != contentMetadataWireLen {
		return ContentMetadata{}, herr.InvalidData.New("content metadata: bad length")
	}
	var cm ContentMetadata
	off := 0
	copy(cm.ContentId[:], data[off:off+32])
	off += 32
	cm.TotalSize = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	copy(cm.Sha1[:], data[off:off+20])
	off += 20
	copy(cm.Sha256[:], data[off:off+32])
	off += 32
	copy(cm.GitSha1[:], data[off:off+20])
	return cm, nil
}
