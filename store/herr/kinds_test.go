// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package herr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMembership(t *testing.T) {
	err := NotFound.New("chunk/abc123")
	assert.True(t, NotFound.Is(err))
	assert.False(t, InvalidData.Is(err))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Transient.Wrap(cause, "inner store 2")
	assert.True(t, Transient.Is(err))
	assert.Contains(t, err.Error(), "inner store 2")
}

func TestIsHelper(t *testing.T) {
	err := Unsupported.New("enumerate")
	assert.True(t, Is(Unsupported, err))
	assert.False(t, Is(NeedsLookup, err))
}
