// Copyright 2019 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

package blobstore

import "errors"

func stdErrorsAs(err error, target interface{}) bool {
	return errors.As(err, target)
}
