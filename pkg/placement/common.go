// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package placement

import (
	"github.com/zeebo/errs"
)

// Error is a standard error class for this package.
var Error = errs.Class("placement error")
