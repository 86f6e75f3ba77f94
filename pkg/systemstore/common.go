// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package systemstore

import (
	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

var (
	// Error is a standard error class for this package.
	Error = errs.Class("systemstore error")

	// ErrConflict is returned when a mutation would violate a unique index.
	ErrConflict = errs.Class("conflict")

	mon = monkit.Package()
)
