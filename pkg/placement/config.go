// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package placement

import "time"

// Config contains the tunable policy constants of the analyzer.
type Config struct {
	OptimalReplicas    int           `help:"target number of good replicas per fragment" default:"3"`
	LongGoneThreshold  time.Duration `help:"heartbeat age after which a block's node is considered gone for good" default:"1h"`
	ShortGoneThreshold time.Duration `help:"heartbeat age after which a block's node is considered gone" default:"5m"`
	LongBuildThreshold time.Duration `help:"build age after which an unfinished block is considered stuck" default:"10m"`
}
