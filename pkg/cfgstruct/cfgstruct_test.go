// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package cfgstruct

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	String   string        `help:"a string" default:"hello"`
	Bool     bool          `help:"a bool" default:"true"`
	Int      int           `help:"an int" default:"7"`
	Duration time.Duration `help:"a duration" default:"10m"`

	Nested struct {
		MaxCount int `help:"a nested int" default:"3"`
	}
}

func TestBindDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var cfg testConfig
	Bind(flags, &cfg)

	require.NoError(t, flags.Parse(nil))

	assert.Equal(t, "hello", cfg.String)
	assert.Equal(t, true, cfg.Bool)
	assert.Equal(t, 7, cfg.Int)
	assert.Equal(t, 10*time.Minute, cfg.Duration)
	assert.Equal(t, 3, cfg.Nested.MaxCount)
}

func TestBindOverrides(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var cfg testConfig
	Bind(flags, &cfg)

	require.NoError(t, flags.Parse([]string{
		"--string=bye",
		"--duration=1h",
		"--nested.max-count=9",
	}))

	assert.Equal(t, "bye", cfg.String)
	assert.Equal(t, time.Hour, cfg.Duration)
	assert.Equal(t, 9, cfg.Nested.MaxCount)
}

func TestHyphenate(t *testing.T) {
	assert.Equal(t, "start-refresh-threshold", hyphenate("StartRefreshThreshold"))
	assert.Equal(t, "database-path", hyphenate("DatabasePath"))
	assert.Equal(t, "name", hyphenate("Name"))
}
