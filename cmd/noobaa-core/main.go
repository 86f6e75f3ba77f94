// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MeridianExplorer/noobaa-core/pkg/cfgstruct"
	"github.com/MeridianExplorer/noobaa-core/pkg/cluster"
	"github.com/MeridianExplorer/noobaa-core/pkg/process"
	"github.com/MeridianExplorer/noobaa-core/pkg/systemstore"
	"github.com/MeridianExplorer/noobaa-core/storage/boltdb"
)

// Config is the daemon configuration.
type Config struct {
	DatabasePath    string        `help:"path of the catalog database file" default:"catalog.db"`
	RedirectorAddr  string        `help:"address of the redis redirector for peer notifications" default:"localhost:6379"`
	RefreshInterval time.Duration `help:"how frequently the catalog refresh loop ticks" default:"30s"`
	Development     bool          `help:"enable development logging" default:"false"`

	Catalog systemstore.Config
}

var (
	rootCmd = &cobra.Command{
		Use:   "noobaa-core",
		Short: "Object storage metadata and placement core",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the catalog service",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Create the catalog database and collections",
		RunE:  cmdSetup,
	}

	runCfg   Config
	setupCfg Config
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	cfgstruct.Bind(runCmd.Flags(), &runCfg)
	cfgstruct.Bind(setupCmd.Flags(), &setupCfg)
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	logger, err := process.NewLogger(runCfg.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := boltdb.New(logger, runCfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	bus, err := cluster.NewRedisBus(logger, runCfg.RedirectorAddr)
	if err != nil {
		return err
	}
	defer bus.Close()

	manager, err := systemstore.NewManager(logger, db, bus, runCfg.Catalog)
	if err != nil {
		return err
	}
	systemstore.SetDefault(manager)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("catalog service starting",
		zap.String("database", runCfg.DatabasePath),
		zap.String("redirector", runCfg.RedirectorAddr))

	if _, err := manager.Refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(runCfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := manager.Refresh(ctx); err != nil {
				logger.Error("refresh failed", zap.Error(err))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	logger, err := process.NewLogger(setupCfg.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(setupCfg.DatabasePath), 0700); err != nil {
		return err
	}

	db, err := boltdb.New(logger, setupCfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	for _, coll := range systemstore.Collections {
		if err := db.EnsureCollection(ctx, coll.Name, coll.UniqueIndexes); err != nil {
			return err
		}
	}

	logger.Info("catalog database created", zap.String("database", setupCfg.DatabasePath))
	return nil
}

func main() {
	process.Execute(rootCmd)
}
