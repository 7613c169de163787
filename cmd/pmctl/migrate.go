package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rpattn/portfolio-ingest/internal/db"

	"github.com/google/subcommands"
	"go.uber.org/zap"
)

type migrateCmd struct {
	config string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the database migrations" }
func (*migrateCmd) Usage() string {
	return `pmctl migrate [-config <dir>]

  Applies every pending schema migration.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", ".", "directory containing config.yaml")
}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() { _ = logger.Sync() }()

	if err := db.RunMigrations(cfg.Database, logger); err != nil {
		logger.Error("migration failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
