package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rpattn/portfolio-ingest/internal/db"
	"github.com/rpattn/portfolio-ingest/internal/export"
	"github.com/rpattn/portfolio-ingest/internal/repository"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type exportCmd struct {
	config string
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a completed version as a re-uploadable CSV" }
func (*exportCmd) Usage() string {
	return `pmctl export [-o <file>] <version id>

  Writes the projects of a completed version to a CSV file (or stdout).
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", ".", "directory containing config.yaml")
	f.StringVar(&c.output, "o", "", "output file (defaults to the generated file name, - for stdout)")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one version id is required")
		return subcommands.ExitUsageError
	}
	versionID, err := uuid.Parse(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid version id: %v\n", err)
		return subcommands.ExitUsageError
	}

	cfg, logger, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() { _ = logger.Sync() }()

	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return subcommands.ExitFailure
	}
	defer conn.Close()

	service := export.NewService(repository.NewVersionRepository(conn), repository.NewProjectRepository(conn.Pool), logger)
	prepared, err := service.Prepare(ctx, versionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	var out io.Writer = os.Stdout
	path := c.output
	if path == "" {
		path = prepared.FileName
	}
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		out = file
	}

	if _, err := service.WriteCSV(out, prepared); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if path != "-" {
		fmt.Fprintf(os.Stderr, "Wrote %d projects to %s\n", len(prepared.Projects), path)
	}
	return subcommands.ExitSuccess
}
