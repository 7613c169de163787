package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpattn/portfolio-ingest/internal/db"
	"github.com/rpattn/portfolio-ingest/internal/ingestion"
	"github.com/rpattn/portfolio-ingest/internal/repository"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ingestCmd struct {
	config   string
	dataset  string
	previous string
	format   string
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "ingest a workbook as a new version of a dataset" }
func (*ingestCmd) Usage() string {
	return `pmctl ingest -dataset <name> [-previous <version id>] [-format json|md] <file>

  Parses the workbook, diffs it against the previous completed version and
  commits the result.
`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", ".", "directory containing config.yaml")
	f.StringVar(&c.dataset, "dataset", "", "dataset the upload belongs to")
	f.StringVar(&c.previous, "previous", "", "version to diff against (defaults to the latest completed)")
	f.StringVar(&c.format, "format", "md", "output format (json, md)")
}

func (c *ingestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.dataset == "" {
		fmt.Fprintln(os.Stderr, "Error: -dataset and one workbook path are required")
		return subcommands.ExitUsageError
	}
	req := ingestion.Request{Dataset: c.dataset, FileName: filepath.Base(f.Arg(0))}
	if c.previous != "" {
		previousID, err := uuid.Parse(c.previous)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid previous version id: %v\n", err)
			return subcommands.ExitUsageError
		}
		req.PreviousVersionID = &previousID
	}

	cfg, logger, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() { _ = logger.Sync() }()

	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()
	req.Data = file

	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", zap.Error(err))
		return subcommands.ExitFailure
	}
	defer conn.Close()

	service := ingestion.NewService(
		ingestion.NewParser(cfg.Ingestion.ParserOptions()),
		ingestion.Repositories{
			Versions:  repository.NewVersionRepository(conn),
			Projects:  repository.NewProjectRepository(conn.Pool),
			Changes:   repository.NewChangeLogRepository(conn.Pool),
			Snapshots: repository.NewKPISnapshotRepository(conn.Pool),
			Logs:      repository.NewIngestionLogRepository(conn.Pool),
		},
		cfg.Ingestion.KPIOptions(),
		logger,
	)

	result, err := service.Ingest(ctx, req)
	if err != nil {
		logger.Error("ingestion failed", zap.Error(err))
		return subcommands.ExitFailure
	}

	if c.format == "json" {
		if err := printJSON(os.Stdout, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(ingestMarkdown(result))
	return subcommands.ExitSuccess
}
