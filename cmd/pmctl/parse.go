package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rpattn/portfolio-ingest/internal/ingestion"
	"github.com/rpattn/portfolio-ingest/internal/kpi"

	"github.com/google/subcommands"
)

type parseCmd struct {
	config string
	format string
	asOf   string
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "parse a workbook without touching the database" }
func (*parseCmd) Usage() string {
	return `pmctl parse [-format json|md] [-asof YYYY-MM-DD] <file>

  Parses the workbook and prints the records, warnings and KPIs.
`
}

func (c *parseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", ".", "directory containing config.yaml")
	f.StringVar(&c.format, "format", "md", "output format (json, md)")
	f.StringVar(&c.asOf, "asof", "", "date the KPIs are computed for (defaults to today)")
}

func (c *parseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one workbook path is required")
		return subcommands.ExitUsageError
	}
	if c.format != "json" && c.format != "md" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}
	asOf, err := parseAsOf(c.asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	cfg, logger, err := loadConfig(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer func() { _ = logger.Sync() }()

	path := f.Arg(0)
	payload, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	run, err := ingestion.NewParser(cfg.Ingestion.ParserOptions()).Parse(path, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	snapshot := kpi.Aggregate(run.Projects, asOf, cfg.Ingestion.KPIOptions())

	if c.format == "json" {
		payload := struct {
			ingestion.RunResult
			KPIs kpi.Snapshot `json:"kpis"`
		}{run, snapshot}
		if err := printJSON(os.Stdout, payload); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	printMarkdown(runMarkdown(path, run, snapshot))
	return subcommands.ExitSuccess
}
