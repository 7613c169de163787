package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rpattn/portfolio-ingest/internal/config"
	"github.com/rpattn/portfolio-ingest/internal/logging"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
)

// loadConfig loads the configuration and a logger for a command.
func loadConfig(dir string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func printMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Fprint(os.Stdout, out)
}
