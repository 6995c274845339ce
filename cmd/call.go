package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"jsonrelay/internal/config"
	"jsonrelay/internal/fallback"
	providerfactory "jsonrelay/internal/provider/factory"
)

const callUsage = `Usage:
  jsonrelay call [--config <path>] --prompt <text> (--schema <json> | --schema-file <path>)

Flags:
  --config      string   Path to YAML configuration file (defaults apply when omitted)
  --prompt      string   Request text (required)
  --schema      string   Inline JSON schema description
  --schema-file string   Path to a file holding the schema description`

func call(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, callUsage)
	}

	var cfgPath, prompt, schemaText, schemaFile string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&prompt, "prompt", "", "request text")
	fs.StringVar(&schemaText, "schema", "", "inline JSON schema description")
	fs.StringVar(&schemaFile, "schema-file", "", "path to schema description file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse call flags: %w", err)
	}

	if strings.TrimSpace(prompt) == "" {
		return errors.New("call command requires --prompt <text>")
	}
	schema, err := readSchema(schemaText, schemaFile)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if cfgPath != "" {
		if cfg, err = config.Load(cfgPath); err != nil {
			return err
		}
	}

	orchestrator, err := providerfactory.NewOrchestrator(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}

	result, err := orchestrator.Call(ctx, prompt, schema)
	if err != nil {
		if errors.Is(err, fallback.ErrServiceUnavailable) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w (set %s to enable the fallback provider)", err, cfg.Secondary.APIKeyEnv)
	}

	_, err = fmt.Fprintln(out, result)
	return err
}

func readSchema(inline, path string) (json.RawMessage, error) {
	switch {
	case inline != "" && path != "":
		return nil, errors.New("use either --schema or --schema-file, not both")
	case inline == "" && path == "":
		return nil, errors.New("call command requires --schema <json> or --schema-file <path>")
	}

	data := []byte(inline)
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read schema file %q: %w", path, err)
		}
	}
	if !json.Valid(data) {
		return nil, errors.New("schema must be valid JSON")
	}
	return json.RawMessage(data), nil
}
