package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const usage = `jsonrelay turns prompts into schema-shaped JSON with automatic provider fallback.

Usage:
  jsonrelay <command> [flags]

Commands:
  serve    Start the HTTP server
  call     Run a single structured request and print the JSON result

Flags:
  -h, --help  Show this help message`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return printUsage()
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "call":
		return call(ctx, args[1:], os.Stdout)
	case "help", "-h", "--help":
		return printUsage()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printUsage() error {
	fmt.Println(strings.TrimSpace(usage))
	return nil
}
