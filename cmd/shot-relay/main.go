// Package main provides the shot-relay CLI application.
//
// shot-relay watches a Steam screenshot tree and forwards every new
// screenshot to a Telegram chat, captioned with the game's name. Delivery
// state survives restarts so nothing is sent twice or silently dropped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// version is set during build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("shot-relay", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "show version information")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "shot-relay %s\n", version)
		return nil
	}

	command := "run"
	rest := fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	switch command {
	case "run":
		return runRunCommand(ctx, *configPath, rest)
	case "status":
		return runStatusCommand(*configPath, rest, stdout)
	case "config":
		cmd := &configCommand{configPath: *configPath, out: stdout}
		return cmd.Execute(rest)
	case "help":
		return showUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runRunCommand runs the relay service until ctx is cancelled.
func runRunCommand(ctx context.Context, configPath string, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &runCommand{configPath: configPath}
	return cmd.Execute(ctx)
}

// runStatusCommand runs the status command.
func runStatusCommand(configPath string, args []string, stdout io.Writer) error {
	cmd, err := parseStatusFlags(configPath, args, stdout)
	if err != nil {
		return err
	}
	return cmd.Execute()
}

// showUsage displays usage information.
func showUsage(w io.Writer) error {
	usage := `shot-relay - forward new Steam screenshots to a Telegram chat

Usage:
  shot-relay [flags] [command] [command flags]

Commands:
  run         Watch the screenshot tree and deliver new files (default)
  status      Show delivery state from the state file
  config      Configuration management (show, path)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Status Command Flags:
  -format     Output format (table, json, simple); default table on a terminal, json otherwise
  -pending    Only list records still waiting for delivery
  -timestamps Include first-seen and sent columns
  -state      Read this state file instead of the configured one

Environment:
  SCREENSHOT_DIR, TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required unless
  set in the configuration file. SHOT_RELAY_CONFIG names the file to load.

Examples:
  # Run the relay
  shot-relay run

  # Show what is still pending
  shot-relay status -pending

  # Show the effective configuration with the token masked
  shot-relay config show

Version: %s
`

	_, err := fmt.Fprintf(w, usage, version)
	return err
}
