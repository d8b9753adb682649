package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/shot-relay/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	configPath string
	out        io.Writer
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return c.runShow(subargs)
	case "path":
		return c.runPath()
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", subcommand)
	}
}

// runShow displays the effective configuration with secrets masked.
func (c *configCommand) runShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	format := fs.String("format", "yaml", "output format (yaml, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	loader := config.NewLoader(c.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = cfg.Redacted()

	switch *format {
	case "json":
		return c.showJSON(cfg)
	case "yaml":
		return c.showYAML(cfg, loader.Path())
	default:
		return fmt.Errorf("unknown format: %s", *format)
	}
}

// showYAML displays configuration in YAML format.
func (c *configCommand) showYAML(cfg *config.Config, source string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if source == "" {
		source = "defaults and environment (no config file found)"
	}
	fmt.Fprintln(c.out, "# Current Configuration")
	fmt.Fprintln(c.out, "# Source:", source)
	fmt.Fprintln(c.out)
	_, err = c.out.Write(data)
	return err
}

// showJSON displays configuration in JSON format.
func (c *configCommand) showJSON(cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = fmt.Fprintln(c.out, string(data))
	return err
}

// runPath shows the configuration file search order.
func (c *configCommand) runPath() error {
	if c.configPath != "" {
		fmt.Fprintf(c.out, "Configuration file (from -config): %s [%s]\n", c.configPath, existence(c.configPath))
		return nil
	}
	if env, ok := os.LookupEnv(config.ConfigEnv); ok && env != "" {
		fmt.Fprintf(c.out, "Configuration file (from %s): %s [%s]\n", config.ConfigEnv, env, existence(env))
		return nil
	}

	paths := []string{
		"./config.yaml",
		config.DefaultConfigPath(),
	}

	fmt.Fprintln(c.out, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(c.out)
	for i, p := range paths {
		fmt.Fprintf(c.out, "  %d. %s [%s]\n", i+1, p, existence(p))
	}

	active := config.NewLoader("").Path()
	if active == "" {
		active = "defaults (no config file found)"
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Active configuration:", active)
	return nil
}

func existence(path string) string {
	if _, err := os.Stat(path); err == nil {
		return "found"
	}
	return "not found"
}

// showHelp displays help for config command.
func (c *configCommand) showHelp() error {
	help := `Config - Configuration management

Usage:
  shot-relay config <subcommand> [flags]

Subcommands:
  show      Display the effective configuration (bot token masked)
  path      Show configuration file paths

Show Flags:
  -format   Output format (yaml, json) (default: yaml)

Examples:
  # Show current configuration
  shot-relay config show

  # Show configuration in JSON format
  shot-relay config show -format json

  # Show configuration file paths
  shot-relay config path
`
	_, err := fmt.Fprint(c.out, help)
	return err
}
