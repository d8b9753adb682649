package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/0xmhha/shot-relay/pkg/config"
	"github.com/0xmhha/shot-relay/pkg/discovery"
	"github.com/0xmhha/shot-relay/pkg/dispatch"
	"github.com/0xmhha/shot-relay/pkg/display"
	"github.com/0xmhha/shot-relay/pkg/logger"
	"github.com/0xmhha/shot-relay/pkg/state"
	"github.com/0xmhha/shot-relay/pkg/steam"
	"github.com/0xmhha/shot-relay/pkg/telegram"
	"github.com/0xmhha/shot-relay/pkg/watcher"
)

// nameCacheLockTimeout bounds the wait for another process holding the name cache.
const nameCacheLockTimeout = 2 * time.Second

// runCommand runs the relay service.
type runCommand struct {
	configPath string
}

// Execute runs the service until ctx is cancelled.
func (c *runCommand) Execute(ctx context.Context) error {
	cfg, err := config.NewLoader(c.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	return svc.serve(ctx)
}

// service wires the watcher to the dispatch handler.
type service struct {
	handler *dispatch.Handler
	watcher watcher.Watcher
	logger  logger.Logger
}

// newService builds every component from cfg. It fails when the screenshot
// directory is missing, so nothing is opened for a run that cannot start.
func newService(cfg *config.Config, log logger.Logger, opts ...telegram.Option) (*service, error) {
	root := discovery.ExpandHome(cfg.ScreenshotDir)
	if err := discovery.CheckRoot(root); err != nil {
		return nil, fmt.Errorf("screenshot directory %s: %w", root, err)
	}

	store, err := state.Open(state.Config{
		Path:          discovery.ExpandHome(cfg.State.File),
		SentRetention: cfg.State.SentRetention,
	}, log.With("component", "state"))
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	resolver := steam.NewResolver(steam.Config{
		BaseURL: cfg.Steam.APIURL,
		Lang:    cfg.Steam.Lang,
		Region:  cfg.Steam.Region,
		Store:   openNameStore(cfg.Steam.CacheDB, log),
	}, log.With("component", "steam"))

	client := telegram.NewClient(telegram.Config{
		BotToken:       cfg.Telegram.BotToken,
		ChatID:         cfg.Telegram.ChatID,
		APIURL:         cfg.Telegram.APIURL,
		SendAttempts:   cfg.Telegram.SendAttempts,
		Backoff:        cfg.Telegram.Backoff,
		CaptionLimit:   cfg.Telegram.CaptionLimit,
		ConnectTimeout: cfg.Telegram.ConnectTimeout,
		ReadTimeout:    cfg.Telegram.ReadTimeout,
	}, log.With("component", "telegram"), opts...)

	handler := dispatch.New(dispatch.Config{
		Root:             root,
		ReadyDelay:       cfg.FileReady.Delay,
		ReadyAttempts:    cfg.FileReady.Attempts,
		ReadyMinSize:     cfg.FileReady.MinSize,
		DedupTTL:         cfg.Dedup.TTL,
		ShutdownDrain:    cfg.Shutdown.Drain,
		RetryInterval:    cfg.Retry.Interval,
		RetryMaxInterval: cfg.Retry.MaxInterval,
	}, store, client, resolver, log.With("component", "dispatch"))

	w, err := watcher.New(watcher.Config{}, log.With("component", "watcher"))
	if err != nil {
		_ = handler.Close() // nolint:errcheck
		return nil, fmt.Errorf("failed to initialize watcher: %w", err)
	}

	return &service{handler: handler, watcher: w, logger: log}, nil
}

// openNameStore opens the persistent name cache, falling back to memory when
// no path is configured or the database cannot be opened.
func openNameStore(path string, log logger.Logger) steam.NameStore {
	if path == "" {
		return steam.NewMemoryNameStore()
	}

	path = discovery.ExpandHome(path)
	store, err := steam.OpenBoltNameStore(path, nameCacheLockTimeout)
	if err != nil {
		log.Warn("name cache unavailable, using memory only", "path", path, "error", err)
		return steam.NewMemoryNameStore()
	}
	return store
}

// serve starts the handler and the watcher and routes events until ctx is
// cancelled, then drains and shuts everything down.
func (s *service) serve(ctx context.Context) error {
	// Deliveries must outlive the signal that stops the service.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.handler.Start(runCtx); err != nil {
		return errors.Join(err, s.shutdown())
	}

	if err := s.watcher.Start(runCtx, []string{s.handler.Root()}); err != nil {
		return errors.Join(fmt.Errorf("failed to start watcher: %w", err), s.shutdown())
	}

	s.logger.Info("relay started", "root", s.handler.Root())

	events := s.watcher.Events()
	errs := s.watcher.Errors()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown requested")
			return s.shutdown()

		case event, ok := <-events:
			if !ok {
				return s.shutdown()
			}
			s.handler.HandleEvent(event)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, watcher.ErrCircuitBreakerOpen) {
				s.logger.Error("watcher keeps failing, relying on periodic sweeps", "error", err)
				continue
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

// shutdown stops the watcher first so no new work arrives while the
// handler drains.
func (s *service) shutdown() error {
	var errs []error
	if err := s.watcher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close watcher: %w", err))
	}
	if err := s.handler.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// statusCommand prints the delivery state.
type statusCommand struct {
	configPath     string
	statePath      string
	format         string
	pendingOnly    bool
	showTimestamps bool
	compact        bool
	out            io.Writer
	now            func() time.Time
}

// parseStatusFlags builds a statusCommand from command line arguments.
func parseStatusFlags(configPath string, args []string, out io.Writer) (*statusCommand, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	format := fs.String("format", defaultStatusFormat(out), "output format (table, json, simple)")
	pending := fs.Bool("pending", false, "only list pending records")
	timestamps := fs.Bool("timestamps", false, "show first seen and sent times")
	compact := fs.Bool("compact", false, "compact output")
	statePath := fs.String("state", "", "state file to read (default: from config)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &statusCommand{
		configPath:     configPath,
		statePath:      *statePath,
		format:         *format,
		pendingOnly:    *pending,
		showTimestamps: *timestamps,
		compact:        *compact,
		out:            out,
		now:            time.Now,
	}, nil
}

// defaultStatusFormat picks a table for terminals and JSON for pipes.
func defaultStatusFormat(out io.Writer) string {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return string(display.FormatTable)
	}
	return string(display.FormatJSON)
}

// Execute runs the status command.
func (c *statusCommand) Execute() error {
	format, ok := display.ParseFormat(c.format)
	if !ok {
		return fmt.Errorf("unknown format: %s", c.format)
	}

	path, err := c.resolveStatePath()
	if err != nil {
		return err
	}

	store, err := state.Open(state.Config{Path: path}, logger.Noop())
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}

	entries := store.Records()
	formatter := display.New(display.Config{
		Format:         format,
		ShowTimestamps: c.showTimestamps,
		Compact:        c.compact,
	})

	if err := formatter.FormatSummary(c.out, display.Summarize(path, entries, c.now())); err != nil {
		return fmt.Errorf("failed to format summary: %w", err)
	}

	if c.pendingOnly {
		entries = pendingEntries(entries)
	}
	if err := formatter.FormatRecords(c.out, entries); err != nil {
		return fmt.Errorf("failed to format records: %w", err)
	}
	return nil
}

// resolveStatePath returns the -state flag or the configured state file.
func (c *statusCommand) resolveStatePath() (string, error) {
	if c.statePath != "" {
		return discovery.ExpandHome(c.statePath), nil
	}

	cfg, err := config.NewLoader(c.configPath).Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config (use -state to read a file directly): %w", err)
	}
	return discovery.ExpandHome(cfg.State.File), nil
}

func pendingEntries(entries []state.Entry) []state.Entry {
	out := make([]state.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status == state.StatusPending {
			out = append(out, e)
		}
	}
	return out
}
