package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/shot-relay/pkg/config"
	"github.com/0xmhha/shot-relay/pkg/discovery"
	"github.com/0xmhha/shot-relay/pkg/logger"
	"github.com/0xmhha/shot-relay/pkg/state"
)

// isolateEnv clears every variable the config loader reads and points HOME
// at an empty directory.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range config.EnvNames() {
		t.Setenv(name, "")
	}
	t.Setenv("HOME", t.TempDir())
}

// TestVersionFlag tests version flag handling.
func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-version"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "shot-relay " + version + "\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

// TestCommandRouting tests that unknown commands are rejected.
func TestCommandRouting(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantOut string
	}{
		{"help command", []string{"help"}, "", "Usage:"},
		{"config help", []string{"config"}, "", "Subcommands:"},
		{"unknown command", []string{"bogus"}, "unknown command: bogus", ""},
		{"unknown config subcommand", []string{"config", "reset"}, "unknown config subcommand: reset", ""},
		{"bad global flag", []string{"-nope"}, "flag provided but not defined", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), tt.args, &out)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output missing %q:\n%s", tt.wantOut, out.String())
			}
		})
	}
}

// TestParseStatusFlags tests status command flag parsing.
func TestParseStatusFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantCmd   statusCommand
		wantError bool
	}{
		{
			name: "default flags off a terminal",
			args: []string{},
			wantCmd: statusCommand{
				format:     "json",
				configPath: "/test/config.yaml",
			},
		},
		{
			name: "pending only",
			args: []string{"-pending"},
			wantCmd: statusCommand{
				format:      "json",
				pendingOnly: true,
				configPath:  "/test/config.yaml",
			},
		},
		{
			name: "combined flags",
			args: []string{"-format", "table", "-timestamps", "-compact", "-state", "/tmp/s.json"},
			wantCmd: statusCommand{
				format:         "table",
				showTimestamps: true,
				compact:        true,
				statePath:      "/tmp/s.json",
				configPath:     "/test/config.yaml",
			},
		},
		{
			name:      "unknown flag",
			args:      []string{"-top", "3"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := parseStatusFlags("/test/config.yaml", tt.args, &out)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got.format != tt.wantCmd.format {
				t.Errorf("format = %q, want %q", got.format, tt.wantCmd.format)
			}
			if got.pendingOnly != tt.wantCmd.pendingOnly {
				t.Errorf("pendingOnly = %v, want %v", got.pendingOnly, tt.wantCmd.pendingOnly)
			}
			if got.showTimestamps != tt.wantCmd.showTimestamps {
				t.Errorf("showTimestamps = %v, want %v", got.showTimestamps, tt.wantCmd.showTimestamps)
			}
			if got.compact != tt.wantCmd.compact {
				t.Errorf("compact = %v, want %v", got.compact, tt.wantCmd.compact)
			}
			if got.statePath != tt.wantCmd.statePath {
				t.Errorf("statePath = %q, want %q", got.statePath, tt.wantCmd.statePath)
			}
			if got.configPath != tt.wantCmd.configPath {
				t.Errorf("configPath = %q, want %q", got.configPath, tt.wantCmd.configPath)
			}
		})
	}
}

// writeState builds a state file with one sent and one failed record.
func writeState(t *testing.T, now time.Time) (statePath, sentPath, pendingPath string) {
	t.Helper()
	dir := t.TempDir()
	statePath = filepath.Join(dir, "send_state.json")
	sentPath = filepath.Join(dir, "a.png")
	pendingPath = filepath.Join(dir, "b.png")

	store, err := state.Open(state.Config{
		Path: statePath,
		Now:  func() time.Time { return now },
	}, logger.Noop())
	require.NoError(t, err)

	_, err = store.MarkDiscovered(sentPath)
	require.NoError(t, err)
	require.NoError(t, store.MarkSent(sentPath))

	_, err = store.MarkDiscovered(pendingPath)
	require.NoError(t, err)
	_, err = store.MarkFailed(pendingPath, "telegram send returned false", time.Minute, time.Hour)
	require.NoError(t, err)

	return statePath, sentPath, pendingPath
}

func TestStatusCommandSimple(t *testing.T) {
	now := time.Now().UTC()
	statePath, sentPath, pendingPath := writeState(t, now)

	var out bytes.Buffer
	cmd := &statusCommand{
		statePath: statePath,
		format:    "simple",
		out:       &out,
		now:       func() time.Time { return now },
	}
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Tracked: 2 | Sent: 1 | Pending: 1 | Due: 0")
	assert.Contains(t, text, "sent "+sentPath+" (attempts: 0)")
	assert.Contains(t, text, "pending "+pendingPath+" (attempts: 1)")
	assert.Contains(t, text, "error: telegram send returned false")
}

func TestStatusCommandPendingOnly(t *testing.T) {
	now := time.Now().UTC()
	statePath, sentPath, pendingPath := writeState(t, now)

	var out bytes.Buffer
	cmd := &statusCommand{
		statePath:   statePath,
		format:      "simple",
		pendingOnly: true,
		out:         &out,
		// The summary still counts everything; a minute later the retry is due.
		now: func() time.Time { return now.Add(2 * time.Minute) },
	}
	require.NoError(t, cmd.Execute())

	text := out.String()
	assert.Contains(t, text, "Tracked: 2 | Sent: 1 | Pending: 1 | Due: 1")
	assert.Contains(t, text, pendingPath)
	assert.NotContains(t, text, "sent "+sentPath)
}

func TestStatusCommandMissingStateFile(t *testing.T) {
	var out bytes.Buffer
	cmd := &statusCommand{
		statePath: filepath.Join(t.TempDir(), "absent.json"),
		format:    "json",
		out:       &out,
		now:       time.Now,
	}
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"total": 0`)
	assert.Contains(t, out.String(), "[]")
}

func TestStatusCommandUnknownFormat(t *testing.T) {
	cmd := &statusCommand{statePath: "x.json", format: "xml", out: &bytes.Buffer{}, now: time.Now}
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestStatusCommandUsesConfiguredStateFile(t *testing.T) {
	isolateEnv(t)
	now := time.Now().UTC()
	statePath, _, _ := writeState(t, now)

	t.Setenv("SCREENSHOT_DIR", t.TempDir())
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("STATE_FILE", statePath)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"status", "-format", "simple"}, &out))
	assert.Contains(t, out.String(), "Tracked: 2")
}

func TestConfigShowMasksToken(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SCREENSHOT_DIR", "/srv/screenshots")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:secret-token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, run(context.Background(), []string{"config", "show", "-format", format}, &out))

			text := out.String()
			assert.NotContains(t, text, "secret-token")
			assert.Contains(t, text, "********")
			assert.Contains(t, text, "/srv/screenshots")
		})
	}
}

func TestConfigShowInvalidConfig(t *testing.T) {
	isolateEnv(t)

	err := run(context.Background(), []string{"config", "show"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrNoScreenshotDir))
}

func TestConfigPath(t *testing.T) {
	isolateEnv(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"config", "path"}, &out))
	assert.Contains(t, out.String(), config.DefaultConfigPath())
	assert.Contains(t, out.String(), "defaults (no config file found)")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-config", "/etc/relay.yaml", "config", "path"}, &out))
	assert.Contains(t, out.String(), "/etc/relay.yaml [not found]")
}

// testConfig returns a valid configuration rooted in a temp directory.
func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ScreenshotDir = t.TempDir()
	cfg.Telegram.BotToken = "TOKEN"
	cfg.Telegram.ChatID = "42"
	cfg.Telegram.APIURL = apiURL
	cfg.Telegram.Backoff = 0
	cfg.FileReady.Delay = 10 * time.Millisecond
	cfg.FileReady.MinSize = 0
	cfg.State.File = filepath.Join(t.TempDir(), "send_state.json")
	cfg.Steam.CacheDB = ""
	return cfg
}

func TestNewServiceMissingRoot(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.ScreenshotDir = filepath.Join(t.TempDir(), "missing")

	_, err := newService(cfg, logger.Noop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, discovery.ErrRootNotFound))
}

func TestOpenNameStoreFallsBackToMemory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	// A regular file where the parent directory should be cannot be created.
	store := openNameStore(filepath.Join(blocker, "names.db"), logger.Noop())
	require.NotNil(t, store)
	require.NoError(t, store.Put("440", "Team Fortress 2"))
	name, err := store.Get("440")
	require.NoError(t, err)
	assert.Equal(t, "Team Fortress 2", name)
	require.NoError(t, store.Close())
}

func TestServeDeliversExistingScreenshot(t *testing.T) {
	uploads := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendPhoto" {
			http.NotFound(w, r)
			return
		}
		_, header, err := r.FormFile("photo")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		uploads <- header.Filename
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	shot := filepath.Join(cfg.ScreenshotDir, "shot.png")
	require.NoError(t, os.WriteFile(shot, []byte("png bytes"), 0600))

	svc, err := newService(cfg, logger.Noop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- svc.serve(ctx) }()

	select {
	case name := <-uploads:
		assert.Equal(t, "shot.png", name)
	case <-time.After(5 * time.Second):
		t.Fatal("screenshot was not uploaded")
	}

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	store, err := state.Open(state.Config{Path: cfg.State.File}, logger.Noop())
	require.NoError(t, err)
	rec, ok := store.Get(shot)
	require.True(t, ok)
	assert.Equal(t, state.StatusSent, rec.Status)
}
