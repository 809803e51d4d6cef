package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"shikiwatch/internal/config"
	"shikiwatch/internal/daemon"
	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/player"
	"shikiwatch/internal/testsupport"
	"shikiwatch/internal/watchlist"
)

type cliTestEnv struct {
	cfg        *config.Config
	fake       *testsupport.FakeShikimori
	configPath string
	daemon     *daemon.Daemon
}

func testRates() []watchlist.TrackedEntry {
	return []watchlist.TrackedEntry{
		{
			RateID:    11,
			Status:    watchlist.StatusWatching,
			Episodes:  4,
			UpdatedAt: time.Now().Add(-3 * time.Hour),
			Anime:     &watchlist.Item{ID: 16498, Name: "Shingeki no Kyojin", Episodes: 25},
		},
		{
			RateID:   12,
			Status:   watchlist.StatusCompleted,
			Episodes: 26,
			Score:    9,
			Anime:    &watchlist.Item{ID: 457, Name: "Mushishi", Episodes: 26},
		},
		{
			RateID: 13,
			Status: watchlist.StatusPlanned,
			Anime:  &watchlist.Item{ID: 52991, Name: "Sousou no Frieren", Episodes: 28},
		},
	}
}

// setupCLITestEnv writes a config pointing at a fake Shikimori with the API
// bound to a port nothing listens on.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	fake := testsupport.NewFakeShikimori(t, testsupport.TestUserID, testRates()...)
	cfg := testsupport.NewConfig(t, testsupport.WithShikimori(fake), testsupport.WithMonitoring(false))
	cfg.API.Bind = "127.0.0.1:1"
	env := &cliTestEnv{
		cfg:        cfg,
		fake:       fake,
		configPath: filepath.Join(testsupport.BaseDir(cfg), "config.toml"),
	}
	writeTestConfig(t, env.configPath, cfg)
	return env
}

// startDaemon runs a daemon with its API on an ephemeral port and rewrites
// the config so CLI commands reach it.
func (env *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()
	env.cfg.API.Enabled = true
	env.cfg.API.Bind = "127.0.0.1:0"
	logger := logging.NewNop()
	rt, err := daemonrun.Build(env.cfg, logger, daemonrun.BuildOptions{})
	if err != nil {
		t.Fatalf("daemonrun.Build: %v", err)
	}
	idle := player.SourceFunc(func(context.Context) ([]player.Window, error) { return nil, nil })
	d, err := daemon.New(env.cfg, daemon.Components{
		Monitor:     player.New(idle, rt.Coordinator.HandleEvent),
		Coordinator: rt.Coordinator,
		Lists:       rt.Lists,
		Synonyms:    rt.Synonyms,
		Matcher:     rt.Matcher,
		History:     rt.History,
		Notifier:    rt.Notifier,
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	env.daemon = d
	env.cfg.API.Bind = d.APIAddr()
	writeTestConfig(t, env.configPath, env.cfg)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
