package daemonrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"shikiwatch/internal/config"
	"shikiwatch/internal/daemon"
	"shikiwatch/internal/logging"
	"shikiwatch/internal/player"
)

// Options configures daemon process runtime behavior.
type Options struct {
	ConfigPath  string
	LogLevel    string
	Development bool
	// Console overrides stdout for the human-facing log stream.
	Console io.Writer
}

// Run starts the shikiwatch daemon and blocks until SIGINT, SIGTERM or ctx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Logging.Dir, fmt.Sprintf("shikiwatch-%s.log", runID))

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Console:     opts.Console,
		FilePath:    logPath,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.RetentionDays,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Logging.Dir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update shikiwatch.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Logging.Dir, "shikiwatch-*.log", logPath)

	rt, err := Build(cfg, logger, BuildOptions{ConfigPath: opts.ConfigPath})
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}

	monitor := player.New(
		player.DefaultSource(cfg.Monitoring.MPRIS, logger),
		rt.Coordinator.HandleEvent,
		player.WithPlayers(cfg.Monitoring.SupportedPlayers),
		player.WithInterval(cfg.Monitoring.PollInterval()),
		player.WithMinWatch(cfg.Monitoring.MinWatch()),
		player.WithLogger(logger),
		player.WithStopTimeout(5*time.Second),
	)

	d, err := daemon.New(cfg, daemon.Components{
		Monitor:     monitor,
		Coordinator: rt.Coordinator,
		Lists:       rt.Lists,
		Synonyms:    rt.Synonyms,
		Matcher:     rt.Matcher,
		History:     rt.History,
		Notifier:    rt.Notifier,
	}, logger)
	if err != nil {
		_ = rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close failed", logging.Error(err))
		}
	}()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other shikiwatch instance or free the API port"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("shikiwatch daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "shikiwatch.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
