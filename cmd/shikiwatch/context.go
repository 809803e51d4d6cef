package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"shikiwatch/internal/config"
	"shikiwatch/internal/daemonctl"
	"shikiwatch/internal/daemonrun"
	"shikiwatch/internal/listcache"
	"shikiwatch/internal/logging"
)

type commandContext struct {
	configFlag  *string
	jsonFlag    *bool
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		jsonFlag:    jsonFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if c.verboseFlag != nil && *c.verboseFlag {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", Console: cmd.ErrOrStderr()})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) client() (*daemonctl.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonctl.FromConfig(cfg), nil
}

func (c *commandContext) lists(cmd *cobra.Command) (*listcache.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return listcache.New(cfg.Cache.Dir, c.logger(cmd)), nil
}

// withRuntime builds the in-process scrobbling stack for commands that run
// without a daemon.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	rt, err := daemonrun.Build(cfg, c.logger(cmd), daemonrun.BuildOptions{ConfigPath: c.configPath})
	if err != nil {
		return err
	}
	runErr := fn(rt)
	closeErr := rt.Close()
	return errors.Join(runErr, closeErr)
}

// daemonOrLocal calls remote against a running daemon and falls back to local
// when the daemon API is unreachable.
func (c *commandContext) daemonOrLocal(cmd *cobra.Command, remote func(*daemonctl.Client) error, local func(*daemonrun.Runtime) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	err = remote(client)
	if err == nil || !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		return err
	}
	if c.verboseFlag != nil && *c.verboseFlag {
		fmt.Fprintln(cmd.ErrOrStderr(), "Daemon not running; working in-process")
	}
	return c.withRuntime(cmd, local)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
