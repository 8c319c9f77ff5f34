package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/viper"

	"github.com/cesargomez89/recshelf/internal/app"
	"github.com/cesargomez89/recshelf/internal/config"
	"github.com/cesargomez89/recshelf/internal/logger"
	"github.com/cesargomez89/recshelf/internal/probe"
	"github.com/cesargomez89/recshelf/internal/storage"
	"github.com/cesargomez89/recshelf/internal/store"
)

// commandContext loads configuration once and builds what commands share.
type commandContext struct {
	v          *viper.Viper
	configFile string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	log *logger.Logger
}

func newCommandContext(v *viper.Viper) *commandContext {
	return &commandContext{v: v}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if path := strings.TrimSpace(c.configFile); path != "" {
			c.v.SetConfigFile(path)
		}
		c.config, c.configErr = config.LoadWith(c.v)
	})
	return c.config, c.configErr
}

// validConfig is ensureConfig plus Validate, for commands that sync.
func (c *commandContext) validConfig() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *commandContext) logger() *logger.Logger {
	if c.log != nil {
		return c.log
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return logger.Default()
	}
	c.log = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return c.log
}

func (c *commandContext) openStore() (*store.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := storage.EnsureDir(filepath.Dir(cfg.DBPath)); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return store.NewSQLiteDB(cfg.DBPath)
}

func (c *commandContext) newSyncService(cfg *config.Config, db *store.DB) (*app.SyncService, error) {
	log := c.logger()
	prober, err := probe.New(cfg.Prober, cfg.FFProbePath, log)
	if err != nil {
		return nil, err
	}
	svc := app.NewSyncService(db, prober, cfg.WatchDir, cfg.ProbeWorkers, log)
	svc.Lock = flock.New(cfg.LockFile())
	return svc, nil
}
