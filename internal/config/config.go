// Package config loads the TOML configuration for batchctl. Every key is
// optional; unset paths derive from the data directory, so status, stop
// and logs work without a config file. Only the worker command itself has
// no default and must be configured before the first start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ztonys/batchctl/internal/logger"
	"github.com/ztonys/batchctl/internal/worker"
)

const (
	EnvConfigPath = "BATCHCTL_CONFIG"

	defaultDataDir     = ".batchctl"
	defaultHandleName  = "worker.pid"
	defaultLogDirName  = "logs"
	defaultInputFile   = "journals.txt"
	defaultOutputDir   = "downloads"
	defaultProgressLog = "batch_log.json"
	defaultListenAddr  = "127.0.0.1:8321"
)

// WorkerConfig is the [worker] table.
type WorkerConfig struct {
	Command     string   `mapstructure:"command"`
	InputFile   string   `mapstructure:"input_file"`
	OutputDir   string   `mapstructure:"output_dir"`
	ProgressLog string   `mapstructure:"progress_log"`
	StartLine   int      `mapstructure:"start_line"`
	EndLine     int      `mapstructure:"end_line"`
	WorkDir     string   `mapstructure:"workdir"`
	Env         []string `mapstructure:"env"`
}

// PathsConfig is the [paths] table.
type PathsConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	HandleFile string `mapstructure:"handle_file"`
	LogDir     string `mapstructure:"log_dir"`
}

// StopConfig is the [stop] table.
type StopConfig struct {
	GracePolls   int           `mapstructure:"grace_polls"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	KillWait     time.Duration `mapstructure:"kill_wait"`
}

// HistoryConfig is the [history] table. An empty DSN disables the sink.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ServerConfig is the [server] table.
type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

// Config is the top-level TOML structure.
type Config struct {
	Worker  WorkerConfig  `mapstructure:"worker"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Stop    StopConfig    `mapstructure:"stop"`
	History HistoryConfig `mapstructure:"history"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     logger.Config `mapstructure:"log"`
}

// Load reads the config file at path. An empty path falls back to
// $BATCHCTL_CONFIG, then to batchctl.toml in the working directory when it
// exists; with no file at all the defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		if _, err := os.Stat("batchctl.toml"); err == nil {
			path = "batchctl.toml"
		}
	}

	cfg := &Config{}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.HandleFile == "" {
		c.Paths.HandleFile = filepath.Join(c.Paths.DataDir, defaultHandleName)
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, defaultLogDirName)
	}
	if c.Worker.InputFile == "" {
		c.Worker.InputFile = defaultInputFile
	}
	if c.Worker.OutputDir == "" {
		c.Worker.OutputDir = defaultOutputDir
	}
	if c.Worker.ProgressLog == "" {
		c.Worker.ProgressLog = defaultProgressLog
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListenAddr
	}
}

// WorkerSpec maps the [worker] table onto a launchable spec.
func (c *Config) WorkerSpec() worker.Spec {
	return worker.Spec{
		Command:     c.Worker.Command,
		InputFile:   c.Worker.InputFile,
		OutputDir:   c.Worker.OutputDir,
		ProgressLog: c.Worker.ProgressLog,
		StartLine:   c.Worker.StartLine,
		EndLine:     c.Worker.EndLine,
		WorkDir:     c.Worker.WorkDir,
		Env:         c.Worker.Env,
	}
}
