package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the ngramlm configuration file (~/.config/ngramlm/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ModelsDir  string `yaml:"models_dir"`
	Model      string `yaml:"model"`
	LoadMethod string `yaml:"load_method"`

	// Scoring defaults
	Strict       *bool    `yaml:"strict"`
	BOS          string   `yaml:"bos"`
	Window       *int64   `yaml:"window"`
	EOS          *bool    `yaml:"eos"`
	DefaultScore *float64 `yaml:"default_score"`
	Normalize    *bool    `yaml:"normalize"`

	// Build defaults
	ProbBits    *int64 `yaml:"prob_bits"`
	BackoffBits *int64 `yaml:"backoff_bits"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress     string   `yaml:"server_address"`
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
	Burst             *int64   `yaml:"burst"`
}

// conf is loaded by the root command before any subcommand runs.
var conf Config

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ngramlm", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyModelConfig fills model selection flags that were not set explicitly.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.Model != "" && !c.IsSet("model") {
		modelPath = cfg.Model
	}
	if cfg.LoadMethod != "" && !c.IsSet("load-method") {
		loadMethod = cfg.LoadMethod
	}
}

func applyPolicyConfig(c *cli.Command, cfg Config, p *policyFlags) {
	if cfg.Strict != nil && !c.IsSet("strict") {
		p.strict = *cfg.Strict
	}
	if cfg.BOS != "" && !c.IsSet("bos") {
		p.bos = cfg.BOS
	}
	if cfg.Window != nil && !c.IsSet("window") {
		p.window = *cfg.Window
	}
	if cfg.EOS != nil && !c.IsSet("eos") {
		p.eos = *cfg.EOS
	}
	if cfg.DefaultScore != nil && !c.IsSet("default") {
		p.defaultScore = *cfg.DefaultScore
	}
	if cfg.Normalize != nil && !c.IsSet("normalize") {
		p.normalize = *cfg.Normalize
	}
}

func applyBuildConfig(c *cli.Command, cfg Config, probBits, backoffBits *int64) {
	if cfg.ProbBits != nil && !c.IsSet("prob-bits") {
		*probBits = *cfg.ProbBits
	}
	if cfg.BackoffBits != nil && !c.IsSet("backoff-bits") {
		*backoffBits = *cfg.BackoffBits
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, rps *float64, burst *int64) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.RequestsPerSecond != nil && !c.IsSet("rate") {
		*rps = *cfg.RequestsPerSecond
	}
	if cfg.Burst != nil && !c.IsSet("burst") {
		*burst = *cfg.Burst
	}
}
