// Package config loads the run configuration: a YAML file describing
// both hosts and the benchmark battery, with environment-variable
// overrides for secrets and tuning so credentials can stay out of the
// file when desired.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/QingMing-Bot/nvmeof-runner/internal/domain"
)

// ResultFile is the fixed-name report artifact written to the CWD.
const ResultFile = "nvmeof_test_results.json"

// Config holds everything one orchestration run needs.
type Config struct {
	Target    domain.TargetConfig    `yaml:"target"`
	Initiator domain.InitiatorConfig `yaml:"initiator"`
	Battery   []domain.BenchmarkSpec `yaml:"battery"`

	SettleDelaySec int    `yaml:"settle_delay_sec"`
	DataDir        string `yaml:"data_dir"`

	HistoryRetentionDays int `yaml:"history_retention_days"`
	HistoryMaxRows       int `yaml:"history_max_rows"`
	HistoryFlushInterval int `yaml:"history_flush_interval"`
	HistoryBatchSize     int `yaml:"history_batch_size"`
}

// Load reads the YAML file at path and applies env overrides and
// defaults. Environment variables:
//
//	NVMEOF_DATA_DIR            data directory (default "data")
//	NVMEOF_TARGET_PASSWORD     target SSH password override
//	NVMEOF_INITIATOR_PASSWORD  initiator SSH password override
//	NVMEOF_HISTORY_RETENTION_DAYS / NVMEOF_HISTORY_MAX_ROWS
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, err
		}
	}

	c.DataDir = envOr("NVMEOF_DATA_DIR", defStr(c.DataDir, "data"))
	if v := os.Getenv("NVMEOF_TARGET_PASSWORD"); v != "" {
		c.Target.SSH.Password = v
	}
	if v := os.Getenv("NVMEOF_INITIATOR_PASSWORD"); v != "" {
		c.Initiator.SSH.Password = v
	}
	c.HistoryRetentionDays = envInt("NVMEOF_HISTORY_RETENTION_DAYS", defInt(c.HistoryRetentionDays, 30))
	c.HistoryMaxRows = envInt("NVMEOF_HISTORY_MAX_ROWS", defInt(c.HistoryMaxRows, 10000))
	if c.HistoryFlushInterval <= 0 {
		c.HistoryFlushInterval = 2
	}
	if c.HistoryBatchSize <= 0 {
		c.HistoryBatchSize = 20
	}
	if c.SettleDelaySec <= 0 {
		c.SettleDelaySec = 2
	}

	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return nil, err
	}
	return c, nil
}

// DBPath returns the sqlite file path.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "runs.db") }

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func defStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
