package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/simplequeue/sqs"
)

type fileConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Queue          string `toml:"queue"`
	DialTimeout    string `toml:"dial_timeout"`
	ReadTimeout    string `toml:"read_timeout"`
	WriteTimeout   string `toml:"write_timeout"`
	ReceiveTimeout string `toml:"receive_timeout"`
	LogLevel       string `toml:"log_level"`
	MetricsAddr    string `toml:"metrics_addr"`
}

type cliConfig struct {
	Host           string
	Port           int
	Queue          string
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ReceiveTimeout time.Duration
	LogLevel       zerolog.Level
	MetricsAddr    string
}

func defaultConfig() cliConfig {
	return cliConfig{
		Host:        "localhost",
		DialTimeout: sqs.DefaultDialTimeout,
		ReadTimeout: sqs.DefaultReadTimeout,
		LogLevel:    zerolog.InfoLevel,
	}
}

// loadConfig reads path (optional) then applies the SQS_HOST, SQS_PORT and
// SQS_QUEUE environment overrides.
func loadConfig(path string, getenv func(string) string) (cliConfig, error) {
	cfg := defaultConfig()

	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return cliConfig{}, fmt.Errorf("load sqsctl config: %w", err)
		}
		if err := applyFile(&cfg, raw, meta); err != nil {
			return cliConfig{}, err
		}
	}

	if v := strings.TrimSpace(getenv("SQS_HOST")); v != "" {
		cfg.Host = v
	}
	if v := strings.TrimSpace(getenv("SQS_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse SQS_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := strings.TrimSpace(getenv("SQS_QUEUE")); v != "" {
		cfg.Queue = v
	}

	if cfg.Queue == "" {
		return cliConfig{}, errors.New("no queue configured (set queue in the config file or SQS_QUEUE)")
	}
	if cfg.Port == 0 {
		return cliConfig{}, errors.New("no port configured (set port in the config file or SQS_PORT)")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cliConfig{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

func applyFile(cfg *cliConfig, raw fileConfig, meta toml.MetaData) error {
	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("queue") {
		cfg.Queue = strings.TrimSpace(raw.Queue)
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"dial_timeout", raw.DialTimeout, &cfg.DialTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"receive_timeout", raw.ReceiveTimeout, &cfg.ReceiveTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("log_level") {
		level, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = level
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	return nil
}

// clientConfig maps the CLI settings onto the client configuration.
func (c cliConfig) clientConfig(logger sqs.Logger) sqs.Config {
	return sqs.Config{
		DialTimeout:    c.DialTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		ReceiveTimeout: c.ReceiveTimeout,
		Logger:         logger,
	}
}
