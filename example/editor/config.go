package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type config struct {
	Addr             string
	ShutdownTimeout  time.Duration
	MaxContentLength uint64
}

type fileConfig struct {
	Addr             string `toml:"addr"`
	ShutdownTimeout  string `toml:"shutdown_timeout"`
	MaxContentLength uint64 `toml:"max_content_length"`
}

func defaultConfig() config {
	return config{
		Addr:            "127.0.0.1:9252",
		ShutdownTimeout: 5 * time.Second,
	}
}

// loadConfig reads the TOML file at path, falling back to defaults for
// anything not set. An empty path returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load config")
	}

	if meta.IsDefined("addr") {
		cfg.Addr = raw.Addr
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(raw.ShutdownTimeout)
		if err != nil {
			return config{}, errors.Wrap(err, "parse shutdown_timeout")
		}
		cfg.ShutdownTimeout = d
	}
	if meta.IsDefined("max_content_length") {
		cfg.MaxContentLength = raw.MaxContentLength
	}

	return cfg, nil
}
