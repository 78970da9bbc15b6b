package astgrep

import (
	"os"
	"strconv"
	"time"
)

// Config holds server-side settings for the dispatcher and binary manager.
// Everything is env-first so the server stays usable as a bare MCP stdio
// command with no config file.
type Config struct {
	// BinaryVersion is the ast-grep release downloaded when no binary is
	// found locally.
	BinaryVersion string
	// Timeout bounds a single subprocess invocation.
	Timeout time.Duration
}

// Environment variables read by LoadConfig.
const (
	EnvBinaryVersion = "ASTGREP_MCP_BINARY_VERSION"
	EnvTimeout       = "ASTGREP_MCP_TIMEOUT_SECONDS"
)

// LoadConfig builds a Config from the environment with defaults.
func LoadConfig() Config {
	cfg := Config{
		BinaryVersion: DefaultBinaryVersion,
		Timeout:       DefaultTimeout,
	}
	if v := os.Getenv(EnvBinaryVersion); v != "" {
		cfg.BinaryVersion = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	return cfg
}
