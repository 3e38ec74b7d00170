package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-scribdlink/internal/config"
)

// envPrefix marks variables owned by this tool.
const envPrefix = "SCRIBDLINK_"

// envConfig holds configuration from environment variables.
// The three provider variables keep the names the hosted function used.
type envConfig struct {
	// Provider
	APIKey       string // BROWSERLESS_API_KEY: provider token
	Domain       string // BROWSERLESS_DOMAIN: provider host
	BlockScripts string // BLOCK_SCRIPTS: "true" blocks page scripts

	// Tool
	ConfigPath string        // SCRIBDLINK_CONFIG: config file name or path
	Backend    string        // SCRIBDLINK_BACKEND: function, cdp, local
	Addr       string        // SCRIBDLINK_ADDR: serve listen address
	LogLevel   string        // SCRIBDLINK_LOG_LEVEL: zerolog level
	Workers    int           // SCRIBDLINK_WORKERS: pool size
	Timeout    time.Duration // SCRIBDLINK_TIMEOUT: whole-resolution ceiling
}

// knownEnvVars lists valid SCRIBDLINK_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"SCRIBDLINK_CONFIG":    true,
	"SCRIBDLINK_BACKEND":   true,
	"SCRIBDLINK_ADDR":      true,
	"SCRIBDLINK_LOG_LEVEL": true,
	"SCRIBDLINK_WORKERS":   true,
	"SCRIBDLINK_TIMEOUT":   true,
	"SCRIBDLINK_CONTAINER": true, // doctor override
}

// loadEnvConfig reads configuration from environment variables.
// Unparseable numbers and durations are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		APIKey:       os.Getenv("BROWSERLESS_API_KEY"),
		Domain:       os.Getenv("BROWSERLESS_DOMAIN"),
		BlockScripts: os.Getenv("BLOCK_SCRIPTS"),
		ConfigPath:   os.Getenv("SCRIBDLINK_CONFIG"),
		Backend:      os.Getenv("SCRIBDLINK_BACKEND"),
		Addr:         os.Getenv("SCRIBDLINK_ADDR"),
		LogLevel:     os.Getenv("SCRIBDLINK_LOG_LEVEL"),
	}

	if timeout := os.Getenv("SCRIBDLINK_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if workers := os.Getenv("SCRIBDLINK_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars prints a warning for each unrecognized SCRIBDLINK_* variable.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overlays set environment values onto cfg.
// The config already carries file values and defaults, so a set variable
// always wins: CLI flags > env vars > config file > defaults
// (flags are applied afterwards by mergeFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.APIKey != "" {
		cfg.Provider.APIKey = env.APIKey
	}
	if env.Domain != "" {
		cfg.Provider.Host = env.Domain
	}
	if env.BlockScripts != "" {
		cfg.Interception.BlockScripts = env.BlockScripts == "true"
	}
	if env.Backend != "" {
		cfg.Provider.Backend = strings.ToLower(env.Backend)
	}
	if env.Timeout > 0 {
		cfg.Provider.Timeout = env.Timeout
	}
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
}
