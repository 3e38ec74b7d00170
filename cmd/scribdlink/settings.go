package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	scribdlink "github.com/alnah/go-scribdlink"
	"github.com/alnah/go-scribdlink/internal/config"
	"github.com/alnah/go-scribdlink/internal/fileutil"
	"github.com/alnah/go-scribdlink/internal/hints"
)

// ErrInvalidWorkerCount is returned for --workers outside 0..MaxPoolSize.
var ErrInvalidWorkerCount = errors.New("invalid worker count")

// settings is the merged outcome of defaults, config file, env and flags.
type settings struct {
	cfg     *config.Config
	workers int // 0 = auto
	source  string
}

// loadSettings builds the effective configuration.
// Precedence: CLI flags > env vars > config file > defaults.
func loadSettings(common *commonFlags, provider *providerFlags, addr string, env *Environment) (*settings, error) {
	envCfg := loadEnvConfig()
	warnUnknownEnvVars(env.Stderr)

	name := common.config
	if name == "" {
		name = envCfg.ConfigPath
	}

	cfg := config.DefaultConfig()
	source := "defaults"
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			hint := ""
			if errors.Is(err, config.ErrConfigNotFound) && !fileutil.IsFilePath(name) {
				hint = hints.ForConfigNotFound(config.SearchPaths(name))
			}
			return nil, fmt.Errorf("loading config: %w%s", err, hint)
		}
		cfg = loaded
		source = name
	}

	applyEnvConfig(envCfg, cfg)
	mergeFlags(common, provider, addr, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workers := envCfg.Workers
	if provider != nil && provider.workers != 0 {
		workers = provider.workers
	}
	if err := validateWorkers(workers); err != nil {
		return nil, err
	}

	env.Config = cfg
	return &settings{cfg: cfg, workers: workers, source: source}, nil
}

// mergeFlags applies explicitly set CLI flags to cfg (CLI wins).
func mergeFlags(common *commonFlags, provider *providerFlags, addr string, cfg *config.Config) {
	if common.logLevel != "" {
		cfg.Log.Level = common.logLevel
	}
	if common.logFormat != "" {
		cfg.Log.Format = common.logFormat
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	if provider == nil {
		return
	}
	if provider.backend != "" {
		cfg.Provider.Backend = strings.ToLower(provider.backend)
	}
	if provider.host != "" {
		cfg.Provider.Host = provider.host
	}
	if provider.blockScriptsSet {
		cfg.Interception.BlockScripts = provider.blockScripts
	}
	if provider.timeout > 0 {
		cfg.Provider.Timeout = provider.timeout
	}
}

// validateWorkers checks the worker count is within acceptable range.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d (must be >= 0)", ErrInvalidWorkerCount, n)
	}
	if n > scribdlink.MaxPoolSize {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkerCount, n, scribdlink.MaxPoolSize)
	}
	return nil
}

// resolverOptions translates the config into resolver options.
func resolverOptions(cfg *config.Config, log zerolog.Logger) []scribdlink.Option {
	ic := cfg.Interception
	opts := []scribdlink.Option{
		scribdlink.WithAPIKey(cfg.Provider.APIKey),
		scribdlink.WithProviderHost(cfg.Provider.Host),
		scribdlink.WithBackend(strings.ToLower(cfg.Provider.Backend)),
		scribdlink.WithProfile(scribdlink.InterceptionProfile{
			WaitUntil:          scribdlink.WaitStrategy(strings.ToLower(ic.WaitUntil)),
			NavigationTimeout:  ic.NavigationTimeout,
			SettleDelay:        ic.SettleDelay,
			SettleDelayBlocked: ic.SettleDelayBlocked,
			BlockResources:     ic.BlockResources,
			BlockScripts:       ic.BlockScripts,
		}),
		scribdlink.WithGenerator(scribdlink.Generator{
			BaseURL:  cfg.Generator.BaseURL,
			FileHost: cfg.Generator.FileHost,
		}),
		scribdlink.WithLogger(log),
	}
	if cfg.Provider.Timeout > 0 {
		opts = append(opts, scribdlink.WithTimeout(cfg.Provider.Timeout))
	}
	return opts
}
