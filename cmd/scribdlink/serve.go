package main

import (
	"context"

	scribdlink "github.com/alnah/go-scribdlink"
	"github.com/alnah/go-scribdlink/internal/server"
)

// runServe runs the HTTP API until ctx is canceled.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}

	st, err := loadSettings(&flags.common, &flags.provider, flags.addr, env)
	if err != nil {
		return err
	}
	cfg := st.cfg
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	log := newLogger(env.Stderr, cfg.Log, &flags.common)

	// A missing key is reported per request with a 500, not at startup.
	if scribdlink.NeedsAPIKey(cfg.Provider.Backend) && cfg.Provider.APIKey == "" {
		log.Warn().Str("backend", cfg.Provider.Backend).Msg("BROWSERLESS_API_KEY is not set; every request will fail")
	}

	size := scribdlink.ResolvePoolSize(st.workers)
	pool := scribdlink.NewResolverPool(size, resolverOptions(cfg, log)...)
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release browser resources")
		}
	}()

	log.Info().
		Str("backend", cfg.Provider.Backend).
		Str("provider", cfg.Provider.Host).
		Int("pool_size", size).
		Str("config", st.source).
		Msg("Starting server")

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, pool, log)
	return srv.Run(ctx)
}
