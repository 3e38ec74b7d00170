package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"
)

// ErrUsage wraps flag parsing failures.
var ErrUsage = errors.New("invalid usage")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config    string
	quiet     bool
	verbose   bool
	logLevel  string
	logFormat string
}

// providerFlags holds flags that shape the resolver.
type providerFlags struct {
	backend         string
	host            string
	blockScripts    bool
	blockScriptsSet bool // --block-scripts given, even as =false
	timeout         time.Duration
	workers         int
}

// resolveFlags holds all flags for the resolve command.
type resolveFlags struct {
	common   commonFlags
	provider providerFlags
	json     bool
	dryRun   bool
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	common   commonFlags
	provider providerFlags
	addr     string
}

// doctorFlags holds all flags for the doctor command.
type doctorFlags struct {
	common commonFlags
	json   bool
}

// configFlags holds all flags for the config command.
type configFlags struct {
	common   commonFlags
	provider providerFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging and timings")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: console, json")
}

// addProviderFlags adds resolver flags to a FlagSet.
func addProviderFlags(fs *flag.FlagSet, f *providerFlags) {
	fs.StringVarP(&f.backend, "backend", "b", "", "backend: function, cdp, local")
	fs.StringVar(&f.host, "host", "", "provider host or URL")
	fs.BoolVar(&f.blockScripts, "block-scripts", false, "block page scripts during interception")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "whole-resolution timeout (0 = derived)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel resolvers (0 = auto)")
}

// newFlagSet returns a FlagSet that reports errors instead of exiting.
// Parse errors are returned, not printed: runMain prints them once.
func newFlagSet(name string, stderr io.Writer, usage func(io.Writer)) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() { usage(stderr) }
	return fs
}

// parseInto parses args and wraps failures with ErrUsage.
// flag.ErrHelp passes through unwrapped so callers can exit 0.
func parseInto(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// parseResolveFlags parses resolve command flags.
func parseResolveFlags(args []string, stderr io.Writer) (*resolveFlags, []string, error) {
	f := &resolveFlags{}
	fs := newFlagSet("resolve", stderr, printResolveUsage)

	addCommonFlags(fs, &f.common)
	addProviderFlags(fs, &f.provider)
	fs.BoolVar(&f.json, "json", false, "print one JSON object per URL")
	fs.BoolVarP(&f.dryRun, "dry-run", "n", false, "print identity and target URL without calling the provider")

	if err := parseInto(fs, args); err != nil {
		return nil, nil, err
	}
	f.provider.blockScriptsSet = fs.Changed("block-scripts")

	return f, fs.Args(), nil
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	f := &serveFlags{}
	fs := newFlagSet("serve", stderr, printServeUsage)

	addCommonFlags(fs, &f.common)
	addProviderFlags(fs, &f.provider)
	fs.StringVarP(&f.addr, "addr", "a", "", "listen address (default :8080)")

	if err := parseInto(fs, args); err != nil {
		return nil, err
	}
	f.provider.blockScriptsSet = fs.Changed("block-scripts")

	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: serve takes no arguments, got %q", ErrUsage, fs.Arg(0))
	}
	return f, nil
}

// parseDoctorFlags parses doctor command flags.
func parseDoctorFlags(args []string, stderr io.Writer) (*doctorFlags, error) {
	f := &doctorFlags{}
	fs := newFlagSet("doctor", stderr, printDoctorUsage)

	addCommonFlags(fs, &f.common)
	fs.BoolVar(&f.json, "json", false, "machine-readable output")

	if err := parseInto(fs, args); err != nil {
		return nil, err
	}
	return f, nil
}

// parseConfigFlags parses config command flags.
func parseConfigFlags(args []string, stderr io.Writer) (*configFlags, error) {
	f := &configFlags{}
	fs := newFlagSet("config", stderr, printConfigUsage)

	addCommonFlags(fs, &f.common)
	addProviderFlags(fs, &f.provider)

	if err := parseInto(fs, args); err != nil {
		return nil, err
	}
	f.provider.blockScriptsSet = fs.Changed("block-scripts")
	return f, nil
}
