package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scribdlink <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  resolve    Resolve Scribd URLs to direct download links")
	fmt.Fprintln(w, "  serve      Run the HTTP API")
	fmt.Fprintln(w, "  doctor     Check provider credentials and browser setup")
	fmt.Fprintln(w, "  config     Print the effective configuration")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'scribdlink help <command>' for details on a specific command.")
}

// printCommonUsage prints the flags every command accepts.
func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Debug logging and timings")
	fmt.Fprintln(w, "      --log-level <s>       debug, info, warn, error")
	fmt.Fprintln(w, "      --log-format <s>      console, json")
}

// printProviderUsage prints the resolver flags.
func printProviderUsage(w io.Writer) {
	fmt.Fprintln(w, "Provider:")
	fmt.Fprintln(w, "  -b, --backend <s>         function (default), cdp, local")
	fmt.Fprintln(w, "      --host <s>            Provider host or URL (BROWSERLESS_DOMAIN)")
	fmt.Fprintln(w, "      --block-scripts       Block page scripts (BLOCK_SCRIPTS=true)")
	fmt.Fprintln(w, "  -t, --timeout <d>         Whole-resolution timeout, e.g. 90s")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel resolvers (0 = auto, max 8)")
}

// printEnvUsage lists the recognized environment variables.
func printEnvUsage(w io.Writer) {
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  BROWSERLESS_API_KEY       Provider token (required except for --backend local)")
	fmt.Fprintln(w, "  BROWSERLESS_DOMAIN        Provider host (default production-sfo.browserless.io)")
	fmt.Fprintln(w, "  BLOCK_SCRIPTS             \"true\" blocks page scripts")
	fmt.Fprintln(w, "  SCRIBDLINK_CONFIG, SCRIBDLINK_BACKEND, SCRIBDLINK_ADDR,")
	fmt.Fprintln(w, "  SCRIBDLINK_LOG_LEVEL, SCRIBDLINK_WORKERS, SCRIBDLINK_TIMEOUT")
}

// printResolveUsage prints usage for the resolve command.
func printResolveUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scribdlink resolve <url>... [flags]")
	fmt.Fprintln(w, "       scribdlink resolve - [flags]   (URLs from stdin, one per line)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Resolve Scribd share URLs to direct download links.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "      --json                One JSON object per URL")
	fmt.Fprintln(w, "  -n, --dry-run             Show identity and target URL, do not call the provider")
	fmt.Fprintln(w)
	printProviderUsage(w)
	fmt.Fprintln(w)
	printCommonUsage(w)
	fmt.Fprintln(w)
	printEnvUsage(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scribdlink serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run the HTTP API:")
	fmt.Fprintln(w, "  POST /api/getScribdLink   {\"scribdUrl\": \"...\"} -> {\"downloadLink\": \"...\"}")
	fmt.Fprintln(w, "  GET  /healthz")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "  -a, --addr <host:port>    Listen address (default :8080, SCRIBDLINK_ADDR)")
	fmt.Fprintln(w)
	printProviderUsage(w)
	fmt.Fprintln(w)
	printCommonUsage(w)
	fmt.Fprintln(w)
	printEnvUsage(w)
}

// printDoctorUsage prints usage for the doctor command.
func printDoctorUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scribdlink doctor [--json]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Check the API key, provider settings, Chrome and container/CI setup.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "      --json                Machine-readable output")
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// printConfigUsage prints usage for the config command.
func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scribdlink config [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Print the effective configuration (defaults, file, env and flags merged)")
	fmt.Fprintln(w, "as YAML. The API key is masked.")
	fmt.Fprintln(w)
	printProviderUsage(w)
	fmt.Fprintln(w)
	printCommonUsage(w)
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) error {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return nil
	}

	switch args[0] {
	case "resolve":
		printResolveUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		printDoctorUsage(env.Stdout)
	case "config":
		printConfigUsage(env.Stdout)
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: scribdlink version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: scribdlink help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		printUsage(env.Stderr)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	return nil
}
