package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"

	scribdlink "github.com/alnah/go-scribdlink"
	"github.com/alnah/go-scribdlink/internal/fileutil"
	"github.com/alnah/go-scribdlink/internal/hints"
)

// chromeVersionTimeout bounds `chrome --version`.
const chromeVersionTimeout = 5 * time.Second

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string       `json:"status"` // "ready", "warnings", "errors"
	Provider providerInfo `json:"provider"`
	Chrome   chromeInfo   `json:"chrome"`
	Env      envInfo      `json:"environment"`
	Warnings []string     `json:"warnings,omitempty"`
	Errors   []string     `json:"errors,omitempty"`
}

// providerInfo describes where resolutions will be sent.
type providerInfo struct {
	Backend      string `json:"backend"`
	Host         string `json:"host"`
	APIKeySet    bool   `json:"api_key_set"`
	BlockScripts bool   `json:"block_scripts"`
	ConfigSource string `json:"config_source"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
	Sandbox  bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, env *Environment) int {
	flags, err := parseDoctorFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}

	st, err := loadSettings(&flags.common, nil, "", env)
	if err != nil {
		fmt.Fprintln(env.Stderr, err)
		return exitCodeFor(err)
	}

	result := runDoctor(st)

	if flags.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(st *settings) *doctorResult {
	cfg := st.cfg
	result := &doctorResult{
		Status: "ready",
		Provider: providerInfo{
			Backend:      cfg.Provider.Backend,
			Host:         cfg.Provider.Host,
			APIKeySet:    cfg.Provider.APIKey != "",
			BlockScripts: cfg.Interception.BlockScripts,
			ConfigSource: st.source,
		},
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  os.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	checkProvider(result)
	checkChrome(result)
	checkEnvironment(result)

	// Determine final status
	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkProvider verifies the credential the chosen backend needs.
func checkProvider(result *doctorResult) {
	p := result.Provider
	if scribdlink.NeedsAPIKey(p.Backend) && !p.APIKeySet {
		result.Errors = append(result.Errors,
			fmt.Sprintf("No API key for the %s backend. Set BROWSERLESS_API_KEY", p.Backend))
	}
	if strings.HasPrefix(p.Host, "http://") && p.Backend != scribdlink.BackendLocal {
		result.Warnings = append(result.Warnings,
			"Provider host uses plain http; the API key travels unencrypted")
	}
}

// checkChrome detects Chrome/Chromium installation.
// Only the local backend needs it; for the others a missing browser is
// reported but not an error.
func checkChrome(result *doctorResult) {
	result.Chrome.Required = result.Provider.Backend == scribdlink.BackendLocal
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			if result.Chrome.Required {
				result.Errors = append(result.Errors,
					"Chrome/Chromium not found. Install Chrome or set ROD_BROWSER_BIN")
			}
			return
		}
	}

	if !fileutil.IsExecutable(chromePath) {
		if result.Chrome.Required {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Chrome not found or not executable at %s", chromePath))
		}
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	ctx, cancel := context.WithTimeout(context.Background(), chromeVersionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, chromePath, "--version").Output() // #nosec G204 -- path from LookPath or ROD_BROWSER_BIN
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else if result.Chrome.Required {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	// Sandbox status: disabled if ROD_NO_SANDBOX=1
	result.Chrome.Sandbox = result.Env.NoSandbox != "1"
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()
	result.Env.CI = hints.IsInCI() || os.Getenv("CIRCLECI") != ""

	// Only a locally launched Chrome cares about the sandbox
	if result.Chrome.Required && (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	// Explicit override (highest priority)
	if os.Getenv("SCRIBDLINK_CONTAINER") == "1" {
		return true, "SCRIBDLINK_CONTAINER=1"
	}
	if hints.IsInContainer() {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn / general container indicator
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "scribdlink doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Provider")
	fmt.Fprintf(w, "  [OK] Backend: %s\n", r.Provider.Backend)
	if r.Provider.Backend != scribdlink.BackendLocal {
		fmt.Fprintf(w, "  [OK] Host: %s\n", r.Provider.Host)
		if r.Provider.APIKeySet {
			fmt.Fprintln(w, "  [OK] API key: set")
		} else {
			fmt.Fprintln(w, "  [ERROR] API key: missing")
		}
	}
	fmt.Fprintf(w, "  [OK] Block scripts: %v\n", r.Provider.BlockScripts)
	fmt.Fprintf(w, "  [OK] Config: %s\n", r.Provider.ConfigSource)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	switch {
	case r.Chrome.Found:
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled (ROD_NO_SANDBOX=1)")
		}
	case r.Chrome.Required:
		fmt.Fprintln(w, "  [ERROR] Not found")
	default:
		fmt.Fprintln(w, "  [OK] Not found (not needed by this backend)")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", e)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: READY")
	case "warnings":
		fmt.Fprintln(w, "Status: READY (with warnings)")
	default:
		fmt.Fprintln(w, "Status: NOT READY")
	}
}
