// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"net/http"
	"os"
	"strings"

	"github.com/alnah/go-scribdlink/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// IsInCI reports whether a common CI environment variable is set.
func IsInCI() bool {
	return os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""
}

// ForBrowserConnect returns hints for local browser launch errors.
// Detects CI/Docker environment and suggests relevant environment variables.
func ForBrowserConnect() string {
	var hints []string

	// Suggest ROD_NO_SANDBOX for container/CI environments
	if (IsInCI() || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}

	// Suggest ROD_BROWSER_BIN if not set
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to use custom Chrome")
	}

	return formatHints(hints)
}

// ForRemoteConnect returns a hint for DevTools websocket failures.
func ForRemoteConnect() string {
	return format("check BROWSERLESS_DOMAIN and that the provider accepts websocket connections")
}

// ForMissingAPIKey returns a hint for a missing provider credential.
func ForMissingAPIKey() string {
	return format("set BROWSERLESS_API_KEY or provider.apiKey in the config file, or use --backend local")
}

// ForUpstreamStatus returns a hint matching the provider's HTTP status.
func ForUpstreamStatus(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return format("the provider rejected the API key; check BROWSERLESS_API_KEY")
	case http.StatusTooManyRequests:
		return format("provider rate limit reached; lower --workers or retry later")
	case http.StatusBadRequest:
		return format("the provider rejected the request; check BROWSERLESS_DOMAIN points at a /function capable endpoint")
	default:
		return ""
	}
}

// ForTimeout returns a hint about increasing timeout for slow operations.
func ForTimeout() string {
	return format("slow redirect chains may need --timeout or SCRIBDLINK_TIMEOUT")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-scribdlink/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	// Find a user config path (contains go-scribdlink) to suggest
	for _, p := range searchedPaths {
		if strings.Contains(p, "go-scribdlink") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
