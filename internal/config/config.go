// Package config loads and validates the scribdlink YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alnah/go-scribdlink/internal/fileutil"
	"github.com/alnah/go-scribdlink/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// AppDir is the directory searched under the user config dir.
const AppDir = "go-scribdlink"

// Field length limits.
const (
	MaxHostLength    = 253  // DNS name limit
	MaxAPIKeyLength  = 512  // provider tokens are far shorter
	MaxURLLength     = 2048 // Browser limit
	MaxAddrLength    = 256  // host:port
	MaxBackendLength = 16
)

// Accepted enum values.
var (
	Backends       = []string{"function", "cdp", "local"}
	WaitStrategies = []string{"domcontentloaded", "networkidle"}
	LogFormats     = []string{"console", "json"}
)

// Defaults mirrored from the resolver so a printed config is complete.
const (
	DefaultHost               = "production-sfo.browserless.io"
	DefaultBackend            = "function"
	DefaultWaitUntil          = "domcontentloaded"
	DefaultNavigationTimeout  = 55 * time.Second
	DefaultSettleDelay        = 1500 * time.Millisecond
	DefaultSettleDelayBlocked = 500 * time.Millisecond
	DefaultAddr               = ":8080"
	DefaultReadTimeout        = 10 * time.Second
	DefaultWriteTimeout       = 90 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "console"

	// ResolveTimeoutMargin is added to the navigation timeout when
	// provider.timeout is unset.
	ResolveTimeoutMargin = 15 * time.Second
)

// Config holds all configuration for resolution and serving.
type Config struct {
	Provider     ProviderConfig     `yaml:"provider"`
	Interception InterceptionConfig `yaml:"interception"`
	Generator    GeneratorConfig    `yaml:"generator"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
}

// ProviderConfig addresses the remote browser provider.
type ProviderConfig struct {
	Host    string        `yaml:"host"`    // e.g. production-lon.browserless.io, or a full URL
	APIKey  string        `yaml:"apiKey"`  // prefer BROWSERLESS_API_KEY over storing it here
	Backend string        `yaml:"backend"` // "function", "cdp", "local"
	Timeout time.Duration `yaml:"timeout"` // whole-resolution ceiling (0 = derived)
}

// InterceptionConfig tunes the browser session.
type InterceptionConfig struct {
	BlockScripts       bool          `yaml:"blockScripts"`
	BlockResources     bool          `yaml:"blockResources"`
	WaitUntil          string        `yaml:"waitUntil"` // "domcontentloaded", "networkidle"
	NavigationTimeout  time.Duration `yaml:"navigationTimeout"`
	SettleDelay        time.Duration `yaml:"settleDelay"`
	SettleDelayBlocked time.Duration `yaml:"settleDelayBlocked"`
}

// GeneratorConfig overrides the redirection service endpoints.
type GeneratorConfig struct {
	BaseURL  string `yaml:"baseURL"`
	FileHost string `yaml:"fileHost"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// LogConfig configures diagnostics output.
type LogConfig struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // "console", "json"
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Host:    DefaultHost,
			Backend: DefaultBackend,
		},
		Interception: InterceptionConfig{
			BlockResources:     true,
			WaitUntil:          DefaultWaitUntil,
			NavigationTimeout:  DefaultNavigationTimeout,
			SettleDelay:        DefaultSettleDelay,
			SettleDelayBlocked: DefaultSettleDelayBlocked,
		},
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Validate checks enums, durations and field lengths.
// Called automatically by LoadConfig, but available for callers that build
// a Config by hand or apply overrides after loading.
func (c *Config) Validate() error {
	if err := validateFieldLength("provider.host", c.Provider.Host, MaxHostLength); err != nil {
		return err
	}
	if err := validateFieldLength("provider.apiKey", c.Provider.APIKey, MaxAPIKeyLength); err != nil {
		return err
	}
	if err := validateFieldLength("provider.backend", c.Provider.Backend, MaxBackendLength); err != nil {
		return err
	}
	if err := validateEnum("provider.backend", c.Provider.Backend, Backends); err != nil {
		return err
	}
	if err := validateNonNegative("provider.timeout", c.Provider.Timeout); err != nil {
		return err
	}

	if err := validateEnum("interception.waitUntil", c.Interception.WaitUntil, WaitStrategies); err != nil {
		return err
	}
	if err := validateNonNegative("interception.navigationTimeout", c.Interception.NavigationTimeout); err != nil {
		return err
	}
	if err := validateNonNegative("interception.settleDelay", c.Interception.SettleDelay); err != nil {
		return err
	}
	if err := validateNonNegative("interception.settleDelayBlocked", c.Interception.SettleDelayBlocked); err != nil {
		return err
	}

	if err := validateURL("generator.baseURL", c.Generator.BaseURL); err != nil {
		return err
	}
	if err := validateURL("generator.fileHost", c.Generator.FileHost); err != nil {
		return err
	}

	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}
	if err := validateNonNegative("server.readTimeout", c.Server.ReadTimeout); err != nil {
		return err
	}
	if err := validateNonNegative("server.writeTimeout", c.Server.WriteTimeout); err != nil {
		return err
	}

	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			return fmt.Errorf("%w: log.level %q", ErrInvalidValue, c.Log.Level)
		}
	}
	if err := validateEnum("log.format", c.Log.Format, LogFormats); err != nil {
		return err
	}

	return nil
}

// ResolutionCeiling is the longest a single resolution may run:
// provider.timeout when set, otherwise the navigation timeout plus margin.
func (c *Config) ResolutionCeiling() time.Duration {
	if c.Provider.Timeout > 0 {
		return c.Provider.Timeout
	}
	nav := c.Interception.NavigationTimeout
	if nav <= 0 {
		nav = DefaultNavigationTimeout
	}
	return nav + ResolveTimeoutMargin
}

// ValidateServer checks the settings only serve depends on.
// server.writeTimeout must outlast a resolution, or the connection is cut
// before the JSON answer is written. Zero disables the timeout.
func (c *Config) ValidateServer() error {
	wt := c.Server.WriteTimeout
	if wt > 0 && wt < c.ResolutionCeiling() {
		return fmt.Errorf("%w: server.writeTimeout %s is shorter than a resolution (%s); raise it or lower provider.timeout/interception.navigationTimeout",
			ErrInvalidValue, wt, c.ResolutionCeiling())
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// validateEnum accepts an empty value or one of allowed, case-insensitively.
func validateEnum(fieldName, value string, allowed []string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q (must be %s)", ErrInvalidValue, fieldName, value, strings.Join(allowed, ", "))
}

func validateNonNegative(fieldName string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidValue, fieldName, d)
	}
	return nil
}

// validateURL accepts an empty value or an absolute http(s) URL.
func validateURL(fieldName, value string) error {
	if value == "" {
		return nil
	}
	if err := validateFieldLength(fieldName, value, MaxURLLength); err != nil {
		return err
	}
	if !strings.HasPrefix(value, "https://") && !strings.HasPrefix(value, "http://") {
		return fmt.Errorf("%w: %s %q (must start with http:// or https://)", ErrInvalidValue, fieldName, value)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Values absent from the file keep their defaults.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := yamlutil.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SearchPaths lists where a config name is looked up, in order.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-scribdlink/
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2) // 2 locations

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}

	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, AppDir, name+ext))
		}
	}

	return paths
}

// resolveConfigPath returns the first existing search path for name.
func resolveConfigPath(name string) (string, error) {
	triedPaths := SearchPaths(name)
	for _, p := range triedPaths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Provider.APIKey != "" {
		out.Provider.APIKey = "REDACTED"
	}
	return &out
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yamlutil.Marshal(c)
}
