package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitecrawl"

// SourceTypeWeb is the only source type this tool can crawl.
const SourceTypeWeb = "web"

// File represents the structure of the .sitecrawl configuration file.
// The file is YAML; the equivalent JSON object is accepted as well.
//
// Pointer fields distinguish "not set" from an explicit zero so that a file
// can, for example, disable the idle timeout with idle_timeout_secs: 0.
type File struct {
	// Type is the source type. Only "web" (any case) is supported.
	// An empty type is treated as web.
	Type string `yaml:"type,omitempty"`

	// StartURL is the seed used when no URL is given on the command line.
	StartURL string `yaml:"start_url,omitempty"`

	// MaxConcurrency defaults to DefaultFileMaxConcurrency when omitted.
	MaxConcurrency *int `yaml:"max_concurrency,omitempty"`

	AllowExternal   *bool    `yaml:"allow_external,omitempty"`
	IncludePatterns []string `yaml:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	WebDriverURL string   `yaml:"webdriver_url,omitempty"`
	FallbackURLs []string `yaml:"fallback_urls,omitempty"`
	Transport    string   `yaml:"transport,omitempty"`

	IdleTimeoutSecs  *int `yaml:"idle_timeout_secs,omitempty"`
	TotalTimeoutSecs *int `yaml:"total_timeout_secs,omitempty"`

	RespectRobots *bool    `yaml:"respect_robots,omitempty"`
	RateLimit     *float64 `yaml:"rate_limit,omitempty"`

	UserAgent string            `yaml:"user_agent,omitempty"`
	Cookie    string            `yaml:"cookie,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`

	// Sites holds per-host overrides keyed by host name.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// A source type other than web is rejected with ErrUnsupportedSource.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	return ParseConfigFile(data)
}

// ParseConfigFile decodes YAML or JSON configuration data.
func ParseConfigFile(data []byte) (*File, error) {
	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if t := strings.ToLower(strings.TrimSpace(cf.Type)); t != "" && t != SourceTypeWeb {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, cf.Type)
	}
	if cf.Transport != "" {
		if _, err := ParseTransport(cf.Transport); err != nil {
			return nil, fmt.Errorf("%w: %q", err, cf.Transport)
		}
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// Apply copies every value set in the file into cfg.
func (cf *File) Apply(cfg *Config) {
	if cf.StartURL != "" {
		cfg.Targets = []string{cf.StartURL}
	}

	cfg.MaxConcurrency = DefaultFileMaxConcurrency
	if cf.MaxConcurrency != nil {
		cfg.MaxConcurrency = *cf.MaxConcurrency
	}
	if cf.AllowExternal != nil {
		cfg.AllowExternal = *cf.AllowExternal
	}
	if len(cf.IncludePatterns) > 0 {
		cfg.IncludePatterns = append([]string(nil), cf.IncludePatterns...)
	}
	if len(cf.ExcludePatterns) > 0 {
		cfg.ExcludePatterns = append([]string(nil), cf.ExcludePatterns...)
	}

	if cf.WebDriverURL != "" {
		cfg.WebDriverURL = cf.WebDriverURL
	}
	if len(cf.FallbackURLs) > 0 {
		cfg.FallbackURLs = append([]string(nil), cf.FallbackURLs...)
	}
	if cf.Transport != "" {
		// Validated by ParseConfigFile.
		cfg.Transport, _ = ParseTransport(cf.Transport) //nolint:errcheck
	}

	if cf.IdleTimeoutSecs != nil {
		cfg.IdleTimeout = seconds(*cf.IdleTimeoutSecs)
	}
	if cf.TotalTimeoutSecs != nil {
		cfg.TotalTimeout = seconds(*cf.TotalTimeoutSecs)
	}

	if cf.RespectRobots != nil {
		cfg.RespectRobots = *cf.RespectRobots
	}
	if cf.RateLimit != nil {
		cfg.RateLimit = *cf.RateLimit
	}

	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
	if cf.Cookie != "" {
		cfg.Cookie = cf.Cookie
	}
	if len(cf.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(cf.Headers))
		}
		for k, v := range cf.Headers {
			cfg.Headers[k] = v
		}
	}

	if len(cf.Sites) > 0 {
		cfg.Sites = make(map[string]SiteConfig, len(cf.Sites))
		for host, site := range cf.Sites {
			cfg.Sites[strings.ToLower(host)] = site
		}
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .sitecrawl in the current directory
// 3. Look for .sitecrawl in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Load resolves and applies the config file to cfg. When cfg.ConfigFilePath
// is set and the file is missing, ErrConfigNotFound is returned; otherwise
// a missing file is not an error. It returns the path that was applied.
func Load(cfg *Config) (string, error) {
	path := FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return "", nil
	}

	cf, err := LoadConfigFile(path)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	cf.Apply(cfg)
	return path, nil
}
