package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/sitecrawl/internal/scope"
	"github.com/nao1215/sitecrawl/internal/session"
)

// Default configuration values.
// The crawl defaults mirror the engine defaults so a Config built with
// NewConfig and an Engine built with no options behave identically.
const (
	// DefaultMaxConcurrency is the number of fetches allowed in flight when
	// the crawl is configured from the command line.
	DefaultMaxConcurrency = 4

	// DefaultFileMaxConcurrency is used when a config file omits
	// max_concurrency. Config files historically defaulted to a slightly
	// larger pool than the CLI.
	DefaultFileMaxConcurrency = 5

	// DefaultIdleTimeout aborts a crawl that has not emitted a page for
	// five minutes.
	DefaultIdleTimeout = 300 * time.Second

	// DefaultTotalTimeout caps the wall-clock duration of a crawl.
	DefaultTotalTimeout = 1200 * time.Second

	// DefaultFetchTimeout bounds navigation plus source read of one URL.
	// Rendering pages in a remote browser is slow, so this is generous.
	DefaultFetchTimeout = 45 * time.Second

	// DefaultDequeueTimeout is the base wait of worker 0 for a new URL.
	// Higher-numbered workers wait less.
	DefaultDequeueTimeout = 5 * time.Second

	// DefaultGracePeriod is how long the zero-link watchdog waits before
	// deciding that the seed produced nothing to crawl.
	DefaultGracePeriod = 5 * time.Second

	// DefaultWebDriverURL is the standard Selenium / chromedriver endpoint.
	DefaultWebDriverURL = "http://localhost:4444"

	// DefaultBatchSize of 1 crawls multiple seeds sequentially.
	DefaultBatchSize = 1

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultMaxBodySize limits how much of a response the HTTP transport reads.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent identifies the crawler to servers and to robots.txt groups.
	DefaultUserAgent = session.DefaultUserAgent

	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// EnvWebDriverURL overrides the WebDriver endpoint when non-empty.
	EnvWebDriverURL = "WEBDRIVER_URL"
)

// DefaultFallbackURLs are tried in order when the primary endpoint refuses
// a session: chromedriver, Appium, a DevTools port and the IPv4 Selenium address.
var DefaultFallbackURLs = []string{
	"http://localhost:9515",
	"http://localhost:4723",
	"http://localhost:9222",
	"http://127.0.0.1:4444",
}

// Transport selects how pages are loaded.
type Transport string

const (
	// TransportWebDriver drives a remote browser over the W3C WebDriver protocol.
	TransportWebDriver Transport = "webdriver"
	// TransportCDP drives Chrome over the DevTools protocol.
	TransportCDP Transport = "cdp"
	// TransportHTTP fetches pages with a plain HTTP client. No JavaScript runs.
	TransportHTTP Transport = "http"
)

// ParseTransport converts a user supplied name into a Transport.
// Matching is case-insensitive; the empty string selects WebDriver.
func ParseTransport(s string) (Transport, error) {
	switch Transport(strings.ToLower(strings.TrimSpace(s))) {
	case "", TransportWebDriver:
		return TransportWebDriver, nil
	case TransportCDP:
		return TransportCDP, nil
	case TransportHTTP:
		return TransportHTTP, nil
	default:
		return "", ErrInvalidTransport
	}
}

// Config holds all configuration options for sitecrawl.
// It is populated from defaults, an optional config file, the environment
// and CLI flags, in that order, and then passed down explicitly.
//
// The struct is flat on purpose; every field maps to one flag or one
// config file key.
type Config struct {
	// Targets is the list of seed URLs to crawl.
	Targets []string

	// MaxConcurrency is the number of fetch permits shared by all workers.
	MaxConcurrency int

	// Workers is the number of worker goroutines per crawl.
	// Zero means one worker per permit.
	Workers int

	// IdleTimeout aborts a crawl when no page was emitted for this long.
	// Zero disables the bound.
	IdleTimeout time.Duration

	// TotalTimeout caps the wall-clock time of a crawl. Zero disables it.
	TotalTimeout time.Duration

	// FetchTimeout bounds one navigation plus source read.
	FetchTimeout time.Duration

	// DequeueTimeout is the base wait for a new URL.
	DequeueTimeout time.Duration

	// GracePeriod is the zero-link watchdog delay.
	GracePeriod time.Duration

	// AllowExternal disables the same-host / same-directory restriction.
	AllowExternal bool

	// IncludePatterns are regular expressions; when set, a URL must match one.
	IncludePatterns []string

	// ExcludePatterns are regular expressions appended to the built-in
	// static asset exclusion.
	ExcludePatterns []string

	// Transport selects the page loading backend.
	Transport Transport

	// WebDriverURL is the primary rendering endpoint. For the CDP transport
	// it is the DevTools address.
	WebDriverURL string

	// FallbackURLs are tried after WebDriverURL fails.
	FallbackURLs []string

	// ProxyAddress routes the HTTP transport through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes the HTTP transport through it.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// RespectRobots enables the robots.txt gate.
	RespectRobots bool

	// RateLimit is the per-host request rate in requests per second.
	// Zero means unlimited.
	RateLimit float64

	// UserAgent is sent by the HTTP transport and used for robots.txt groups.
	UserAgent string

	// Cookie is sent with every request of the HTTP transport.
	Cookie string

	// Headers are sent with every request of the HTTP transport.
	Headers map[string]string

	// MaxBodySize limits response bodies of the HTTP transport.
	MaxBodySize int64

	// Sites holds per-host overrides loaded from the config file.
	Sites map[string]SiteConfig

	// MainContent extracts only the main content of HTML pages instead of
	// the whole body text.
	MainContent bool

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// OutputFile receives the JSON Lines page stream. Empty means stdout.
	OutputFile string

	// JSONSummary prints the run summary as JSON.
	JSONSummary bool

	// MarkdownSummary prints the run summary as Markdown.
	MarkdownSummary bool

	// SummaryFile receives the run summary. Empty means stderr.
	SummaryFile string

	// MetricsAddr serves Prometheus metrics when non-empty (e.g. ":9090").
	MetricsAddr string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches logging to JSON lines.
	LogJSON bool

	// ConfigFilePath is an explicit config file location.
	ConfigFilePath string

	// DBDir holds the run history database.
	DBDir string

	// SaveToDB records each run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxConcurrency:    DefaultMaxConcurrency,
		IdleTimeout:       DefaultIdleTimeout,
		TotalTimeout:      DefaultTotalTimeout,
		FetchTimeout:      DefaultFetchTimeout,
		DequeueTimeout:    DefaultDequeueTimeout,
		GracePeriod:       DefaultGracePeriod,
		Transport:         TransportWebDriver,
		WebDriverURL:      DefaultWebDriverURL,
		FallbackURLs:      append([]string(nil), DefaultFallbackURLs...),
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		BatchSize:         DefaultBatchSize,
		Headers:           map[string]string{},
		Sites:             map[string]SiteConfig{},
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
// On Linux: ~/.config/sitecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxConcurrency <= 0 || c.Workers < 0 || c.BatchSize <= 0 {
		return ErrInvalidConcurrency
	}
	if c.FetchTimeout <= 0 || c.DequeueTimeout <= 0 || c.GracePeriod <= 0 {
		return ErrInvalidTimeout
	}
	// Zero disables the idle and total bounds.
	if c.IdleTimeout < 0 || c.TotalTimeout < 0 {
		return ErrInvalidTimeout
	}
	if _, err := ParseTransport(string(c.Transport)); err != nil {
		return err
	}
	if c.JSONSummary && c.MarkdownSummary {
		return ErrConflictingReportFormats
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingProxy
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// ScopeRules returns the scope rules for one seed: the seed-derived domain
// and path restriction plus the patterns in effect for the seed host. User
// exclude patterns extend the built-in static asset exclusion rather than
// replacing it.
func (c *Config) ScopeRules(seed string) (scope.Rules, error) {
	rules, err := scope.RulesForSeed(seed, c.AllowExternal)
	if err != nil {
		return scope.Rules{}, err
	}
	site := c.SiteFor(seed)
	rules.IncludePatterns = append(rules.IncludePatterns, site.IncludePatterns...)
	rules.ExcludePatterns = append(rules.ExcludePatterns, site.ExcludePatterns...)
	return rules, nil
}

// Endpoints returns the primary endpoint and the fallbacks in try order.
func (c *Config) Endpoints() (string, []string) {
	return c.WebDriverURL, c.FallbackURLs
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
