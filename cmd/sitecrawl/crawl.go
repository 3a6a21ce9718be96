package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/extract"
	sclog "github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/metrics"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/politeness"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/session"
	"github.com/nao1215/sitecrawl/internal/socks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 5 * time.Second

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl a website and stream its pages as JSON Lines",
		Long: `Crawl fetches every in-scope page reachable from the seed URL and writes one
JSON object per page to stdout (or --output). A run summary is printed to
stderr (or --summary-file) when the crawl ends.

By default the crawl stays on the seed's host and below the seed's directory,
and static assets (images, styles, scripts, archives, media) are skipped.

Examples:
  # Crawl documentation rendered by a local Selenium server
  sitecrawl crawl https://example.com/docs/

  # Fetch over plain HTTP, no browser required
  sitecrawl crawl --transport http https://example.com/docs/

  # Crawl two sites at once and write pages to a file
  sitecrawl crawl --batch 2 -o pages.jsonl https://a.example/ https://b.example/

  # Be polite: obey robots.txt and fetch at most two pages per second per host
  sitecrawl crawl --transport http --respect-robots --rate-limit 2 https://example.com/

  # Route the http transport through an embedded Tor daemon
  sitecrawl crawl --transport http --tor http://exampleonion.onion/

  # Use a configuration file instead of flags
  sitecrawl crawl -c crawl.yaml

Configuration file (.sitecrawl) example:
  type: web
  start_url: https://example.com/docs/
  max_concurrency: 5
  exclude_patterns:
    - "/changelog/"
  sites:
    example.com:
      cookie: "session_id=abc123"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultMaxConcurrency,
		"Number of pages fetched concurrently")
	cmd.Flags().Int("workers", 0,
		"Number of crawl workers (default: one per concurrency slot)")
	cmd.Flags().Duration("idle-timeout", config.DefaultIdleTimeout,
		"Stop when no page was emitted for this long (0 disables)")
	cmd.Flags().Duration("total-timeout", config.DefaultTotalTimeout,
		"Maximum duration of a crawl (0 disables)")
	cmd.Flags().DurationP("fetch-timeout", "t", config.DefaultFetchTimeout,
		"Timeout for loading a single page")
	cmd.Flags().Bool("allow-external", false,
		"Follow links outside the seed's host and directory")
	cmd.Flags().StringArray("include", nil,
		"Only crawl URLs matching this regular expression (repeatable)")
	cmd.Flags().StringArray("exclude", nil,
		"Skip URLs matching this regular expression (repeatable)")
	cmd.Flags().Bool("main-content", false,
		"Extract only the main content of HTML pages")

	// Transport flags
	cmd.Flags().String("transport", string(config.TransportWebDriver),
		"Page loading backend: webdriver, cdp or http")
	cmd.Flags().StringP("webdriver-url", "w", config.DefaultWebDriverURL,
		"WebDriver endpoint (DevTools address for --transport cdp)")
	cmd.Flags().StringArray("fallback", nil,
		"Endpoint tried when the primary refuses a session (repeatable, replaces the defaults)")
	cmd.Flags().String("proxy", "",
		"Route the http transport through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Route the http transport through an embedded Tor daemon")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Politeness and request flags
	cmd.Flags().Bool("respect-robots", false,
		"Skip URLs disallowed by robots.txt")
	cmd.Flags().Float64("rate-limit", 0,
		"Maximum requests per second per host (0 means unlimited)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent of the http transport and robots.txt group")
	cmd.Flags().String("cookie", "",
		"Cookie sent by the http transport")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Header sent by the http transport, "Name: value" (repeatable)`)

	// Batch crawling
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Configuration
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitecrawl in current or home directory)")
	cmd.Flags().String("env-file", "",
		"Environment file to load (default: .env when present)")

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Write pages to this file instead of stdout (creates directories if needed)")
	cmd.Flags().BoolP("json-summary", "j", false,
		"Print the run summary as JSON (mutually exclusive with --markdown-summary)")
	cmd.Flags().BoolP("markdown-summary", "m", false,
		"Print the run summary as Markdown (mutually exclusive with --json-summary)")
	cmd.Flags().String("summary-file", "",
		"Write the run summary to this file instead of stderr")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON lines")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from, in increasing precedence, the defaults,
// the config file, the environment and the flags the user actually set.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if _, err := config.Load(cfg); err != nil {
		return nil, err
	}

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, envFile); err != nil {
		return nil, fmt.Errorf("failed to load environment file: %w", err)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Targets = args
	}
	cfg.Verbose = getVerboseFlag(cmd)

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	cfg.DBDir = config.XDGDataDir()

	return cfg, nil
}

// applyFlags copies every explicitly set flag into cfg. Flags left at their
// default never override the config file or the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var transport string
	var headers []string
	setters := []error{
		setIfChanged(cmd, "concurrency", flags.GetInt, &cfg.MaxConcurrency),
		setIfChanged(cmd, "workers", flags.GetInt, &cfg.Workers),
		setIfChanged(cmd, "idle-timeout", flags.GetDuration, &cfg.IdleTimeout),
		setIfChanged(cmd, "total-timeout", flags.GetDuration, &cfg.TotalTimeout),
		setIfChanged(cmd, "fetch-timeout", flags.GetDuration, &cfg.FetchTimeout),
		setIfChanged(cmd, "allow-external", flags.GetBool, &cfg.AllowExternal),
		setIfChanged(cmd, "include", flags.GetStringArray, &cfg.IncludePatterns),
		setIfChanged(cmd, "main-content", flags.GetBool, &cfg.MainContent),
		setIfChanged(cmd, "transport", flags.GetString, &transport),
		setIfChanged(cmd, "webdriver-url", flags.GetString, &cfg.WebDriverURL),
		setIfChanged(cmd, "fallback", flags.GetStringArray, &cfg.FallbackURLs),
		setIfChanged(cmd, "proxy", flags.GetString, &cfg.ProxyAddress),
		setIfChanged(cmd, "tor", flags.GetBool, &cfg.UseTor),
		setIfChanged(cmd, "tor-timeout", flags.GetDuration, &cfg.TorStartupTimeout),
		setIfChanged(cmd, "respect-robots", flags.GetBool, &cfg.RespectRobots),
		setIfChanged(cmd, "rate-limit", flags.GetFloat64, &cfg.RateLimit),
		setIfChanged(cmd, "user-agent", flags.GetString, &cfg.UserAgent),
		setIfChanged(cmd, "cookie", flags.GetString, &cfg.Cookie),
		setIfChanged(cmd, "header", flags.GetStringArray, &headers),
		setIfChanged(cmd, "batch", flags.GetInt, &cfg.BatchSize),
		setIfChanged(cmd, "output", flags.GetString, &cfg.OutputFile),
		setIfChanged(cmd, "json-summary", flags.GetBool, &cfg.JSONSummary),
		setIfChanged(cmd, "markdown-summary", flags.GetBool, &cfg.MarkdownSummary),
		setIfChanged(cmd, "summary-file", flags.GetString, &cfg.SummaryFile),
		setIfChanged(cmd, "metrics-addr", flags.GetString, &cfg.MetricsAddr),
		setIfChanged(cmd, "log-json", flags.GetBool, &cfg.LogJSON),
	}
	if err := errors.Join(setters...); err != nil {
		return err
	}

	// User excludes extend the ones from the config file.
	excludes, err := flags.GetStringArray("exclude")
	if err != nil {
		return err
	}
	cfg.ExcludePatterns = append(cfg.ExcludePatterns, excludes...)

	if transport != "" {
		t, err := config.ParseTransport(transport)
		if err != nil {
			return fmt.Errorf("%w: %q", err, transport)
		}
		cfg.Transport = t
	}

	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return nil
}

// setIfChanged stores the value of flag name in dst when the user set it.
func setIfChanged[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// setupLogger creates the redacting logger selected by the configuration.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return sclog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return sclog.NewSecureLogger(w, cfg.Verbose)
}

// crawlRun holds what every seed of one invocation shares.
type crawlRun struct {
	cfg     *config.Config
	logger  *slog.Logger
	proxy   *socks.Client
	gate    *politeness.Gate
	metrics *metrics.Metrics
	pages   *pipeline.JSONLWriter
	db      *database.RunDB

	summaryMu  sync.Mutex
	summaryOut io.Writer
}

// runCrawl executes the crawl of every target.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"transport", string(cfg.Transport),
		"concurrency", cfg.MaxConcurrency,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	run := &crawlRun{cfg: cfg, logger: logger, summaryOut: stderr}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		run.db = db
		logger.Info("database opened", "path", db.Path())
	}

	switch {
	case cfg.UseTor:
		client, embeddedTor, err := startEmbeddedTor(ctx, cfg, stderr, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		run.proxy = client
	case cfg.ProxyAddress != "":
		client, err := connectProxy(ctx, cfg.ProxyAddress)
		if err != nil {
			return err
		}
		logger.Info("SOCKS5 proxy connection verified", "address", cfg.ProxyAddress)
		run.proxy = client
	}
	if run.proxy != nil && cfg.Transport != config.TransportHTTP {
		logger.Warn("proxy only applies to the http transport and robots.txt downloads",
			"transport", string(cfg.Transport))
	}

	run.gate = newGate(cfg, run.proxy)

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		run.metrics = metrics.New(reg)
		stop := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer stop()
	}

	pagesOut, closePages, err := openOutput(cfg.OutputFile, stdout)
	if err != nil {
		return err
	}
	defer closePages()
	run.pages = pipeline.NewJSONLWriter(pagesOut)
	defer run.pages.Close()

	if cfg.SummaryFile != "" {
		summaryOut, closeSummary, err := openOutput(cfg.SummaryFile, stderr)
		if err != nil {
			return err
		}
		defer closeSummary()
		run.summaryOut = summaryOut
	}

	batch := pipeline.NewBatchCrawler(run.crawlSeed,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	_, err = batch.Crawl(ctx, cfg.Targets)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("crawl interrupted: %w", err)
	}
	return err
}

// crawlSeed crawls one seed end to end: engine, page stream, summary and history.
func (r *crawlRun) crawlSeed(ctx context.Context, seed string) (*model.Summary, error) {
	engine, err := r.newEngine(seed)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(pipeline.WithLogger(r.logger))
	p.AddSteps(r.pages, pipeline.NewLogStep(r.logger))

	summary, err := p.Run(ctx, engine)
	if summary == nil {
		return nil, err
	}
	summary.RunID = database.NewRunID()

	if werr := r.writeSummary(summary); werr != nil {
		r.logger.Error("summary failed", "seed", seed, "error", werr)
	}
	// The run is recorded even when the crawl was interrupted.
	if serr := r.saveRun(context.WithoutCancel(ctx), summary); serr != nil {
		r.logger.Error("failed to save crawl run", "seed", seed, "error", serr)
	}
	return summary, err
}

// newEngine builds the engine for one seed with the per-host settings applied.
func (r *crawlRun) newEngine(seed string) (*crawler.Engine, error) {
	rules, err := r.cfg.ScopeRules(seed)
	if err != nil {
		return nil, err
	}

	extractOpts := extract.CrawlOptions()
	extractOpts.MainContent = r.cfg.MainContent

	primary, fallbacks := r.cfg.Endpoints()
	return crawler.New(seed,
		crawler.WithMaxConcurrency(r.cfg.MaxConcurrency),
		crawler.WithWorkers(r.cfg.Workers),
		crawler.WithIdleTimeout(r.cfg.IdleTimeout),
		crawler.WithTotalTimeout(r.cfg.TotalTimeout),
		crawler.WithFetchTimeout(r.cfg.FetchTimeout),
		crawler.WithDequeueTimeout(r.cfg.DequeueTimeout),
		crawler.WithGracePeriod(r.cfg.GracePeriod),
		crawler.WithScope(rules),
		crawler.WithExtractOptions(extractOpts),
		crawler.WithTransport(newTransport(r.cfg, r.cfg.SiteFor(seed), r.proxy)),
		crawler.WithEndpoints(primary, fallbacks),
		crawler.WithGate(r.gate),
		crawler.WithMetrics(r.metrics),
		crawler.WithLogger(r.logger.With("seed", seed)),
	)
}

// newTransport returns the page loading backend selected by cfg.
func newTransport(cfg *config.Config, site config.SiteConfig, proxy *socks.Client) session.Transport {
	switch cfg.Transport {
	case config.TransportCDP:
		return session.NewCDPTransport()
	case config.TransportHTTP:
		opts := []session.HTTPOption{
			session.WithUserAgent(cfg.UserAgent),
			session.WithCookie(site.Cookie),
			session.WithHeaders(site.Headers),
			session.WithMaxBodySize(cfg.MaxBodySize),
		}
		if proxy != nil {
			opts = append(opts, session.WithRoundTripper(proxy.RoundTripper()))
		}
		return session.NewHTTPTransport(opts...)
	default:
		return session.NewWebDriverTransport()
	}
}

// newGate returns the politeness gate, or nil when neither robots.txt nor
// rate limiting is enabled.
func newGate(cfg *config.Config, proxy *socks.Client) *politeness.Gate {
	if !cfg.RespectRobots && cfg.RateLimit <= 0 {
		return nil
	}
	opts := []politeness.Option{politeness.WithRate(cfg.RateLimit)}
	if cfg.RespectRobots {
		opts = append(opts, politeness.WithRobots(cfg.UserAgent))
	}
	if proxy != nil {
		opts = append(opts, politeness.WithHTTPClient(&http.Client{Transport: proxy.RoundTripper()}))
	}
	return politeness.New(opts...)
}

// writeSummary prints the run summary in the configured format. Concurrent
// seeds finish in any order; summaries are written one at a time.
func (r *crawlRun) writeSummary(summary *model.Summary) error {
	format := report.FormatSimple
	switch {
	case r.cfg.JSONSummary:
		format = report.FormatJSON
	case r.cfg.MarkdownSummary:
		format = report.FormatMarkdown
	}

	r.summaryMu.Lock()
	defer r.summaryMu.Unlock()
	_, err := report.New(format, r.summaryOut).Write(summary)
	return err
}

// saveRun records the run in the history database. A nil database is a no-op.
func (r *crawlRun) saveRun(ctx context.Context, summary *model.Summary) error {
	if r.db == nil {
		return nil
	}
	if err := r.db.SaveRun(ctx, database.NewRun(summary)); err != nil {
		return err
	}
	r.logger.Info("crawl run saved", "seed", summary.StartURL, "id", summary.RunID)
	return nil
}

// openOutput opens path for writing, or returns fallback when path is empty.
func openOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Best effort close
}

// serveMetrics starts the Prometheus endpoint and returns its shutdown function.
func serveMetrics(addr string, g prometheus.Gatherer, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
}

// connectProxy creates a SOCKS5 client and verifies the proxy answers.
func connectProxy(ctx context.Context, addr string) (*socks.Client, error) {
	client, err := socks.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != socks.ProxyStatusOK {
		return nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
			status.Err(), addr)
	}
	return client, nil
}

// startEmbeddedTor starts an embedded Tor daemon and returns a client for
// its SOCKS proxy.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, w io.Writer, logger *slog.Logger) (*socks.Client, *socks.EmbeddedTor, error) {
	fmt.Fprintln(w, "Starting embedded Tor daemon...")
	fmt.Fprintf(w, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := socks.NewEmbeddedTor(
		socks.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started", "socksAddr", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient()
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != socks.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}

	fmt.Fprintf(w, "Embedded Tor daemon started, SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())
	return client, embeddedTor, nil
}
