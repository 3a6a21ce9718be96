// Package politeness implements optional per-host crawl etiquette:
// robots.txt rules and a per-host request rate.
package politeness

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// DefaultRobotsTimeout bounds each robots.txt download.
const DefaultRobotsTimeout = 10 * time.Second

// Gate decides whether a URL may be fetched and paces fetches per host.
// The zero configuration from New allows everything immediately.
type Gate struct {
	client        *http.Client
	userAgent     string
	respectRobots bool
	rps           float64
	burst         int
	robotsTimeout time.Duration

	mu    sync.Mutex
	hosts map[string]*hostPolicy
}

type hostPolicy struct {
	once    sync.Once
	robots  *robotstxt.RobotsData
	limiter *rate.Limiter
}

// Option configures a Gate.
type Option func(*Gate)

// WithRobots enables robots.txt checks for userAgent.
func WithRobots(userAgent string) Option {
	return func(g *Gate) {
		g.respectRobots = true
		g.userAgent = userAgent
	}
}

// WithRate limits each host to rps requests per second. Zero or negative
// disables pacing.
func WithRate(rps float64) Option {
	return func(g *Gate) {
		g.rps = rps
	}
}

// WithHTTPClient sets the client used to download robots.txt.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gate) {
		g.client = client
	}
}

// New creates a Gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		client:        http.DefaultClient,
		robotsTimeout: DefaultRobotsTimeout,
		hosts:         make(map[string]*hostPolicy),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.burst = max(1, int(g.rps))
	return g
}

// Enabled reports whether the gate does anything.
func (g *Gate) Enabled() bool {
	return g != nil && (g.respectRobots || g.rps > 0)
}

func (g *Gate) policy(u *url.URL) *hostPolicy {
	key := strings.ToLower(u.Scheme + "://" + u.Host)

	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.hosts[key]
	if !ok {
		p = &hostPolicy{}
		if g.rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(g.rps), g.burst)
		}
		g.hosts[key] = p
	}
	return p
}

// Allow reports whether robots.txt permits fetching u. The file is
// downloaded once per host; a failed download allows everything.
func (g *Gate) Allow(ctx context.Context, u *url.URL) bool {
	if g == nil || !g.respectRobots {
		return true
	}
	p := g.policy(u)
	p.once.Do(func() {
		p.robots = g.fetchRobots(ctx, u)
	})
	if p.robots == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return p.robots.FindGroup(g.userAgent).Test(path)
}

// Wait blocks until u's host may be fetched again or ctx ends.
func (g *Gate) Wait(ctx context.Context, u *url.URL) error {
	if g == nil || g.rps <= 0 {
		return nil
	}
	return g.policy(u).limiter.Wait(ctx)
}

func (g *Gate) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.robotsTimeout)
	defer cancel()

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	// FromResponse treats 4xx as allow-all and 5xx as disallow-all.
	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return robots
}
