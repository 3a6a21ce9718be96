package scope

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultExcludePatterns skips static assets and binary documents.
var DefaultExcludePatterns = []string{
	`\.(jpg|jpeg|png|gif|css|js|ico|woff|woff2|ttf|eot|svg|pdf)$`,
}

// Rules is the immutable ruleset a Filter is compiled from.
type Rules struct {
	// AllowExternal admits any host when RequiredDomain is empty. When it
	// is false and RequiredDomain is empty, no URL is in scope.
	AllowExternal bool `yaml:"allow_external" json:"allow_external"`

	// RequiredDomain is the host every URL must have, whatever
	// AllowExternal says.
	RequiredDomain string `yaml:"required_domain,omitempty" json:"required_domain,omitempty"`

	// RequiredPathPrefix is a raw prefix of the escaped URL path.
	// Empty means no path restriction.
	RequiredPathPrefix string `yaml:"required_path_prefix,omitempty" json:"required_path_prefix,omitempty"`

	// IncludePatterns are regular expressions; when non-empty, at least one
	// must match the full URL.
	IncludePatterns []string `yaml:"include_patterns,omitempty" json:"include_patterns,omitempty"`

	// ExcludePatterns are regular expressions; any match rejects the URL.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty" json:"exclude_patterns,omitempty"`
}

// RulesForSeed derives the default ruleset for a crawl starting at seed.
// When allowExternal is false the domain is pinned to the seed host and the
// path prefix to the directory containing the seed path.
func RulesForSeed(seed string, allowExternal bool) (Rules, error) {
	u, err := ParseSeed(seed)
	if err != nil {
		return Rules{}, err
	}

	rules := Rules{
		AllowExternal:   allowExternal,
		ExcludePatterns: append([]string(nil), DefaultExcludePatterns...),
	}
	if !allowExternal {
		rules.RequiredDomain = u.Hostname()
		rules.RequiredPathPrefix = seedDirectory(u.EscapedPath())
	}
	return rules, nil
}

// ParseSeed validates a start URL.
func ParseSeed(seed string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	return u, nil
}

// seedDirectory returns the path up to and including its last slash.
// "/docs/guide/index.html" becomes "/docs/guide/", "" becomes "/".
func seedDirectory(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "/"
	}
	return p[:i+1]
}

// Filter is a compiled Rules value. It is safe for concurrent use.
type Filter struct {
	rules   Rules
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// New compiles rules into a Filter. Any pattern that fails to compile is
// reported as ErrInvalidPattern.
func New(rules Rules) (*Filter, error) {
	include, err := compileAll(rules.IncludePatterns)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(rules.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	return &Filter{
		rules:   rules,
		include: include,
		exclude: exclude,
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// inDomain applies the domain rule. A required domain is enforced even
// when external domains are allowed; restricted scope without one admits
// nothing.
func (f *Filter) inDomain(u *url.URL) bool {
	if f.rules.RequiredDomain == "" {
		return f.rules.AllowExternal
	}
	host := u.Hostname()
	return host != "" && strings.EqualFold(host, f.rules.RequiredDomain)
}

// Rules returns the ruleset the filter was compiled from.
func (f *Filter) Rules() Rules {
	return f.rules
}

// ShouldCrawl reports whether rawURL is inside the crawl scope.
func (f *Filter) ShouldCrawl(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if !f.inDomain(u) {
		return false
	}

	if f.rules.RequiredPathPrefix != "" {
		path := u.EscapedPath()
		if path == "" {
			path = "/"
		}
		if !strings.HasPrefix(path, f.rules.RequiredPathPrefix) {
			return false
		}
	}

	for _, re := range f.exclude {
		if re.MatchString(rawURL) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Normalize strips the fragment from rawURL. All other parts are preserved
// verbatim, so Normalize(Normalize(u)) == Normalize(u).
func Normalize(rawURL string) string {
	before, _, _ := strings.Cut(rawURL, "#")
	return before
}

// Resolve resolves href against base and returns the absolute URL. Links
// that do not lead to an http(s) resource (javascript:, mailto:, tel:,
// data:, bare fragments) yield ok == false.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}
