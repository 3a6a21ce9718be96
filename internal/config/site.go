package config

import (
	"net/url"
	"strings"
)

// SiteConfig holds per-host overrides from the config file.
// Only the HTTP transport sends cookies and headers; browser transports
// ignore them.
type SiteConfig struct {
	// Cookie replaces the global cookie for this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are merged over the global headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IncludePatterns replace the global include patterns for this host.
	IncludePatterns []string `yaml:"include_patterns,omitempty"`

	// ExcludePatterns are appended to the global exclude patterns.
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`
}

// SiteFor returns the effective site settings for a seed URL: the global
// settings merged with the sites entry for the seed host, if any.
func (c *Config) SiteFor(seed string) SiteConfig {
	result := SiteConfig{
		Cookie:          c.Cookie,
		Headers:         make(map[string]string, len(c.Headers)),
		IncludePatterns: c.IncludePatterns,
		ExcludePatterns: c.ExcludePatterns,
	}
	for k, v := range c.Headers {
		result.Headers[k] = v
	}

	site, ok := c.Sites[seedHost(seed)]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	for k, v := range site.Headers {
		result.Headers[k] = v
	}
	if len(site.IncludePatterns) > 0 {
		result.IncludePatterns = site.IncludePatterns
	}
	if len(site.ExcludePatterns) > 0 {
		result.ExcludePatterns = append(append([]string(nil), result.ExcludePatterns...), site.ExcludePatterns...)
	}
	return result
}

func seedHost(seed string) string {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
