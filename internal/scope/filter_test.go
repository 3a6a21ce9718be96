package scope

import (
	"errors"
	"net/url"
	"testing"
)

func mustFilter(t *testing.T, rules Rules) *Filter {
	t.Helper()

	f, err := New(rules)
	if err != nil {
		t.Fatalf("failed to compile filter: %v", err)
	}
	return f
}

func TestFilterShouldCrawl(t *testing.T) {
	t.Parallel()

	t.Run("domain must match exactly without subdomains", func(t *testing.T) {
		t.Parallel()

		f := mustFilter(t, Rules{RequiredDomain: "example.com"})

		tests := []struct {
			url  string
			want bool
		}{
			{"https://example.com/page", true},
			{"https://EXAMPLE.com/page", true},
			{"https://docs.example.com/page", false},
			{"https://other.org/page", false},
			{"mailto:someone@example.com", false},
			{"/relative/only", false},
		}
		for _, tt := range tests {
			if got := f.ShouldCrawl(tt.url); got != tt.want {
				t.Errorf("ShouldCrawl(%q) = %v, want %v", tt.url, got, tt.want)
			}
		}
	})

	t.Run("external domains pass only without a required domain", func(t *testing.T) {
		t.Parallel()

		open := mustFilter(t, Rules{AllowExternal: true})
		if !open.ShouldCrawl("https://other.org/page") {
			t.Error("expected external URL to be crawlable")
		}

		pinned := mustFilter(t, Rules{AllowExternal: true, RequiredDomain: "example.com"})
		if pinned.ShouldCrawl("https://other.org/page") {
			t.Error("required domain must hold even when external domains are allowed")
		}
		if !pinned.ShouldCrawl("https://example.com/page") {
			t.Error("expected the required domain to pass")
		}
	})

	t.Run("restricted scope without a domain admits nothing", func(t *testing.T) {
		t.Parallel()

		f := mustFilter(t, Rules{})
		for _, u := range []string{"https://other.com/x", "https://example.com/", "/relative"} {
			if f.ShouldCrawl(u) {
				t.Errorf("ShouldCrawl(%q) = true, want false", u)
			}
		}
	})

	t.Run("path prefix is a raw string prefix", func(t *testing.T) {
		t.Parallel()

		f := mustFilter(t, Rules{RequiredDomain: "example.com", RequiredPathPrefix: "/docs"})

		tests := []struct {
			url  string
			want bool
		}{
			{"https://example.com/docs/intro.html", true},
			{"https://example.com/docs", true},
			{"https://example.com/docsearch", true},
			{"https://example.com/blog/post", false},
			{"https://example.com", false},
		}
		for _, tt := range tests {
			if got := f.ShouldCrawl(tt.url); got != tt.want {
				t.Errorf("ShouldCrawl(%q) = %v, want %v", tt.url, got, tt.want)
			}
		}
	})

	t.Run("root prefix accepts a URL with an empty path", func(t *testing.T) {
		t.Parallel()

		f := mustFilter(t, Rules{RequiredDomain: "example.com", RequiredPathPrefix: "/"})
		if !f.ShouldCrawl("https://example.com") {
			t.Error("expected empty path to satisfy the root prefix")
		}
	})

	t.Run("exclude takes precedence over include", func(t *testing.T) {
		t.Parallel()

		f := mustFilter(t, Rules{
			AllowExternal:   true,
			IncludePatterns: []string{`/docs/.*\.html$`},
			ExcludePatterns: []string{`/docs/draft/`},
		})

		if f.ShouldCrawl("https://example.com/docs/draft/page.html") {
			t.Error("expected draft page to be rejected")
		}
		if !f.ShouldCrawl("https://example.com/docs/page.html") {
			t.Error("expected docs page to be accepted")
		}
		if f.ShouldCrawl("https://example.com/blog/page.html") {
			t.Error("expected URL matching no include pattern to be rejected")
		}
	})

	t.Run("no include patterns accepts everything not excluded", func(t *testing.T) {
		t.Parallel()

		f := mustFilter(t, Rules{AllowExternal: true, ExcludePatterns: DefaultExcludePatterns})
		if !f.ShouldCrawl("https://example.com/anything") {
			t.Error("expected URL to be accepted")
		}
		if f.ShouldCrawl("https://example.com/logo.png") {
			t.Error("expected image to be excluded by default pattern")
		}
		if f.ShouldCrawl("https://example.com/manual.pdf") {
			t.Error("expected pdf to be excluded by default pattern")
		}
	})

	t.Run("patterns see the full URL including the query", func(t *testing.T) {
		t.Parallel()

		f := mustFilter(t, Rules{AllowExternal: true, ExcludePatterns: []string{`[?&]page=\d+`}})
		if f.ShouldCrawl("https://example.com/list?page=2") {
			t.Error("expected query match to exclude the URL")
		}
	})
}

func TestNewRejectsInvalidPatterns(t *testing.T) {
	t.Parallel()

	_, err := New(Rules{IncludePatterns: []string{"("}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern, got %v", err)
	}

	_, err = New(Rules{ExcludePatterns: []string{"[a-"}})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page", "https://example.com/page"},
		{"https://example.com/a?b=c#d#e", "https://example.com/a?b=c"},
		{"HTTPS://Example.com/Path/?Q=1", "HTTPS://Example.com/Path/?Q=1"},
		{"#only", ""},
	}

	for _, tt := range tests {
		got := Normalize(tt.in)
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := Normalize(got); again != got {
			t.Errorf("Normalize is not idempotent for %q: %q then %q", tt.in, got, again)
		}
	}

	if Normalize("https://example.com/p#a") != Normalize("https://example.com/p#b") {
		t.Error("expected URLs differing only by fragment to share a key")
	}
}

func TestRulesForSeed(t *testing.T) {
	t.Parallel()

	t.Run("restricted scope pins host and seed directory", func(t *testing.T) {
		t.Parallel()

		rules, err := RulesForSeed("https://example.com/docs/guide/index.html", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rules.RequiredDomain != "example.com" {
			t.Errorf("expected domain example.com, got %q", rules.RequiredDomain)
		}
		if rules.RequiredPathPrefix != "/docs/guide/" {
			t.Errorf("expected prefix /docs/guide/, got %q", rules.RequiredPathPrefix)
		}
		if len(rules.ExcludePatterns) != len(DefaultExcludePatterns) {
			t.Errorf("expected default exclude patterns, got %v", rules.ExcludePatterns)
		}
	})

	t.Run("seed without path restricts to root", func(t *testing.T) {
		t.Parallel()

		rules, err := RulesForSeed("http://127.0.0.1:8080", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rules.RequiredDomain != "127.0.0.1" || rules.RequiredPathPrefix != "/" {
			t.Errorf("unexpected rules: %+v", rules)
		}
	})

	t.Run("external scope has no domain or path rule", func(t *testing.T) {
		t.Parallel()

		rules, err := RulesForSeed("https://example.com/docs/", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rules.RequiredDomain != "" || rules.RequiredPathPrefix != "" {
			t.Errorf("expected no restrictions, got %+v", rules)
		}
	})

	t.Run("invalid seeds are rejected", func(t *testing.T) {
		t.Parallel()

		for _, seed := range []string{"", "example.com", "ftp://example.com/", "://bad"} {
			if _, err := RulesForSeed(seed, false); !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("seed %q: expected ErrInvalidSeed, got %v", seed, err)
			}
		}
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.com/docs/page.html")
	if err != nil {
		t.Fatalf("failed to parse base: %v", err)
	}

	tests := []struct {
		href   string
		want   string
		wantOK bool
	}{
		{"other.html", "https://example.com/docs/other.html", true},
		{"/root", "https://example.com/root", true},
		{"../up", "https://example.com/up", true},
		{"https://other.org/x#frag", "https://other.org/x#frag", true},
		{"//cdn.example.com/lib", "https://cdn.example.com/lib", true},
		{"#top", "", false},
		{"mailto:a@example.com", "", false},
		{"javascript:void(0)", "", false},
		{"tel:123", "", false},
		{"  ", "", false},
	}

	for _, tt := range tests {
		got, ok := Resolve(base, tt.href)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.href, got, ok, tt.want, tt.wantOK)
		}
	}
}
