package model

import (
	"net/url"
	"sort"
	"time"
)

// Summary holds the statistics a consumer computes while reading the page
// stream. It is filled page by page with Add and sealed with Finish.
type Summary struct {
	// RunID identifies the run in the history database.
	RunID string `json:"run_id,omitempty"`

	// StartURL is the seed of the crawl.
	StartURL string `json:"start_url"`

	// StartedAt is when the consumer started reading.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the stream closed.
	FinishedAt time.Time `json:"finished_at"`

	// Elapsed is FinishedAt - StartedAt.
	Elapsed time.Duration `json:"elapsed"`

	// Pages is the number of page records received.
	Pages int `json:"pages"`

	// DistinctContent is the number of distinct content digests.
	DistinctContent int `json:"distinct_content"`

	// Links is the total number of links over all pages.
	Links int `json:"links"`

	// Hosts counts pages per host.
	Hosts map[string]int `json:"hosts"`

	// Kinds counts pages per content kind.
	Kinds map[string]int `json:"kinds"`

	// Reason is why the crawl ended.
	Reason StopReason `json:"reason"`

	// Transport names the page loading backend.
	Transport string `json:"transport,omitempty"`

	// Failed counts URLs that were abandoned after fetch errors.
	Failed int `json:"failed"`

	// Skipped counts dequeued URLs that were not fetched because another
	// worker had claimed them or robots.txt disallowed them.
	Skipped int `json:"skipped"`

	// Reconnects counts session replacements.
	Reconnects int `json:"reconnects"`

	digests map[string]struct{}
}

// NewSummary creates an empty Summary for the given seed.
func NewSummary(startURL string, startedAt time.Time) *Summary {
	return &Summary{
		StartURL:  startURL,
		StartedAt: startedAt,
		Hosts:     make(map[string]int),
		Kinds:     make(map[string]int),
		digests:   make(map[string]struct{}),
	}
}

// Add accounts for one received page.
func (s *Summary) Add(p *Page) {
	s.Pages++
	s.Links += len(p.Links)

	host := ""
	if u, err := url.Parse(p.URL); err == nil {
		host = u.Host
	}
	s.Hosts[host]++
	s.Kinds[p.Kind]++

	if s.digests == nil {
		s.digests = make(map[string]struct{})
	}
	s.digests[p.Digest()] = struct{}{}
	s.DistinctContent = len(s.digests)
}

// Finish seals the summary with the stream close time and stop reason.
func (s *Summary) Finish(finishedAt time.Time, reason StopReason) {
	s.FinishedAt = finishedAt
	s.Elapsed = finishedAt.Sub(s.StartedAt)
	s.Reason = reason
}

// Count is a name/count pair used for sorted breakdowns.
type Count struct {
	Name  string
	Count int
}

// SortedHosts returns the per-host counts, largest first, ties by name.
func (s *Summary) SortedHosts() []Count {
	return sortCounts(s.Hosts)
}

// SortedKinds returns the per-kind counts, largest first, ties by name.
func (s *Summary) SortedKinds() []Count {
	return sortCounts(s.Kinds)
}

func sortCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
