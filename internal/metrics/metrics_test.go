package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PageEmitted()
	m.PageEmitted()
	m.URLEnqueued()
	m.FetchFailed(ReasonNavigate)
	m.Reconnected()
	m.WorkerStarted()
	done := m.FetchStarted()

	if got := testutil.ToFloat64(m.PagesEmitted); got != 2 {
		t.Errorf("pages emitted = %v, expected 2", got)
	}
	if got := testutil.ToFloat64(m.FetchFailures.WithLabelValues(ReasonNavigate)); got != 1 {
		t.Errorf("navigate failures = %v, expected 1", got)
	}
	if got := testutil.ToFloat64(m.FetchesActive); got != 1 {
		t.Errorf("fetches in flight = %v, expected 1", got)
	}

	done(0.5)
	m.WorkerStopped()
	if got := testutil.ToFloat64(m.FetchesActive); got != 0 {
		t.Errorf("fetches in flight = %v, expected 0", got)
	}
	if got := testutil.ToFloat64(m.WorkersActive); got != 0 {
		t.Errorf("active workers = %v, expected 0", got)
	}
	if got := testutil.CollectAndCount(m.FetchDurations); got != 1 {
		t.Errorf("histogram series = %d, expected 1", got)
	}
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.PageEmitted()
	m.URLEnqueued()
	m.FetchFailed(ReasonSession)
	m.Reconnected()
	m.WorkerStarted()
	m.WorkerStopped()
	m.FetchStarted()(1)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)
	m.PageEmitted()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "sitecrawl_pages_emitted_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
