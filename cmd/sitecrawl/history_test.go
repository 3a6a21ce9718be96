package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
)

// setupHistory returns a printer over a database holding three runs of two seeds.
func setupHistory(t *testing.T, jsonOutput bool) (*historyPrinter, *bytes.Buffer) {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []struct {
		id    string
		seed  string
		pages int
		at    time.Time
	}{
		{"aaaa1111-0000", "https://a.example/", 3, base},
		{"aaaa2222-0000", "https://a.example/", 5, base.Add(time.Hour)},
		{"bbbb1111-0000", "https://b.example/docs/", 1, base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		s := model.NewSummary(r.seed, r.at)
		for i := range r.pages {
			s.Add(model.NewPage(r.seed+string(rune('a'+i)), "", "body", nil, "html"))
		}
		s.Finish(r.at.Add(2*time.Second), model.StopDrained)
		s.RunID = r.id
		if err := db.SaveRun(context.Background(), database.NewRun(s)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	return &historyPrinter{db: db, out: &buf, json: jsonOutput}, &buf
}

func TestHistoryPrinter(t *testing.T) {
	t.Parallel()

	t.Run("lists seeds", func(t *testing.T) {
		t.Parallel()

		h, out := setupHistory(t, false)
		if err := h.listSeeds(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "Crawled seeds (2)") ||
			!strings.Contains(out.String(), "https://b.example/docs/") {
			t.Errorf("unexpected output: %s", out.String())
		}
	})

	t.Run("lists runs of one seed newest first", func(t *testing.T) {
		t.Parallel()

		h, out := setupHistory(t, false)
		if err := h.listRuns(context.Background(), "https://a.example/", 0); err != nil {
			t.Fatal(err)
		}
		got := out.String()
		if !strings.Contains(got, "(2 runs)") {
			t.Errorf("expected 2 runs: %s", got)
		}
		newer, older := strings.Index(got, "aaaa2222"), strings.Index(got, "aaaa1111")
		if newer < 0 || older < 0 || newer > older {
			t.Errorf("runs not newest first: %s", got)
		}
		if strings.Contains(got, "bbbb1111") {
			t.Error("run of another seed listed")
		}
	})

	t.Run("empty history prints a hint", func(t *testing.T) {
		t.Parallel()

		h, out := setupHistory(t, false)
		if err := h.listRuns(context.Background(), "https://none.example/", 0); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "No crawl history found for https://none.example/") {
			t.Errorf("unexpected output: %s", out.String())
		}
	})

	t.Run("shows a run by unique prefix", func(t *testing.T) {
		t.Parallel()

		h, out := setupHistory(t, false)
		if err := h.showRun(context.Background(), "bbbb"); err != nil {
			t.Fatal(err)
		}
		got := out.String()
		if !strings.Contains(got, "Run bbbb1111-0000") || !strings.Contains(got, "b.example") {
			t.Errorf("unexpected output: %s", got)
		}
	})

	t.Run("ambiguous prefix is an error", func(t *testing.T) {
		t.Parallel()

		h, _ := setupHistory(t, false)
		if err := h.showRun(context.Background(), "aaaa"); err == nil {
			t.Error("expected ambiguity error")
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		t.Parallel()

		h, _ := setupHistory(t, false)
		err := h.showRun(context.Background(), "zzzz")
		if !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		h, out := setupHistory(t, true)
		if err := h.listRuns(context.Background(), "", 2); err != nil {
			t.Fatal(err)
		}
		var runs []database.Run
		if err := json.Unmarshal(out.Bytes(), &runs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "bbbb1111-0000" {
			t.Errorf("runs = %+v", runs)
		}
	})
}

func TestSortedCounts(t *testing.T) {
	t.Parallel()

	got := sortedCounts(map[string]int{"b": 2, "a": 2, "c": 5})
	want := []string{"c", "a", "b"}
	for i, c := range got {
		if c.key != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
