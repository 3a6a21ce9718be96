package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/scope"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed unless --limit is given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command lists crawl runs recorded in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List past crawl runs",
		Long: `History lists crawl runs recorded in the history database, newest first.

Every 'sitecrawl crawl' records one row per seed unless --no-history is given.
Only counters are stored (pages, distinct content, links, stop reason and the
per-host and per-kind breakdown), never page contents.

Examples:
  # List the latest runs of every seed
  sitecrawl history

  # List runs of one seed
  sitecrawl history https://example.com/docs/

  # Show one run in detail
  sitecrawl history --id 1f0c6a2e-8e4b-4c55-9a57-2b1f2f7c9d10

  # List every seed in the database
  sitecrawl history --list-seeds

  # Output as JSON
  sitecrawl history --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-seeds", "L", false,
		"List all crawled seeds in the database")
	cmd.Flags().String("id", "",
		"Show a single run by ID")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSeeds, err := cmd.Flags().GetBool("list-seeds")
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var seed string
	if len(args) > 0 {
		u, err := scope.ParseSeed(args[0])
		if err != nil {
			return fmt.Errorf("invalid seed URL: %w", err)
		}
		seed = scope.Normalize(u.String())
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	h := &historyPrinter{db: db, out: cmd.OutOrStdout(), json: jsonOutput}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch {
	case listSeeds:
		return h.listSeeds(ctx)
	case id != "":
		return h.showRun(ctx, id)
	default:
		return h.listRuns(ctx, seed, limit)
	}
}

// historyPrinter renders history queries to out.
type historyPrinter struct {
	db   *database.RunDB
	out  io.Writer
	json bool
}

// listSeeds lists all seeds that have runs in the database.
func (h *historyPrinter) listSeeds(ctx context.Context) error {
	seeds, err := h.db.ListSeeds(ctx)
	if err != nil {
		return err
	}
	if h.json {
		return h.encode(seeds)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(h.out, "No crawled seeds found in the database.")
		fmt.Fprintln(h.out, "\nUse 'sitecrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(h.out, "Crawled seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(h.out, "  • %s\n", seed)
	}
	fmt.Fprintln(h.out, "\nUse 'sitecrawl history <url>' to see the runs of a seed.")
	return nil
}

// listRuns lists runs newest first, optionally for one seed.
func (h *historyPrinter) listRuns(ctx context.Context, seed string, limit int) error {
	runs, err := h.db.ListRuns(ctx, seed, limit)
	if err != nil {
		return err
	}
	if h.json {
		if runs == nil {
			runs = []*database.Run{}
		}
		return h.encode(runs)
	}

	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(h.out, "No crawl history found for %s\n", seed)
		} else {
			fmt.Fprintln(h.out, "No crawl history found.")
		}
		fmt.Fprintln(h.out, "\nUse 'sitecrawl crawl <url>' to crawl a site.")
		return nil
	}

	if seed != "" {
		fmt.Fprintf(h.out, "Crawl history for %s (%d runs):\n\n", seed, len(runs))
	} else {
		fmt.Fprintf(h.out, "Crawl history (%d runs):\n\n", len(runs))
	}
	fmt.Fprintf(h.out, "  %-8s  %-19s  %7s  %8s  %-13s  %s\n",
		"ID", "Started", "Pages", "Elapsed", "Reason", "Seed")
	fmt.Fprintln(h.out, "  "+strings.Repeat("-", 90))

	for _, run := range runs {
		fmt.Fprintf(h.out, "  %-8s  %-19s  %7d  %8s  %-13s  %s\n",
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Pages,
			run.Elapsed.Round(time.Second),
			run.Reason.String(),
			run.StartURL,
		)
	}
	fmt.Fprintln(h.out, "\nUse 'sitecrawl history --id <id>' to show a run in detail.")
	return nil
}

// showRun prints one run. id may be a full ID or a unique prefix as shown by listRuns.
func (h *historyPrinter) showRun(ctx context.Context, id string) error {
	run, err := h.findRun(ctx, id)
	if err != nil {
		return err
	}
	if h.json {
		return h.encode(run)
	}

	fmt.Fprintf(h.out, "Run %s\n\n", run.ID)
	fmt.Fprintf(h.out, "  Seed:             %s\n", run.StartURL)
	fmt.Fprintf(h.out, "  Transport:        %s\n", run.Transport)
	fmt.Fprintf(h.out, "  Started:          %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(h.out, "  Elapsed:          %s\n", run.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(h.out, "  Stop reason:      %s\n", run.Reason)
	fmt.Fprintf(h.out, "  Pages:            %d\n", run.Pages)
	fmt.Fprintf(h.out, "  Distinct content: %d\n", run.DistinctContent)
	fmt.Fprintf(h.out, "  Links:            %d\n", run.Links)
	fmt.Fprintf(h.out, "  Failed:           %d\n", run.Failed)
	fmt.Fprintf(h.out, "  Skipped:          %d\n", run.Skipped)

	printCounts(h.out, "Kinds", run.Kinds)
	printCounts(h.out, "Hosts", run.Hosts)
	return nil
}

// findRun resolves id exactly first, then as a prefix of the runs listed.
func (h *historyPrinter) findRun(ctx context.Context, id string) (*database.Run, error) {
	run, err := h.db.GetRun(ctx, id)
	if err == nil {
		return run, nil
	}

	runs, lerr := h.db.ListRuns(ctx, "", 0)
	if lerr != nil {
		return nil, lerr
	}
	var match *database.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous run ID prefix %q", id)
			}
			match = r
		}
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func (h *historyPrinter) encode(v any) error {
	encoder := json.NewEncoder(h.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n  %s:\n", title)
	for _, c := range sortedCounts(counts) {
		fmt.Fprintf(w, "    %-40s %d\n", c.key, c.n)
	}
}

type keyCount struct {
	key string
	n   int
}

// sortedCounts orders by count descending, then key.
func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, n := range m {
		out = append(out, keyCount{key: k, n: n})
	}
	slices.SortFunc(out, func(a, b keyCount) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	return out
}

// shortID returns the first eight characters of a run ID.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
