package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	scribdlink "github.com/alnah/go-scribdlink"
	"github.com/alnah/go-scribdlink/internal/hints"
)

// ErrNoURLs is returned when resolve gets nothing to work on.
var ErrNoURLs = errors.New("no Scribd URL given")

// stdinArg makes resolve read URLs from stdin, one per line.
const stdinArg = "-"

// Pool abstracts the resolver pool for testability.
type Pool interface {
	Resolve(ctx context.Context, rawURL string) (*scribdlink.Result, error)
	Size() int
}

// Compile-time interface implementation check.
var _ Pool = (*scribdlink.ResolverPool)(nil)

// ResolveResult holds the outcome of a single resolution.
type ResolveResult struct {
	URL    string
	Result *scribdlink.Result
	Err    error
}

// runResolve resolves every URL argument and prints one line per URL.
func runResolve(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseResolveFlags(args, env.Stderr)
	if err != nil {
		return err
	}

	st, err := loadSettings(&flags.common, &flags.provider, "", env)
	if err != nil {
		return err
	}
	log := newLogger(env.Stderr, st.cfg.Log, &flags.common)

	urls, err := collectURLs(positional, env.Stdin)
	if err != nil {
		return err
	}

	opts := resolverOptions(st.cfg, log)

	if flags.dryRun {
		return runPlan(urls, opts, flags.json, env)
	}

	size := scribdlink.ResolvePoolSize(st.workers)
	log.Debug().Int("pool_size", size).Int("urls", len(urls)).Str("config", st.source).Msg("Starting resolution")

	pool := scribdlink.NewResolverPool(size, opts...)
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release browser resources")
		}
	}()

	results := resolveBatch(ctx, pool, urls)
	return printResults(results, flags, env)
}

// collectURLs returns the trimmed, non-empty URL arguments. A single "-"
// reads them from stdin instead.
func collectURLs(args []string, stdin io.Reader) ([]string, error) {
	if len(args) == 1 && args[0] == stdinArg {
		var urls []string
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
				urls = append(urls, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading URLs from stdin: %w", err)
		}
		args = urls
	}

	urls := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			urls = append(urls, a)
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

// resolveBatch resolves urls concurrently, at most pool.Size() at a time.
// Results keep the input order.
func resolveBatch(ctx context.Context, pool Pool, urls []string) []ResolveResult {
	if len(urls) == 0 {
		return nil
	}

	concurrency := pool.Size()
	if concurrency > len(urls) {
		concurrency = len(urls)
	}

	results := make([]ResolveResult, len(urls))
	var wg sync.WaitGroup
	jobs := make(chan int, len(urls))

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					results[idx] = ResolveResult{URL: urls[idx], Err: ctx.Err()}
					continue
				}
				res, err := pool.Resolve(ctx, urls[idx])
				results[idx] = ResolveResult{URL: urls[idx], Result: res, Err: err}
			}
		}()
	}

	for i := range urls {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// jsonLine is one resolve --json output record.
type jsonLine struct {
	URL            string `json:"url"`
	DownloadLink   string `json:"downloadLink,omitempty"`
	TargetURL      string `json:"targetUrl,omitempty"`
	DocumentID     string `json:"documentId,omitempty"`
	Title          string `json:"title,omitempty"`
	Backend        string `json:"backend,omitempty"`
	DurationMS     int64  `json:"durationMs,omitempty"`
	Error          string `json:"error,omitempty"`
	Kind           string `json:"kind,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
	ResolvedAt     string `json:"resolvedAt,omitempty"` // links are time-limited
}

func newJSONLine(r ResolveResult) jsonLine {
	line := jsonLine{URL: r.URL}
	if r.Err != nil {
		line.Error = r.Err.Error()
		line.Kind = scribdlink.KindOf(r.Err).String()
		var rerr *scribdlink.Error
		if errors.As(r.Err, &rerr) {
			line.UpstreamStatus = rerr.UpstreamStatus
		}
		return line
	}
	if res := r.Result; res != nil {
		line.DownloadLink = res.DownloadLink
		line.TargetURL = res.TargetURL
		line.DocumentID = res.Identity.DocumentID
		line.Title = res.Identity.DisplayTitle
		line.Backend = res.Backend
		line.DurationMS = res.Duration.Milliseconds()
	}
	return line
}

// ResultSummary holds the count of succeeded and failed resolutions.
type ResultSummary struct {
	Succeeded int
	Failed    int
}

// countResults tallies succeeded and failed resolutions.
func countResults(results []ResolveResult) ResultSummary {
	var summary ResultSummary
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary
}

// printResults writes links to stdout and failures to stderr.
// The returned error carries the first failure so the exit code reflects it.
func printResults(results []ResolveResult, flags *resolveFlags, env *Environment) error {
	summary := countResults(results)
	var firstErr error

	var enc *json.Encoder
	if flags.json {
		enc = json.NewEncoder(env.Stdout)
	}

	for _, r := range results {
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
		}

		if enc != nil {
			line := newJSONLine(r)
			if r.Err == nil {
				line.ResolvedAt = env.Now().UTC().Format(time.RFC3339)
			}
			_ = enc.Encode(line)
			continue
		}

		if r.Err != nil {
			fmt.Fprintf(env.Stderr, "FAILED %s: %v%s\n", r.URL, r.Err, hintFor(r.Err, env.Config.Provider.Backend))
			continue
		}

		switch {
		case flags.common.verbose:
			fmt.Fprintf(env.Stdout, "%s -> %s (%v)\n", r.URL, r.Result.DownloadLink, r.Result.Duration.Round(time.Millisecond))
		case len(results) > 1 && !flags.common.quiet:
			fmt.Fprintf(env.Stdout, "%s\t%s\n", r.URL, r.Result.DownloadLink)
		default:
			fmt.Fprintln(env.Stdout, r.Result.DownloadLink)
		}
	}

	if enc == nil && !flags.common.quiet && len(results) > 1 {
		fmt.Fprintf(env.Stderr, "\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	}

	if firstErr == nil {
		return nil
	}
	if len(results) == 1 {
		return errReported{firstErr}
	}
	return errReported{fmt.Errorf("%d of %d resolution(s) failed: %w", summary.Failed, len(results), firstErr)}
}

// errReported marks an error already printed per URL, so runMain only sets
// the exit code.
type errReported struct{ err error }

func (e errReported) Error() string { return e.err.Error() }
func (e errReported) Unwrap() error { return e.err }

// hintFor returns an actionable hint for a resolution failure, or "".
func hintFor(err error, backend string) string {
	switch {
	case errors.Is(err, scribdlink.ErrMissingAPIKey):
		return hints.ForMissingAPIKey()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, scribdlink.ErrBrowserConnect), errors.Is(err, scribdlink.ErrPageCreate):
		if strings.EqualFold(backend, scribdlink.BackendCDP) {
			return hints.ForRemoteConnect()
		}
		return hints.ForBrowserConnect()
	}
	var rerr *scribdlink.Error
	if errors.As(err, &rerr) && rerr.UpstreamStatus != 0 {
		return hints.ForUpstreamStatus(rerr.UpstreamStatus)
	}
	return ""
}

// runPlan prints what would be requested for each URL without contacting
// the provider.
func runPlan(urls []string, opts []scribdlink.Option, jsonOut bool, env *Environment) error {
	r, err := scribdlink.NewResolver(opts...)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	results := make([]ResolveResult, len(urls))
	for i, u := range urls {
		res, err := r.Plan(u)
		results[i] = ResolveResult{URL: u, Result: res, Err: err}
	}

	var firstErr error
	enc := json.NewEncoder(env.Stdout)
	for _, res := range results {
		if res.Err != nil && firstErr == nil {
			firstErr = res.Err
		}
		if jsonOut {
			_ = enc.Encode(newJSONLine(res))
			continue
		}
		if res.Err != nil {
			fmt.Fprintf(env.Stderr, "FAILED %s: %v\n", res.URL, res.Err)
			continue
		}
		id := res.Result.Identity
		fmt.Fprintf(env.Stdout, "%s\n  document: %s\n  title:    %s\n  target:   %s\n",
			res.URL, id.DocumentID, id.DisplayTitle, res.Result.TargetURL)
		if id.Fallback {
			fmt.Fprintln(env.Stdout, "  note:     matched by document type only, slug defaulted")
		}
	}

	if firstErr != nil {
		return errReported{firstErr}
	}
	return nil
}
