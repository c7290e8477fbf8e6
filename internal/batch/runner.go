package batch

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/streampin/streampin/internal/descriptor"
	"github.com/streampin/streampin/internal/fetch"
)

// Fetcher resolves one descriptor to a classified outcome.
type Fetcher interface {
	Fetch(ctx context.Context, d descriptor.Descriptor) fetch.Outcome
}

// Store owns the on-disk artifacts.
type Store interface {
	Write(d descriptor.Descriptor, manifestText string) error
	DeleteIfExists(d descriptor.Descriptor) bool
}

// List is one descriptor list with its source path, for reporting.
type List struct {
	Source  string
	Streams []descriptor.Descriptor
}

// Result aggregates one batch run.
type Result struct {
	Success   int
	Failed    int
	Histogram map[fetch.Kind]int
	// Halted is set when HaltOnFailure cut the run short.
	Halted bool
}

// Options tunes a Runner.
type Options struct {
	// HaltOnFailure stops the run at the first failed descriptor instead of
	// warning and continuing.
	HaltOnFailure bool
}

// Runner drives the fetch, transform and write pipeline over descriptor
// lists, strictly sequentially and in input order. A failed descriptor
// never aborts the ones after it (unless halting is requested), and always
// has its stale artifact removed.
type Runner struct {
	fetcher Fetcher
	store   Store
	opts    Options
	logger  zerolog.Logger
}

// NewRunner wires a Runner.
func NewRunner(fetcher Fetcher, store Store, opts Options, logger zerolog.Logger) *Runner {
	return &Runner{fetcher: fetcher, store: store, opts: opts, logger: logger}
}

// Run processes every list in order and returns the aggregate counters.
func (r *Runner) Run(ctx context.Context, lists []List) Result {
	result := Result{Histogram: make(map[fetch.Kind]int)}

	for _, list := range lists {
		r.logger.Info().Str("source", list.Source).Int("streams", len(list.Streams)).Msg("processing stream list")

		for i, d := range list.Streams {
			r.logger.Info().
				Str("slug", d.Slug).
				Int("index", i+1).
				Int("total", len(list.Streams)).
				Msg("processing stream")

			if !r.processOne(ctx, d, &result) && r.opts.HaltOnFailure {
				result.Halted = true
				r.logger.Error().Str("slug", d.Slug).Msg("halting batch on first failure")
				return result
			}
		}
	}
	return result
}

// processOne runs the pipeline for a single descriptor and updates the
// counters. Whatever fails, the stale artifact is deleted so downstream
// players never replay yesterday's stream.
func (r *Runner) processOne(ctx context.Context, d descriptor.Descriptor, result *Result) bool {
	out := r.fetcher.Fetch(ctx, d)
	if !out.OK() {
		r.logger.Error().
			Str("slug", d.Slug).
			Str("kind", string(out.Failure.Kind)).
			Str("detail", out.Failure.Detail).
			Msg("stream fetch failed")
		result.Failed++
		result.Histogram[out.Failure.Kind]++
		r.store.DeleteIfExists(d)
		return false
	}

	if err := r.store.Write(d, out.Manifest); err != nil {
		r.logger.Error().Err(err).Str("slug", d.Slug).Msg("saving manifest failed")
		result.Failed++
		result.Histogram[fetch.KindSaveError]++
		r.store.DeleteIfExists(d)
		return false
	}

	result.Success++
	return true
}

// LogSummary reports the final counters, histogram entries ordered by
// frequency.
func (r *Runner) LogSummary(result Result) {
	event := r.logger.Info().
		Int("success", result.Success).
		Int("failed", result.Failed)
	if result.Halted {
		event = event.Bool("halted", true)
	}
	event.Msg("batch complete")

	type entry struct {
		kind  fetch.Kind
		count int
	}
	entries := make([]entry, 0, len(result.Histogram))
	for kind, count := range result.Histogram {
		entries = append(entries, entry{kind, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].kind < entries[j].kind
	})
	for _, e := range entries {
		r.logger.Info().Str("kind", string(e.kind)).Int("count", e.count).Msg("error kind")
	}
}
