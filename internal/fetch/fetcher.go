package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/streampin/streampin/internal/descriptor"
)

// Config tunes one Fetcher.
type Config struct {
	// Endpoint is the resolver base URL; requests go to {Endpoint}/yt.php.
	Endpoint string
	// Timeout bounds each individual attempt, including the body read.
	Timeout time.Duration
	// MaxRetries is the total number of attempts per descriptor.
	MaxRetries int
	// RetryDelay is the exponential backoff base between attempts.
	RetryDelay time.Duration
	// RateLimitCooldown replaces the backoff after a 403/429 response.
	RateLimitCooldown time.Duration
}

// Fetcher resolves one descriptor to manifest text, retrying transient
// failures with exponential backoff and classifying everything that goes
// wrong into the outcome taxonomy. It never panics and never writes.
type Fetcher struct {
	transport Transport
	cfg       Config
	logger    zerolog.Logger

	// sleep is swapped out by tests to observe the backoff schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher wires a Fetcher over the given transport.
func NewFetcher(transport Transport, cfg Config, logger zerolog.Logger) *Fetcher {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Fetcher{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		sleep:     waitBackoff,
	}
}

// RequestURL builds the resolver URL for a descriptor.
func (f *Fetcher) RequestURL(d descriptor.Descriptor) string {
	return fmt.Sprintf("%s/yt.php?%s=%s",
		strings.TrimRight(f.cfg.Endpoint, "/"),
		d.QueryParam(),
		url.QueryEscape(d.ID))
}

// Fetch resolves the current manifest for one descriptor. On exhaustion the
// last observed failure kind is returned; only success stops retrying early.
func (f *Fetcher) Fetch(ctx context.Context, d descriptor.Descriptor) Outcome {
	reqURL := f.RequestURL(d)

	var last Outcome
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		last = f.attempt(ctx, reqURL)
		if last.OK() {
			return last
		}

		f.logger.Warn().
			Str("slug", d.Slug).
			Int("attempt", attempt).
			Int("max", f.cfg.MaxRetries).
			Str("kind", string(last.Failure.Kind)).
			Str("detail", last.Failure.Detail).
			Msg("fetch attempt failed")

		if attempt == f.cfg.MaxRetries {
			break
		}
		if err := f.sleep(ctx, f.delayAfter(attempt, last.Failure)); err != nil {
			return failure(kindFromContext(err), "retry wait interrupted: "+err.Error())
		}
	}
	return last
}

// delayAfter computes the wait between attempt n and n+1:
// RetryDelay * 2^(n-1), except a rate-limited response gets the fixed
// cooldown regardless of the exponential schedule.
func (f *Fetcher) delayAfter(attempt int, failed *Failure) time.Duration {
	if failed.Kind == KindHTTPError &&
		(failed.Status == http.StatusForbidden || failed.Status == http.StatusTooManyRequests) {
		return f.cfg.RateLimitCooldown
	}
	delay := f.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// attempt performs one bounded GET plus classification.
func (f *Fetcher) attempt(ctx context.Context, reqURL string) Outcome {
	actx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	resp, err := f.transport.RoundTrip(actx, reqURL)
	if err != nil {
		return outcomeFromTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpFailure(resp.StatusCode, "request to "+reqURL)
	}
	return f.classify(ctx, resp)
}

// classify decides what a 2xx body actually is. A body that already carries
// the manifest header is accepted as-is. Otherwise exactly one embedded
// manifest URL may be chased; a challenge page without an extractable URL is
// reported as such, anything else is invalid content.
func (f *Fetcher) classify(ctx context.Context, resp *Response) Outcome {
	body := string(resp.Body)
	if IsManifest(body) {
		return success(body, resp.FinalURL)
	}

	if indirect := extractManifestURL(body, resp.FinalURL); indirect != "" {
		f.logger.Debug().Str("url", indirect).Msg("chasing embedded manifest url")

		actx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
		second, err := f.transport.RoundTrip(actx, indirect)
		cancel()

		if err == nil && second.StatusCode >= 200 && second.StatusCode <= 299 {
			if secondBody := string(second.Body); IsManifest(secondBody) {
				return success(secondBody, second.FinalURL)
			}
		}
		// One hop only; a second indirection is not followed.
		return failure(KindInvalidContent, "embedded manifest url did not yield a manifest: "+indirect)
	}

	if IsChallengePage(body) {
		return failure(KindChallengePage, "anti-bot challenge page from "+resp.FinalURL)
	}
	return failure(KindInvalidContent, "response is not a manifest: "+resp.FinalURL)
}

func outcomeFromTransportError(err error) Outcome {
	var terr *TransportError
	if errors.As(err, &terr) {
		return failure(terr.Kind, terr.Err.Error())
	}
	return failure(KindUnknown, err.Error())
}

func kindFromContext(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// waitBackoff blocks for d or until the context ends.
func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
