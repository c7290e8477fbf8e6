package challenge

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/streampin/streampin/internal/fetch"
)

// Transport decorates a fetch.Transport with best-effort solving of inline
// JS challenges. When a response looks like an anti-bot page it evaluates
// the page's cookie-setting scripts, plants the derived cookies in the
// shared jar, and re-issues the request once. On any solver failure the
// original response passes through untouched, leaving the manual
// extraction path in the classifier as the fallback.
type Transport struct {
	inner       fetch.Transport
	jar         http.CookieJar
	logger      zerolog.Logger
	evalTimeout time.Duration
}

// NewTransport wraps inner. jar must be the jar the inner transport sends
// cookies from.
func NewTransport(inner fetch.Transport, jar http.CookieJar, logger zerolog.Logger) *Transport {
	return &Transport{
		inner:       inner,
		jar:         jar,
		logger:      logger,
		evalTimeout: time.Second,
	}
}

// RoundTrip issues the request and, at most once, retries it with solved
// challenge cookies. Challenge pages frequently arrive with 403/503, so the
// body is inspected regardless of status.
func (t *Transport) RoundTrip(ctx context.Context, rawURL string) (*fetch.Response, error) {
	resp, err := t.inner.RoundTrip(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	body := string(resp.Body)
	if !fetch.IsChallengePage(body) {
		return resp, nil
	}

	cookies, solveErr := Solve(body, t.evalTimeout)
	if solveErr != nil {
		t.logger.Debug().Err(solveErr).Str("url", rawURL).Msg("challenge page not solvable, passing through")
		return resp, nil
	}

	target, parseErr := url.Parse(resp.FinalURL)
	if parseErr != nil {
		return resp, nil
	}
	t.jar.SetCookies(target, cookies)
	t.logger.Debug().Int("cookies", len(cookies)).Str("url", rawURL).Msg("challenge solved, retrying with cookies")

	solved, err := t.inner.RoundTrip(ctx, rawURL)
	if err != nil {
		// The original page is still a valid observation; report it rather
		// than the retry's transport error.
		return resp, nil
	}
	return solved, nil
}
