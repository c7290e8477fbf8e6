package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// Response is the transport-level result of one GET: final status, full
// body, the URL that actually answered after redirects, and the redirect
// chain that led there.
type Response struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Redirects  []string
}

// Transport issues a single GET and either returns the response or a
// *TransportError whose Kind classification is derived from the error value
// itself, never from message text. Non-2xx statuses are responses, not
// errors; the Fetcher decides what to do with them.
type Transport interface {
	RoundTrip(ctx context.Context, rawURL string) (*Response, error)
}

// TransportError is a tagged transport-level failure.
type TransportError struct {
	Kind Kind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransportOptions configures the HTTP transport.
type TransportOptions struct {
	// ProxyURL routes requests through a proxy when set.
	ProxyURL string
	// UserAgent is sent on every request; a browser-like default is
	// expected, the resolver endpoint rejects bare Go clients.
	UserAgent string
}

// HTTPTransport implements Transport over a shared *http.Client. The client
// and its connection pool live for the whole process; per-attempt deadlines
// come from the caller's context.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// NewHTTPTransport builds the process-wide transport. The cookie jar is
// always present so a challenge-solving wrapper can plant session cookies.
func NewHTTPTransport(opts TransportOptions) *HTTPTransport {
	jar, _ := cookiejar.New(nil)
	return &HTTPTransport{
		client: &http.Client{
			Transport: baseRoundTripper(opts.ProxyURL),
			Jar:       jar,
		},
		userAgent: opts.UserAgent,
	}
}

// Jar exposes the shared cookie jar.
func (t *HTTPTransport) Jar() http.CookieJar {
	return t.client.Jar
}

// RoundTrip issues one redirect-following GET with browser-identifying
// headers and reads the full body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{Kind: KindUnknown, Err: err}
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	req.Header.Set("Accept", "*/*")

	// Shallow copy so the redirect chain can be captured per call while the
	// underlying connection pool stays shared.
	var redirects []string
	client := *t.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		redirects = append(redirects, req.URL.String())
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Kind: classifyTransportError(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: classifyTransportError(ctx, err), Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   finalURL,
		Redirects:  redirects,
	}, nil
}

// classifyTransportError maps a transport error to a failure kind by
// inspecting the tagged error values, not their messages.
func classifyTransportError(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnectionError
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnectionError
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// A url.Error wrapping anything network-level is a connection
		// failure; anything else stays unknown.
		if _, ok := urlErr.Err.(*net.OpError); ok {
			return KindConnectionError
		}
		if errors.Is(urlErr.Err, io.EOF) || errors.Is(urlErr.Err, io.ErrUnexpectedEOF) {
			return KindConnectionError
		}
	}
	return KindUnknown
}

func baseRoundTripper(proxyURL string) http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	transport := base.Clone()
	if strings.TrimSpace(proxyURL) != "" {
		if parsed, err := url.Parse(proxyURL); err == nil && parsed.Scheme != "" && parsed.Host != "" {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}
	return transport
}
