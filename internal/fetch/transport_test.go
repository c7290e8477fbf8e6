package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_SendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(sampleManifest))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(TransportOptions{UserAgent: "Mozilla/5.0 (test)"})
	resp, err := tr.RoundTrip(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []byte(sampleManifest), resp.Body)
	assert.Equal(t, "Mozilla/5.0 (test)", gotUA)
	assert.Equal(t, "*/*", gotAccept)
}

func TestHTTPTransport_FollowsRedirectsAndRecordsChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.Redirect(w, r, "/hop", http.StatusFound)
		case "/hop":
			http.Redirect(w, r, "/final", http.StatusFound)
		default:
			w.Write([]byte(sampleManifest))
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(TransportOptions{})
	resp, err := tr.RoundTrip(context.Background(), srv.URL+"/start")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/final", resp.FinalURL)
	assert.Equal(t, []string{srv.URL + "/hop", srv.URL + "/final"}, resp.Redirects)
}

func TestHTTPTransport_NonOKStatusIsAResponseNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(TransportOptions{})
	resp, err := tr.RoundTrip(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHTTPTransport_TimeoutClassifiedStructurally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(TransportOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.RoundTrip(ctx, srv.URL)
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, KindTimeout, terr.Kind)
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	tr := NewHTTPTransport(TransportOptions{})
	_, err := tr.RoundTrip(context.Background(), addr)
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, KindConnectionError, terr.Kind)
}

func TestNewHTTPTransport_ProxyConfigured(t *testing.T) {
	tr := NewHTTPTransport(TransportOptions{ProxyURL: "http://127.0.0.1:3128"})
	inner, ok := tr.client.Transport.(*http.Transport)
	require.True(t, ok)

	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)
	proxyURL, err := inner.Proxy(req)
	require.NoError(t, err)
	require.NotNil(t, proxyURL)
	assert.Equal(t, "http://127.0.0.1:3128", proxyURL.String())
}
