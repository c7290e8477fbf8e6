package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upstreamManifest = "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\nlow.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=900\nhigh.m3u8\n"

func writeListFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "streams.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCmd_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/yt.php", r.URL.Path)
		require.Equal(t, "abc", r.URL.Query().Get("c"))
		w.Write([]byte(upstreamManifest))
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "streams")
	list := writeListFile(t, dir, `[{"id": "abc", "type": "channel", "slug": "mychannel"}]`)

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--endpoint", srv.URL,
		"--output", out,
		"--timeout", "2s",
		"--max-retries", "1",
		"--retry-delay", "10ms",
		"--log-level", "error",
		list,
	})
	require.NoError(t, cmd.Execute())

	got, err := os.ReadFile(filepath.Join(out, "mychannel.m3u8"))
	require.NoError(t, err)
	assert.Equal(t,
		"#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=900\nhigh.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=100\nlow.m3u8",
		string(got))
}

func TestRootCmd_FailureExitsNonZeroAndCleansUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "streams")
	list := writeListFile(t, dir, `[{"id": "abc", "slug": "mychannel"}]`)

	// Pre-existing artifact from an earlier run must not survive.
	require.NoError(t, os.MkdirAll(out, 0o755))
	stale := filepath.Join(out, "mychannel.m3u8")
	require.NoError(t, os.WriteFile(stale, []byte("#EXTM3U\nstale"), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--endpoint", srv.URL,
		"--output", out,
		"--timeout", "2s",
		"--max-retries", "1",
		"--retry-delay", "10ms",
		"--log-level", "error",
		list,
	})
	err := cmd.Execute()
	require.ErrorIs(t, err, errBatchFailed)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRootCmd_NoFailOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	list := writeListFile(t, dir, `[{"id": "abc", "slug": "s"}]`)

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--endpoint", srv.URL,
		"--output", filepath.Join(dir, "streams"),
		"--timeout", "2s",
		"--max-retries", "1",
		"--retry-delay", "10ms",
		"--no-fail-on-error",
		"--log-level", "error",
		list,
	})
	require.NoError(t, cmd.Execute())
}

func TestRootCmd_MalformedListCountsAsFailure(t *testing.T) {
	dir := t.TempDir()
	list := writeListFile(t, dir, `{"streams": [`)

	cmd := newRootCmd()
	cmd.SetArgs([]string{
		"--endpoint", "https://resolver.test",
		"--output", filepath.Join(dir, "streams"),
		"--log-level", "error",
		list,
	})
	require.ErrorIs(t, cmd.Execute(), errBatchFailed)
}

func TestRootCmd_RequiresListArgument(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--endpoint", "https://resolver.test"})
	require.Error(t, cmd.Execute())
}
