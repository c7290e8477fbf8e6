package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolve_ArithmeticCookieChallenge(t *testing.T) {
	page := `<html><head><title>Just a moment...</title></head><body>
<div id="cf-challenge"></div>
<script>
  var a = 7, b = 6;
  var answer = (a * b + 3.14159).toFixed(5);
  document.cookie = "clearance=" + answer + "; path=/; max-age=3600";
</script></body></html>`

	cookies, err := Solve(page, time.Second)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "clearance", cookies[0].Name)
	assert.Equal(t, "45.14159", cookies[0].Value)
}

func TestSolve_SetTimeoutWrappedAssignment(t *testing.T) {
	page := `<html><body><script>
  setTimeout(function() { document.cookie = "tok=abc123"; }, 4000);
</script></body></html>`

	cookies, err := Solve(page, time.Second)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Name)
	assert.Equal(t, "abc123", cookies[0].Value)
}

func TestSolve_SkipsThrowingScriptAndUsesNext(t *testing.T) {
	page := `<html><body>
<script>document.cookie; undefinedFn();</script>
<script>document.cookie = "k=v";</script>
</body></html>`

	cookies, err := Solve(page, time.Second)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "k", cookies[0].Name)
}

func TestSolve_NoCookieScripts(t *testing.T) {
	page := `<html><body><script>console.log ? 1 : 2;</script></body></html>`
	_, err := Solve(page, time.Second)
	require.ErrorIs(t, err, ErrNoSolution)
}

func TestSolve_InfiniteLoopInterrupted(t *testing.T) {
	page := `<html><body><script>document.cookie; while(true){}</script></body></html>`

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Solve(page, 50*time.Millisecond)
		assert.ErrorIs(t, err, ErrNoSolution)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("solver did not interrupt a looping script")
	}
}

func TestParseCookie(t *testing.T) {
	c := parseCookie("name=value; path=/; secure")
	require.NotNil(t, c)
	assert.Equal(t, "name", c.Name)
	assert.Equal(t, "value", c.Value)

	assert.Nil(t, parseCookie("no-equals-sign"))
	assert.Nil(t, parseCookie("=value"))
}
