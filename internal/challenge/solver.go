package challenge

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ErrNoSolution indicates no inline script produced a usable cookie.
var ErrNoSolution = errors.New("challenge not solvable")

var scriptPattern = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)

// Solve runs the inline scripts of a challenge page that assign
// document.cookie and returns the cookies they computed. Each script runs in
// a fresh sandboxed runtime with a hard evaluation deadline; scripts that
// throw, loop past the deadline, or set nothing are skipped.
func Solve(body string, evalTimeout time.Duration) ([]*http.Cookie, error) {
	if evalTimeout <= 0 {
		evalTimeout = time.Second
	}

	for _, m := range scriptPattern.FindAllStringSubmatch(body, -1) {
		src := m[1]
		if !strings.Contains(src, "document.cookie") {
			continue
		}
		cookies, err := runScript(src, evalTimeout)
		if err != nil || len(cookies) == 0 {
			continue
		}
		return cookies, nil
	}
	return nil, ErrNoSolution
}

// runScript evaluates one script with just enough of a browser environment
// for cookie-setting challenge stubs: a document whose cookie property
// records assignments, a no-op location, and a setTimeout that fires
// immediately so delayed assignments still run.
func runScript(src string, evalTimeout time.Duration) ([]*http.Cookie, error) {
	vm := goja.New()

	var raw []string
	document := vm.NewObject()
	getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(strings.Join(raw, "; "))
	})
	setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		raw = append(raw, call.Argument(0).String())
		return goja.Undefined()
	})
	if err := document.DefineAccessorProperty("cookie", getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return nil, err
	}
	_ = vm.Set("document", document)

	location := vm.NewObject()
	_ = location.Set("reload", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	_ = location.Set("href", "")
	_ = vm.Set("location", location)
	_ = vm.Set("window", vm.GlobalObject())
	_ = vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			_, _ = fn(goja.Undefined())
		}
		return goja.Undefined()
	})

	timer := time.AfterFunc(evalTimeout, func() {
		vm.Interrupt("challenge evaluation timed out")
	})
	defer timer.Stop()

	if _, err := vm.RunString(src); err != nil {
		return nil, err
	}

	var cookies []*http.Cookie
	for _, entry := range raw {
		if c := parseCookie(entry); c != nil {
			cookies = append(cookies, c)
		}
	}
	return cookies, nil
}

// parseCookie extracts name=value from a document.cookie assignment string,
// discarding attributes like path and max-age.
func parseCookie(raw string) *http.Cookie {
	pair, _, _ := strings.Cut(raw, ";")
	name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
	if !ok || name == "" {
		return nil
	}
	return &http.Cookie{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}
}
