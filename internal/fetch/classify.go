package fetch

import (
	"bufio"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/streampin/streampin/internal/manifest"
)

// headerScanWindow bounds how deep into a body the manifest header marker is
// looked for; a genuine playlist carries it in the first segment.
const headerScanWindow = 512

// challengeMarkers are substrings that identify known anti-bot interstitial
// pages. Matching is case-insensitive over the raw body.
var challengeMarkers = []string{
	"cf-challenge",
	"challenge-form",
	"challenge-platform",
	"jschl",
	"just a moment",
	"ddos-guard",
	"captcha",
}

// manifestURLPattern matches an absolute or scheme-relative token ending in
// .m3u8 (query string allowed) embedded in page text.
var manifestURLPattern = regexp.MustCompile(`(?i)(?:https?:)?//[^\s"'<>\\]+?\.m3u8[^\s"'<>\\]*`)

// rootRelativePattern matches a root-relative .m3u8 token at a delimiter
// boundary, so path fragments like "variants/low.m3u8" are not misread as
// starting at the host root.
var rootRelativePattern = regexp.MustCompile(`(?i)(?:^|[\s"'=(>])(/[^\s"'<>\\]+?\.m3u8[^\s"'<>\\]*)`)

// IsManifest reports whether the body starts out as an HLS playlist.
func IsManifest(body string) bool {
	window := body
	if len(window) > headerScanWindow {
		window = window[:headerScanWindow]
	}
	return strings.Contains(window, manifest.HeaderMarker)
}

// IsChallengePage reports whether the body is an anti-bot interstitial.
func IsChallengePage(body string) bool {
	return looksHTML(body) && hasChallengeMarker(body)
}

func looksHTML(body string) bool {
	window := strings.ToLower(body)
	if len(window) > headerScanWindow {
		window = window[:headerScanWindow]
	}
	return strings.Contains(window, "<html") || strings.Contains(window, "<!doctype html")
}

func hasChallengeMarker(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// extractManifestURL digs a playlist URL out of a non-manifest body.
// HTML is inspected structurally first; a raw pattern scan and a
// stream-info line scan cover garbled or partially rendered pages. Returns
// the resolved absolute URL, or "" when nothing extractable is present.
func extractManifestURL(body, baseURL string) string {
	if looksHTML(body) {
		if raw := extractFromHTML(body); raw != "" {
			if resolved := resolveManifestURL(raw, baseURL); resolved != "" {
				return resolved
			}
		}
	}
	if raw := manifestURLPattern.FindString(body); raw != "" {
		if resolved := resolveManifestURL(raw, baseURL); resolved != "" {
			return resolved
		}
	}
	if m := rootRelativePattern.FindStringSubmatch(body); m != nil {
		if resolved := resolveManifestURL(m[1], baseURL); resolved != "" {
			return resolved
		}
	}
	if raw := extractAfterStreamInf(body); raw != "" {
		return resolveManifestURL(raw, baseURL)
	}
	return ""
}

// extractFromHTML walks the places challenge and error pages tend to stash
// a playlist reference. A parse failure falls through to the pattern scan.
func extractFromHTML(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var found string
	capture := func(val string) bool {
		if val != "" && strings.Contains(val, ".m3u8") {
			if m := manifestURLPattern.FindString(val); m != "" {
				found = m
			} else {
				found = strings.TrimSpace(val)
			}
			return true
		}
		return false
	}

	doc.Find("a[href], source[src], video[src], iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"href", "src"} {
			if val, ok := s.Attr(attr); ok && capture(val) {
				return false
			}
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := manifestURLPattern.FindString(s.Text()); m != "" {
			found = m
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find(`meta[http-equiv]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			return true
		}
		content := s.AttrOr("content", "")
		if idx := strings.Index(strings.ToLower(content), "url="); idx >= 0 {
			return !capture(strings.TrimSpace(content[idx+4:]))
		}
		return true
	})
	return found
}

// extractAfterStreamInf finds a URI line following a stream-info marker in
// bodies that mix playlist fragments into other content.
func extractAfterStreamInf(body string) string {
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	expectURI := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, manifest.StreamInfMarker) {
			expectURI = true
			continue
		}
		if !expectURI || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}

// resolveManifestURL turns an extracted token into an absolute URL:
// "//host/x" is scheme-relative, "/x" is root-relative against the
// responding host, absolute URLs pass through, and anything else is joined
// to the base.
func resolveManifestURL(raw, baseURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" {
		base = &url.URL{Scheme: "https"}
	}

	switch {
	case strings.HasPrefix(raw, "//"):
		return base.Scheme + ":" + raw
	case strings.HasPrefix(raw, "/"):
		if base.Host == "" {
			return ""
		}
		return base.Scheme + "://" + base.Host + raw
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if base.Host == "" {
		return ""
	}
	return base.ResolveReference(ref).String()
}
