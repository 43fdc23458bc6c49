package upstream

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockedResponse is the part of a failed exchange the detectors look at.
type blockedResponse struct {
	StatusCode int
	Header     http.Header
	FinalPath  string
	Body       []byte
}

// Detector reports whether a non-2xx response is an anti-abuse interstitial
// rather than an ordinary failure, and names its source.
type Detector func(res *blockedResponse) (detected bool, source string)

// DefaultDetectors returns the detectors run against every failed exchange.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectRateLimit,
		detectCloudflare,
	}
}

func detectBlock(res *blockedResponse, detectors []Detector) string {
	for _, d := range detectors {
		if ok, source := d(res); ok {
			return source
		}
	}
	return ""
}

// detectGoogleSorry matches the "unusual traffic" captcha page Google serves
// from /sorry/ when it throttles a client.
func detectGoogleSorry(res *blockedResponse) (bool, string) {
	if strings.HasPrefix(res.FinalPath, "/sorry/") {
		return true, "Google Sorry"
	}
	if strings.Contains(res.Header.Get("Location"), "/sorry/") {
		return true, "Google Sorry"
	}
	if bytes.Contains(res.Body, []byte("unusual traffic from your computer network")) ||
		bytes.Contains(res.Body, []byte("g-recaptcha")) {
		return true, "Google Sorry"
	}
	return false, ""
}

func detectRateLimit(res *blockedResponse) (bool, string) {
	if res.StatusCode == http.StatusTooManyRequests {
		return true, "rate limit"
	}
	return false, ""
}

func detectCloudflare(res *blockedResponse) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) {
		return true, "Cloudflare"
	}
	return false, ""
}

// pageTitle extracts the <title> of an HTML error page so the caller gets a
// readable reason instead of raw markup.
func pageTitle(header http.Header, body []byte) string {
	if !strings.Contains(strings.ToLower(header.Get("Content-Type")), "html") || len(body) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
}
