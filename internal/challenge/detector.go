// Package challenge detects anti-bot interstitials and waits them out.
package challenge

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Default lexical markers served by the common challenge vendors in place
// of real content.
var defaultMarkers = []string{
	"checking your browser",
	"just a moment",
	"verifying you are human",
	"verify you are human",
	"attention required!",
	"ddos protection by",
	"cf-browser-verification",
	"cf_chl_opt",
	"_cf_chl_opt",
	"turnstile",
	"challenge-platform",
	"px-captcha",
	"incapsula incident",
}

var holdTitles = []string{
	"just a moment...",
	"attention required! | cloudflare",
	"access denied",
	"one moment, please",
}

// Detector classifies fetched content as clean or challenged. Detection is
// lexical: the body is scanned for known interstitial markers and hold-page
// titles.
type Detector struct {
	markers [][]byte
	titles  []string
}

// NewDetector constructs a Detector with the built-in markers plus any
// configured extras.
func NewDetector(extraMarkers []string) *Detector {
	all := append(append([]string(nil), defaultMarkers...), extraMarkers...)
	markers := make([][]byte, 0, len(all))
	for _, m := range all {
		m = strings.TrimSpace(strings.ToLower(m))
		if m == "" {
			continue
		}
		markers = append(markers, []byte(m))
	}
	return &Detector{
		markers: markers,
		titles:  holdTitles,
	}
}

// Challenged reports whether the content looks like an interstitial rather
// than the real page.
func (d *Detector) Challenged(html string) bool {
	if html == "" {
		return false
	}
	lower := bytes.ToLower([]byte(html))
	for _, m := range d.markers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return d.holdTitle(html)
}

func (d *Detector) holdTitle(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	if title == "" {
		return false
	}
	for _, t := range d.titles {
		if title == t {
			return true
		}
	}
	return false
}
