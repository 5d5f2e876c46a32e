package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// highlightTokens are marketing suffixes dealers append to the title after
// the trim level. They are split out as highlights, never kept in the trim.
var highlightTokens = []string{
	"one owner", "no accidents", "accident free", "navigation", "nav",
	"sunroof", "moonroof", "leather", "ventilated seats", "heated seats",
	"backup camera", "rear camera", "apple carplay", "android auto",
	"certified", "low kms", "low km", "local trade", "bluetooth",
	"remote start", "tow package",
}

var engineTokenPattern = regexp.MustCompile(`(?i)\b\d\.\d\s?L\b|\bV[68]\b|\bI[346]\b|\b[\d.]+\s?litre\b`)

// extractTrim derives the trim level and the pipe-delimited highlight blurb
// dealers stuff after it.
func extractTrim(doc *goquery.Document, structured structuredData, title string, c scrape.Candidate) (scrape.Field[string], string) {
	if structured.Trim != "" {
		trim, highlights := splitTrimBlurb(structured.Trim)
		if trim != "" {
			return scrape.NewField(trim, scrape.ConfidenceHigh, "structured"), highlights
		}
	}

	if v := labeledSpecValue(doc, "trim", "trim", "trim level"); v != "" {
		trim, highlights := splitTrimBlurb(v)
		if trim != "" {
			return scrape.NewField(trim, scrape.ConfidenceHigh, "labeled"), highlights
		}
	}

	// Fall back to whatever remains of the title once the identity and
	// engine tokens are removed.
	if trim, highlights := trimFromTitle(title, c); trim != "" {
		return scrape.NewField(trim, scrape.ConfidenceMedium, "title"), highlights
	}
	return scrape.NoField[string](), ""
}

// splitTrimBlurb separates "Ultimate AWD | VENTILATED SEATS | NAVIGATION"
// into the trim ("Ultimate AWD") and a highlight string.
func splitTrimBlurb(s string) (string, string) {
	parts := strings.Split(s, "|")
	trim := normalizeSpace(parts[0])
	var highlights []string
	for _, p := range parts[1:] {
		if p = normalizeSpace(p); p != "" {
			highlights = append(highlights, p)
		}
	}
	return trim, strings.Join(highlights, " | ")
}

func trimFromTitle(title string, c scrape.Candidate) (string, string) {
	remainder, highlights := splitTrimBlurb(title)

	if y := c.Year.Or(0); y > 0 {
		remainder = strings.Replace(remainder, strconv.Itoa(y), "", 1)
	}
	remainder = removeFold(remainder, c.Make.Or(""))
	remainder = removeFold(remainder, c.Model.Or(""))
	remainder = engineTokenPattern.ReplaceAllString(remainder, "")
	remainder = normalizeSpace(remainder)

	// Strip trailing marketing tokens into highlights.
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(remainder)
		for _, tok := range highlightTokens {
			if strings.HasSuffix(lower, tok) {
				cut := remainder[:len(remainder)-len(tok)]
				hl := remainder[len(remainder)-len(tok):]
				remainder = normalizeSpace(strings.TrimRight(cut, " -,"))
				if highlights == "" {
					highlights = hl
				} else {
					highlights = hl + " | " + highlights
				}
				changed = true
				break
			}
		}
	}

	remainder = strings.Trim(remainder, " -,|")
	if len(remainder) > 40 {
		// A "trim" this long is a marketing sentence, not a trim level.
		return "", highlights
	}
	return remainder, highlights
}

func removeFold(s, token string) string {
	if token == "" {
		return s
	}
	if i := indexFold(s, token); i >= 0 {
		return s[:i] + s[i+len(token):]
	}
	return s
}
