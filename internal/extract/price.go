package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Plausibility bounds for a vehicle asking price. Anything below the
// minimum is a false positive (usually a payment figure) and is discarded
// outright, never accepted at a lower confidence.
const (
	minPlausiblePrice = 1_000
	maxPlausiblePrice = 500_000
)

var priceSelectors = []string{
	"[itemprop='price']",
	".price-value",
	".final-price",
	".vehicle-price .price",
}

var labeledPricePattern = regexp.MustCompile(`(?i)(?:sale\s+price|our\s+price|internet\s+price|asking\s+price|price)\s*:?\s*\$\s*([\d,]+)`)

var currencyPattern = regexp.MustCompile(`\$\s*([\d][\d,]{3,})`)

// paymentContexts around a currency token mean it is a financing figure,
// not the asking price.
var paymentContexts = []string{
	"monthly", "weekly", "bi-weekly", "biweekly", "/mo", "/wk",
	"financ", "lease", "payment", "down", "per month", "per week", "taxes",
}

// extractPrice runs the price strategies in reliability order and returns
// the first plausible value. Strategies are never tried exhaustively for a
// "best" answer.
func extractPrice(doc *goquery.Document, structured structuredData, text string) scrape.Field[int] {
	// Strategy 1: authoritative structured/DOM locations.
	if plausiblePrice(structured.Price) {
		return scrape.NewField(structured.Price, scrape.ConfidenceHigh, "structured")
	}
	for _, sel := range priceSelectors {
		node := doc.Find(sel).First()
		raw := node.AttrOr("content", "")
		if raw == "" {
			raw = node.Text()
		}
		if v := parseMoney(raw); plausiblePrice(v) {
			return scrape.NewField(v, scrape.ConfidenceHigh, "structured")
		}
	}

	// Strategy 2: a labeled price in the page text.
	for _, m := range labeledPricePattern.FindAllStringSubmatch(text, 10) {
		if v := parseMoney(m[1]); plausiblePrice(v) {
			return scrape.NewField(v, scrape.ConfidenceMedium, "labeled")
		}
	}

	// Strategy 3: scan every currency-like token, drop payment-context
	// matches, and take the median of what survives.
	if v := medianCurrencyScan(text); plausiblePrice(v) {
		return scrape.NewField(v, scrape.ConfidenceLow, "scan-median")
	}

	return scrape.NoField[int]()
}

func medianCurrencyScan(text string) int {
	lower := strings.ToLower(text)
	var values []int
	for _, loc := range currencyPattern.FindAllStringSubmatchIndex(lower, 200) {
		v := parseMoney(lower[loc[2]:loc[3]])
		if !plausiblePrice(v) {
			continue
		}
		if paymentContext(lower, loc[0]) {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return 0
	}
	sort.Ints(values)
	return values[len(values)/2]
}

// paymentContext checks a window of text around the match for financing
// vocabulary.
func paymentContext(lower string, matchStart int) bool {
	start := matchStart - 60
	if start < 0 {
		start = 0
	}
	end := matchStart + 60
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[start:end]
	for _, ctx := range paymentContexts {
		if strings.Contains(window, ctx) {
			return true
		}
	}
	return false
}

func plausiblePrice(v int) bool {
	return v >= minPlausiblePrice && v <= maxPlausiblePrice
}

func parseMoney(raw string) int {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if idx := strings.IndexByte(cleaned, '.'); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	fields := strings.Fields(cleaned)
	if len(fields) > 0 {
		cleaned = fields[0]
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return n
}
