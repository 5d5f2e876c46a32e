package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// labeledSpecValue walks the spec-table shapes dealer platforms use
// (dt/dd, th/td, "Label: value" list items) looking for any of the labels.
func labeledSpecValue(doc *goquery.Document, labels ...string) string {
	var value string

	match := func(text string) bool {
		lower := strings.ToLower(normalizeSpace(text))
		for _, label := range labels {
			if strings.HasPrefix(lower, label) {
				return true
			}
		}
		return false
	}

	doc.Find("dt").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !match(sel.Text()) {
			return true
		}
		value = normalizeSpace(sel.Next().Text())
		return value == ""
	})
	if value != "" {
		return value
	}

	doc.Find("th").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !match(sel.Text()) {
			return true
		}
		value = normalizeSpace(sel.Parent().Find("td").First().Text())
		return value == ""
	})
	if value != "" {
		return value
	}

	doc.Find("li, .spec-row, .detail-row").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := normalizeSpace(sel.Text())
		if !match(text) {
			return true
		}
		if idx := strings.Index(text, ":"); idx >= 0 && idx < len(text)-1 {
			value = strings.TrimSpace(text[idx+1:])
			return false
		}
		return true
	})
	return value
}

// labeledSpecField wraps labeledSpecValue in a Field, trying a dedicated
// CSS class first.
func labeledSpecField(doc *goquery.Document, cssName string, labels ...string) scrape.Field[string] {
	if cssName != "" {
		if v := normalizeSpace(doc.Find("." + cssName).First().Text()); v != "" {
			return scrape.NewField(v, scrape.ConfidenceHigh, "structured")
		}
	}
	if v := labeledSpecValue(doc, labels...); v != "" {
		return scrape.NewField(v, scrape.ConfidenceMedium, "labeled")
	}
	return scrape.NoField[string]()
}

var drivetrainPattern = regexp.MustCompile(`(?i)\b(AWD|4WD|4X4|FWD|RWD|All[- ]Wheel Drive|Four[- ]Wheel Drive|Front[- ]Wheel Drive|Rear[- ]Wheel Drive)\b`)

// extractDrivetrain prefers a labeled spec row, then falls back to a
// drivetrain token anywhere in the page text.
func extractDrivetrain(doc *goquery.Document, text string) scrape.Field[string] {
	if f := labeledSpecField(doc, "drivetrain", "drivetrain", "drive type"); f.Present() {
		normalized := normalizeDrivetrain(f.Or(""))
		return scrape.NewField(normalized, f.Confidence, f.Source)
	}
	if m := drivetrainPattern.FindString(text); m != "" {
		return scrape.NewField(normalizeDrivetrain(m), scrape.ConfidenceLow, "text-scan")
	}
	return scrape.NoField[string]()
}

func normalizeDrivetrain(raw string) string {
	switch strings.ToUpper(strings.ReplaceAll(raw, " ", "-")) {
	case "ALL-WHEEL-DRIVE":
		return "AWD"
	case "FOUR-WHEEL-DRIVE", "4X4":
		return "4WD"
	case "FRONT-WHEEL-DRIVE":
		return "FWD"
	case "REAR-WHEEL-DRIVE":
		return "RWD"
	default:
		return strings.ToUpper(raw)
	}
}

var stockPattern = regexp.MustCompile(`(?i)stock\s*(?:#|no\.?|number)?[:\s]*([A-Z0-9-]{3,15})\b`)

func extractStockNumber(doc *goquery.Document, text string) scrape.Field[string] {
	if v := labeledSpecValue(doc, "stock #", "stock number", "stock no"); v != "" {
		return scrape.NewField(strings.ToUpper(v), scrape.ConfidenceHigh, "labeled")
	}
	if m := stockPattern.FindStringSubmatch(text); len(m) == 2 {
		return scrape.NewField(strings.ToUpper(m[1]), scrape.ConfidenceMedium, "text-scan")
	}
	return scrape.NoField[string]()
}
