package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// minPlausibleOdometer is the floor for a final odometer reading. Smaller
// readings are kept raw so brand-new vehicles are still detectable.
const minPlausibleOdometer = 500

var labeledOdometerPattern = regexp.MustCompile(`(?i)(?:mileage|odometer|kilomet(?:er|re)s?|kms?)\s*:?\s*([\d,]+)`)

var kmTokenPattern = regexp.MustCompile(`(?i)\b([\d,]+)\s*km\b`)

// distanceContexts mark "<n> km" tokens that describe distance to the
// dealership rather than the odometer.
var distanceContexts = []string{"away", "within", "radius", "from you", "from your location"}

// extractOdometer returns the plausible odometer field plus the smallest
// raw reading seen (which may be below the floor).
func extractOdometer(doc *goquery.Document, structured structuredData, text string) (scrape.Field[int], *int) {
	var raw *int
	keepRaw := func(v int) {
		if v <= 0 {
			return
		}
		if raw == nil || v < *raw {
			value := v
			raw = &value
		}
	}

	if structured.Odometer > 0 {
		keepRaw(structured.Odometer)
		if structured.Odometer >= minPlausibleOdometer {
			return scrape.NewField(structured.Odometer, scrape.ConfidenceHigh, "structured"), raw
		}
	}

	if v := parseMoney(labeledSpecValue(doc, "odometer", "mileage", "kilometres", "kilometers")); v > 0 {
		keepRaw(v)
		if v >= minPlausibleOdometer {
			return scrape.NewField(v, scrape.ConfidenceHigh, "labeled"), raw
		}
	}

	if m := labeledOdometerPattern.FindStringSubmatch(text); len(m) == 2 {
		if v := parseMoney(m[1]); v > 0 {
			keepRaw(v)
			if v >= minPlausibleOdometer {
				return scrape.NewField(v, scrape.ConfidenceMedium, "labeled"), raw
			}
		}
	}

	// Last resort: any "<number> km" token that is not a distance to the
	// dealership.
	lower := strings.ToLower(text)
	for _, loc := range kmTokenPattern.FindAllStringSubmatchIndex(lower, 50) {
		v := parseMoney(lower[loc[2]:loc[3]])
		if v <= 0 || distanceContext(lower, loc[0]) {
			continue
		}
		keepRaw(v)
		if v >= minPlausibleOdometer {
			return scrape.NewField(v, scrape.ConfidenceLow, "km-scan"), raw
		}
	}

	return scrape.NoField[int](), raw
}

func distanceContext(lower string, matchStart int) bool {
	start := matchStart - 40
	if start < 0 {
		start = 0
	}
	end := matchStart + 40
	if end > len(lower) {
		end = len(lower)
	}
	window := lower[start:end]
	for _, ctx := range distanceContexts {
		if strings.Contains(window, ctx) {
			return true
		}
	}
	return false
}
