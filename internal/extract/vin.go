package extract

import (
	"regexp"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// vinPattern matches the 17-character VIN alphabet, which excludes I, O
// and Q. The digit guard rejects 17-letter words that happen to fit.
var vinPattern = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)

var hasDigit = regexp.MustCompile(`\d`)

// extractVIN prefers the structured VIN, then takes the first pattern
// match anywhere on the page.
func extractVIN(structured structuredData, text string) scrape.Field[string] {
	if len(structured.VIN) == 17 && vinPattern.MatchString(structured.VIN) {
		return scrape.NewField(structured.VIN, scrape.ConfidenceHigh, "structured")
	}
	for _, m := range vinPattern.FindAllString(text, 8) {
		if hasDigit.MatchString(m) {
			return scrape.NewField(m, scrape.ConfidenceHigh, "pattern")
		}
	}
	return scrape.NoField[string]()
}
