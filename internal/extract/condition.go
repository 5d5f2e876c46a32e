package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// classifyCondition decides new vs used. The source URL's own used/new path
// is authoritative; explicit labels come second; sub-500km odometer readings
// are only a weak last-resort signal.
func classifyCondition(pageURL string, doc *goquery.Document, rawOdometer *int) scrape.Condition {
	path := strings.ToLower(pageURL)
	switch {
	case strings.Contains(path, "/new/") || strings.Contains(path, "/new-vehicles/"):
		return scrape.ConditionNew
	case strings.Contains(path, "/used/") || strings.Contains(path, "/used-vehicles/") || strings.Contains(path, "/pre-owned/"):
		return scrape.ConditionUsed
	}

	if label := strings.ToLower(labeledSpecValue(doc, "condition", "condition", "status")); label != "" {
		switch {
		case strings.Contains(label, "new"):
			return scrape.ConditionNew
		case strings.Contains(label, "used") || strings.Contains(label, "pre-owned"):
			return scrape.ConditionUsed
		}
	}

	if rawOdometer != nil && *rawOdometer < minPlausibleOdometer {
		return scrape.ConditionNew
	}
	return scrape.ConditionUnknown
}
