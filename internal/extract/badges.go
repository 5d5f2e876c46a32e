package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

const (
	BadgeOneOwner    = "one_owner"
	BadgeNoAccidents = "no_accidents"
	BadgeCertified   = "certified_pre_owned"
	BadgeLowKM       = "low_km"
)

// expectedKMPerYear is the baseline annual mileage used to compute the
// low-km badge when the dealer shows no explicit badge.
const expectedKMPerYear = 20000

// cpoThreshold is the brand CPO eligibility cutoff: maximum vehicle age in
// years and maximum odometer reading.
type cpoThreshold struct {
	maxAge int
	maxKM  int
}

var cpoThresholds = map[string]cpoThreshold{
	"Honda":      {maxAge: 6, maxKM: 130000},
	"Toyota":     {maxAge: 6, maxKM: 140000},
	"Hyundai":    {maxAge: 5, maxKM: 120000},
	"Kia":        {maxAge: 5, maxKM: 120000},
	"Ford":       {maxAge: 6, maxKM: 130000},
	"Chevrolet":  {maxAge: 6, maxKM: 120000},
	"Nissan":     {maxAge: 6, maxKM: 120000},
	"Mazda":      {maxAge: 6, maxKM: 140000},
	"Volkswagen": {maxAge: 5, maxKM: 120000},
	"BMW":        {maxAge: 5, maxKM: 100000},
	"Audi":       {maxAge: 5, maxKM: 100000},
}

var defaultCPOThreshold = cpoThreshold{maxAge: 6, maxKM: 120000}

// badgeMarkers map icon filename / alt-text fragments to badge names.
var badgeMarkers = map[string][]string{
	BadgeOneOwner:    {"one-owner", "one_owner", "1-owner", "single-owner", "one owner"},
	BadgeNoAccidents: {"no-accident", "no_accident", "accident-free", "accident free", "no accidents"},
	BadgeCertified:   {"certified", "cpo"},
	BadgeLowKM:       {"low-km", "low-kms", "low km", "low mileage"},
}

// extractBadges collects vendor badges from iconography, then fills in the
// computed badges (CPO thresholds, low-km baseline) where no explicit badge
// appears.
func extractBadges(doc *goquery.Document, c scrape.Candidate, currentYear int) []string {
	found := make(map[string]bool)

	doc.Find("img, [class*='badge'], [class*='Badge']").Each(func(_ int, s *goquery.Selection) {
		haystack := strings.ToLower(badgeText(s))
		for badge, markers := range badgeMarkers {
			if found[badge] {
				continue
			}
			for _, m := range markers {
				if strings.Contains(haystack, m) {
					found[badge] = true
					break
				}
			}
		}
	})

	// Explicit certified badge only counts when the brand thresholds hold.
	if found[BadgeCertified] && !certifiedEligible(c, currentYear) {
		delete(found, BadgeCertified)
	}
	if !found[BadgeLowKM] && lowKM(c, currentYear) {
		found[BadgeLowKM] = true
	}

	var badges []string
	for _, badge := range []string{BadgeOneOwner, BadgeNoAccidents, BadgeCertified, BadgeLowKM} {
		if found[badge] {
			badges = append(badges, badge)
		}
	}
	return badges
}

func badgeText(s *goquery.Selection) string {
	parts := []string{s.AttrOr("src", ""), s.AttrOr("alt", ""), s.AttrOr("class", "")}
	if goquery.NodeName(s) != "img" {
		parts = append(parts, s.Text())
	}
	return strings.Join(parts, " ")
}

func certifiedEligible(c scrape.Candidate, currentYear int) bool {
	if !c.Year.Present() || !c.Odometer.Present() {
		return false
	}
	threshold := defaultCPOThreshold
	if t, ok := cpoThresholds[c.Make.Or("")]; ok {
		threshold = t
	}
	return currentYear-c.Year.Or(0) <= threshold.maxAge && c.Odometer.Or(0) <= threshold.maxKM
}

func lowKM(c scrape.Candidate, currentYear int) bool {
	if !c.Year.Present() || !c.Odometer.Present() {
		return false
	}
	age := currentYear - c.Year.Or(0)
	if age < 1 {
		age = 1
	}
	return c.Odometer.Or(0) < age*expectedKMPerYear/2
}
