// Package quality scores extracted candidates and reconciles them against
// the stored inventory.
package quality

import "github.com/lotview/inventory-crawler/internal/scrape"

// Score rates how complete and trustworthy a candidate is, 0 to 100. The
// weights favor the fields that make a listing actionable: identity, VIN,
// price and odometer.
func Score(c scrape.Candidate) int {
	score := 0

	if c.HasIdentity() {
		score += 20
	} else {
		if c.Year.Present() {
			score += 5
		}
		if c.Make.Present() {
			score += 5
		}
		if c.Model.Present() {
			score += 5
		}
	}

	if c.VIN.Present() {
		score += 20
	}
	score += confidenceWeight(c.Price.Confidence, 15)
	score += confidenceWeight(c.Odometer.Confidence, 10)
	if c.StockNumber.Present() {
		score += 5
	}

	switch n := len(c.Images); {
	case n >= 10:
		score += 15
	case n >= 5:
		score += 10
	case n >= 1:
		score += 5
	}

	if len(c.Description) >= 200 {
		score += 10
	} else if len(c.Description) >= 50 {
		score += 5
	}

	if n := len(c.Badges); n > 0 {
		score += min(n*2, 5)
	}

	if score > 100 {
		score = 100
	}
	return score
}

func confidenceWeight(conf scrape.Confidence, full int) int {
	switch conf {
	case scrape.ConfidenceHigh:
		return full
	case scrape.ConfidenceMedium:
		return full * 2 / 3
	case scrape.ConfidenceLow:
		return full / 3
	default:
		return 0
	}
}
