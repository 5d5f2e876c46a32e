// Package extract turns raw detail-page HTML into a scored vehicle
// candidate. All extractors are pure functions over a parsed document, so
// they are unit-testable against fixture HTML and independent of any
// rendering engine. A single field failing is never fatal: the field is
// simply absent with ConfidenceNone.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Engine extracts vehicle candidates from detail pages.
type Engine struct {
	// CurrentYear anchors age-based badge thresholds.
	CurrentYear int
}

// NewEngine constructs an Engine.
func NewEngine(currentYear int) *Engine {
	return &Engine{CurrentYear: currentYear}
}

// Extract builds a candidate from one detail page. The only error is a
// document that cannot be parsed at all.
func (e *Engine) Extract(source scrape.Source, pageURL, html string) (scrape.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return scrape.Candidate{}, fmt.Errorf("parse detail page: %w", err)
	}

	structured := parseStructuredData(doc)
	text := doc.Text()

	c := scrape.Candidate{
		SourceID:  source.ID,
		TenantID:  source.TenantID,
		SourceURL: pageURL,
	}

	title := pageTitle(doc)
	c.Year, c.Make, c.Model = extractIdentity(structured, title)
	c.VIN = extractVIN(structured, text)
	c.StockNumber = extractStockNumber(doc, text)

	c.Price = extractPrice(doc, structured, text)
	c.Odometer, c.RawOdometer = extractOdometer(doc, structured, text)

	c.Trim, c.Highlights = extractTrim(doc, structured, title, c)
	c.ExteriorColor = labeledSpecField(doc, "exterior-color", "exterior colour", "exterior color", "ext. colour", "ext. color")
	c.InteriorColor = labeledSpecField(doc, "interior-color", "interior colour", "interior color", "int. colour", "int. color")
	c.Drivetrain = extractDrivetrain(doc, text)
	c.FuelType = labeledSpecField(doc, "fuel-type", "fuel type", "fuel")
	c.Transmission = labeledSpecField(doc, "transmission", "transmission")
	c.BodyType = labeledSpecField(doc, "body-type", "body style", "body type")

	c.Images = extractImages(doc, pageURL)
	c.Description = extractDescription(doc)
	c.Condition = classifyCondition(pageURL, doc, c.RawOdometer)
	c.Badges = extractBadges(doc, c, e.CurrentYear)

	return c, nil
}

func pageTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1.vehicle-title", ".vdp-title h1", "h1"} {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range []string{".vehicle-description", "#vehicle-description", "[class*='description']"} {
		if t := normalizeSpace(doc.Find(sel).First().Text()); len(t) > 40 {
			return t
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
