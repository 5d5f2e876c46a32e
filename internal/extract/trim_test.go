package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

func TestExtractTrimStructuredBlurb(t *testing.T) {
	doc := parseDoc(t, `<html><body></body></html>`)
	structured := structuredData{Trim: "Ultimate AWD | VENTILATED SEATS | NAVIGATION"}

	f, highlights := extractTrim(doc, structured, "", scrape.Candidate{})
	assert.Equal(t, "Ultimate AWD", f.Or(""))
	assert.Equal(t, scrape.ConfidenceHigh, f.Confidence)
	assert.Equal(t, "VENTILATED SEATS | NAVIGATION", highlights)
}

func TestExtractTrimLabeledRow(t *testing.T) {
	doc := parseDoc(t, `<html><body><dl><dt>Trim</dt><dd>Limited</dd></dl></body></html>`)
	f, highlights := extractTrim(doc, structuredData{}, "", scrape.Candidate{})
	assert.Equal(t, "Limited", f.Or(""))
	assert.Empty(t, highlights)
}

func TestExtractTrimFromTitleSubtraction(t *testing.T) {
	doc := parseDoc(t, `<html><body></body></html>`)
	c := scrape.Candidate{
		Year:  scrape.NewField(2021, scrape.ConfidenceHigh, "structured"),
		Make:  scrape.NewField("Hyundai", scrape.ConfidenceHigh, "structured"),
		Model: scrape.NewField("Tucson", scrape.ConfidenceHigh, "structured"),
	}

	f, _ := extractTrim(doc, structuredData{}, "2021 Hyundai Tucson Ultimate AWD", c)
	assert.Equal(t, "Ultimate AWD", f.Or(""))
	assert.Equal(t, scrape.ConfidenceMedium, f.Confidence)
}

func TestExtractTrimStripsBadgeSuffixes(t *testing.T) {
	doc := parseDoc(t, `<html><body></body></html>`)
	c := scrape.Candidate{
		Year:  scrape.NewField(2020, scrape.ConfidenceHigh, "structured"),
		Make:  scrape.NewField("Honda", scrape.ConfidenceHigh, "structured"),
		Model: scrape.NewField("CR-V", scrape.ConfidenceHigh, "structured"),
	}

	f, highlights := extractTrim(doc, structuredData{}, "2020 Honda CR-V Touring One Owner", c)
	assert.Equal(t, "Touring", f.Or(""))
	assert.Contains(t, highlights, "One Owner")
}

func TestExtractTrimRejectsMarketingSentence(t *testing.T) {
	doc := parseDoc(t, `<html><body></body></html>`)
	c := scrape.Candidate{
		Year:  scrape.NewField(2020, scrape.ConfidenceHigh, "structured"),
		Make:  scrape.NewField("Honda", scrape.ConfidenceHigh, "structured"),
		Model: scrape.NewField("Civic", scrape.ConfidenceHigh, "structured"),
	}

	f, _ := extractTrim(doc, structuredData{},
		"2020 Honda Civic the best small car deal you will find anywhere in the province", c)
	assert.False(t, f.Present())
}
