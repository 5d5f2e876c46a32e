package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

func TestExtractIdentityStructuredWins(t *testing.T) {
	year, mk, model := extractIdentity(
		structuredData{Year: 2022, Brand: "honda", Model: "CR-V"},
		"2019 Ford F-150 XLT",
	)
	assert.Equal(t, 2022, year.Or(0))
	assert.Equal(t, "Honda", mk.Or(""))
	assert.Equal(t, "CR-V", model.Or(""))
	assert.Equal(t, scrape.ConfidenceHigh, year.Confidence)
}

func TestExtractIdentityTitleFallback(t *testing.T) {
	year, mk, model := extractIdentity(structuredData{}, "2021 Hyundai Santa Fe Preferred AWD")
	assert.Equal(t, 2021, year.Or(0))
	assert.Equal(t, "Hyundai", mk.Or(""))
	assert.Equal(t, "Santa Fe", model.Or(""))
	assert.Equal(t, scrape.ConfidenceMedium, model.Confidence)
}

func TestExtractIdentityUnknownTitle(t *testing.T) {
	year, mk, model := extractIdentity(structuredData{}, "Great deal on wheels")
	assert.False(t, year.Present())
	assert.False(t, mk.Present())
	assert.False(t, model.Present())
}
