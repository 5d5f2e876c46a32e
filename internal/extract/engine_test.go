package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

var testSource = scrape.Source{ID: "src-1", TenantID: "tenant-1", Name: "Example Motors"}

const detailPageHTML = `<html>
<head>
<title>2021 Hyundai Tucson Ultimate AWD | Example Motors</title>
<script type="application/ld+json">
{
  "@type": "Car",
  "name": "2021 Hyundai Tucson",
  "brand": {"name": "Hyundai"},
  "model": "Tucson",
  "vehicleConfiguration": "Ultimate AWD | VENTILATED SEATS | NAVIGATION",
  "vehicleIdentificationNumber": "KM8J3CAL6MU123456",
  "vehicleModelDate": "2021",
  "mileageFromOdometer": {"@type": "QuantitativeValue", "value": "42500", "unitCode": "KMT"},
  "offers": {"@type": "Offer", "price": "31998", "priceCurrency": "CAD"}
}
</script>
</head>
<body>
<h1 class="vehicle-title">2021 Hyundai Tucson Ultimate AWD</h1>
<dl>
  <dt>Exterior Colour</dt><dd>Magnetic Force</dd>
  <dt>Interior Colour</dt><dd>Black Leather</dd>
  <dt>Transmission</dt><dd>8-Speed Automatic</dd>
  <dt>Drivetrain</dt><dd>All Wheel Drive</dd>
  <dt>Fuel Type</dt><dd>Gasoline</dd>
  <dt>Body Style</dt><dd>SUV</dd>
  <dt>Stock #</dt><dd>U8841A</dd>
</dl>
<div class="vehicle-gallery">
  <img src="https://photos.dealer.com/inv/tucson-1.jpg?w=640" alt="front">
  <img src="https://photos.dealer.com/inv/tucson-2.jpg" alt="rear">
</div>
<div class="vehicle-description">
One owner local trade in excellent condition. This Tucson Ultimate comes
loaded with ventilated seats, navigation, panoramic sunroof, and a full
service history from our own shop.
</div>
<p>Finance from $199 bi-weekly</p>
</body>
</html>`

func TestEngineExtract(t *testing.T) {
	engine := NewEngine(2026)

	c, err := engine.Extract(testSource, "https://dealer.example.com/used-vehicles/2021-hyundai-tucson", detailPageHTML)
	require.NoError(t, err)

	assert.Equal(t, "src-1", c.SourceID)
	assert.Equal(t, "tenant-1", c.TenantID)

	assert.Equal(t, 2021, c.Year.Or(0))
	assert.Equal(t, scrape.ConfidenceHigh, c.Year.Confidence)
	assert.Equal(t, "Hyundai", c.Make.Or(""))
	assert.Equal(t, "Tucson", c.Model.Or(""))
	assert.True(t, c.HasIdentity())

	assert.Equal(t, "KM8J3CAL6MU123456", c.VIN.Or(""))
	assert.Equal(t, scrape.ConfidenceHigh, c.VIN.Confidence)
	assert.Equal(t, "U8841A", c.StockNumber.Or(""))

	assert.Equal(t, 31998, c.Price.Or(0))
	assert.Equal(t, scrape.ConfidenceHigh, c.Price.Confidence)
	assert.Equal(t, 42500, c.Odometer.Or(0))

	// Structured trim blurb splits into trim and highlights.
	assert.Equal(t, "Ultimate AWD", c.Trim.Or(""))
	assert.Equal(t, "VENTILATED SEATS | NAVIGATION", c.Highlights)

	assert.Equal(t, "Magnetic Force", c.ExteriorColor.Or(""))
	assert.Equal(t, "Black Leather", c.InteriorColor.Or(""))
	assert.Equal(t, "AWD", c.Drivetrain.Or(""))
	assert.Equal(t, "Gasoline", c.FuelType.Or(""))
	assert.Equal(t, "8-Speed Automatic", c.Transmission.Or(""))
	assert.Equal(t, "SUV", c.BodyType.Or(""))

	require.Len(t, c.Images, 2)
	assert.Contains(t, c.Images[0], "photos.dealer.com")

	assert.Contains(t, c.Description, "One owner local trade")
	assert.Equal(t, scrape.ConditionUsed, c.Condition)
}

func TestEngineExtractSparsePage(t *testing.T) {
	engine := NewEngine(2026)

	c, err := engine.Extract(testSource, "https://dealer.example.com/inventory/mystery",
		`<html><body><h1>Great deal!</h1><p>Call us for details.</p></body></html>`)
	require.NoError(t, err)

	// Field failures are never fatal; everything is simply absent.
	assert.False(t, c.Year.Present())
	assert.False(t, c.Make.Present())
	assert.False(t, c.VIN.Present())
	assert.False(t, c.Price.Present())
	assert.Empty(t, c.Images)
	assert.False(t, c.HasIdentity())
	assert.Equal(t, scrape.ConditionUnknown, c.Condition)
}

func TestEngineExtractTitleFallbackIdentity(t *testing.T) {
	engine := NewEngine(2026)

	c, err := engine.Extract(testSource, "https://dealer.example.com/used-vehicles/x",
		`<html><body><h1>2019 Jeep Grand Cherokee Limited</h1>
		<p>VIN: 1C4RJFBG5KC123456</p></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, 2019, c.Year.Or(0))
	assert.Equal(t, scrape.ConfidenceMedium, c.Year.Confidence)
	assert.Equal(t, "Jeep", c.Make.Or(""))
	assert.Equal(t, "Grand Cherokee", c.Model.Or(""))
	assert.Equal(t, "1C4RJFBG5KC123456", c.VIN.Or(""))
}
