package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// structuredData holds the vehicle facts a page exposes through schema.org
// JSON-LD, the most authoritative source when present.
type structuredData struct {
	Name     string
	Brand    string
	Model    string
	Trim     string
	VIN      string
	Year     int
	Price    int
	Odometer int
	Color    string
}

// jsonLDVehicle mirrors the schema.org Vehicle/Car shapes dealer platforms
// emit. Fields arrive as strings or numbers depending on the platform, so
// everything numeric goes through flexible decoding.
type jsonLDVehicle struct {
	Type                        any             `json:"@type"`
	Name                        string          `json:"name"`
	Brand                       json.RawMessage `json:"brand"`
	Model                       json.RawMessage `json:"model"`
	VehicleConfiguration        string          `json:"vehicleConfiguration"`
	VehicleIdentificationNumber string          `json:"vehicleIdentificationNumber"`
	VehicleModelDate            json.RawMessage `json:"vehicleModelDate"`
	ProductionDate              json.RawMessage `json:"productionDate"`
	Color                       string          `json:"color"`
	MileageFromOdometer         json.RawMessage `json:"mileageFromOdometer"`
	Offers                      json.RawMessage `json:"offers"`
}

func parseStructuredData(doc *goquery.Document) structuredData {
	var out structuredData
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		for _, candidate := range decodeJSONLDDocuments(raw) {
			if !isVehicleType(candidate.Type) {
				continue
			}
			out = toStructuredData(candidate)
			return false
		}
		return true
	})
	return out
}

// decodeJSONLDDocuments tolerates both a single object and a top-level
// array, plus @graph wrappers.
func decodeJSONLDDocuments(raw string) []jsonLDVehicle {
	var single jsonLDVehicle
	if err := json.Unmarshal([]byte(raw), &single); err == nil && single.Type != nil {
		return []jsonLDVehicle{single}
	}
	var list []jsonLDVehicle
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list
	}
	var graph struct {
		Graph []jsonLDVehicle `json:"@graph"`
	}
	if err := json.Unmarshal([]byte(raw), &graph); err == nil {
		return graph.Graph
	}
	return nil
}

func isVehicleType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Vehicle" || v == "Car" || v == "Product"
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok && isVehicleType(s) {
				return true
			}
		}
	}
	return false
}

func toStructuredData(v jsonLDVehicle) structuredData {
	out := structuredData{
		Name:  v.Name,
		Trim:  v.VehicleConfiguration,
		VIN:   strings.ToUpper(strings.TrimSpace(v.VehicleIdentificationNumber)),
		Color: v.Color,
	}
	out.Brand = nameOrText(v.Brand)
	out.Model = nameOrText(v.Model)
	if year := flexibleInt(v.VehicleModelDate); year > 1900 {
		out.Year = year
	} else if year := flexibleInt(v.ProductionDate); year > 1900 {
		out.Year = year
	}
	out.Odometer = decodeOdometer(v.MileageFromOdometer)
	out.Price = decodeOfferPrice(v.Offers)
	return out
}

// nameOrText handles {"name": "Hyundai"} and plain "Hyundai" alike.
func nameOrText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Name)
	}
	return ""
}

func decodeOdometer(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	if n := flexibleInt(raw); n > 0 {
		return n
	}
	var qty struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &qty); err == nil {
		return flexibleInt(qty.Value)
	}
	return 0
}

func decodeOfferPrice(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var offer struct {
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(raw, &offer); err == nil && len(offer.Price) > 0 {
		return flexibleInt(offer.Price)
	}
	var offers []struct {
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(raw, &offers); err == nil && len(offers) > 0 {
		return flexibleInt(offers[0].Price)
	}
	return 0
}

// flexibleInt decodes 24900, "24900", "24,900" and "24900.00".
func flexibleInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = s[:idx]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Dates like "2021-06-01" reduce to the leading year.
		if len(s) >= 4 {
			if y, yErr := strconv.Atoi(s[:4]); yErr == nil {
				return y
			}
		}
		return 0
	}
	return n
}
