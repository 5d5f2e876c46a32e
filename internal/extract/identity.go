package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

var yearPattern = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)

// knownMakes covers the brands that appear on dealership lots. Multi-word
// makes come first so the longest match wins.
var knownMakes = []string{
	"Mercedes-Benz", "Land Rover", "Alfa Romeo", "Aston Martin",
	"Acura", "Audi", "BMW", "Buick", "Cadillac", "Chevrolet", "Chrysler",
	"Dodge", "Fiat", "Ford", "Genesis", "GMC", "Honda", "Hyundai",
	"Infiniti", "Jaguar", "Jeep", "Kia", "Lexus", "Lincoln", "Mazda",
	"Mini", "Mitsubishi", "Nissan", "Porsche", "Ram", "Subaru", "Tesla",
	"Toyota", "Volkswagen", "Volvo",
}

// multiWordModels lists leading model words that take the next token too,
// so "Grand Cherokee" and "Santa Fe" stay whole.
var multiWordModels = map[string]map[string]bool{
	"jeep":    {"grand": true},
	"hyundai": {"santa": true},
	"ford":    {"super": true},
	"toyota":  {"land": true},
}

func extractIdentity(structured structuredData, title string) (scrape.Field[int], scrape.Field[string], scrape.Field[string]) {
	year := scrape.NoField[int]()
	mk := scrape.NoField[string]()
	model := scrape.NoField[string]()

	if structured.Year > 1900 {
		year = scrape.NewField(structured.Year, scrape.ConfidenceHigh, "structured")
	}
	if structured.Brand != "" {
		mk = scrape.NewField(canonicalMake(structured.Brand), scrape.ConfidenceHigh, "structured")
	}
	if structured.Model != "" {
		model = scrape.NewField(strings.TrimSpace(structured.Model), scrape.ConfidenceHigh, "structured")
	}

	if year.Present() && mk.Present() && model.Present() {
		return year, mk, model
	}

	// The page heading carries "2021 Hyundai Tucson Ultimate AWD ..." on
	// virtually every dealer platform.
	if !year.Present() {
		if m := yearPattern.FindString(title); m != "" {
			if y, err := strconv.Atoi(m); err == nil {
				year = scrape.NewField(y, scrape.ConfidenceMedium, "title")
			}
		}
	}
	if !mk.Present() || !model.Present() {
		titleMake, titleModel := makeModelFromTitle(title)
		if !mk.Present() && titleMake != "" {
			mk = scrape.NewField(titleMake, scrape.ConfidenceMedium, "title")
		}
		if !model.Present() && titleModel != "" {
			model = scrape.NewField(titleModel, scrape.ConfidenceMedium, "title")
		}
	}

	return year, mk, model
}

func canonicalMake(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, m := range knownMakes {
		if strings.EqualFold(m, trimmed) {
			return m
		}
	}
	return trimmed
}

// makeModelFromTitle scans the title for a known make and takes the token
// that follows as the model, keeping known two-word models whole.
func makeModelFromTitle(title string) (string, string) {
	for _, mk := range knownMakes {
		idx := indexFold(title, mk)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(title[idx+len(mk):])
		tokens := strings.Fields(rest)
		if len(tokens) == 0 {
			return mk, ""
		}
		model := tokens[0]
		if len(tokens) > 1 {
			seconds := multiWordModels[strings.ToLower(mk)]
			if seconds[strings.ToLower(model)] {
				model = model + " " + tokens[1]
			}
		}
		return mk, strings.Trim(model, ",|-")
	}
	return "", ""
}

func indexFold(haystack, needle string) int {
	return strings.Index(strings.ToLower(haystack), strings.ToLower(needle))
}
