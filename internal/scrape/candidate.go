package scrape

// Confidence is a qualitative reliability tier attached to an extracted field.
type Confidence string

// Confidence tiers, ordered from most to least reliable.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Field pairs an extracted value with the confidence tier and the name of
// the strategy that produced it. A missing value carries ConfidenceNone.
type Field[T any] struct {
	Value      *T         `json:"value"`
	Confidence Confidence `json:"confidence"`
	Source     string     `json:"source,omitempty"`
}

// NewField builds a populated Field.
func NewField[T any](value T, confidence Confidence, source string) Field[T] {
	return Field[T]{Value: &value, Confidence: confidence, Source: source}
}

// NoField builds an absent Field.
func NoField[T any]() Field[T] {
	return Field[T]{Confidence: ConfidenceNone}
}

// Present reports whether the field holds a value.
func (f Field[T]) Present() bool {
	return f.Value != nil && f.Confidence != ConfidenceNone
}

// Or returns the field value, or fallback when absent.
func (f Field[T]) Or(fallback T) T {
	if f.Value == nil {
		return fallback
	}
	return *f.Value
}

// Condition classifies a vehicle's sale condition.
type Condition string

// Vehicle conditions.
const (
	ConditionNew     Condition = "new"
	ConditionUsed    Condition = "used"
	ConditionUnknown Condition = "unknown"
)

// Candidate is the aggregated extraction output for one detail page. It is
// ephemeral: constructed, scored, upserted, then discarded.
type Candidate struct {
	SourceID  string
	TenantID  string
	SourceURL string

	Year        Field[int]
	Make        Field[string]
	Model       Field[string]
	Trim        Field[string]
	VIN         Field[string]
	StockNumber Field[string]

	Price    Field[int]
	Odometer Field[int]
	// RawOdometer keeps sub-floor readings so brand-new vehicles are still
	// recognizable even when the plausibility floor rejects the value.
	RawOdometer *int

	ExteriorColor Field[string]
	InteriorColor Field[string]
	Drivetrain    Field[string]
	FuelType      Field[string]
	Transmission  Field[string]
	BodyType      Field[string]

	Images      []string
	Badges      []string
	Highlights  string
	Description string
	Condition   Condition

	DataQualityScore int
}

// HasIdentity reports whether the mandatory identity fields are present.
// Candidates without them are skipped by the upserter.
func (c Candidate) HasIdentity() bool {
	return c.Year.Present() && c.Make.Present() && c.Model.Present()
}
