package models

import (
	"math"
	"strconv"
	"strings"

	dErrors "nutridash/pkg/domain-errors"
)

// RecordForm is a record as text, the shape of both a CSV row and the edit
// modal. Parse is the single coercion boundary into NutritionRecord.
type RecordForm struct {
	Country              string `json:"country"`
	IncomeClassification string `json:"income_classification"`
	SevereWasting        string `json:"severe_wasting"`
	Wasting              string `json:"wasting"`
	Overweight           string `json:"overweight"`
	Stunting             string `json:"stunting"`
	Underweight          string `json:"underweight"`
	U5Population         string `json:"u5_population"`
}

// Coercion reports which metrics were zero-filled because their text did not
// parse as a non-negative number.
type Coercion struct {
	ZeroFilled []Metric
}

func (c Coercion) Clean() bool {
	return len(c.ZeroFilled) == 0
}

// Parse coerces the form into a record (without an id).
//
// Metrics that are blank, unparseable, infinite or negative become 0 and are
// listed in the returned Coercion. Income classification has no fallback: it
// must be an integral 0..3, otherwise Parse fails with a validation error.
// Country must be non-empty.
func (f RecordForm) Parse() (NutritionRecord, Coercion, error) {
	var c Coercion
	country := strings.TrimSpace(f.Country)
	if country == "" {
		return NutritionRecord{}, c, dErrors.New(dErrors.CodeValidation, "country is required")
	}
	income, err := ParseIncomeClassification(f.IncomeClassification)
	if err != nil {
		return NutritionRecord{}, c, err
	}

	metric := func(m Metric, raw string) float64 {
		v, ok := ParseMetricValue(raw)
		if !ok {
			c.ZeroFilled = append(c.ZeroFilled, m)
		}
		return v
	}

	r := NutritionRecord{
		Country:              country,
		IncomeClassification: income,
		SevereWasting:        metric(MetricSevereWasting, f.SevereWasting),
		Wasting:              metric(MetricWasting, f.Wasting),
		Overweight:           metric(MetricOverweight, f.Overweight),
		Stunting:             metric(MetricStunting, f.Stunting),
		Underweight:          metric(MetricUnderweight, f.Underweight),
		U5Population:         metric(MetricU5Population, f.U5Population),
	}
	return r, c, nil
}

// ParseMetricValue parses a metric cell. ok is false when the text was not a
// finite non-negative number and 0 was substituted. A blank cell is absent
// and counts as substituted too.
func ParseMetricValue(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseIncomeClassification parses the income group without any fallback.
// "2" and "2.0" are accepted; "", "two", "2.5" and "7" are rejected.
func ParseIncomeClassification(raw string) (IncomeClassification, error) {
	trimmed := strings.TrimSpace(raw)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, dErrors.New(dErrors.CodeValidation,
			"income classification must be a whole number 0-3, got "+strconv.Quote(raw))
	}
	c := IncomeClassification(v)
	if float64(c) != v || !c.IsValid() {
		return 0, dErrors.New(dErrors.CodeValidation,
			"income classification must be between 0 and 3, got "+strconv.Quote(raw))
	}
	return c, nil
}
