package models

import (
	"strconv"
)

// NutritionRecord is one country's child-nutrition statistics row.
//
// Invariants:
//   - ID is assigned by the store on create and never changes
//   - Country is non-empty
//   - IncomeClassification is one of 0..3
//   - every metric is a finite, non-negative number
type NutritionRecord struct {
	ID                   string               `json:"id"`
	Country              string               `json:"country"`
	IncomeClassification IncomeClassification `json:"income_classification"`
	SevereWasting        float64              `json:"severe_wasting"`
	Wasting              float64              `json:"wasting"`
	Overweight           float64              `json:"overweight"`
	Stunting             float64              `json:"stunting"`
	Underweight          float64              `json:"underweight"`
	U5Population         float64              `json:"u5_population"`
}

// SearchTexts returns the string form of every field, id included, in the
// shape a free-text search compares against.
func (r NutritionRecord) SearchTexts() []string {
	return []string{
		r.ID,
		r.Country,
		strconv.Itoa(int(r.IncomeClassification)),
		formatNumber(r.SevereWasting),
		formatNumber(r.Wasting),
		formatNumber(r.Overweight),
		formatNumber(r.Stunting),
		formatNumber(r.Underweight),
		formatNumber(r.U5Population),
	}
}

// Form renders the record as the all-text edit form.
func (r NutritionRecord) Form() RecordForm {
	return RecordForm{
		Country:              r.Country,
		IncomeClassification: strconv.Itoa(int(r.IncomeClassification)),
		SevereWasting:        formatNumber(r.SevereWasting),
		Wasting:              formatNumber(r.Wasting),
		Overweight:           formatNumber(r.Overweight),
		Stunting:             formatNumber(r.Stunting),
		Underweight:          formatNumber(r.Underweight),
		U5Population:         formatNumber(r.U5Population),
	}
}

// formatNumber prints the shortest decimal that round-trips, so 5 is "5"
// and 0.5 is "0.5".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IncomeClassification is the World Bank income group of a country.
type IncomeClassification int

const (
	IncomeLow IncomeClassification = iota
	IncomeLowerMiddle
	IncomeUpperMiddle
	IncomeHigh
)

func (c IncomeClassification) IsValid() bool {
	return c >= IncomeLow && c <= IncomeHigh
}

// Label is the legend text for the classification.
func (c IncomeClassification) Label() string {
	switch c {
	case IncomeLow:
		return "Low Income"
	case IncomeLowerMiddle:
		return "Lower Middle Income"
	case IncomeUpperMiddle:
		return "Upper Middle Income"
	case IncomeHigh:
		return "High Income"
	default:
		return "Unknown"
	}
}

// IncomeClassifications lists every valid classification in order.
func IncomeClassifications() []IncomeClassification {
	return []IncomeClassification{IncomeLow, IncomeLowerMiddle, IncomeUpperMiddle, IncomeHigh}
}
