package ingest

import "nutridash/internal/nutrition/models"

// Column headers of the upload format.
const (
	ColCountry              = "Country"
	ColIncomeClassification = "Income Classification"
	ColSevereWasting        = "Severe Wasting"
	ColWasting              = "Wasting"
	ColOverweight           = "Overweight"
	ColStunting             = "Stunting"
	ColUnderweight          = "Underweight"
	ColU5Population         = "U5 Population ('000s)"
	colU5PopulationBare     = "U5 Population"
)

// Header is the canonical column order, used by the CSV template and export.
var Header = []string{
	ColCountry,
	ColIncomeClassification,
	ColSevereWasting,
	ColWasting,
	ColOverweight,
	ColStunting,
	ColUnderweight,
	ColU5Population,
}

// MapRow picks the record columns out of a row. Missing columns read as
// blank and are coerced later.
func MapRow(row Row) models.RecordForm {
	u5, ok := row[ColU5Population]
	if !ok {
		u5 = row[colU5PopulationBare]
	}
	return models.RecordForm{
		Country:              row[ColCountry],
		IncomeClassification: row[ColIncomeClassification],
		SevereWasting:        row[ColSevereWasting],
		Wasting:              row[ColWasting],
		Overweight:           row[ColOverweight],
		Stunting:             row[ColStunting],
		Underweight:          row[ColUnderweight],
		U5Population:         u5,
	}
}

// Line renders a record in Header order.
func Line(rec models.NutritionRecord) []string {
	f := rec.Form()
	return []string{
		f.Country,
		f.IncomeClassification,
		f.SevereWasting,
		f.Wasting,
		f.Overweight,
		f.Stunting,
		f.Underweight,
		f.U5Population,
	}
}
