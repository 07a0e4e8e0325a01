package handler

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"nutridash/internal/nutrition/models"
	dErrors "nutridash/pkg/domain-errors"
)

const maxSearchLen = 200

type SearchRequest struct {
	Term string `json:"term"`
}

func (r *SearchRequest) Validate() error {
	if utf8.RuneCountInString(r.Term) > maxSearchLen {
		return dErrors.New(dErrors.CodeValidation, "search term is too long")
	}
	return nil
}

type PageRequest struct {
	Page int `json:"page"`
}

func (r *PageRequest) Validate() error {
	if r.Page < 1 {
		return dErrors.New(dErrors.CodeBadRequest, "page must be at least 1")
	}
	return nil
}

// FlexString accepts a JSON string, number or null, keeping the literal
// text so coercion happens in one place.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
	}
	return nil
}

// EditRecordRequest is the edit modal's submission. Every field is
// overwritten.
type EditRecordRequest struct {
	Country              FlexString `json:"country"`
	IncomeClassification FlexString `json:"income_classification"`
	SevereWasting        FlexString `json:"severe_wasting"`
	Wasting              FlexString `json:"wasting"`
	Overweight           FlexString `json:"overweight"`
	Stunting             FlexString `json:"stunting"`
	Underweight          FlexString `json:"underweight"`
	U5Population         FlexString `json:"u5_population"`
}

func (r *EditRecordRequest) Validate() error {
	r.Country = FlexString(strings.TrimSpace(string(r.Country)))
	if r.Country == "" {
		return dErrors.New(dErrors.CodeValidation, "country is required")
	}
	return nil
}

func (r *EditRecordRequest) Form() models.RecordForm {
	return models.RecordForm{
		Country:              string(r.Country),
		IncomeClassification: string(r.IncomeClassification),
		SevereWasting:        string(r.SevereWasting),
		Wasting:              string(r.Wasting),
		Overweight:           string(r.Overweight),
		Stunting:             string(r.Stunting),
		Underweight:          string(r.Underweight),
		U5Population:         string(r.U5Population),
	}
}
