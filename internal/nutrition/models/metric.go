package models

import (
	"strings"

	dErrors "nutridash/pkg/domain-errors"
)

// Metric names a numeric column of NutritionRecord. The string value is the
// stored field name.
type Metric string

const (
	MetricIncomeClassification Metric = "income_classification"
	MetricSevereWasting        Metric = "severe_wasting"
	MetricWasting              Metric = "wasting"
	MetricOverweight           Metric = "overweight"
	MetricStunting             Metric = "stunting"
	MetricUnderweight          Metric = "underweight"
	MetricU5Population         Metric = "u5_population"
)

var metricLabels = map[Metric]string{
	MetricIncomeClassification: "Income Classification",
	MetricSevereWasting:        "Severe Wasting",
	MetricWasting:              "Wasting",
	MetricOverweight:           "Overweight",
	MetricStunting:             "Stunting",
	MetricUnderweight:          "Underweight",
	MetricU5Population:         "U5 Population",
}

// Metrics lists every numeric column in table order.
func Metrics() []Metric {
	return []Metric{
		MetricIncomeClassification,
		MetricSevereWasting,
		MetricWasting,
		MetricOverweight,
		MetricStunting,
		MetricUnderweight,
		MetricU5Population,
	}
}

// ParseMetric accepts the field name in any case.
func ParseMetric(raw string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := metricLabels[m]; !ok {
		return "", dErrors.New(dErrors.CodeBadRequest, "unknown metric: "+raw)
	}
	return m, nil
}

func (m Metric) Label() string {
	if label, ok := metricLabels[m]; ok {
		return label
	}
	return string(m)
}

// Value reads the metric from a record.
func (m Metric) Value(r NutritionRecord) float64 {
	switch m {
	case MetricIncomeClassification:
		return float64(r.IncomeClassification)
	case MetricSevereWasting:
		return r.SevereWasting
	case MetricWasting:
		return r.Wasting
	case MetricOverweight:
		return r.Overweight
	case MetricStunting:
		return r.Stunting
	case MetricUnderweight:
		return r.Underweight
	case MetricU5Population:
		return r.U5Population
	default:
		return 0
	}
}
