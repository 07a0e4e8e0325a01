// Package insights projects a record snapshot into chart series and summary
// statistics. Every function is pure: inputs are never mutated.
package insights

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"

	"nutridash/internal/nutrition/models"
)

const (
	DefaultTopN   = 50
	DefaultMetric = models.MetricStunting
	scatterColor  = "#ffb703"
	topColor      = "#ffa500"
)

// Dataset is one labelled series aligned with ChartData.Labels.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
	Color string    `json:"color"`
}

type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ScatterDataset struct {
	Label string  `json:"label"`
	Data  []Point `json:"data"`
	Color string  `json:"color"`
}

type ScatterData struct {
	XLabel   string           `json:"x_label"`
	YLabel   string           `json:"y_label"`
	Datasets []ScatterDataset `json:"datasets"`
}

var stackedSeries = []struct {
	metric models.Metric
	color  string
}{
	{models.MetricUnderweight, "#ffa500"},
	{models.MetricOverweight, "#4caf50"},
	{models.MetricStunting, "#f44336"},
	{models.MetricWasting, "#00bcd4"},
	{models.MetricSevereWasting, "#ff7043"},
}

// Stacked returns one bar per country with the five malnutrition indicators
// as stacked components, in record order.
func Stacked(recs []models.NutritionRecord) ChartData {
	out := ChartData{Labels: make([]string, len(recs))}
	for i, r := range recs {
		out.Labels[i] = r.Country
	}
	for _, s := range stackedSeries {
		ds := Dataset{Label: s.metric.Label(), Color: s.color, Data: make([]float64, len(recs))}
		for i, r := range recs {
			ds.Data[i] = s.metric.Value(r)
		}
		out.Datasets = append(out.Datasets, ds)
	}
	return out
}

// TopN returns the n records with the highest metric, highest first. Ties
// keep their original order. n <= 0 yields no records.
func TopN(recs []models.NutritionRecord, metric models.Metric, n int) []models.NutritionRecord {
	if n <= 0 {
		return []models.NutritionRecord{}
	}
	sorted := slices.Clone(recs)
	slices.SortStableFunc(sorted, func(a, b models.NutritionRecord) int {
		return cmp.Compare(metric.Value(b), metric.Value(a))
	})
	return sorted[:min(n, len(sorted))]
}

// TopChart is TopN shaped as a single-series bar chart.
func TopChart(recs []models.NutritionRecord, metric models.Metric, n int) ChartData {
	top := TopN(recs, metric, n)
	out := ChartData{
		Labels:   make([]string, len(top)),
		Datasets: []Dataset{{Label: metric.Label() + " (%)", Color: topColor, Data: make([]float64, len(top))}},
	}
	for i, r := range top {
		out.Labels[i] = r.Country
		out.Datasets[0].Data[i] = metric.Value(r)
	}
	return out
}

// Scatter pairs two metrics per record.
func Scatter(recs []models.NutritionRecord, x, y models.Metric) ScatterData {
	ds := ScatterDataset{
		Label: x.Label() + " vs " + y.Label(),
		Color: scatterColor,
		Data:  make([]Point, len(recs)),
	}
	for i, r := range recs {
		ds.Data[i] = Point{X: x.Value(r), Y: y.Value(r)}
	}
	return ScatterData{XLabel: x.Label(), YLabel: y.Label(), Datasets: []ScatterDataset{ds}}
}

// Summary holds max, min and mean of one metric. A zero Count means there
// was nothing to summarize and the statistics are meaningless.
type Summary struct {
	Metric models.Metric
	Count  int
	Max    float64
	Min    float64
	Avg    float64
}

func (s Summary) Empty() bool { return s.Count == 0 }

// Summarize computes the summary of metric over recs. Avg is rounded to two
// decimals.
func Summarize(recs []models.NutritionRecord, metric models.Metric) Summary {
	if len(recs) == 0 {
		return Summary{Metric: metric}
	}
	s := Summary{Metric: metric, Count: len(recs), Max: math.Inf(-1), Min: math.Inf(1)}
	var sum float64
	for _, r := range recs {
		v := metric.Value(r)
		s.Max = max(s.Max, v)
		s.Min = min(s.Min, v)
		sum += v
	}
	s.Avg = round2(sum / float64(len(recs)))
	return s
}

// SummarizeAll summarizes every malnutrition indicator plus population, in
// dashboard card order.
func SummarizeAll(recs []models.NutritionRecord) []Summary {
	metrics := []models.Metric{
		models.MetricUnderweight,
		models.MetricOverweight,
		models.MetricStunting,
		models.MetricWasting,
		models.MetricSevereWasting,
		models.MetricU5Population,
	}
	out := make([]Summary, len(metrics))
	for i, m := range metrics {
		out[i] = Summarize(recs, m)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type summaryJSON struct {
	Metric models.Metric `json:"metric"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
	Status string        `json:"status"`
	Max    *float64      `json:"max"`
	Min    *float64      `json:"min"`
	Avg    *float64      `json:"avg"`
}

// MarshalJSON renders an empty summary as status "no data" with null
// statistics.
func (s Summary) MarshalJSON() ([]byte, error) {
	out := summaryJSON{Metric: s.Metric, Label: s.Metric.Label(), Count: s.Count, Status: "no data"}
	if !s.Empty() {
		out.Status = "ok"
		out.Max, out.Min, out.Avg = &s.Max, &s.Min, &s.Avg
	}
	return json.Marshal(out)
}
