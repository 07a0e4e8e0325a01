package insights

import (
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"nutridash/internal/nutrition/models"
	dErrors "nutridash/pkg/domain-errors"
)

const (
	chartHeight = 480
	minWidth    = 800
	barWidth    = 14
	barSpacing  = 6

	// stacked bars carry their country name under the bar
	minStackedSlot = 48
	labelPad       = 8
)

var errNoData = dErrors.New(dErrors.CodeNotFound, "no records to chart")

func color(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func fill(hex string) chart.Style {
	c := color(hex)
	return chart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1}
}

// pointStyle draws markers only, no connecting line.
func pointStyle(c drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    5,
		DotColor:    c,
	}
}

func widthFor(bars, slot int) int {
	return max(minWidth, bars*slot+160)
}

// stackedSlot returns the horizontal space per stacked bar. go-chart wraps an
// x-axis label by word inside its bar slot and fails the whole layout when a
// single word is wider than the slot, so the slot fits the widest word.
func stackedSlot(labels []string) (int, error) {
	r, err := chart.PNG(1, 1)
	if err != nil {
		return 0, err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return 0, err
	}
	r.SetDPI(chart.DefaultDPI)
	r.SetFont(font)
	r.SetFontSize(chart.DefaultAxisFontSize)

	widest := 0
	for _, label := range labels {
		for _, word := range strings.Fields(label) {
			widest = max(widest, r.MeasureText(word).Width())
		}
	}
	return max(minStackedSlot, widest+labelPad+barSpacing), nil
}

// RenderStacked writes the stacked indicator chart as PNG. Each bar shows the
// indicators' shares of that country's total; countries with no data at all
// are left out.
func RenderStacked(w io.Writer, data ChartData) error {
	bars := make([]chart.StackedBar, 0, len(data.Labels))
	names := make([]string, 0, len(data.Labels))
	for i, label := range data.Labels {
		bar := chart.StackedBar{Name: label}
		var total float64
		for _, ds := range data.Datasets {
			v := ds.Data[i]
			total += v
			bar.Values = append(bar.Values, chart.Value{Label: ds.Label, Value: v, Style: fill(ds.Color)})
		}
		if total > 0 {
			bars = append(bars, bar)
			names = append(names, label)
		}
	}
	if len(bars) == 0 {
		return errNoData
	}

	slot, err := stackedSlot(names)
	if err != nil {
		return fmt.Errorf("measure stacked labels: %w", err)
	}
	for i := range bars {
		bars[i].Width = slot - barSpacing
	}

	sbc := chart.StackedBarChart{
		Title:      "Malnutrition indicators by country",
		Width:      widthFor(len(bars), slot),
		Height:     chartHeight,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 120}},
		Bars:       bars,
	}
	if err := sbc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render stacked chart: %w", err)
	}
	return nil
}

// RenderBar writes a single-series bar chart (the top-N ranking) as PNG.
func RenderBar(w io.Writer, data ChartData) error {
	if len(data.Labels) == 0 || len(data.Datasets) == 0 {
		return errNoData
	}
	ds := data.Datasets[0]
	bars := make([]chart.Value, len(data.Labels))
	top := 0.0
	for i, label := range data.Labels {
		bars[i] = chart.Value{Label: label, Value: ds.Data[i], Style: fill(ds.Color)}
		top = max(top, ds.Data[i])
	}

	bc := chart.BarChart{
		Title:      ds.Label,
		Width:      widthFor(len(bars), barWidth+barSpacing),
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 120}},
		YAxis: chart.YAxis{
			Name:  ds.Label,
			Range: &chart.ContinuousRange{Min: 0, Max: headroom(top)},
		},
		Bars: bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// RenderScatter writes the scatter plot as PNG. Income classification on an
// axis is labelled with its income group names.
func RenderScatter(w io.Writer, data ScatterData, x models.Metric) error {
	var series []chart.Series
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMax := 0.0
	for _, ds := range data.Datasets {
		if len(ds.Data) == 0 {
			continue
		}
		xs := make([]float64, len(ds.Data))
		ys := make([]float64, len(ds.Data))
		for i, p := range ds.Data {
			xs[i], ys[i] = p.X, p.Y
			xMin, xMax = min(xMin, p.X), max(xMax, p.X)
			yMax = max(yMax, p.Y)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    ds.Label,
			XValues: xs,
			YValues: ys,
			Style:   pointStyle(color(ds.Color)),
		})
	}
	if len(series) == 0 {
		return errNoData
	}

	xAxis := chart.XAxis{Name: data.XLabel}
	if x == models.MetricIncomeClassification {
		xAxis.Range = &chart.ContinuousRange{Min: -0.5, Max: 3.5}
		for _, c := range models.IncomeClassifications() {
			xAxis.Ticks = append(xAxis.Ticks, chart.Tick{Value: float64(c), Label: c.Label()})
		}
	} else {
		// pad so a single distinct x still yields a non-empty range
		xAxis.Range = &chart.ContinuousRange{Min: math.Max(0, xMin-1), Max: xMax + 1}
	}

	ch := chart.Chart{
		Title:      data.XLabel + " vs " + data.YLabel,
		Width:      minWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xAxis,
		YAxis: chart.YAxis{
			Name:  data.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: headroom(yMax)},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render scatter chart: %w", err)
	}
	return nil
}

// headroom leaves 10% above the tallest value and never returns 0.
func headroom(top float64) float64 {
	if top <= 0 {
		return 1
	}
	return top * 1.1
}
