package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nutridash/internal/app"
	"nutridash/internal/nutrition/insights"
	"nutridash/internal/nutrition/models"
)

var (
	summaryMetric string

	topMetric string
	topN      int
	topPNG    string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print max, min and average per indicator",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the countries with the highest value of an indicator",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

func init() {
	summaryCmd.Flags().StringVar(&summaryMetric, "metric", "", "single indicator to summarize (default all)")

	topCmd.Flags().StringVar(&topMetric, "metric", string(insights.DefaultMetric), "indicator to rank by")
	topCmd.Flags().IntVar(&topN, "n", insights.DefaultTopN, "number of countries")
	topCmd.Flags().StringVar(&topPNG, "png", "", "also render the bar chart to this PNG file")
}

func runSummary(cmd *cobra.Command, _ []string) error {
	var metric models.Metric
	if summaryMetric != "" {
		m, err := models.ParseMetric(summaryMetric)
		if err != nil {
			return err
		}
		metric = m
	}
	return withDeps(cmd, func(ctx context.Context, d *app.Deps) error {
		recs, err := d.Records.List(ctx)
		if err != nil {
			return err
		}
		var out any = insights.SummarizeAll(recs)
		if metric != "" {
			out = insights.Summarize(recs, metric)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	})
}

func runTop(cmd *cobra.Command, _ []string) error {
	metric, err := models.ParseMetric(topMetric)
	if err != nil {
		return err
	}
	if topN < 1 {
		return fmt.Errorf("--n must be positive")
	}
	return withDeps(cmd, func(ctx context.Context, d *app.Deps) error {
		recs, err := d.Records.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "RANK\tCOUNTRY\t%s\n", metric.Label())
		for i, rec := range insights.TopN(recs, metric, topN) {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\n", i+1, rec.Country, metric.Value(rec))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if topPNG == "" {
			return nil
		}
		f, err := os.Create(topPNG)
		if err != nil {
			return err
		}
		if err := insights.RenderBar(f, insights.TopChart(recs, metric, topN)); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}
