package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nutridash/internal/app"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest --file data.csv",
	Short: "Create one record per row of a CSV file",
	Long: `Reads a CSV file with the dashboard's column headers and creates one
record per data row, in file order. The first invalid row stops the batch;
rows before it stay stored.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "CSV file to ingest")
	_ = ingestCmd.MarkFlagRequired("file")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(ingestFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", ingestFile, err)
	}
	defer f.Close()

	return withDeps(cmd, func(ctx context.Context, d *app.Deps) error {
		svc, err := d.NewIngester()
		if err != nil {
			return err
		}
		res, ingestErr := svc.Ingest(ctx, f)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return ingestErr
	})
}
