package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nutridash/internal/app"
	"nutridash/internal/nutrition/ingest"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every record as CSV in the ingestion format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDeps(cmd, func(ctx context.Context, d *app.Deps) error {
			recs, err := d.Records.List(ctx)
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if exportOut != "" {
				f, err := os.Create(exportOut)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return ingest.WriteCSV(w, recs)
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}
