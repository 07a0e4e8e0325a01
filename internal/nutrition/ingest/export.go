package ingest

import (
	"encoding/csv"
	"fmt"
	"io"

	"nutridash/internal/nutrition/models"
)

// WriteCSV writes records in the upload format, so an export can be
// re-ingested as is.
func WriteCSV(w io.Writer, recs []models.NutritionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range recs {
		if err := cw.Write(Line(rec)); err != nil {
			return fmt.Errorf("write record %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
