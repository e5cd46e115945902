package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pfrederiksen/weather-scrape/internal/storage"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	FetchedAt time.Time           `json:"fetched_at"`
	Location  string              `json:"location"`
	Rows      []storage.StoredRow `json:"rows"`
	RowCount  int                 `json:"row_count"`
	Inserted  *int                `json:"inserted,omitempty"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WritePurge reports how many rows a purge removed
func WritePurge(w io.Writer, deleted int64, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, map[string]int64{"purged": deleted})
	case FormatText:
		_, err := fmt.Fprintf(w, "Purged %d rows.\n", deleted)
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if verbose && result.Inserted != nil {
		fmt.Fprintf(w, "Inserted %d new days for %s\n\n", *result.Inserted, result.Location)
	}

	if result.RowCount == 0 {
		fmt.Fprintf(w, "No stored records for %s.\n", result.Location)
		return nil
	}

	for _, row := range result.Rows {
		fmt.Fprintf(w, "%s  min %s  max %s  mean %s\n",
			row.Date, formatTemp(row.MinTemp), formatTemp(row.MaxTemp), formatTemp(row.AvgTemp))
	}
	fmt.Fprintf(w, "\nTotal: %d days for %s\n", result.RowCount, result.Location)

	return nil
}

// formatTemp renders a stored temperature, or "-" when absent
func formatTemp(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
