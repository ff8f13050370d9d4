package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/tollgate/pkg/limits/storage"
)

// CSVExporter writes one row per usage record.
type CSVExporter struct {
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"id", "timestamp", "request_id",
	"requested_model", "model",
	"prompt_units", "completion_units", "cost",
	"estimated", "fallback",
}

// Export writes records as CSV. It stops early when ctx is cancelled.
func (e *CSVExporter) Export(ctx context.Context, records []storage.UsageRecord, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return &Error{Format: FormatCSV, Err: err}
		}
	}

	for i, r := range records {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writer.Write(recordToRow(r)); err != nil {
			return &Error{Format: FormatCSV, Written: i, Err: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &Error{Format: FormatCSV, Written: len(records), Err: err}
	}
	return nil
}

// ContentType implements Exporter.
func (e *CSVExporter) ContentType() string { return "text/csv" }

func recordToRow(r storage.UsageRecord) []string {
	return []string{
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339Nano),
		r.RequestID,
		r.RequestedModel,
		r.Model,
		strconv.Itoa(r.PromptUnits),
		strconv.Itoa(r.CompletionUnits),
		strconv.FormatFloat(r.Cost, 'f', 6, 64),
		strconv.FormatBool(r.Estimated),
		strconv.FormatBool(r.Fallback),
	}
}
