package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/tollgate/pkg/limits/storage"
)

// JSONExporter writes usage records as a JSON array.
type JSONExporter struct {
	// Pretty indents the output.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records as a JSON array; no records is "[]".
func (e *JSONExporter) Export(ctx context.Context, records []storage.UsageRecord, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []storage.UsageRecord{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return &Error{Format: FormatJSON, Err: err}
	}
	return nil
}

// ContentType implements Exporter.
func (e *JSONExporter) ContentType() string { return "application/json" }
