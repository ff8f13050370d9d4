package export

import (
	"context"
	"fmt"
	"io"

	"mercator-hq/tollgate/pkg/limits/storage"
)

// Exporter writes usage records in one format.
type Exporter interface {
	Export(ctx context.Context, records []storage.UsageRecord, w io.Writer) error

	// ContentType is the MIME type of the output.
	ContentType() string
}

// Formats accepted by New.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// New returns the exporter for format. An empty format selects JSON.
func New(format string) (Exporter, error) {
	switch format {
	case "", FormatJSON:
		return NewJSONExporter(false), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want json or csv)", format)
	}
}

// Error reports a failed export.
type Error struct {
	Format string
	// Written is the number of records written before the failure.
	Written int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s export failed after %d records: %v", e.Format, e.Written, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
