// package formatter maps Spotify listing items to export records and writes them as CSV
package formatter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/desertthunder/spotexport/internal/models"
	"github.com/desertthunder/spotexport/internal/shared"
)

// EncodeCSV writes the header for kind followed by one row per record.
//
// An empty records slice produces a header-only document.
func EncodeCSV[R models.Record](w io.Writer, kind models.Kind, records []R) error {
	headers := kind.Columns()
	if headers == nil {
		return fmt.Errorf("%w: no columns for export kind %v", shared.ErrInvalidArgument, kind)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, record := range records {
		if record.Kind() != kind {
			return fmt.Errorf("%w: record %d is %v, expected %v", shared.ErrUnexpected, i, record.Kind(), kind)
		}
		if err := writer.Write(record.Values()); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}

	return nil
}

// WriteCSVFile writes records to path in a single atomic replace.
//
// The previous file, if any, is untouched unless the complete document was written.
func WriteCSVFile[R models.Record](path string, kind models.Kind, records []R) error {
	return shared.WriteFileAtomic(path, 0644, func(w io.Writer) error {
		return EncodeCSV(w, kind, records)
	})
}
