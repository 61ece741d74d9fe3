package recurring

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/josh-kwaku/isp-billing/internal/domain"
)

// WriteCSV writes one row per service result with a header line.
func WriteCSV(w io.Writer, run *domain.BillingRun) error {
	if err := gocsv.Marshal(run.Results, w); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}
