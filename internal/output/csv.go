package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"wpmu/internal/report"
)

func writeCSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rep.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range rep.Rows {
		vals := rep.Values(i)
		record := make([]string, len(vals))
		for j, v := range vals {
			record[j] = cellString(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
