package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"wpmu/internal/report"
)

func writeTable(w io.Writer, rep *report.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rep.Header, "\t"))
	for i := range rep.Rows {
		vals := rep.Values(i)
		cells := make([]string, len(vals))
		for j, v := range vals {
			cells[j] = cellString(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
