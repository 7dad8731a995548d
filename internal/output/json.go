package output

import (
	"bytes"
	"encoding/json"
	"io"

	"wpmu/internal/report"
)

// writeJSON emits an array of objects. Keys follow the header order, which
// encoding/json would otherwise sort for maps.
func writeJSON(w io.Writer, rep *report.Report) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range rep.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range rep.Header {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return err
			}
			val, err := json.Marshal(rep.Rows[i][col])
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}
