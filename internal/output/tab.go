package output

import (
	"encoding/csv"
	"io"

	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// TabWriter writes the input rows with the result and reason columns
// appended, using the input's delimiter.
type TabWriter struct {
	w            *csv.Writer
	resultColumn string
	reasonColumn string
	row          []string
}

// NewTabWriter creates a delimited writer. A zero delimiter selects tab.
func NewTabWriter(w io.Writer, delimiter rune) *TabWriter {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	} else {
		cw.Comma = '\t'
	}
	return &TabWriter{
		w:            cw,
		resultColumn: DefaultResultColumn,
		reasonColumn: DefaultReasonColumn,
	}
}

// SetResultColumn renames the result column.
func (tw *TabWriter) SetResultColumn(name string) {
	if name != "" {
		tw.resultColumn = name
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader(header []string) error {
	return tw.w.Write(append(append([]string(nil), header...), tw.resultColumn, tw.reasonColumn))
}

// Write writes a single row. The input row is not modified.
func (tw *TabWriter) Write(row []string, _ variant.Variant, res resolve.Result) error {
	tw.row = append(tw.row[:0], row...)
	tw.row = append(tw.row, FormatResult(res.RefIsAllele1()), res.Reason.String())
	return tw.w.Write(tw.row)
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	tw.w.Flush()
	return tw.w.Error()
}
