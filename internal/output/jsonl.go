package output

import (
	"bufio"
	"encoding/json"
	"io"

	"gopkg.in/guregu/null.v3"

	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// Record is the JSON form of one resolved variant. RefIsAllele1 is null for
// undetermined variants.
type Record struct {
	Chrom        string    `json:"chrom"`
	Pos          int64     `json:"pos"`
	Allele1      string    `json:"allele1"`
	Allele2      string    `json:"allele2"`
	RefIsAllele1 null.Bool `json:"ref_is_allele1"`
	Reason       string    `json:"reason,omitempty"`
	Observed     string    `json:"observed,omitempty"`
	Ambiguous    bool      `json:"ambiguous,omitempty"`
}

// NewRecord builds the JSON record for a resolved variant.
func NewRecord(v variant.Variant, res resolve.Result) Record {
	return Record{
		Chrom:        v.Chrom,
		Pos:          v.Pos,
		Allele1:      v.Allele1,
		Allele2:      v.Allele2,
		RefIsAllele1: res.RefIsAllele1(),
		Reason:       res.Reason.String(),
		Observed:     res.Observed,
		Ambiguous:    res.Ambiguous,
	}
}

// JSONLWriter streams one JSON object per variant.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSON-lines writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: json.NewEncoder(bw)}
}

// WriteHeader is a no-op; JSON lines carry their own field names.
func (jw *JSONLWriter) WriteHeader([]string) error { return nil }

// Write writes a single record.
func (jw *JSONLWriter) Write(_ []string, v variant.Variant, res resolve.Result) error {
	return jw.enc.Encode(NewRecord(v, res))
}

// Flush flushes any buffered data to the underlying writer.
func (jw *JSONLWriter) Flush() error {
	return jw.w.Flush()
}
