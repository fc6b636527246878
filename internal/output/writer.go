// Package output writes resolution results next to the input variant rows.
package output

import (
	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// Default names of the columns appended to each row.
const (
	DefaultResultColumn = "ref_is_allele1"
	DefaultReasonColumn = "resolution_reason"
)

// ResultWriter defines the interface for writing resolved variants.
type ResultWriter interface {
	WriteHeader(header []string) error
	Write(row []string, v variant.Variant, res resolve.Result) error
	Flush() error
}
