package batch

import (
	"fmt"
	"strings"

	"github.com/inodb/refallele/internal/variant"
)

// MismatchError reports a variant neither of whose alleles matches the
// reference, under the error mismatch policy.
type MismatchError struct {
	Variant  variant.Variant
	Observed string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("sequence mismatch at %s:%d: neither allele1 %q nor allele2 %q matches reference %q",
		e.Variant.Chrom, e.Variant.Pos, e.Variant.Allele1, e.Variant.Allele2, e.Observed)
}

// UnknownChromosomesError lists the chromosomes of a batch that have no
// reference file, under the error unknown-chromosome policy.
type UnknownChromosomesError struct {
	Chroms   []string
	Variants int
}

func (e *UnknownChromosomesError) Error() string {
	return fmt.Sprintf("%d variants on %d chromosomes missing from reference: %s",
		e.Variants, len(e.Chroms), strings.Join(e.Chroms, ", "))
}

// BatchError aborts a batch. Processed is the number of variants, in input
// order, that were resolved before the failure; callers can resume from there.
type BatchError struct {
	Processed int
	Index     int // input index of the offending variant, -1 for batch-level failures
	Variant   *variant.Variant
	Err       error
}

func (e *BatchError) Error() string {
	if e.Variant != nil {
		return fmt.Sprintf("batch failed at variant %d (%s) after %d processed: %v",
			e.Index+1, e.Variant, e.Processed, e.Err)
	}
	return fmt.Sprintf("batch failed after %d processed: %v", e.Processed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
