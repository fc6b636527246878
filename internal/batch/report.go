package batch

import (
	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// Counts summarizes the outcomes of a batch.
type Counts struct {
	Total             int
	AlleleOne         int
	AlleleTwo         int
	Mismatch          int
	UnknownChromosome int
	Ambiguous         int // allele1 chosen by precedence while allele2 also matched
}

// Mismatch is a variant recorded under the warning mismatch policy.
type Mismatch struct {
	Index    int
	Variant  variant.Variant
	Observed string
}

// Report is the outcome of a batch. Results is positionally aligned with the
// input variants.
type Report struct {
	Results            []resolve.Result
	Counts             Counts
	Mismatches         []Mismatch
	UnknownChromosomes []string
}

func newReport(n int) *Report {
	return &Report{Results: make([]resolve.Result, n)}
}

func (r *Report) add(i int, res resolve.Result) {
	r.Results[i] = res
	r.Counts.Total++
	if !res.Determined() {
		switch res.Reason {
		case resolve.ReasonSequenceMismatch:
			r.Counts.Mismatch++
		case resolve.ReasonUnknownChromosome:
			r.Counts.UnknownChromosome++
		}
		return
	}
	if res.Outcome == resolve.AlleleOneIsRef {
		r.Counts.AlleleOne++
		if res.Ambiguous {
			r.Counts.Ambiguous++
		}
		return
	}
	r.Counts.AlleleTwo++
}

// Undetermined returns the number of variants neither allele of which was
// confirmed as reference.
func (c Counts) Undetermined() int {
	return c.Mismatch + c.UnknownChromosome
}
