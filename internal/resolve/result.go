// Package resolve decides which of a variant's two alleles matches the
// reference genome.
package resolve

import "gopkg.in/guregu/null.v3"

// Outcome is the classification of a single variant.
type Outcome uint8

const (
	Undetermined Outcome = iota
	AlleleOneIsRef
	AlleleTwoIsRef
)

func (o Outcome) String() string {
	switch o {
	case AlleleOneIsRef:
		return "allele1"
	case AlleleTwoIsRef:
		return "allele2"
	default:
		return "undetermined"
	}
}

// Reason explains an Undetermined outcome.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonSequenceMismatch
	ReasonUnknownChromosome
)

func (r Reason) String() string {
	switch r {
	case ReasonSequenceMismatch:
		return "sequence_mismatch"
	case ReasonUnknownChromosome:
		return "unknown_chromosome"
	default:
		return ""
	}
}

// Result is the resolution of one variant.
type Result struct {
	Outcome Outcome
	Reason  Reason

	// Observed is the reference sequence that was compared, empty when no
	// read took place.
	Observed string

	// Ambiguous is set when both alleles are prefixes of the reference and
	// allele1 won by precedence.
	Ambiguous bool
}

// Matched returns a Result for a successful match.
func Matched(o Outcome, observed string) Result {
	return Result{Outcome: o, Observed: observed}
}

// Unresolved returns an Undetermined Result with the given reason.
func Unresolved(reason Reason, observed string) Result {
	return Result{Outcome: Undetermined, Reason: reason, Observed: observed}
}

// Determined reports whether one of the alleles matched.
func (r Result) Determined() bool {
	return r.Outcome != Undetermined
}

// RefIsAllele1 returns the result as a nullable boolean: true when allele1 is
// the reference allele, false when allele2 is, and null when undetermined.
func (r Result) RefIsAllele1() null.Bool {
	if !r.Determined() {
		return null.Bool{}
	}
	return null.BoolFrom(r.Outcome == AlleleOneIsRef)
}
