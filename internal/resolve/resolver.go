package resolve

import "strings"

// SequenceReader is the part of the sequence store the resolver needs.
type SequenceReader interface {
	ReadSequence(chrom string, start, end int64) (string, error)
}

// Resolve reads the reference at chrom:pos, long enough to cover the longer
// allele, and reports which allele is a prefix of it. allele1 is checked
// first and wins when both match. Empty alleles never match.
//
// Errors from the reader (unknown chromosome, out of range, closed store) are
// returned unchanged; a mismatch is a Result, not an error.
func Resolve(r SequenceReader, chrom string, pos int64, allele1, allele2 string) (Result, error) {
	span := int64(max(len(allele1), len(allele2), 1)) - 1
	seq, err := r.ReadSequence(chrom, pos, pos+span)
	if err != nil {
		return Result{}, err
	}

	one := matches(seq, allele1)
	two := matches(seq, allele2)
	switch {
	case one:
		res := Matched(AlleleOneIsRef, seq)
		res.Ambiguous = two
		return res, nil
	case two:
		return Matched(AlleleTwoIsRef, seq), nil
	default:
		return Unresolved(ReasonSequenceMismatch, seq), nil
	}
}

func matches(seq, allele string) bool {
	return allele != "" && strings.HasPrefix(seq, allele)
}
