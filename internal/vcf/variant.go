package vcf

import (
	"strings"

	"github.com/inodb/refallele/internal/variant"
)

// Record is a single VCF data line. The five leading columns are parsed;
// QUAL, FILTER, INFO and any FORMAT and sample columns are kept verbatim.
type Record struct {
	Chrom string   // Chromosome name (e.g., "12", "chr12")
	Pos   int64    // 1-based genomic position
	ID    string   // Variant identifier (e.g., rs ID)
	Ref   string   // Reference allele as written in the file
	Alt   string   // Comma-separated alternate alleles
	Rest  []string // QUAL, FILTER, INFO and any FORMAT/sample columns
}

// Alts returns the alternate alleles. A missing ALT (".") yields none.
func (r *Record) Alts() []string {
	if r.Alt == "" || r.Alt == "." {
		return nil
	}
	return strings.Split(r.Alt, ",")
}

// Variant returns the record as an allele pair: REF as allele1 and the first
// ALT as allele2. The file's REF is not trusted; resolution checks it
// against the reference genome like any other allele. Split multi-allelic
// records first to resolve every alternate.
func (r *Record) Variant() variant.Variant {
	v := variant.Variant{Chrom: r.Chrom, Pos: r.Pos, Allele1: r.Ref}
	if alts := r.Alts(); len(alts) > 0 {
		v.Allele2 = alts[0]
	}
	return v
}

// Fields returns every column of the record, for delimited output.
func (r *Record) Fields() []string {
	fields := make([]string, 0, 5+len(r.Rest))
	fields = append(fields, r.Chrom, formatPos(r.Pos), r.ID, r.Ref, r.Alt)
	return append(fields, r.Rest...)
}

// SplitMultiAllelic splits a multi-allelic record into one record per
// alternate allele. Other columns are shared, not copied.
func SplitMultiAllelic(r *Record) []*Record {
	alts := r.Alts()
	if len(alts) <= 1 {
		return []*Record{r}
	}

	records := make([]*Record, len(alts))
	for i, alt := range alts {
		records[i] = &Record{
			Chrom: r.Chrom,
			Pos:   r.Pos,
			ID:    r.ID,
			Ref:   r.Ref,
			Alt:   alt,
			Rest:  r.Rest,
		}
	}
	return records
}
