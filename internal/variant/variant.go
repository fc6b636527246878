// Package variant defines the biallelic variant record shared by the readers,
// the resolver and the writers.
package variant

import "fmt"

// Variant is a biallelic locus to be checked against the reference.
type Variant struct {
	Chrom   string // chromosome name as given in the input (e.g. "12", "chr12")
	Pos     int64  // 1-based genomic position
	Allele1 string
	Allele2 string
}

// String formats the variant as chrom:pos:allele1/allele2.
func (v Variant) String() string {
	return fmt.Sprintf("%s:%d:%s/%s", v.Chrom, v.Pos, v.Allele1, v.Allele2)
}
