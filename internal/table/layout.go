// Package table reads variant lists from delimited text files.
package table

import (
	"sort"
	"strings"
)

// Columns names the header columns that hold the variant fields.
type Columns struct {
	Chrom   string
	Pos     string
	Allele1 string
	Allele2 string
}

// Layouts are the built-in column mappings.
var Layouts = map[string]Columns{
	"default": {
		Chrom:   "chromosome",
		Pos:     "position",
		Allele1: "allele1",
		Allele2: "allele2",
	},
	// Mutation Annotation Format: allele1 is the annotated reference allele.
	"maf": {
		Chrom:   "Chromosome",
		Pos:     "Start_Position",
		Allele1: "Reference_Allele",
		Allele2: "Tumor_Seq_Allele2",
	},
	// GWAS summary statistics as written by REGENIE.
	"regenie": {
		Chrom:   "CHROM",
		Pos:     "GENPOS",
		Allele1: "ALLELE0",
		Allele2: "ALLELE1",
	},
}

// LayoutNames returns the built-in layout names, comma separated.
func LayoutNames() string {
	names := make([]string, 0, len(Layouts))
	for name := range Layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Override returns c with every non-empty field of o applied.
func (c Columns) Override(o Columns) Columns {
	if o.Chrom != "" {
		c.Chrom = o.Chrom
	}
	if o.Pos != "" {
		c.Pos = o.Pos
	}
	if o.Allele1 != "" {
		c.Allele1 = o.Allele1
	}
	if o.Allele2 != "" {
		c.Allele2 = o.Allele2
	}
	return c
}
