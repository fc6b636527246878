package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariant_String(t *testing.T) {
	v := Variant{Chrom: "chr12", Pos: 25245351, Allele1: "C", Allele2: "A"}
	assert.Equal(t, "chr12:25245351:C/A", v.String())
}
