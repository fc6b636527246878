package output

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// NA marks an undetermined result in delimited output.
const NA = "NA"

// FormatResult renders a nullable result as "true", "false" or NA.
func FormatResult(b null.Bool) string {
	if !b.Valid {
		return NA
	}
	return strconv.FormatBool(b.Bool)
}

// ParseResult reads a value written by FormatResult. NA, empty, NaN and null
// all read back as an invalid null.Bool, never as false.
func ParseResult(s string) (null.Bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "na", "", "nan", "null":
		return null.Bool{}, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return null.Bool{}, fmt.Errorf("invalid result value %q", s)
	}
	return null.BoolFrom(b), nil
}
