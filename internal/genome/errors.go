package genome

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by any store operation after Close.
var ErrClosed = errors.New("sequence store is closed")

// IndexBuildError reports a reference file that cannot be indexed, either at
// open time (empty or header-only file) or when a read discovers that the
// line layout does not follow the detected wrap width.
type IndexBuildError struct {
	Path    string
	Message string
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("index %s: %s", e.Path, e.Message)
}

// UnknownChromosomeError is returned for a chromosome that has no reference file.
type UnknownChromosomeError struct {
	Chrom string
}

func (e *UnknownChromosomeError) Error() string {
	return fmt.Sprintf("unknown chromosome %q", e.Chrom)
}

// OutOfRangeError is returned when a requested interval does not lie within
// the chromosome.
type OutOfRangeError struct {
	Chrom  string
	Start  int64
	End    int64
	Length int64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("interval %s:%d-%d out of range (chromosome length %d)",
		e.Chrom, e.Start, e.End, e.Length)
}
