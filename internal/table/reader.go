package table

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/csimplestring/go-csv/detector"

	"github.com/inodb/refallele/internal/variant"
)

// sampleSize is how much of the input is inspected for delimiter detection.
const sampleSize = 16 * 1024

// Table is a delimited variant list held in memory. Rows keep every input
// field so the output can reproduce them.
type Table struct {
	Header    []string
	Rows      [][]string
	Variants  []variant.Variant
	Delimiter rune
}

// ReadOptions configures Read.
type ReadOptions struct {
	Columns   Columns
	Delimiter rune // 0 detects the delimiter from the input
}

// ReadFile reads a variant table from path. "-" reads stdin; gzipped input is
// recognized by its magic bytes.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	if path == "-" {
		return Read(os.Stdin, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variant table: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return Read(r, opts)
}

// Read parses a variant table with a header row. Lines starting with '#'
// are comments.
func Read(r io.Reader, opts ReadOptions) (*Table, error) {
	br := bufio.NewReaderSize(r, sampleSize)

	delim := opts.Delimiter
	if delim == 0 {
		sample, err := br.Peek(sampleSize)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("read variant table: %w", err)
		}
		delim = DetermineDelimiter(sample)
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Line: 1, Message: "no header line found"}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := columnIndices(header, opts.Columns)
	if err != nil {
		return nil, err
	}

	t := &Table{Header: header, Delimiter: delim}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read variant row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		pos, err := strconv.ParseInt(strings.TrimSpace(rec[idx[1]]), 10, 64)
		if err != nil || pos < 1 {
			return nil, &ParseError{
				Line:    line,
				Message: fmt.Sprintf("invalid position: %q", rec[idx[1]]),
			}
		}

		t.Rows = append(t.Rows, rec)
		t.Variants = append(t.Variants, variant.Variant{
			Chrom:   strings.TrimSpace(rec[idx[0]]),
			Pos:     pos,
			Allele1: strings.TrimSpace(rec[idx[2]]),
			Allele2: strings.TrimSpace(rec[idx[3]]),
		})
	}

	return t, nil
}

// columnIndices finds the chrom, pos, allele1 and allele2 columns.
func columnIndices(header []string, cols Columns) ([4]int, error) {
	idx := [4]int{-1, -1, -1, -1}
	names := [4]string{cols.Chrom, cols.Pos, cols.Allele1, cols.Allele2}
	for i, h := range header {
		h = strings.TrimSpace(h)
		for j, name := range names {
			if h == name && idx[j] == -1 {
				idx[j] = i
			}
		}
	}
	for j, name := range names {
		if idx[j] == -1 {
			return idx, &ParseError{
				Line:    1,
				Message: fmt.Sprintf("required column %q not found in header", name),
			}
		}
	}
	return idx, nil
}

// DetermineDelimiter returns the most likely field delimiter of a CSV-like
// sample, defaulting to tab. Comment lines and a trailing partial line are
// left out of the sample.
func DetermineDelimiter(sample []byte) rune {
	if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i+1]
	}
	var lines [][]byte
	for _, line := range bytes.SplitAfter(sample, []byte("\n")) {
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		lines = append(lines, line)
	}

	d := detector.New()
	delimiters := d.DetectDelimiter(bytes.NewReader(bytes.Join(lines, nil)), '"')
	if len(delimiters) > 0 {
		// Prefer tab when it is among the candidates; genomic tables rarely
		// use anything else when both are present.
		for _, c := range delimiters {
			if c == "\t" {
				return '\t'
			}
		}
		return rune(delimiters[0][0])
	}

	return '\t'
}

// ParseError represents an error during table parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("table parse error at line %d: %s", e.Line, e.Message)
}
