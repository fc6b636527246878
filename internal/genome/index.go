package genome

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// prefixBufferSize bounds how much of a file is buffered while scanning its
// header and first sequence line. Longer lines are consumed in chunks.
const prefixBufferSize = 64 * 1024

// Entry is the index record for one chromosome file.
type Entry struct {
	Name    string
	Path    string
	Offset  int64 // byte offset of the first sequence character
	Width   int64 // sequence characters per full line
	TermLen int64 // bytes per line terminator: 1 for \n, 2 for \r\n
	Length  int64 // total sequence length
}

// LineWidth returns the number of bytes per full line, terminator included.
func (e Entry) LineWidth() int64 {
	return e.Width + e.TermLen
}

// offset maps a 1-based position to its byte offset in the file.
func (e Entry) offset(pos int64) int64 {
	i := pos - 1
	return e.Offset + i/e.Width*e.LineWidth() + i%e.Width
}

// indexFile builds the Entry for an open reference file. Only the header,
// the first sequence line and the trailing bytes are read; the sequence
// length follows from the file size.
func indexFile(name, path string, f *os.File) (Entry, error) {
	info, err := f.Stat()
	if err != nil {
		return Entry{}, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return Entry{}, &IndexBuildError{Path: path, Message: "empty file"}
	}

	e := Entry{Name: name, Path: path}
	br := bufio.NewReaderSize(io.NewSectionReader(f, 0, size), prefixBufferSize)

	first, err := br.Peek(1)
	if err != nil {
		return Entry{}, fmt.Errorf("read %s: %w", path, err)
	}

	var headerTerm int64
	if first[0] == '>' {
		n, term, err := scanLine(br)
		if err != nil {
			return Entry{}, fmt.Errorf("read header of %s: %w", path, err)
		}
		if term == 0 {
			return Entry{}, &IndexBuildError{Path: path, Message: "header line without sequence"}
		}
		e.Offset = n
		headerTerm = term
	}

	n, term, err := scanLine(br)
	if err != nil {
		return Entry{}, fmt.Errorf("read first sequence line of %s: %w", path, err)
	}
	e.Width = n - term
	if e.Width <= 0 {
		return Entry{}, &IndexBuildError{Path: path, Message: "first sequence line is empty"}
	}
	if term == 0 {
		// A single unterminated line; the terminator convention is irrelevant
		// for reads but the .fai line width still needs one.
		term = headerTerm
		if term == 0 {
			term = 1
		}
	}
	e.TermLen = term

	trailing, err := trailingTerminators(f, size)
	if err != nil {
		return Entry{}, fmt.Errorf("read tail of %s: %w", path, err)
	}
	body := size - e.Offset - trailing
	if body <= 0 {
		return Entry{}, &IndexBuildError{Path: path, Message: "no sequence data"}
	}

	rem := body % e.LineWidth()
	if rem > e.Width {
		return Entry{}, &IndexBuildError{
			Path:    path,
			Message: fmt.Sprintf("file size does not fit line width %d", e.Width),
		}
	}
	e.Length = body/e.LineWidth()*e.Width + rem

	return e, nil
}

// scanLine consumes one line and returns its byte length including the
// terminator and the terminator length. term is 0 when the line ends at EOF.
func scanLine(br *bufio.Reader) (n, term int64, err error) {
	var prevCR bool
	for {
		chunk, err := br.ReadSlice('\n')
		n += int64(len(chunk))
		switch {
		case err == nil:
			term = 1
			if (len(chunk) >= 2 && chunk[len(chunk)-2] == '\r') || (len(chunk) == 1 && prevCR) {
				term = 2
			}
			return n, term, nil
		case errors.Is(err, bufio.ErrBufferFull):
			prevCR = chunk[len(chunk)-1] == '\r'
		case errors.Is(err, io.EOF):
			return n, 0, nil
		default:
			return n, 0, err
		}
	}
}

// trailingTerminators counts the line terminator bytes at the end of a file.
func trailingTerminators(f *os.File, size int64) (int64, error) {
	var count int64
	buf := make([]byte, 64)
	for end := size; end > 0; {
		start := max(end-int64(len(buf)), 0)
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			if chunk[i] != '\n' && chunk[i] != '\r' {
				return count, nil
			}
			count++
		}
		end = start
	}
	return count, nil
}
