package genome

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type layout struct {
	width    int
	header   string // written as-is after '>' when non-empty
	crlf     bool
	trailing bool // terminate the last line
}

// wrap renders seq the way reference files are laid out on disk.
func wrap(seq string, l layout) string {
	term := "\n"
	if l.crlf {
		term = "\r\n"
	}
	var b strings.Builder
	if l.header != "" {
		b.WriteString(">" + l.header + term)
	}
	for i := 0; i < len(seq); i += l.width {
		end := min(i+l.width, len(seq))
		b.WriteString(seq[i:end])
		if end < len(seq) || l.trailing {
			b.WriteString(term)
		}
	}
	return b.String()
}

func writeRef(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+DefaultExtension), []byte(content), 0o644))
}

func openStore(t *testing.T, dir string, opts ...Option) *Store {
	t.Helper()
	s, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func randomSeq(n int, seed int64) string {
	r := rand.New(rand.NewSource(seed))
	const alphabet = "ACGTN"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(4)]
	}
	return string(b)
}

func TestReadSequence_EveryPosition(t *testing.T) {
	seq := randomSeq(257, 1)

	layouts := []layout{
		{width: 1, trailing: true},
		{width: 7, header: "chr1 test", trailing: true},
		{width: 60, header: "chr1", trailing: true},
		{width: 60, header: "chr1", trailing: false},
		{width: 10, header: "chr1", crlf: true, trailing: true},
		{width: 16, crlf: true, trailing: false},
		{width: 257, header: "chr1", trailing: true},
		{width: 1000, trailing: false},
	}

	for _, l := range layouts {
		t.Run(fmt.Sprintf("w%d_h%t_crlf%t_trail%t", l.width, l.header != "", l.crlf, l.trailing), func(t *testing.T) {
			dir := t.TempDir()
			writeRef(t, dir, "chr1", wrap(seq, l))
			s := openStore(t, dir)

			n, err := s.Length("chr1")
			require.NoError(t, err)
			require.Equal(t, int64(len(seq)), n)

			for i := 1; i <= len(seq); i++ {
				got, err := s.ReadSequence("chr1", int64(i), int64(i))
				require.NoError(t, err)
				require.Equal(t, seq[i-1:i], got, "position %d", i)
			}
		})
	}
}

func TestReadSequence_Spans(t *testing.T) {
	seq := randomSeq(500, 2)
	dir := t.TempDir()
	writeRef(t, dir, "7", wrap(seq, layout{width: 13, header: "7 dna:chromosome", trailing: true}))
	s := openStore(t, dir)

	tests := []struct{ start, end int64 }{
		{1, 1},
		{1, 13},
		{13, 14},   // straddles the first line break
		{12, 40},   // several lines
		{26, 26},   // last base of a line
		{27, 27},   // first base of a line
		{1, 500},   // whole chromosome
		{490, 500}, // short final line
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d", tt.start, tt.end), func(t *testing.T) {
			got, err := s.ReadSequence("7", tt.start, tt.end)
			require.NoError(t, err)
			assert.Len(t, got, int(tt.end-tt.start+1))
			assert.Equal(t, seq[tt.start-1:tt.end], got)
		})
	}
}

func TestReadSequence_OutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeRef(t, dir, "chr2", wrap("ACGTACGTAC", layout{width: 4, header: "chr2", trailing: true}))
	s := openStore(t, dir)

	tests := []struct {
		name       string
		start, end int64
	}{
		{"past end", 15, 15},
		{"span past end", 9, 11},
		{"zero start", 0, 1},
		{"reversed", 5, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ReadSequence("chr2", tt.start, tt.end)
			var oor *OutOfRangeError
			require.ErrorAs(t, err, &oor)
			assert.Equal(t, int64(10), oor.Length)
		})
	}
}

func TestReadSequence_UnknownChromosome(t *testing.T) {
	dir := t.TempDir()
	writeRef(t, dir, "chr1", "ACGT\n")
	s := openStore(t, dir)

	assert.False(t, s.Contains("chrZZ"))
	_, err := s.ReadSequence("chrZZ", 1, 1)
	var uc *UnknownChromosomeError
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, "chrZZ", uc.Chrom)

	_, err = s.Length("chrZZ")
	assert.ErrorAs(t, err, &uc)
}

func TestReadSequence_InconsistentWidth(t *testing.T) {
	dir := t.TempDir()
	// Second line is one base short, third is one base long.
	writeRef(t, dir, "chr3", ">chr3\nACGTA\nCGTA\nCGTACG\nACG\n")
	s := openStore(t, dir)

	got, err := s.ReadSequence("chr3", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "ACGTA", got)

	_, err = s.ReadSequence("chr3", 4, 12)
	var ibe *IndexBuildError
	require.ErrorAs(t, err, &ibe)
	assert.Contains(t, ibe.Error(), "line width")
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"header only", ">chr1"},
		{"header then newline", ">chr1\n"},
		{"blank first line", ">chr1\n\nACGT\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeRef(t, dir, "chr1", tt.content)
			_, err := Open(dir)
			var ibe *IndexBuildError
			require.ErrorAs(t, err, &ibe)
		})
	}

	t.Run("no reference files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
		_, err := Open(dir)
		var ibe *IndexBuildError
		require.ErrorAs(t, err, &ibe)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
	})
}

func TestOpen_ExtensionAndNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chr1.fasta"), []byte(">chr1\nAC\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chrX.fasta"), []byte(">chrX\nGT\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chr2.fa"), []byte(">chr2\nGT\n"), 0o644))

	s := openStore(t, dir, WithExtension(".fasta"))
	assert.Equal(t, []string{"chr1", "chrX"}, s.Names())
	assert.False(t, s.Contains("chr2"))
	assert.Equal(t, dir, s.Dir())
}

func TestChrPrefixMatching(t *testing.T) {
	dir := t.TempDir()
	writeRef(t, dir, "chr1", ">chr1\nACGT\n")
	writeRef(t, dir, "2", ">2\nTTTT\n")
	writeRef(t, dir, "X", ">X\nGGGG\n")
	writeRef(t, dir, "chrX", ">chrX\nCCCC\n")

	plain := openStore(t, dir)
	assert.False(t, plain.Contains("1"))

	s := openStore(t, dir, WithChrPrefixMatching(true))
	assert.True(t, s.Contains("1"))
	assert.True(t, s.Contains("chr2"))

	got, err := s.ReadSequence("1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "AC", got)

	// Both spellings exist; each keeps its own file.
	got, err = s.ReadSequence("X", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "G", got)
	got, err = s.ReadSequence("chrX", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "C", got)
}

func TestUpperCase(t *testing.T) {
	dir := t.TempDir()
	writeRef(t, dir, "chr1", ">chr1\nacgtNN\n")

	s := openStore(t, dir)
	got, err := s.ReadSequence("chr1", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, "acgt", got)

	u := openStore(t, dir, WithUpperCase(true))
	got, err = u.ReadSequence("chr1", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", got)
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	writeRef(t, dir, "chr1", ">chr1\nACGT\n")

	s, err := Open(dir)
	require.NoError(t, err)

	got, err := s.ReadSequence("chr1", 2, 3)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err = s.ReadSequence("chr1", 1, 1)
	assert.True(t, errors.Is(err, ErrClosed))

	// Results handed out before Close are independent copies.
	assert.Equal(t, "CG", got)
	assert.True(t, s.Contains("chr1"))
}

func TestConcurrentReads(t *testing.T) {
	seq := randomSeq(2000, 3)
	dir := t.TempDir()
	writeRef(t, dir, "chr1", wrap(seq, layout{width: 50, header: "chr1", trailing: true}))
	s := openStore(t, dir)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w + 1; i <= len(seq)-10; i += 8 {
				got, err := s.ReadSequence("chr1", int64(i), int64(i+9))
				if err != nil {
					errs <- err
					return
				}
				if got != seq[i-1:i+9] {
					errs <- fmt.Errorf("position %d: got %s", i, got)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestWriteFAI(t *testing.T) {
	dir := t.TempDir()
	writeRef(t, dir, "chr1", wrap(randomSeq(25, 4), layout{width: 10, header: "chr1 description", trailing: true}))
	writeRef(t, dir, "chr2", wrap(randomSeq(8, 5), layout{width: 4, crlf: true, trailing: true}))
	s := openStore(t, dir)

	var buf bytes.Buffer
	require.NoError(t, s.WriteFAI(&buf))
	assert.Equal(t, "chr1\t25\t18\t10\t11\nchr2\t8\t0\t4\t6\n", buf.String())

	e, ok := s.Entry("chr1")
	require.True(t, ok)
	assert.Equal(t, int64(18), e.Offset)
	assert.Equal(t, int64(1), e.TermLen)
}
