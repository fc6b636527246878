// Package genome provides random-access reads over a directory of
// per-chromosome reference sequence files.
//
// Each file holds one chromosome: an optional header line starting with '>'
// followed by the sequence wrapped at a fixed width. The store indexes every
// file from its first lines and its size, then serves arbitrary 1-based
// intervals with a single positioned read.
package genome

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultExtension is the reference file suffix used when none is configured.
const DefaultExtension = ".fa"

type options struct {
	extension   string
	chrPrefix   bool
	upperCase   bool
	concurrency int
	logger      *zap.Logger
}

// Option configures Open.
type Option func(*options)

// WithExtension sets the file suffix that marks a reference file.
func WithExtension(ext string) Option {
	return func(o *options) { o.extension = ext }
}

// WithChrPrefixMatching lets "chr1" and "1" name the same chromosome when
// only one of the two spellings has a file.
func WithChrPrefixMatching(enabled bool) Option {
	return func(o *options) { o.chrPrefix = enabled }
}

// WithUpperCase upper-cases sequence returned by reads, for soft-masked
// references.
func WithUpperCase(enabled bool) Option {
	return func(o *options) { o.upperCase = enabled }
}

// WithConcurrency bounds the number of files indexed in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

type chromFile struct {
	Entry
	f *os.File
}

// Store serves reference sequence reads. It is safe for concurrent use.
type Store struct {
	dir     string
	entries map[string]*chromFile
	aliases map[string]string
	upper   bool
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Open indexes every reference file in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	o := options{
		extension:   DefaultExtension,
		concurrency: runtime.NumCPU(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read reference directory: %w", err)
	}

	var names []string
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), o.extension) {
			continue
		}
		if name := strings.TrimSuffix(d.Name(), o.extension); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, &IndexBuildError{
			Path:    dir,
			Message: fmt.Sprintf("no %s files found", o.extension),
		}
	}

	files := make([]*chromFile, len(names))
	var g errgroup.Group
	g.SetLimit(max(o.concurrency, 1))
	for i, name := range names {
		g.Go(func() error {
			cf, err := openChrom(name, filepath.Join(dir, name+o.extension))
			files[i] = cf
			return err
		})
	}
	if err := g.Wait(); err != nil {
		for _, cf := range files {
			if cf != nil {
				cf.f.Close()
			}
		}
		return nil, err
	}

	s := &Store{
		dir:     dir,
		entries: make(map[string]*chromFile, len(files)),
		aliases: make(map[string]string),
		upper:   o.upperCase,
		logger:  o.logger,
	}
	for _, cf := range files {
		s.entries[cf.Name] = cf
		s.logger.Debug("indexed reference file",
			zap.String("chrom", cf.Name),
			zap.Int64("length", cf.Length),
			zap.Int64("width", cf.Width))
	}
	if o.chrPrefix {
		for name := range s.entries {
			alt := togglePrefix(name)
			if _, exists := s.entries[alt]; !exists {
				s.aliases[alt] = name
			}
		}
	}

	s.logger.Info("opened reference",
		zap.String("dir", dir),
		zap.Int("chromosomes", len(s.entries)))

	return s, nil
}

func openChrom(name, path string) (*chromFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference file: %w", err)
	}
	e, err := indexFile(name, path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &chromFile{Entry: e, f: f}, nil
}

func togglePrefix(name string) string {
	if strings.HasPrefix(name, "chr") {
		return name[3:]
	}
	return "chr" + name
}

func (s *Store) lookup(chrom string) (*chromFile, bool) {
	if cf, ok := s.entries[chrom]; ok {
		return cf, true
	}
	if name, ok := s.aliases[chrom]; ok {
		return s.entries[name], true
	}
	return nil, false
}

// Dir returns the reference directory.
func (s *Store) Dir() string {
	return s.dir
}

// Contains reports whether the store has a reference file for chrom.
// The index is immutable, so Contains keeps answering after Close.
func (s *Store) Contains(chrom string) bool {
	_, ok := s.lookup(chrom)
	return ok
}

// Names returns the indexed chromosome names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry returns a copy of the index record for chrom.
func (s *Store) Entry(chrom string) (Entry, bool) {
	cf, ok := s.lookup(chrom)
	if !ok {
		return Entry{}, false
	}
	return cf.Entry, true
}

// Length returns the sequence length of chrom.
func (s *Store) Length(chrom string) (int64, error) {
	cf, ok := s.lookup(chrom)
	if !ok {
		return 0, &UnknownChromosomeError{Chrom: chrom}
	}
	return cf.Length, nil
}

// ReadSequence returns the reference sequence for the closed 1-based
// interval [start, end] on chrom.
func (s *Store) ReadSequence(chrom string, start, end int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrClosed
	}
	cf, ok := s.lookup(chrom)
	if !ok {
		return "", &UnknownChromosomeError{Chrom: chrom}
	}
	if start < 1 || end < start || end > cf.Length {
		return "", &OutOfRangeError{Chrom: chrom, Start: start, End: end, Length: cf.Length}
	}

	lo := cf.offset(start)
	buf := make([]byte, cf.offset(end)-lo+1)
	if _, err := cf.f.ReadAt(buf, lo); err != nil {
		return "", fmt.Errorf("read %s:%d-%d: %w", chrom, start, end, err)
	}

	seq, err := cf.strip(buf, lo, end-start+1)
	if err != nil {
		return "", err
	}
	if s.upper {
		seq = bytes.ToUpper(seq)
	}
	return string(seq), nil
}

// strip removes line terminators from raw file bytes read at offset lo and
// checks that they sit exactly where the index says lines end.
func (cf *chromFile) strip(raw []byte, lo, want int64) ([]byte, error) {
	out := make([]byte, 0, want)
	col := (lo - cf.Offset) % cf.LineWidth()
	for _, b := range raw {
		isTerm := b == '\n' || b == '\r'
		if isTerm != (col >= cf.Width) {
			return nil, &IndexBuildError{
				Path:    cf.Path,
				Message: fmt.Sprintf("line width differs from first sequence line (%d)", cf.Width),
			}
		}
		if !isTerm {
			out = append(out, b)
		}
		col++
		if col == cf.LineWidth() {
			col = 0
		}
	}
	return out, nil
}

// WriteFAI writes the index in samtools .fai format.
func (s *Store) WriteFAI(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, name := range s.Names() {
		e := s.entries[name]
		if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\t%d\t%d\n",
			e.Name, e.Length, e.Offset, e.Width, e.LineWidth()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Close releases all file handles. It waits for in-flight reads and is safe
// to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, cf := range s.entries {
		if err := cf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", cf.Path, err))
		}
	}
	return errors.Join(errs...)
}
