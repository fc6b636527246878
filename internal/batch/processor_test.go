package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/refallele/internal/genome"
	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// memStore serves reads from in-memory sequences and records which
// chromosomes were read.
type memStore struct {
	mu    sync.Mutex
	seqs  map[string]string
	reads map[string]int
}

func newMemStore(seqs map[string]string) *memStore {
	return &memStore{seqs: seqs, reads: make(map[string]int)}
}

func (m *memStore) Contains(chrom string) bool {
	_, ok := m.seqs[chrom]
	return ok
}

func (m *memStore) ReadSequence(chrom string, start, end int64) (string, error) {
	m.mu.Lock()
	m.reads[chrom]++
	m.mu.Unlock()

	seq, ok := m.seqs[chrom]
	if !ok {
		return "", &genome.UnknownChromosomeError{Chrom: chrom}
	}
	if start < 1 || end > int64(len(seq)) {
		return "", &genome.OutOfRangeError{Chrom: chrom, Start: start, End: end, Length: int64(len(seq))}
	}
	return seq[start-1 : end], nil
}

func (m *memStore) readCount(chrom string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[chrom]
}

var testSeqs = map[string]string{
	"chr1": "ATGCCGTAAC",
	"chr2": "GGGTTTAAAC",
}

func TestProcess_Outcomes(t *testing.T) {
	p := NewProcessor(newMemStore(testSeqs))
	p.SetMismatchPolicy(resolve.PolicyIgnore)

	variants := []variant.Variant{
		{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "G"},
		{Chrom: "chr2", Pos: 4, Allele1: "C", Allele2: "T"},
		{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "AT"},
		{Chrom: "chr2", Pos: 1, Allele1: "A", Allele2: "T"},
	}

	report, err := p.Process(context.Background(), variants)
	require.NoError(t, err)
	require.Len(t, report.Results, 4)

	assert.Equal(t, resolve.AlleleOneIsRef, report.Results[0].Outcome)
	assert.Equal(t, resolve.AlleleTwoIsRef, report.Results[1].Outcome)
	assert.Equal(t, resolve.AlleleOneIsRef, report.Results[2].Outcome)
	assert.True(t, report.Results[2].Ambiguous)
	assert.Equal(t, resolve.Undetermined, report.Results[3].Outcome)
	assert.Equal(t, resolve.ReasonSequenceMismatch, report.Results[3].Reason)

	assert.Equal(t, Counts{
		Total:     4,
		AlleleOne: 2,
		AlleleTwo: 1,
		Mismatch:  1,
		Ambiguous: 1,
	}, report.Counts)
	assert.Equal(t, 1, report.Counts.Undetermined())
	assert.Empty(t, report.Mismatches, "ignore policy records nothing")
}

func TestProcess_MismatchPolicies(t *testing.T) {
	variants := []variant.Variant{
		{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "C"},
		{Chrom: "chr1", Pos: 2, Allele1: "T", Allele2: "C"},
		{Chrom: "chr2", Pos: 1, Allele1: "A", Allele2: "T"}, // reference G
		{Chrom: "chr2", Pos: 2, Allele1: "G", Allele2: "T"},
	}

	t.Run("error", func(t *testing.T) {
		p := NewProcessor(newMemStore(testSeqs))
		p.SetWorkers(4)

		_, err := p.Process(context.Background(), variants)
		var be *BatchError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, 2, be.Processed)
		assert.Equal(t, 2, be.Index)

		var me *MismatchError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, "G", me.Observed)
		assert.Contains(t, err.Error(), `chr2:1`)
		assert.Contains(t, err.Error(), `"A"`)
		assert.Contains(t, err.Error(), `"T"`)
	})

	t.Run("warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		p := NewProcessor(newMemStore(testSeqs))
		p.SetMismatchPolicy(resolve.PolicyWarning)
		p.SetLogger(zap.New(core))

		report, err := p.Process(context.Background(), variants)
		require.NoError(t, err)
		require.Len(t, report.Results, 4)
		assert.Equal(t, resolve.ReasonSequenceMismatch, report.Results[2].Reason)
		assert.Equal(t, resolve.AlleleOneIsRef, report.Results[3].Outcome)

		require.Len(t, report.Mismatches, 1)
		assert.Equal(t, 2, report.Mismatches[0].Index)
		assert.Equal(t, "G", report.Mismatches[0].Observed)
		assert.Equal(t, 1, logs.FilterMessage("neither allele matches reference").Len())
	})

	t.Run("ignore", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		p := NewProcessor(newMemStore(testSeqs))
		p.SetMismatchPolicy(resolve.PolicyIgnore)
		p.SetLogger(zap.New(core))

		report, err := p.Process(context.Background(), variants)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Counts.Mismatch)
		assert.Empty(t, report.Mismatches)
		assert.Zero(t, logs.Len())
	})
}

func TestProcess_UnknownChromosome(t *testing.T) {
	variants := []variant.Variant{
		{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "G"},
		{Chrom: "chrZZ", Pos: 5, Allele1: "A", Allele2: "G"},
		{Chrom: "chrQQ", Pos: 5, Allele1: "A", Allele2: "G"},
		{Chrom: "chrZZ", Pos: 6, Allele1: "A", Allele2: "G"},
	}

	t.Run("ignore", func(t *testing.T) {
		store := newMemStore(testSeqs)
		p := NewProcessor(store)
		p.SetUnknownChromosomePolicy(resolve.PolicyIgnore)

		report, err := p.Process(context.Background(), variants)
		require.NoError(t, err)
		assert.Equal(t, resolve.AlleleOneIsRef, report.Results[0].Outcome)
		for _, i := range []int{1, 2, 3} {
			assert.Equal(t, resolve.Undetermined, report.Results[i].Outcome)
			assert.Equal(t, resolve.ReasonUnknownChromosome, report.Results[i].Reason)
		}
		assert.Equal(t, 3, report.Counts.UnknownChromosome)
		assert.Equal(t, []string{"chrQQ", "chrZZ"}, report.UnknownChromosomes)
		assert.Zero(t, store.readCount("chrZZ"), "no read for unknown chromosomes")
		assert.Zero(t, store.readCount("chrQQ"))
	})

	t.Run("warning", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		p := NewProcessor(newMemStore(testSeqs))
		p.SetUnknownChromosomePolicy(resolve.PolicyWarning)
		p.SetLogger(zap.New(core))

		report, err := p.Process(context.Background(), variants)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Counts.UnknownChromosome)

		entries := logs.FilterMessage("variants on chromosomes missing from reference").All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(3), entries[0].ContextMap()["variants"])
	})

	t.Run("error", func(t *testing.T) {
		store := newMemStore(testSeqs)
		p := NewProcessor(store)

		_, err := p.Process(context.Background(), variants)
		var be *BatchError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, 0, be.Processed)

		var ue *UnknownChromosomesError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, []string{"chrQQ", "chrZZ"}, ue.Chroms)
		assert.Equal(t, 3, ue.Variants)
		assert.Zero(t, store.readCount("chr1"), "batch fails before any read")
	})
}

func TestProcess_OutOfRangeIsFatal(t *testing.T) {
	variants := []variant.Variant{
		{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "G"},
		{Chrom: "chr1", Pos: 15, Allele1: "A", Allele2: "G"}, // length 10
	}

	for _, policy := range []resolve.Policy{resolve.PolicyError, resolve.PolicyWarning, resolve.PolicyIgnore} {
		t.Run(policy.String(), func(t *testing.T) {
			p := NewProcessor(newMemStore(testSeqs))
			p.SetMismatchPolicy(policy)
			p.SetUnknownChromosomePolicy(policy)

			_, err := p.Process(context.Background(), variants)
			var oor *genome.OutOfRangeError
			require.ErrorAs(t, err, &oor)

			var be *BatchError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, 1, be.Processed)
			assert.Equal(t, "chr1:15:A/G", be.Variant.String())
		})
	}
}

func TestProcess_OrderPreservation(t *testing.T) {
	store := newMemStore(testSeqs)
	p := NewProcessor(store)
	p.SetWorkers(8)
	p.SetUnknownChromosomePolicy(resolve.PolicyIgnore)

	const n = 1000
	variants := make([]variant.Variant, n)
	want := make([]resolve.Outcome, n)
	for i := range variants {
		switch i % 3 {
		case 0:
			pos := int64(i%10 + 1)
			ref := testSeqs["chr2"][pos-1 : pos]
			variants[i] = variant.Variant{Chrom: "chr2", Pos: pos, Allele1: "N", Allele2: ref}
			want[i] = resolve.AlleleTwoIsRef
		case 1:
			pos := int64(i%10 + 1)
			ref := testSeqs["chr1"][pos-1 : pos]
			variants[i] = variant.Variant{Chrom: "chr1", Pos: pos, Allele1: ref, Allele2: "N"}
			want[i] = resolve.AlleleOneIsRef
		default:
			variants[i] = variant.Variant{Chrom: "chrUn", Pos: int64(i), Allele1: "A", Allele2: "C"}
			want[i] = resolve.Undetermined
		}
	}

	report, err := p.Process(context.Background(), variants)
	require.NoError(t, err)
	require.Len(t, report.Results, n)
	for i, res := range report.Results {
		require.Equal(t, want[i], res.Outcome, "variant %d", i)
	}
}

func TestProcess_Empty(t *testing.T) {
	p := NewProcessor(newMemStore(testSeqs))

	report, err := p.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Counts.Total)
}

func TestProcess_Progress(t *testing.T) {
	p := NewProcessor(newMemStore(testSeqs))
	var seen []int
	p.SetProgress(4, func(done int) { seen = append(seen, done) })

	variants := make([]variant.Variant, 10)
	for i := range variants {
		variants[i] = variant.Variant{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "C"}
	}

	_, err := p.Process(context.Background(), variants)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8, 10}, seen)
}

func TestProcess_Cancelled(t *testing.T) {
	p := NewProcessor(newMemStore(testSeqs))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	variants := make([]variant.Variant, 10000)
	for i := range variants {
		variants[i] = variant.Variant{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "C"}
	}

	_, err := p.Process(ctx, variants)
	// A cancelled context may still let a few items through before the
	// feeder notices; either way the batch must not report success silently
	// unless every variant was processed.
	if err != nil {
		var be *BatchError
		require.ErrorAs(t, err, &be)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Less(t, be.Processed, len(variants))
	}
}

func TestProcess_ClosedStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chr1.fa"), []byte(">chr1\nACGT\n"), 0o644))
	store, err := genome.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	p := NewProcessor(store)
	_, err = p.Process(context.Background(), []variant.Variant{{Chrom: "chr1", Pos: 1, Allele1: "A", Allele2: "C"}})
	assert.True(t, errors.Is(err, genome.ErrClosed))
}

func TestProcess_GenomeStore(t *testing.T) {
	dir := t.TempDir()
	// chr7: 25 bases wrapped at 6.
	seq := "ACGTTGCAAGGCTTACGATCGATCG"
	content := ">chr7\n"
	for i := 0; i < len(seq); i += 6 {
		content += seq[i:min(i+6, len(seq))] + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chr7.fa"), []byte(content), 0o644))

	store, err := genome.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var variants []variant.Variant
	for i := 1; i <= len(seq)-1; i++ {
		ref := seq[i-1 : i+1]
		variants = append(variants, variant.Variant{
			Chrom:   "chr7",
			Pos:     int64(i),
			Allele1: "NN",
			Allele2: ref,
		})
	}

	p := NewProcessor(store)
	p.SetWorkers(3)
	report, err := p.Process(context.Background(), variants)
	require.NoError(t, err)
	for i, res := range report.Results {
		assert.Equal(t, resolve.AlleleTwoIsRef, res.Outcome, fmt.Sprintf("variant %d", i))
	}
}
