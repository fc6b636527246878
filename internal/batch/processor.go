// Package batch resolves a list of variants against a reference genome,
// applying the unknown-chromosome and mismatch policies.
package batch

import (
	"context"
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// Store is the reference lookup a Processor needs.
type Store interface {
	resolve.SequenceReader
	Contains(chrom string) bool
}

// Processor resolves batches of variants.
type Processor struct {
	store         Store
	mismatch      resolve.Policy
	unknownChrom  resolve.Policy
	workers       int
	progressEvery int
	progress      func(done int)
	logger        *zap.Logger
}

// NewProcessor creates a processor reading from store. Both policies default
// to PolicyError.
func NewProcessor(store Store) *Processor {
	return &Processor{
		store:        store,
		mismatch:     resolve.PolicyError,
		unknownChrom: resolve.PolicyError,
		workers:      runtime.NumCPU(),
		logger:       zap.NewNop(),
	}
}

// SetMismatchPolicy sets the policy for variants whose alleles both differ
// from the reference.
func (p *Processor) SetMismatchPolicy(policy resolve.Policy) {
	p.mismatch = policy
}

// SetUnknownChromosomePolicy sets the policy for variants on chromosomes
// missing from the reference.
func (p *Processor) SetUnknownChromosomePolicy(policy resolve.Policy) {
	p.unknownChrom = policy
}

// SetWorkers sets the number of concurrent resolvers. Values below 1 select
// runtime.NumCPU().
func (p *Processor) SetWorkers(n int) {
	if n < 1 {
		n = runtime.NumCPU()
	}
	p.workers = n
}

// SetProgress registers fn to be called with the number of variants
// processed so far, every `every` variants and once at the end.
func (p *Processor) SetProgress(every int, fn func(done int)) {
	p.progressEvery = every
	p.progress = fn
}

// SetLogger sets the logger for warning and info messages.
func (p *Processor) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Process resolves every variant and returns one result per input variant,
// in input order. Policy-governed conditions under PolicyWarning and
// PolicyIgnore are recorded in the report; everything else aborts the batch
// with a *BatchError.
func (p *Processor) Process(ctx context.Context, variants []variant.Variant) (*Report, error) {
	report := newReport(len(variants))

	known := make([]bool, len(variants))
	missing := make(map[string]int)
	for i, v := range variants {
		if p.store.Contains(v.Chrom) {
			known[i] = true
		} else {
			missing[v.Chrom]++
		}
	}

	if len(missing) > 0 {
		chroms := make([]string, 0, len(missing))
		affected := 0
		for chrom, n := range missing {
			chroms = append(chroms, chrom)
			affected += n
		}
		sort.Strings(chroms)

		switch p.unknownChrom {
		case resolve.PolicyError:
			return nil, &BatchError{
				Index: -1,
				Err:   &UnknownChromosomesError{Chroms: chroms, Variants: affected},
			}
		case resolve.PolicyWarning:
			p.logger.Warn("variants on chromosomes missing from reference",
				zap.Strings("chroms", chroms),
				zap.Int("variants", affected))
		}
		report.UnknownChromosomes = chroms
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan WorkItem, 2*p.workers)
	go func() {
		defer close(items)
		for i, v := range variants {
			select {
			case items <- WorkItem{Seq: i, Variant: v, Known: known[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := ParallelResolve(p.store, items, p.workers)

	err := OrderedCollect(results, func(r WorkResult) error {
		v := variants[r.Seq]
		if r.Err != nil {
			cancel()
			return &BatchError{Processed: r.Seq, Index: r.Seq, Variant: &v, Err: r.Err}
		}

		if r.Result.Reason == resolve.ReasonSequenceMismatch {
			switch p.mismatch {
			case resolve.PolicyError:
				cancel()
				return &BatchError{
					Processed: r.Seq,
					Index:     r.Seq,
					Variant:   &v,
					Err:       &MismatchError{Variant: v, Observed: r.Result.Observed},
				}
			case resolve.PolicyWarning:
				p.logger.Warn("neither allele matches reference",
					zap.String("chrom", v.Chrom),
					zap.Int64("pos", v.Pos),
					zap.String("allele1", v.Allele1),
					zap.String("allele2", v.Allele2),
					zap.String("observed", r.Result.Observed))
				report.Mismatches = append(report.Mismatches, Mismatch{
					Index:    r.Seq,
					Variant:  v,
					Observed: r.Result.Observed,
				})
			}
		}

		report.add(r.Seq, r.Result)
		if p.progress != nil && p.progressEvery > 0 && report.Counts.Total%p.progressEvery == 0 {
			p.progress(report.Counts.Total)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Counts.Total < len(variants) {
		// The feeder stopped early: the caller's context was cancelled.
		return nil, &BatchError{Processed: report.Counts.Total, Index: -1, Err: ctx.Err()}
	}

	if p.progress != nil && (p.progressEvery <= 0 || report.Counts.Total%p.progressEvery != 0) {
		p.progress(report.Counts.Total)
	}

	p.logger.Info("resolved batch",
		zap.Int("variants", report.Counts.Total),
		zap.Int("allele1_ref", report.Counts.AlleleOne),
		zap.Int("allele2_ref", report.Counts.AlleleTwo),
		zap.Int("mismatch", report.Counts.Mismatch),
		zap.Int("unknown_chrom", report.Counts.UnknownChromosome),
		zap.Int("ambiguous", report.Counts.Ambiguous))

	return report, nil
}
