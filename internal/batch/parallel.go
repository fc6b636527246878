package batch

import (
	"runtime"
	"sync"

	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// WorkItem is a variant queued for resolution.
type WorkItem struct {
	Seq     int
	Variant variant.Variant
	Known   bool // chromosome is present in the reference
}

// WorkResult holds the resolution of a single variant.
type WorkResult struct {
	Seq    int
	Result resolve.Result
	Err    error
}

// ParallelResolve resolves work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used.
func ParallelResolve(r resolve.SequenceReader, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				if !item.Known {
					results <- WorkResult{
						Seq:    item.Seq,
						Result: resolve.Unresolved(resolve.ReasonUnknownChromosome, ""),
					}
					continue
				}
				v := item.Variant
				res, err := resolve.Resolve(r, v.Chrom, v.Pos, v.Allele1, v.Allele2)
				results <- WorkResult{Seq: item.Seq, Result: res, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
