package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"

	goduckdb "github.com/marcboeker/go-duckdb"
	"gopkg.in/guregu/null.v3"

	"github.com/inodb/refallele/internal/batch"
	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/variant"
)

// ResultRow is one resolved variant of a run.
type ResultRow struct {
	Seq     int
	Variant variant.Variant
	Result  resolve.Result
}

// StoredResult is a result read back from the database.
type StoredResult struct {
	RunID        string
	Seq          int
	Variant      variant.Variant
	RefIsAllele1 null.Bool
	Reason       string
	Observed     string
	Ambiguous    bool
}

// Rows pairs a batch report with its input variants.
func Rows(variants []variant.Variant, report *batch.Report) []ResultRow {
	rows := make([]ResultRow, len(variants))
	for i, v := range variants {
		rows[i] = ResultRow{Seq: i, Variant: v, Result: report.Results[i]}
	}
	return rows
}

// WriteResults batch-inserts the results of a run using the Appender API.
// Undetermined results are stored with a NULL ref_is_allele1.
func (s *Store) WriteResults(runID string, rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "allele_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range rows {
		var ref driver.Value
		if b := r.Result.RefIsAllele1(); b.Valid {
			ref = b.Bool
		}
		if err := appender.AppendRow(
			runID, int64(r.Seq),
			r.Variant.Chrom, r.Variant.Pos, r.Variant.Allele1, r.Variant.Allele2,
			ref, r.Result.Reason.String(), r.Result.Observed, r.Result.Ambiguous,
		); err != nil {
			return fmt.Errorf("append result %d: %w", r.Seq, err)
		}
	}

	return appender.Flush()
}

// DeleteRun removes all rows stored for a run.
func (s *Store) DeleteRun(runID string) error {
	if _, err := s.db.Exec("DELETE FROM allele_results WHERE run_id=?", runID); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM reference_files WHERE run_id=?", runID)
	return err
}

// Runs lists the ids of all stored runs, oldest first.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT run_id FROM allele_results ORDER BY run_id")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LookupLocus returns every stored result at a position, across runs.
func (s *Store) LookupLocus(chrom string, pos int64) ([]StoredResult, error) {
	rows, err := s.db.Query(`SELECT
		run_id, seq, chrom, pos, allele1, allele2,
		ref_is_allele1, reason, observed, ambiguous
		FROM allele_results
		WHERE chrom=? AND pos=?
		ORDER BY run_id, seq`, chrom, pos)
	if err != nil {
		return nil, fmt.Errorf("query locus: %w", err)
	}
	defer rows.Close()

	var results []StoredResult
	for rows.Next() {
		var r StoredResult
		if err := rows.Scan(
			&r.RunID, &r.Seq,
			&r.Variant.Chrom, &r.Variant.Pos, &r.Variant.Allele1, &r.Variant.Allele2,
			&r.RefIsAllele1, &r.Reason, &r.Observed, &r.Ambiguous,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// RunSummary recomputes the outcome counts of a stored run.
func (s *Store) RunSummary(runID string) (batch.Counts, error) {
	var c batch.Counts
	err := s.db.QueryRow(`SELECT
		count(*),
		count_if(ref_is_allele1),
		count_if(NOT ref_is_allele1),
		count_if(reason = 'sequence_mismatch'),
		count_if(reason = 'unknown_chromosome'),
		count_if(ambiguous)
		FROM allele_results WHERE run_id=?`, runID).Scan(
		&c.Total, &c.AlleleOne, &c.AlleleTwo, &c.Mismatch, &c.UnknownChromosome, &c.Ambiguous,
	)
	if err != nil {
		return batch.Counts{}, fmt.Errorf("summarize run %s: %w", runID, err)
	}
	return c, nil
}
