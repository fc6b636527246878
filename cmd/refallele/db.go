package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/refallele/internal/config"
	"github.com/inodb/refallele/internal/duckdb"
	"github.com/inodb/refallele/internal/output"
)

func newDBCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect results stored by resolve --db",
		Long: `Query the DuckDB file written by "refallele resolve --db". The database path
comes from --db or the "db" config key.`,
		Example: `  refallele db runs --db results.duckdb               # list runs with outcome counts
  refallele db lookup chr1 12345 --db results.duckdb  # stored results at a locus
  refallele db delete 20260101T120000.000000Z         # drop a run (db from config)`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "DuckDB results file (default: db config key)")

	cmd.AddCommand(&cobra.Command{
		Use:   "runs",
		Short: "List stored runs with their outcome counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openResultsDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return runDBRuns(cmd.OutOrStdout(), db)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <chrom> <pos>",
		Short: "Show stored results at a locus across runs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || pos < 1 {
				return fmt.Errorf("invalid position %q", args[1])
			}
			db, err := openResultsDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return runDBLookup(cmd.OutOrStdout(), db, args[0], pos)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openResultsDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return runDBDelete(cmd.OutOrStdout(), db, args[0])
		},
	})

	return cmd
}

// openResultsDB opens an existing results database. It never creates one.
func openResultsDB(path string) (*duckdb.Store, error) {
	if path == "" {
		path = viper.GetString(config.KeyDB)
	}
	if path == "" {
		return nil, fmt.Errorf("--db is required (or set %q in the config)", config.KeyDB)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open results database: %w", err)
	}
	return duckdb.Open(path)
}

func runDBRuns(w io.Writer, db *duckdb.Store) error {
	ids, err := db.Runs()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "run_id\ttotal\tallele1_ref\tallele2_ref\tmismatch\tunknown_chromosome\tambiguous\treference")
	for _, id := range ids {
		c, err := db.RunSummary(id)
		if err != nil {
			return err
		}
		changed, err := db.ReferenceChanged(id)
		if err != nil {
			return fmt.Errorf("check reference of run %s: %w", id, err)
		}
		ref := "unchanged"
		if changed {
			ref = "changed"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			id, c.Total, c.AlleleOne, c.AlleleTwo, c.Mismatch, c.UnknownChromosome, c.Ambiguous, ref)
	}
	return nil
}

func runDBLookup(w io.Writer, db *duckdb.Store, chrom string, pos int64) error {
	results, err := db.LookupLocus(chrom, pos)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "run_id\tseq\tchrom\tpos\tallele1\tallele2\t"+output.DefaultResultColumn+"\t"+output.DefaultReasonColumn+"\tobserved\tambiguous")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%t\n",
			r.RunID, r.Seq, r.Variant.Chrom, r.Variant.Pos, r.Variant.Allele1, r.Variant.Allele2,
			output.FormatResult(r.RefIsAllele1), r.Reason, r.Observed, r.Ambiguous)
	}
	return nil
}

func runDBDelete(w io.Writer, db *duckdb.Store, runID string) error {
	ids, err := db.Runs()
	if err != nil {
		return err
	}
	if !slices.Contains(ids, runID) {
		return fmt.Errorf("run %q not found", runID)
	}
	if err := db.DeleteRun(runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	fmt.Fprintf(w, "Deleted run %s\n", runID)
	return nil
}
