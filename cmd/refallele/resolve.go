package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/refallele/internal/batch"
	"github.com/inodb/refallele/internal/config"
	"github.com/inodb/refallele/internal/duckdb"
	"github.com/inodb/refallele/internal/genome"
	"github.com/inodb/refallele/internal/output"
	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/table"
	"github.com/inodb/refallele/internal/variant"
	"github.com/inodb/refallele/internal/vcf"
)

// resolveFlags binds command-line flags to config keys.
var resolveFlags = map[string]string{
	"reference":        config.KeyReferenceDir,
	"ext":              config.KeyReferenceExtension,
	"match-chr-prefix": config.KeyMatchChrPrefix,
	"uppercase":        config.KeyUpperCase,
	"mismatch":         config.KeyMismatchPolicy,
	"unknown-chrom":    config.KeyUnknownChromPolicy,
	"input-format":     config.KeyInputFormat,
	"layout":           config.KeyLayout,
	"chrom-col":        config.KeyChromColumn,
	"pos-col":          config.KeyPosColumn,
	"allele1-col":      config.KeyAllele1Column,
	"allele2-col":      config.KeyAllele2Column,
	"format":           config.KeyOutputFormat,
	"column":           config.KeyResultColumn,
	"workers":          config.KeyWorkers,
	"db":               config.KeyDB,
}

func newResolveCmd(newLogger func() (*zap.Logger, error)) *cobra.Command {
	var (
		outputFile string
		progress   int
		mismatch   = resolve.PolicyError
		unknown    = resolve.PolicyError
	)

	cmd := &cobra.Command{
		Use:   "resolve [flags] <input-file>",
		Short: "Resolve the reference allele of each variant in a table or VCF",
		Long: `Resolve reads a variant table or VCF file, looks up each variant's position in
the reference genome and appends a column telling whether allele1 is the
reference allele (true), allele2 is (false) or neither matched (NA).`,
		Example: `  refallele resolve -r ~/ref/GRCh38 variants.tsv
  refallele resolve -r ~/ref/GRCh38 --layout maf --mismatch warning data_mutations.txt
  refallele resolve -r ~/ref/GRCh38 --format jsonl --db results.duckdb input.vcf.gz`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for flag, key := range resolveFlags {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			var out io.Writer = cmd.OutOrStdout()
			if outputFile != "" && outputFile != "-" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			return runResolve(cmd.Context(), cfg, args[0], out, progress, logger)
		},
	}

	f := cmd.Flags()
	f.StringP("reference", "r", "", "Reference genome directory, one FASTA file per chromosome")
	f.String("ext", genome.DefaultExtension, "Reference file extension")
	f.Bool("match-chr-prefix", false, `Match chromosome names with and without the "chr" prefix`)
	f.Bool("uppercase", true, "Compare soft-masked (lowercase) reference bases as uppercase")
	f.Var(&mismatch, "mismatch", "Policy when neither allele matches: "+strings.Join(resolve.PolicyNames(), ", "))
	f.Var(&unknown, "unknown-chrom", "Policy for chromosomes missing from the reference: "+strings.Join(resolve.PolicyNames(), ", "))
	f.String("input-format", config.FormatAuto, "Input format: auto, table, vcf")
	f.String("layout", "default", "Column layout: "+table.LayoutNames())
	f.String("chrom-col", "", "Chromosome column name (overrides layout)")
	f.String("pos-col", "", "Position column name (overrides layout)")
	f.String("allele1-col", "", "Allele1 column name (overrides layout)")
	f.String("allele2-col", "", "Allele2 column name (overrides layout)")
	f.StringP("format", "f", config.FormatTSV, "Output format: tsv, jsonl")
	f.String("column", output.DefaultResultColumn, "Name of the result column")
	f.IntP("workers", "j", 0, "Number of worker goroutines (0 = all CPUs)")
	f.String("db", "", "DuckDB file to store results in (optional)")
	f.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	f.IntVar(&progress, "progress", 0, "Log progress every N variants (0 = off)")

	return cmd
}

// input is a loaded variant file: the rows to echo and the variants to resolve.
type input struct {
	header    []string
	rows      [][]string
	variants  []variant.Variant
	delimiter rune
}

// loadInput reads a variant table or VCF file.
func loadInput(path, format string, cols table.Columns) (*input, error) {
	if format == config.FormatAuto {
		format = detectInputFormat(path)
	}

	if format == config.FormatVCF {
		parser, err := vcf.NewParser(path)
		if err != nil {
			return nil, err
		}
		defer parser.Close()

		records, err := parser.ReadAll()
		if err != nil {
			return nil, err
		}
		// One output row per alternate allele.
		in := &input{header: parser.Columns(), delimiter: '\t'}
		for _, rec := range records {
			for _, r := range vcf.SplitMultiAllelic(rec) {
				in.rows = append(in.rows, r.Fields())
				in.variants = append(in.variants, r.Variant())
			}
		}
		return in, nil
	}

	t, err := table.ReadFile(path, table.ReadOptions{Columns: cols})
	if err != nil {
		return nil, err
	}
	return &input{header: t.Header, rows: t.Rows, variants: t.Variants, delimiter: t.Delimiter}, nil
}

// detectInputFormat picks VCF for .vcf and .vcf.gz paths and table otherwise.
func detectInputFormat(path string) string {
	p := strings.ToLower(strings.TrimSuffix(path, ".gz"))
	if strings.HasSuffix(p, ".vcf") {
		return config.FormatVCF
	}
	return config.FormatTable
}

func runResolve(ctx context.Context, cfg config.Config, inputPath string, out io.Writer, progress int, logger *zap.Logger) error {
	start := time.Now()

	in, err := loadInput(inputPath, cfg.InputFormat, cfg.Columns)
	if err != nil {
		return err
	}
	logger.Debug("loaded variants", zap.String("input", inputPath), zap.Int("count", len(in.variants)))

	opts := append(cfg.GenomeOptions(), genome.WithLogger(logger), genome.WithConcurrency(cfg.Workers))
	store, err := genome.Open(cfg.ReferenceDir, opts...)
	if err != nil {
		return err
	}
	defer store.Close()

	proc := batch.NewProcessor(store)
	proc.SetMismatchPolicy(cfg.MismatchPolicy)
	proc.SetUnknownChromosomePolicy(cfg.UnknownChromPolicy)
	proc.SetWorkers(cfg.Workers)
	proc.SetLogger(logger)
	if progress > 0 {
		total := len(in.variants)
		proc.SetProgress(progress, func(done int) {
			logger.Info("progress", zap.Int("done", done), zap.Int("total", total))
		})
	}

	report, err := proc.Process(ctx, in.variants)
	if err != nil {
		return err
	}

	var w output.ResultWriter
	switch cfg.OutputFormat {
	case config.FormatJSONL:
		w = output.NewJSONLWriter(out)
	default:
		tw := output.NewTabWriter(out, in.delimiter)
		tw.SetResultColumn(cfg.ResultColumn)
		w = tw
	}
	if err := writeResults(w, in, report); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if cfg.DB != "" {
		runID, err := persistRun(cfg.DB, store, in.variants, report)
		if err != nil {
			return err
		}
		logger.Info("stored results", zap.String("db", cfg.DB), zap.String("run_id", runID))
	}

	c := report.Counts
	logger.Info("done",
		zap.Int("variants", c.Total),
		zap.Int("allele1", c.AlleleOne),
		zap.Int("allele2", c.AlleleTwo),
		zap.Int("undetermined", c.Undetermined()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func writeResults(w output.ResultWriter, in *input, report *batch.Report) error {
	if err := w.WriteHeader(in.header); err != nil {
		return err
	}
	for i, v := range in.variants {
		if err := w.Write(in.rows[i], v, report.Results[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// persistRun stores a run's results and reference fingerprints in DuckDB and
// returns the run id.
func persistRun(path string, store *genome.Store, variants []variant.Variant, report *batch.Report) (string, error) {
	db, err := duckdb.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	runID := time.Now().UTC().Format("20060102T150405.000000Z")
	if err := db.WriteResults(runID, duckdb.Rows(variants, report)); err != nil {
		return "", fmt.Errorf("store results: %w", err)
	}

	var files []duckdb.FileFingerprint
	for _, name := range store.Names() {
		e, _ := store.Entry(name)
		fp, err := duckdb.StatFile(name, e.Path)
		if err != nil {
			return "", fmt.Errorf("stat reference file: %w", err)
		}
		files = append(files, fp)
	}
	if err := db.RecordReference(runID, files); err != nil {
		return "", fmt.Errorf("store reference fingerprints: %w", err)
	}
	return runID, nil
}
