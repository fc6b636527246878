package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/refallele/internal/genome"
)

func newIndexCmd(newLogger func() (*zap.Logger, error)) *cobra.Command {
	var (
		refDir string
		ext    string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Print the FASTA index of a reference directory",
		Long: `Index scans each per-chromosome FASTA file and prints one line per chromosome
in samtools .fai format: name, length, offset, line bases, line bytes.`,
		Example: `  refallele index -r ~/ref/GRCh38 > GRCh38.fai`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refDir == "" {
				return fmt.Errorf("--reference is required")
			}
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			store, err := genome.Open(refDir, genome.WithExtension(ext), genome.WithLogger(logger))
			if err != nil {
				return err
			}
			defer store.Close()

			return store.WriteFAI(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&refDir, "reference", "r", "", "Reference genome directory")
	cmd.Flags().StringVar(&ext, "ext", genome.DefaultExtension, "Reference file extension")

	return cmd
}
