// Package config loads and validates refallele settings from viper.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/inodb/refallele/internal/genome"
	"github.com/inodb/refallele/internal/output"
	"github.com/inodb/refallele/internal/resolve"
	"github.com/inodb/refallele/internal/table"
)

// Configuration keys. Nested keys map to YAML sections in ~/.refallele.yaml
// and to REFALLELE_* environment variables with '.' replaced by '_'.
const (
	KeyReferenceDir       = "reference.dir"
	KeyReferenceExtension = "reference.extension"
	KeyMatchChrPrefix     = "reference.match_chr_prefix"
	KeyUpperCase          = "reference.uppercase"
	KeyMismatchPolicy     = "policy.mismatch"
	KeyUnknownChromPolicy = "policy.unknown_chromosome"
	KeyInputFormat        = "input.format"
	KeyLayout             = "input.layout"
	KeyChromColumn        = "input.columns.chrom"
	KeyPosColumn          = "input.columns.pos"
	KeyAllele1Column      = "input.columns.allele1"
	KeyAllele2Column      = "input.columns.allele2"
	KeyOutputFormat       = "output.format"
	KeyResultColumn       = "output.column"
	KeyWorkers            = "workers"
	KeyDB                 = "db"
)

// Input and output formats.
const (
	FormatAuto  = "auto"
	FormatTable = "table"
	FormatVCF   = "vcf"
	FormatTSV   = "tsv"
	FormatJSONL = "jsonl"
)

// Config holds validated settings for a resolve run.
type Config struct {
	ReferenceDir       string
	ReferenceExtension string
	MatchChrPrefix     bool
	UpperCase          bool

	MismatchPolicy     resolve.Policy
	UnknownChromPolicy resolve.Policy

	InputFormat string
	Columns     table.Columns

	OutputFormat string
	ResultColumn string

	Workers int
	DB      string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyReferenceExtension, genome.DefaultExtension)
	v.SetDefault(KeyMatchChrPrefix, false)
	v.SetDefault(KeyUpperCase, true)
	v.SetDefault(KeyMismatchPolicy, resolve.PolicyError.String())
	v.SetDefault(KeyUnknownChromPolicy, resolve.PolicyError.String())
	v.SetDefault(KeyInputFormat, FormatAuto)
	v.SetDefault(KeyLayout, "default")
	v.SetDefault(KeyOutputFormat, FormatTSV)
	v.SetDefault(KeyResultColumn, output.DefaultResultColumn)
	v.SetDefault(KeyWorkers, 0)
}

// Load reads and validates a Config from v.
func Load(v *viper.Viper) (Config, error) {
	c := Config{
		ReferenceDir:       strings.TrimSpace(v.GetString(KeyReferenceDir)),
		ReferenceExtension: v.GetString(KeyReferenceExtension),
		MatchChrPrefix:     v.GetBool(KeyMatchChrPrefix),
		UpperCase:          v.GetBool(KeyUpperCase),
		InputFormat:        strings.ToLower(v.GetString(KeyInputFormat)),
		OutputFormat:       strings.ToLower(v.GetString(KeyOutputFormat)),
		ResultColumn:       v.GetString(KeyResultColumn),
		Workers:            v.GetInt(KeyWorkers),
		DB:                 v.GetString(KeyDB),
	}

	if c.ReferenceDir == "" {
		return Config{}, fmt.Errorf("%s is required", KeyReferenceDir)
	}
	if c.ReferenceExtension == "" {
		c.ReferenceExtension = genome.DefaultExtension
	}

	var err error
	if c.MismatchPolicy, err = resolve.ParsePolicy(v.GetString(KeyMismatchPolicy)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyMismatchPolicy, err)
	}
	if c.UnknownChromPolicy, err = resolve.ParsePolicy(v.GetString(KeyUnknownChromPolicy)); err != nil {
		return Config{}, fmt.Errorf("%s: %w", KeyUnknownChromPolicy, err)
	}

	switch c.InputFormat {
	case "", FormatAuto:
		c.InputFormat = FormatAuto
	case FormatTable, FormatVCF:
	default:
		return Config{}, fmt.Errorf("%s: unknown input format %q (valid: auto, table, vcf)", KeyInputFormat, c.InputFormat)
	}

	layout := v.GetString(KeyLayout)
	base, ok := table.Layouts[layout]
	if !ok {
		return Config{}, fmt.Errorf("%s: unknown layout %q (valid: %s)", KeyLayout, layout, table.LayoutNames())
	}
	c.Columns = base.Override(table.Columns{
		Chrom:   v.GetString(KeyChromColumn),
		Pos:     v.GetString(KeyPosColumn),
		Allele1: v.GetString(KeyAllele1Column),
		Allele2: v.GetString(KeyAllele2Column),
	})

	switch c.OutputFormat {
	case "", FormatTSV:
		c.OutputFormat = FormatTSV
	case FormatJSONL:
	default:
		return Config{}, fmt.Errorf("%s: unknown output format %q (valid: tsv, jsonl)", KeyOutputFormat, c.OutputFormat)
	}
	if c.ResultColumn == "" {
		c.ResultColumn = output.DefaultResultColumn
	}

	switch {
	case c.Workers < 0:
		return Config{}, fmt.Errorf("%s: must not be negative, got %d", KeyWorkers, c.Workers)
	case c.Workers == 0:
		c.Workers = runtime.NumCPU()
	}

	return c, nil
}

// GenomeOptions returns the sequence store options for c.
func (c Config) GenomeOptions() []genome.Option {
	return []genome.Option{
		genome.WithExtension(c.ReferenceExtension),
		genome.WithChrPrefixMatching(c.MatchChrPrefix),
		genome.WithUpperCase(c.UpperCase),
	}
}

// EnvPrefix prefixes environment variables that override settings.
const EnvPrefix = "REFALLELE"

// BindEnv makes v read REFALLELE_* environment variables, so that
// REFALLELE_POLICY_MISMATCH overrides policy.mismatch.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
