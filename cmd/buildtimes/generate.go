package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/buildtimes/pkg/dashboard"
	"github.com/ethpandaops/buildtimes/pkg/fsutil"
)

var (
	genDataDir   string
	genOverrides string
	genOutput    string
	genMethod    string
	genMarkdown  string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the dashboard data document",
	Long: `Reads per-commit timing records from the data directory (or S3), applies
failure overrides and writes the dashboard data document.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&genDataDir, "data-dir", "",
		"Root of the org/repo/platform record tree (overrides input.data_dir)")
	generateCmd.Flags().StringVar(&genOverrides, "overrides", "",
		"Failure overrides file (overrides input.overrides_file)")
	generateCmd.Flags().StringVar(&genOutput, "output", "",
		"Output document path (overrides output.path)")
	generateCmd.Flags().StringVar(&genMethod, "method", "",
		"Record source, \"local\" or \"s3\" (overrides input.method)")
	generateCmd.Flags().StringVar(&genMarkdown, "markdown", "",
		"Also write a markdown summary to this path")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed("data-dir") {
		cfg.Input.DataDir = genDataDir
	}

	if flags.Changed("overrides") {
		cfg.Input.OverridesFile = genOverrides
	}

	if flags.Changed("output") {
		cfg.Output.Path = genOutput
	}

	if flags.Changed("method") {
		cfg.Input.Method = genMethod
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	owner, err := fsutil.ParseOwner(cfg.Output.Owner)
	if err != nil {
		return fmt.Errorf("parsing output.owner: %w", err)
	}

	dataset, err := collectDataset(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	doc := dashboard.Build(dataset, dashboard.DefaultPalette(cfg.Output.PlatformColors))

	if err := dashboard.Write(cfg.Output.Path, doc, owner); err != nil {
		return fmt.Errorf("writing dashboard data: %w", err)
	}

	log.WithFields(logrus.Fields{
		"repos":  len(doc.RepoNames),
		"output": cfg.Output.Path,
	}).Info("Dashboard data generated")

	if genMarkdown != "" {
		md := dashboard.RenderMarkdown(doc)

		if err := fsutil.WriteFileAtomic(genMarkdown, []byte(md), 0o644, owner); err != nil {
			return fmt.Errorf("writing markdown summary: %w", err)
		}

		log.WithField("output", genMarkdown).Info("Markdown summary generated")
	}

	return nil
}
