package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/buildtimes/pkg/dashboard"
	"github.com/ethpandaops/buildtimes/pkg/fsutil"
)

var (
	summaryInput  string
	summaryOutput string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Render a markdown summary of a dashboard data document",
	Long:  `Reads an existing dashboard_data.json and prints the platform comparison as markdown.`,
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryInput, "input", "",
		"Dashboard data document (defaults to output.path)")
	summaryCmd.Flags().StringVar(&summaryOutput, "output", "",
		"Write the summary to this file instead of stdout")
}

func runSummary(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	input := summaryInput
	if input == "" {
		input = cfg.Output.Path
	}

	doc, err := dashboard.Load(input)
	if err != nil {
		return fmt.Errorf("loading dashboard data: %w", err)
	}

	md := dashboard.RenderMarkdown(doc)

	if summaryOutput == "" {
		_, err := fmt.Fprint(os.Stdout, md)

		return err
	}

	owner, err := fsutil.ParseOwner(cfg.Output.Owner)
	if err != nil {
		return fmt.Errorf("parsing output.owner: %w", err)
	}

	if err := fsutil.WriteFileAtomic(summaryOutput, []byte(md), 0o644, owner); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	log.WithField("output", summaryOutput).Info("Markdown summary written")

	return nil
}
