package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/buildtimes/pkg/aggregate"
	"github.com/ethpandaops/buildtimes/pkg/history"
)

var exportDBCmd = &cobra.Command{
	Use:   "export-db",
	Short: "Export build records and the platform summary to a database",
	Long: `Collects build records the same way generate does and mirrors them into
the configured SQLite or Postgres database.`,
	RunE: runExportDB,
}

func init() {
	rootCmd.AddCommand(exportDBCmd)
}

func runExportDB(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := cfg.ValidateDatabase(); err != nil {
		return fmt.Errorf("validating database config: %w", err)
	}

	ctx := cmd.Context()

	dataset, err := collectDataset(ctx, cfg)
	if err != nil {
		return err
	}

	store := history.NewStore(log, &cfg.Database)
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting history store: %w", err)
	}

	defer func() {
		if err := store.Stop(); err != nil {
			log.WithError(err).Warn("Failed to close history store")
		}
	}()

	now := time.Now().UTC()
	summaries := aggregate.Summarize(dataset)

	if err := store.UpsertRecords(ctx, history.RecordsFromDataset(dataset, now)); err != nil {
		return err
	}

	if err := store.ReplaceSummary(ctx, history.SummaryRows(summaries, now)); err != nil {
		return err
	}

	total, err := store.CountRecords(ctx)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"exported":  dataset.Len(),
		"stored":    total,
		"platforms": len(summaries),
		"driver":    cfg.Database.Driver,
	}).Info("Database export completed")

	return nil
}
