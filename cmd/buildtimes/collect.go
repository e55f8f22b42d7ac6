package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildtimes/pkg/classify"
	"github.com/ethpandaops/buildtimes/pkg/config"
	"github.com/ethpandaops/buildtimes/pkg/records"
	"github.com/ethpandaops/buildtimes/pkg/storage"
)

// newReader returns the record source selected by input.method.
func newReader(cfg *config.InputConfig) (storage.Reader, error) {
	switch cfg.Method {
	case "local":
		return storage.NewLocalReader(cfg.DataDir), nil
	case "s3":
		return storage.NewS3Reader(log, &cfg.S3), nil
	default:
		return nil, fmt.Errorf("unsupported method %q", cfg.Method)
	}
}

// collectDataset loads overrides and parses every run record.
func collectDataset(ctx context.Context, cfg *config.Config) (records.Dataset, error) {
	reader, err := newReader(&cfg.Input)
	if err != nil {
		return nil, err
	}

	overrides := classify.Load(log, cfg.Input.OverridesFile)

	log.WithFields(logrus.Fields{
		"source":    reader.Location(),
		"overrides": overrides.Len(),
	}).Info("Collecting build records")

	dataset, stats, err := records.Collect(ctx, log, reader, overrides)
	if err != nil {
		return nil, fmt.Errorf("collecting records: %w", err)
	}

	log.WithFields(logrus.Fields{
		"files":   stats.Files,
		"parsed":  stats.Parsed,
		"skipped": stats.Skipped,
		"repos":   len(dataset.Repos()),
	}).Info("Collected build records")

	return dataset, nil
}
