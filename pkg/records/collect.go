package records

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildtimes/pkg/classify"
	"github.com/ethpandaops/buildtimes/pkg/storage"
)

// Stats counts what a collection pass saw.
type Stats struct {
	Files   int `json:"files"`
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}

// Collect walks org/repo/platform under the reader root and parses every
// *.json file into the returned Dataset, sorted per group. Files that fail
// to read or parse are logged and skipped. Only a failure to list the root
// itself is returned as an error.
func Collect(
	ctx context.Context,
	log logrus.FieldLogger,
	reader storage.Reader,
	overrides classify.Overrides,
) (Dataset, Stats, error) {
	log = log.WithField("component", "collector")

	var stats Stats

	dataset := make(Dataset)

	orgs, err := reader.ListDirs(ctx, "")
	if err != nil {
		return nil, stats, fmt.Errorf("listing %s: %w", reader.Location(), err)
	}

	for _, org := range orgs {
		for _, repo := range listDirs(ctx, log, reader, org) {
			repoKey := org + "/" + repo

			for _, platform := range listDirs(ctx, log, reader, path.Join(org, repo)) {
				if err := ctx.Err(); err != nil {
					return nil, stats, err
				}

				dir := path.Join(org, repo, platform)

				files, err := reader.ListFiles(ctx, dir)
				if err != nil {
					log.WithError(err).WithField("dir", dir).
						Warn("Failed to list platform directory, skipping")

					continue
				}

				for _, name := range files {
					if !strings.HasSuffix(name, fileExt) {
						continue
					}

					stats.Files++

					rec, err := readRecord(ctx, reader, repoKey, platform, dir, name, overrides)
					if err != nil {
						stats.Skipped++

						log.WithError(err).WithField("file", path.Join(dir, name)).
							Warn("Error parsing record, skipping")

						continue
					}

					stats.Parsed++

					dataset.Add(rec)
				}
			}
		}
	}

	dataset.Sort()

	log.WithFields(logrus.Fields{
		"repos":   len(dataset),
		"files":   stats.Files,
		"parsed":  stats.Parsed,
		"skipped": stats.Skipped,
	}).Info("Collected run records")

	return dataset, stats, nil
}

func readRecord(
	ctx context.Context,
	reader storage.Reader,
	repoKey, platform, dir, name string,
	overrides classify.Overrides,
) (Record, error) {
	body, err := reader.ReadFile(ctx, path.Join(dir, name))
	if err != nil {
		return Record{}, err
	}

	return Parse(repoKey, platform, name, body, overrides)
}

func listDirs(
	ctx context.Context,
	log logrus.FieldLogger,
	reader storage.Reader,
	dir string,
) []string {
	dirs, err := reader.ListDirs(ctx, dir)
	if err != nil {
		log.WithError(err).WithField("dir", dir).
			Warn("Failed to list directory, skipping")

		return nil
	}

	return dirs
}
