package history

import (
	"time"

	"github.com/ethpandaops/buildtimes/pkg/aggregate"
	"github.com/ethpandaops/buildtimes/pkg/records"
)

// Record is one exported build timing row.
type Record struct {
	ID          uint   `gorm:"primaryKey"`
	Repo        string `gorm:"not null;uniqueIndex:idx_records_repo_platform_index"`
	Platform    string `gorm:"not null;uniqueIndex:idx_records_repo_platform_index;index"`
	CommitIndex int    `gorm:"not null;uniqueIndex:idx_records_repo_platform_index"`
	CommitHash  string `gorm:"index"`
	Status      string `gorm:"index"`

	Branch         string
	Minutes        float64
	ReportedStatus string
	ExportedAt     time.Time
}

// PlatformSummary is one exported row of the cross-repository summary.
type PlatformSummary struct {
	ID       uint   `gorm:"primaryKey"`
	Platform string `gorm:"not null;uniqueIndex"`

	AverageTime    float64
	SlowdownFactor float64
	RepoCount      int
	ExportedAt     time.Time
}

// RecordsFromDataset flattens a dataset into database rows.
func RecordsFromDataset(d records.Dataset, at time.Time) []*Record {
	rows := make([]*Record, 0, d.Len())

	for _, repo := range d.Repos() {
		for _, platform := range d.Platforms(repo) {
			for _, r := range d.Records(repo, platform) {
				rows = append(rows, &Record{
					Repo:           r.Repo,
					Platform:       r.Platform,
					CommitIndex:    r.Index,
					CommitHash:     r.Commit,
					Branch:         r.Branch,
					Minutes:        r.Minutes,
					Status:         string(r.Status),
					ReportedStatus: r.ReportedStatus,
					ExportedAt:     at,
				})
			}
		}
	}

	return rows
}

// SummaryRows converts platform summaries into database rows.
func SummaryRows(summaries []aggregate.PlatformSummary, at time.Time) []*PlatformSummary {
	rows := make([]*PlatformSummary, 0, len(summaries))

	for _, s := range summaries {
		rows = append(rows, &PlatformSummary{
			Platform:       s.Platform,
			AverageTime:    s.AverageTime,
			SlowdownFactor: s.SlowdownFactor,
			RepoCount:      s.RepoCount,
			ExportedAt:     at,
		})
	}

	return rows
}
