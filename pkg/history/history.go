// Package history mirrors parsed build timings into a SQL database.
package history

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/buildtimes/pkg/config"
)

const batchSize = 100

// Store provides persistence for exported build timings.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// UpsertRecords inserts or updates records keyed by
	// (repo, platform, commit_index).
	UpsertRecords(ctx context.Context, rows []*Record) error
	// ReplaceSummary swaps the stored platform summary for rows.
	ReplaceSummary(ctx context.Context, rows []*PlatformSummary) error

	ListRecords(ctx context.Context, repo, platform string) ([]Record, error)
	ListSummary(ctx context.Context) ([]PlatformSummary, error)
	CountRecords(ctx context.Context) (int64, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "history"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dialector = postgres.Open(s.cfg.Postgres.DSN())
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}

	if s.cfg.Driver == "sqlite" {
		// A second connection to ":memory:" would see an empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Record{},
		&PlatformSummary{},
	); err != nil {
		return fmt.Errorf("running history migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("History database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

func (s *store) UpsertRecords(ctx context.Context, rows []*Record) error {
	rows = dedupeRecords(rows)
	if len(rows) == 0 {
		return nil
	}

	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "repo"}, {Name: "platform"}, {Name: "commit_index"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"commit_hash", "status", "branch", "minutes",
			"reported_status", "exported_at",
		}),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < len(rows); i += batchSize {
			batch := rows[i:min(i+batchSize, len(rows))]

			if err := tx.Clauses(onConflict).Create(batch).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("upserting records: %w", err)
	}

	return nil
}

func (s *store) ReplaceSummary(
	ctx context.Context, rows []*PlatformSummary,
) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&PlatformSummary{}).Error; err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		return tx.Create(rows).Error
	})
	if err != nil {
		return fmt.Errorf("replacing summary: %w", err)
	}

	return nil
}

// ListRecords returns the records of one repository and platform in
// commit order. Empty filters match everything.
func (s *store) ListRecords(
	ctx context.Context, repo, platform string,
) ([]Record, error) {
	q := s.db.WithContext(ctx)

	if repo != "" {
		q = q.Where("repo = ?", repo)
	}

	if platform != "" {
		q = q.Where("platform = ?", platform)
	}

	var rows []Record
	if err := q.
		Order("repo, platform, commit_index, commit_hash").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	return rows, nil
}

// ListSummary returns the stored summary, fastest platform first.
func (s *store) ListSummary(ctx context.Context) ([]PlatformSummary, error) {
	var rows []PlatformSummary
	if err := s.db.WithContext(ctx).
		Order("slowdown_factor, platform").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing summary: %w", err)
	}

	return rows, nil
}

func (s *store) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&Record{}).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}

	return n, nil
}

type recordKey struct {
	repo     string
	platform string
	index    int
}

// dedupeRecords keeps the last row for each key. Postgres rejects an
// upsert statement that touches the same row twice.
func dedupeRecords(rows []*Record) []*Record {
	pos := make(map[recordKey]int, len(rows))
	out := make([]*Record, 0, len(rows))

	for _, r := range rows {
		k := recordKey{r.Repo, r.Platform, r.CommitIndex}
		if i, ok := pos[k]; ok {
			out[i] = r

			continue
		}

		pos[k] = len(out)
		out = append(out, r)
	}

	return out
}
